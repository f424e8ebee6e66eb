package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orderbot/internal/pipeline"
)

func TestWriteTextfileAfterPasses(t *testing.T) {
	t.Parallel()

	r := New()
	started := time.Unix(1700000000, 0)
	r.ObservePass(pipeline.Report{
		Result:     pipeline.ResultOK,
		Started:    started,
		Duration:   2 * time.Second,
		Fetched:    3,
		Known:      1,
		Delivered:  2,
		NoIdentity: 0,
		LedgerSize: 7,
	})
	r.ObservePass(pipeline.Report{
		Result:   pipeline.ResultFailed,
		Started:  started.Add(time.Minute),
		Duration: time.Second,
		Err:      errors.New("source unavailable"),
	})

	path := filepath.Join(t.TempDir(), "orderbot.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(b)
	for _, want := range []string{
		`orderbot_passes_total{result="ok"} 1`,
		`orderbot_passes_total{result="failed"} 1`,
		`orderbot_passes_total{result="noop"} 0`,
		`orderbot_records_total{outcome="delivered"} 2`,
		`orderbot_records_total{outcome="known"} 1`,
		`orderbot_ledger_size 7`,
		`orderbot_last_success_timestamp_seconds 1.700000002e+09`,
		`orderbot_last_pass_timestamp_seconds 1.700000061e+09`,
		`orderbot_pass_duration_seconds_count 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("textfile missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `outcome="no_identity"`) {
		t.Fatalf("zero outcomes should not create series:\n%s", out)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObservePass(pipeline.Report{Result: pipeline.ResultNoop, Started: time.Now()})

	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `orderbot_passes_total{result="noop"} 1`) {
		t.Fatalf("unexpected body:\n%s", body)
	}
}
