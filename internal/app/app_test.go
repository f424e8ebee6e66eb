package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"orderbot/internal/config"
	"orderbot/internal/source"
	logx "orderbot/pkg/logx"
)

const notionPage = `{"id":"%s","properties":{
	"- Id Pesanan":{"rich_text":[{"text":{"content":"%s"}}]},
	"- Pelanggan":{"rich_text":[{"text":{"content":"Budi"}}]},
	"- Admin Sales":{"rich_text":[]}
}}`

type telegramStub struct {
	mu    sync.Mutex
	texts []string
}

func (s *telegramStub) handler(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	s.texts = append(s.texts, body["text"])
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":-100},"date":0,"text":"x"}}`))
}

func testConfig(t *testing.T, notionURL, telegramURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Notion.Token = "secret"
	cfg.Notion.DatabaseID = "db1"
	cfg.Notion.BaseURL = notionURL
	cfg.Telegram.Token = "1:abc"
	cfg.Telegram.ChatID = "-100"
	cfg.Telegram.BaseURL = telegramURL
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "sent_ids.json")
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "orderbot.prom")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &cfg
}

func page(id, identity string) string {
	return fmt.Sprintf(notionPage, id, identity)
}

func TestRunOnceDeliversNewRecords(t *testing.T) {
	t.Parallel()

	notion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[` + page("p1", "ORD-1") + `,` + page("p2", "ORD-2") + `]}`))
	}))
	t.Cleanup(notion.Close)
	tg := &telegramStub{}
	tgSrv := httptest.NewServer(http.HandlerFunc(tg.handler))
	t.Cleanup(tgSrv.Close)

	cfg := testConfig(t, notion.URL, tgSrv.URL)
	if err := os.WriteFile(cfg.Ledger.Path, []byte(`["ORD-1"]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a, err := newWithLogger(config.Loader{}, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("newWithLogger: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if code := a.RunOnce(context.Background()); code != ExitOK {
		t.Fatalf("exit code = %d, want %d", code, ExitOK)
	}
	if len(tg.texts) != 1 || !strings.Contains(tg.texts[0], "ORD-2") {
		t.Fatalf("telegram texts = %q", tg.texts)
	}
	if !strings.Contains(tg.texts[0], "*Sales Admin:* no data available") {
		t.Fatalf("expected placeholder for agent, got %q", tg.texts[0])
	}

	b, err := os.ReadFile(cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"ORD-1", "ORD-2"}) {
		t.Fatalf("ledger = %v", ids)
	}

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	if err != nil {
		t.Fatalf("textfile: %v", err)
	}
	if !strings.Contains(string(prom), `orderbot_passes_total{result="ok"} 1`) {
		t.Fatalf("unexpected textfile:\n%s", prom)
	}
}

func TestRunOnceFetchFailureExitsOne(t *testing.T) {
	t.Parallel()

	notion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"object":"error","code":"unauthorized","message":"API token is invalid."}`, http.StatusUnauthorized)
	}))
	t.Cleanup(notion.Close)
	tg := &telegramStub{}
	tgSrv := httptest.NewServer(http.HandlerFunc(tg.handler))
	t.Cleanup(tgSrv.Close)

	a, err := newWithLogger(config.Loader{}, testConfig(t, notion.URL, tgSrv.URL), logx.Nop())
	if err != nil {
		t.Fatalf("newWithLogger: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if code := a.RunOnce(context.Background()); code != ExitFetchFailed {
		t.Fatalf("exit code = %d, want %d", code, ExitFetchFailed)
	}
	if len(tg.texts) != 0 {
		t.Fatalf("unexpected sends: %q", tg.texts)
	}
}

func TestRunOnceEmptyBatchExitsZero(t *testing.T) {
	t.Parallel()

	notion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(notion.Close)
	tgSrv := httptest.NewServer(http.HandlerFunc((&telegramStub{}).handler))
	t.Cleanup(tgSrv.Close)

	a, err := newWithLogger(config.Loader{}, testConfig(t, notion.URL, tgSrv.URL), logx.Nop())
	if err != nil {
		t.Fatalf("newWithLogger: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if code := a.RunOnce(context.Background()); code != ExitOK {
		t.Fatalf("exit code = %d, want %d", code, ExitOK)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: ExitOK},
		{err: source.ErrUnavailable, want: ExitFetchFailed},
		{err: context.Canceled, want: ExitFetchFailed},
		{err: config.ErrInvalid, want: ExitStartup},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestBuildComponentsRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	cfg.Ledger.Driver = "redis"
	if _, err := buildComponents(cfg, logx.Nop(), nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunScheduledRunsFirstPassImmediately(t *testing.T) {
	t.Parallel()

	notion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[` + page("p1", "ORD-7") + `]}`))
	}))
	t.Cleanup(notion.Close)
	tg := &telegramStub{}
	tgSrv := httptest.NewServer(http.HandlerFunc(tg.handler))
	t.Cleanup(tgSrv.Close)

	a, err := newWithLogger(config.Loader{}, testConfig(t, notion.URL, tgSrv.URL), logx.Nop())
	if err != nil {
		t.Fatalf("newWithLogger: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.RunScheduled(ctx, "1h"); err != nil {
		t.Fatalf("RunScheduled: %v", err)
	}
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if len(tg.texts) != 1 || !strings.Contains(tg.texts[0], "ORD-7") {
		t.Fatalf("telegram texts = %q", tg.texts)
	}
}

func TestRunScheduledRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	a, err := newWithLogger(config.Loader{}, testConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1"), logx.Nop())
	if err != nil {
		t.Fatalf("newWithLogger: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	err = a.RunScheduled(context.Background(), "whenever")
	if ExitCode(err) != ExitStartup {
		t.Fatalf("err = %v, want startup error", err)
	}
}

func TestReloadKeepsComponentsOnBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	a, err := newWithLogger(config.Loader{}, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("newWithLogger: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	before := a.comp
	bad := *cfg
	bad.Ledger.Driver = "redis"
	a.reload(&bad)
	if a.comp != before {
		t.Fatalf("components replaced by an unusable config")
	}

	good := *cfg
	good.Ledger.Path = filepath.Join(t.TempDir(), "other.json")
	a.reload(&good)
	if a.comp == before || a.cfg.Ledger.Path != good.Ledger.Path {
		t.Fatalf("components not rebuilt")
	}
}
