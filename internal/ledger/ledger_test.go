package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"orderbot/internal/storage"
	logx "orderbot/pkg/logx"
)

type memStore struct {
	ids       []string
	loadErr   error
	appendErr error
	appends   int
}

func (m *memStore) Load(context.Context) ([]string, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]string(nil), m.ids...), nil
}

func (m *memStore) Append(_ context.Context, id string) error {
	m.appends++
	if m.appendErr != nil {
		return m.appendErr
	}
	m.ids = append(m.ids, id)
	return nil
}

func (m *memStore) Close() error { return nil }

func TestLoadAndContains(t *testing.T) {
	t.Parallel()
	l := New(&memStore{ids: []string{"ORD-1", "ORD-1", "ORD-2"}}, logx.Nop())
	if n := l.Load(context.Background()); n != 3 {
		t.Fatalf("Load = %d, want 3 (duplicates tolerated)", n)
	}
	if !l.Contains("ORD-1") || !l.Contains("ORD-2") {
		t.Fatal("loaded identities missing")
	}
	if l.Contains("ORD-3") {
		t.Fatal("unexpected identity")
	}
}

func TestLoadFailureIsEmptyLedger(t *testing.T) {
	t.Parallel()
	for _, err := range []error{storage.ErrCorrupt, errors.New("permission denied")} {
		l := New(&memStore{ids: []string{"X"}, loadErr: err}, logx.Nop())
		if n := l.Load(context.Background()); n != 0 {
			t.Fatalf("Load = %d, want 0 for %v", n, err)
		}
		if l.Contains("X") {
			t.Fatalf("ledger should be empty after %v", err)
		}
	}
}

func TestAppendPersistsImmediately(t *testing.T) {
	t.Parallel()
	st := &memStore{ids: []string{"OLD"}}
	l := New(st, logx.Nop())
	l.Load(context.Background())

	for _, id := range []string{"ORD-2", "ORD-1"} {
		if err := l.Append(context.Background(), id); err != nil {
			t.Fatalf("Append(%s): %v", id, err)
		}
	}
	if st.appends != 2 {
		t.Fatalf("store appends = %d, want 2", st.appends)
	}
	want := []string{"OLD", "ORD-2", "ORD-1"}
	if !reflect.DeepEqual(st.ids, want) || !reflect.DeepEqual(l.IDs(), want) {
		t.Fatalf("store=%v ledger=%v, want %v", st.ids, l.IDs(), want)
	}
}

func TestAppendIgnoresKnownAndEmpty(t *testing.T) {
	t.Parallel()
	st := &memStore{ids: []string{"ORD-1"}}
	l := New(st, logx.Nop())
	l.Load(context.Background())
	_ = l.Append(context.Background(), "ORD-1")
	_ = l.Append(context.Background(), "")
	if st.appends != 0 || l.Len() != 1 {
		t.Fatalf("appends=%d len=%d", st.appends, l.Len())
	}
}

func TestAppendPersistFailureKeepsMemoryEntry(t *testing.T) {
	t.Parallel()
	st := &memStore{appendErr: errors.New("disk full")}
	l := New(st, logx.Nop())
	l.Load(context.Background())

	err := l.Append(context.Background(), "ORD-9")
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("err = %v, want ErrPersist", err)
	}
	if !l.Contains("ORD-9") {
		t.Fatal("identity should stay in memory for the rest of the pass")
	}
}

func TestCorruptFileRecoversOnNextAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sent_ids.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	l := New(st, logx.Nop())
	if n := l.Load(ctx); n != 0 {
		t.Fatalf("Load = %d, want 0", n)
	}
	if err := l.Append(ctx, "ORD-1"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	fresh := New(st, logx.Nop())
	fresh.Load(ctx)
	if !reflect.DeepEqual(fresh.IDs(), []string{"ORD-1"}) {
		t.Fatalf("ids = %v", fresh.IDs())
	}
}
