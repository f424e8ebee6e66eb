package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	logx "orderbot/pkg/logx"
)

func openTest(t *testing.T, driver, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoresKeepInsertionOrderAcrossReopen(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", "ledger."+driver)

			st := openTest(t, driver, path)
			ids, err := st.Load(ctx)
			if err != nil {
				t.Fatalf("Load on fresh store: %v", err)
			}
			if len(ids) != 0 {
				t.Fatalf("fresh store has %v", ids)
			}
			for _, id := range []string{"ORD-2", "ORD-1", "ORD-3"} {
				if err := st.Append(ctx, id); err != nil {
					t.Fatalf("Append(%s): %v", id, err)
				}
			}
			if err := st.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			again := openTest(t, driver, path)
			got, err := again.Load(ctx)
			if err != nil {
				t.Fatalf("Load after reopen: %v", err)
			}
			want := []string{"ORD-2", "ORD-1", "ORD-3"}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("ids = %v, want %v", got, want)
			}
		})
	}
}

func TestFileStoreFormat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sent_ids.json")
	if err := os.WriteFile(path, []byte(`["OLD-1", "OLD-1"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	st := openTest(t, "file", path)
	ids, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("duplicates should be tolerated, got %v", ids)
	}
	if err := st.Append(ctx, "NEW-1"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n    \"OLD-1\",\n    \"OLD-1\",\n    \"NEW-1\"\n]\n"
	if string(b) != want {
		t.Fatalf("file content = %q, want %q", b, want)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreCorruptIsMovedAside(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sent_ids.json")
	if err := os.WriteFile(path, []byte(`{"not":"an array"`), 0o644); err != nil {
		t.Fatal(err)
	}

	st := openTest(t, "file", path)
	ids, err := st.Load(ctx)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v", ids)
	}
	aside, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("corrupt copy missing: %v", err)
	}
	if !strings.Contains(string(aside), "not") {
		t.Fatalf("corrupt copy content = %q", aside)
	}

	if err := st.Append(ctx, "ORD-1"); err != nil {
		t.Fatalf("Append after corrupt load: %v", err)
	}
	again := openTest(t, "file", path)
	got, err := again.Load(ctx)
	if err != nil || !reflect.DeepEqual(got, []string{"ORD-1"}) {
		t.Fatalf("Load = %v, %v", got, err)
	}
}

func TestFileStoreEmptyFileIsEmptyLedger(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sent_ids.json")
	if err := os.WriteFile(path, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ids, err := openTest(t, "file", path).Load(context.Background())
	if err != nil || len(ids) != 0 {
		t.Fatalf("Load = %v, %v", ids, err)
	}
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	t.Parallel()
	st := openTest(t, "file", filepath.Join(t.TempDir(), "x.json"))
	_ = st.Close()
	if err := st.Append(context.Background(), "A"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty sqlite path")
	}
}
