package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "orderbot/pkg/logx"
)

// fileStore keeps the identities as an indented JSON array of strings.
//
// Every Append rewrites the whole file through <path>.tmp + rename, so a
// reader never sees a half-written array.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	ids    []string
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

// Load reads the array. A missing file is an empty ledger. An undecodable
// file is moved aside to <path>.corrupt (best-effort) and reported as
// ErrCorrupt; the next Append starts a fresh array.
func (s *fileStore) Load(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.ids = nil

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(b)) == "" {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		aside := s.path + ".corrupt"
		if rerr := os.Rename(s.path, aside); rerr != nil {
			s.log.Debug("could not move corrupt ledger aside", logx.String("path", s.path), logx.Err(rerr))
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	s.ids = ids
	return append([]string(nil), ids...), nil
}

func (s *fileStore) Append(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next := append(append(make([]string, 0, len(s.ids)+1), s.ids...), id)
	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.ids = next
	return nil
}

func (s *fileStore) writeLocked(ids []string) error {
	b, err := json.MarshalIndent(ids, "", "    ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
