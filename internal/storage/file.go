package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "giveawaybot/pkg/logx"
)

// fileStore keeps each collection as one JSON object (key -> document) in
// <dir>/<collection>.json. Every mutation reads the whole file, changes one
// key and rewrites it through a temp file and rename.
type fileStore struct {
	dir string
	log logx.Logger

	mu     sync.Mutex
	locks  map[Collection]*sync.Mutex
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	log.Debug("file store opened", logx.String("dir", dir))
	return &fileStore{dir: dir, log: log, locks: map[Collection]*sync.Mutex{}}, nil
}

func (s *fileStore) pathFor(coll Collection) string {
	return filepath.Join(s.dir, string(coll)+".json")
}

// lock returns the held mutex of coll, or ErrClosed.
func (s *fileStore) lock(coll Collection) (*sync.Mutex, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	l := s.locks[coll]
	if l == nil {
		l = &sync.Mutex{}
		s.locks[coll] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) Get(ctx context.Context, coll Collection, key string) (json.RawMessage, error) {
	l, err := s.lock(coll)
	if err != nil {
		return nil, err
	}
	defer l.Unlock()
	m, err := s.readLocked(coll)
	if err != nil {
		return nil, err
	}
	doc, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *fileStore) All(ctx context.Context, coll Collection) (map[string]json.RawMessage, error) {
	l, err := s.lock(coll)
	if err != nil {
		return nil, err
	}
	defer l.Unlock()
	return s.readLocked(coll)
}

func (s *fileStore) Put(ctx context.Context, coll Collection, key string, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("storage: invalid document for %s/%s", coll, key)
	}
	return s.mutate(ctx, coll, func(m map[string]json.RawMessage) bool {
		m[key] = doc
		return true
	})
}

func (s *fileStore) Delete(ctx context.Context, coll Collection, key string) error {
	return s.mutate(ctx, coll, func(m map[string]json.RawMessage) bool {
		if _, ok := m[key]; !ok {
			return false
		}
		delete(m, key)
		return true
	})
}

func (s *fileStore) mutate(ctx context.Context, coll Collection, fn func(m map[string]json.RawMessage) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l, err := s.lock(coll)
	if err != nil {
		return err
	}
	defer l.Unlock()
	m, err := s.readLocked(coll)
	if err != nil {
		return err
	}
	if !fn(m) {
		return nil
	}
	return s.writeLocked(coll, m)
}

// readLocked returns an empty map when the file does not exist yet.
func (s *fileStore) readLocked(coll Collection) (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(s.pathFor(coll))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if len(strings.TrimSpace(string(b))) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", s.pathFor(coll), err)
	}
	return m, nil
}

func (s *fileStore) writeLocked(coll Collection, m map[string]json.RawMessage) error {
	path := s.pathFor(coll)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// backupFiles copies the collection files as they are on disk, without
// taking the collection locks.
func (s *fileStore) backupFiles(dir, stamp string) ([]string, error) {
	var out []string
	for _, coll := range Collections {
		src := s.pathFor(coll)
		b, err := os.ReadFile(src)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return out, err
		}
		dst := filepath.Join(dir, backupName(coll, stamp))
		if err := os.WriteFile(dst, b, 0o600); err != nil {
			return out, err
		}
		out = append(out, dst)
	}
	return out, nil
}
