package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FileStore keeps a whole collection in a single document, rewritten atomically on every Put.
type FileStore[T any] struct {
	path  string
	codec codec

	lock sync.Mutex
	docs map[string]T

	logger *logr.Logger
}

func NewFileStore[T any](path string) (*FileStore[T], error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, fmt.Errorf("failed to select codec: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}

	return &FileStore[T]{
		path:  path,
		codec: c,
		docs:  map[string]T{},
	}, nil
}

func (s *FileStore[T]) WithLogger(logger logr.Logger) *FileStore[T] {
	s.logger = &logger

	return s
}

// LoadAll reads the document from disk. A missing document is an empty collection.
func (s *FileStore[T]) LoadAll(ctx context.Context) (map[string]T, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logInfo(1, "No document yet, starting empty", "path", s.path)

		s.docs = map[string]T{}

		return map[string]T{}, nil
	}

	if err != nil {
		return nil, common.NewStorageError(fmt.Errorf("failed to read %s: %w", s.path, err))
	}

	docs := map[string]T{}

	if len(data) > 0 {
		err = s.codec.unmarshal(data, &docs)
		if err != nil {
			return nil, common.NewStorageError(fmt.Errorf("failed to decode %s: %w", s.path, err))
		}
	}

	s.docs = docs

	s.logInfo(1, "Document loaded", "path", s.path, "records", len(docs))

	ret := make(map[string]T, len(docs))
	for id, doc := range docs {
		ret[id] = doc
	}

	return ret, nil
}

// Put stores doc under id. The previous document is left untouched when the write fails.
func (s *FileStore[T]) Put(ctx context.Context, id string, doc T) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	previous, existed := s.docs[id]

	s.docs[id] = doc

	err := s.write()
	if err != nil {
		if existed {
			s.docs[id] = previous
		} else {
			delete(s.docs, id)
		}

		return common.NewStorageError(err)
	}

	s.logInfo(3, "Document written", "path", s.path, "id", id)

	return nil
}

func (s *FileStore[T]) Close(ctx context.Context) error {
	return nil
}

// write encodes the collection to a temp file in the same directory, syncs it, then renames it over the document.
func (s *FileStore[T]) write() error {
	data, err := s.codec.marshal(s.docs)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpPath := tmp.Name()
	committed := false

	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	_, err = tmp.Write(data)
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write temp file: %w", err)
	}

	err = tmp.Sync()
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	err = os.Chmod(tmpPath, filePerm)
	if err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	err = os.Rename(tmpPath, s.path)
	if err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	committed = true

	s.syncDir(dir)

	return nil
}

// syncDir makes the rename durable. Not supported everywhere, so failures are only logged.
func (s *FileStore[T]) syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		s.logInfo(2, "Failed to open document directory", "dir", dir, "error", err.Error())

		return
	}
	defer d.Close()

	err = d.Sync()
	if err != nil {
		s.logInfo(2, "Failed to sync document directory", "dir", dir, "error", err.Error())
	}
}

func (s *FileStore[T]) logInfo(level int, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.V(level).Info(msg, keysAndValues...)
}
