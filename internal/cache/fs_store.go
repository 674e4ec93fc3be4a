package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/djherbis/atime"
)

const tempFilePattern = ".cache-*"

// NewStore 以 dir 为缓存目录构建磁盘存储，整站复用一份实例。
func NewStore(dir string) (Store, error) {
	if dir == "" {
		return nil, errors.New("cache dir required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &fileStore{
		dir:   abs,
		locks: make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同名条目的写入与删除交错，读取不加锁。
type fileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Dir() string {
	return s.dir
}

func (s *fileStore) Stat(ctx context.Context, name string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	filePath, err := s.entryPath(name)
	if err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if info.IsDir() {
		return Entry{}, ErrNotFound
	}
	return entryFromInfo(name, filePath, info), nil
}

func (s *fileStore) ReadFull(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *fileStore) ReadRange(ctx context.Context, name string, start, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if start < 0 || length < 0 {
		return nil, fmt.Errorf("invalid range: start=%d length=%d", start, length)
	}

	filePath, err := s.entryPath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("read range %d+%d: %w", start, length, err)
	}
	return buf, nil
}

func (s *fileStore) Write(ctx context.Context, name string, body []byte) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(name)
	if err != nil {
		return nil, err
	}

	unlock := s.lockEntry(name)
	defer unlock()

	// 目录可能刚被 Clear 重建，写入前再确认一次。
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(s.dir, tempFilePattern)
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	now := time.Now()
	return &Entry{
		Name:       name,
		FilePath:   filePath,
		SizeBytes:  int64(len(body)),
		AccessTime: now,
		ModTime:    now,
	}, nil
}

func (s *fileStore) Touch(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.entryPath(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return os.Chtimes(filePath, time.Now(), info.ModTime())
}

func (s *fileStore) Delete(ctx context.Context, name string) error {
	filePath, err := s.entryPath(name)
	if err != nil {
		return err
	}

	unlock := s.lockEntry(name)
	defer unlock()

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// 枚举期间被删除。
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, entryFromInfo(name, filepath.Join(s.dir, name), info))
	}
	return entries, nil
}

func (s *fileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove cache dir: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("recreate cache dir: %w", err)
	}
	return nil
}

func (s *fileStore) lockEntry(name string) func() {
	s.mu.Lock()
	lock := s.locks[name]
	if lock == nil {
		lock = &entryLock{}
		s.locks[name] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, name)
		}
		s.mu.Unlock()
	}
}

func (s *fileStore) entryPath(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid cache name: %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func entryFromInfo(name, filePath string, info os.FileInfo) Entry {
	accessed := atime.Get(info)
	if accessed.IsZero() {
		accessed = info.ModTime()
	}
	return Entry{
		Name:       name,
		FilePath:   filePath,
		SizeBytes:  info.Size(),
		AccessTime: accessed,
		ModTime:    info.ModTime(),
	}
}
