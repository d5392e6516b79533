// Package logstore keeps per-check activity logs as newline-delimited text
// files and their compressed archives.
package logstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	liveExt    = ".log"
	stagedExt  = ".rotating"
	archiveExt = ".gz.b64"
)

var (
	// ErrNotFound is returned when a live log or archive does not exist
	ErrNotFound = errors.New("log not found")
	// ErrArchiveExists is returned when an archive id is already taken
	ErrArchiveExists = errors.New("archive already exists")
	// ErrStagedExists is returned by Stage when an earlier rotation left a
	// staged copy behind
	ErrStagedExists = errors.New("staged log already exists")
)

// Store manages live logs (<dir>/<id>.log), logs staged for rotation
// (<dir>/<id>.rotating) and archives (<dir>/<id>.gz.b64)
type Store struct {
	dir string
}

// New creates a log store rooted at dir
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) file(id, ext string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid log id %q", id)
	}
	return filepath.Join(s.dir, id+ext), nil
}

// Append adds one line to a live log, creating it if needed. If the log is
// staged for rotation while the write is in flight, the line is written
// again to the new live log, so it may be duplicated but is never lost.
func (s *Store) Append(ctx context.Context, logID, line string) error {
	p, err := s.file(logID, liveExt)
	if err != nil {
		return err
	}

	data := []byte(line + "\n")
	for {
		moved, err := appendOnce(p, data)
		if err != nil {
			return fmt.Errorf("failed to append to log %s: %w", logID, err)
		}
		if !moved {
			return nil
		}
	}
}

// appendOnce writes data to p and reports whether p no longer names the
// file that was written.
func appendOnce(p string, data []byte) (bool, error) {
	f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// Single write so concurrent appenders never interleave within a line.
	if _, err := f.Write(data); err != nil {
		return false, err
	}

	written, err := f.Stat()
	if err != nil {
		return false, err
	}
	current, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return !os.SameFile(written, current), nil
}

// List returns the ids of logs with live or staged content and, when
// includeArchived is set, archive ids
func (s *Store) List(ctx context.Context, includeArchived bool) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, archiveExt):
			if includeArchived {
				add(strings.TrimSuffix(name, archiveExt))
			}
		case strings.HasSuffix(name, liveExt):
			add(strings.TrimSuffix(name, liveExt))
		case strings.HasSuffix(name, stagedExt):
			add(strings.TrimSuffix(name, stagedExt))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListArchives returns archive ids only
func (s *Store) ListArchives(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	ids := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), archiveExt) {
			ids = append(ids, strings.TrimSuffix(e.Name(), archiveExt))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ReadAll returns the full content of a live log
func (s *Store) ReadAll(ctx context.Context, logID string) ([]byte, error) {
	p, err := s.file(logID, liveExt)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, logID)
		}
		return nil, fmt.Errorf("failed to read log %s: %w", logID, err)
	}
	return data, nil
}

// WriteArchive stores already-encoded archive data under a new id
func (s *Store) WriteArchive(ctx context.Context, archiveID string, data []byte) error {
	p, err := s.file(archiveID, archiveExt)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrArchiveExists, archiveID)
		}
		return fmt.Errorf("failed to create archive %s: %w", archiveID, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("failed to write archive %s: %w", archiveID, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return fmt.Errorf("failed to close archive %s: %w", archiveID, err)
	}
	return nil
}

// Truncate empties a live log
func (s *Store) Truncate(ctx context.Context, logID string) error {
	p, err := s.file(logID, liveExt)
	if err != nil {
		return err
	}
	if err := os.Truncate(p, 0); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, logID)
		}
		return fmt.Errorf("failed to truncate log %s: %w", logID, err)
	}
	return nil
}

// ReadArchive returns the decompressed content of an archive
func (s *Store) ReadArchive(ctx context.Context, archiveID string) ([]byte, error) {
	p, err := s.file(archiveID, archiveExt)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, archiveID)
		}
		return nil, fmt.Errorf("failed to read archive %s: %w", archiveID, err)
	}
	return Decompress(string(data))
}

// Stage moves a live log aside for rotation and leaves an empty live log
// in its place, so appends that follow land in the new file. It returns ErrNotFound when there is no live log and
// ErrStagedExists, leaving the live log in place, when a staged copy from
// an earlier rotation is still present.
func (s *Store) Stage(ctx context.Context, logID string) error {
	live, err := s.file(logID, liveExt)
	if err != nil {
		return err
	}
	staged, err := s.file(logID, stagedExt)
	if err != nil {
		return err
	}

	// Link never replaces an existing staged copy.
	if err := os.Link(live, staged); err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			return fmt.Errorf("%w: %s", ErrStagedExists, logID)
		case errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%w: %s", ErrNotFound, logID)
		}
		return fmt.Errorf("failed to stage log %s: %w", logID, err)
	}
	if err := os.Remove(live); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to detach live log %s: %w", logID, err)
	}

	// Leave an empty live log so the id stays listed. O_TRUNC is not used:
	// an appender may already have recreated it.
	f, err := os.OpenFile(live, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to recreate live log %s: %w", logID, err)
	}
	return f.Close()
}

// ReadStaged returns the content of a staged log
func (s *Store) ReadStaged(ctx context.Context, logID string) ([]byte, error) {
	p, err := s.file(logID, stagedExt)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, logID)
		}
		return nil, fmt.Errorf("failed to read staged log %s: %w", logID, err)
	}
	return data, nil
}

// RemoveStaged deletes a staged log once it has been archived
func (s *Store) RemoveStaged(ctx context.Context, logID string) error {
	p, err := s.file(logID, stagedExt)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, logID)
		}
		return fmt.Errorf("failed to remove staged log %s: %w", logID, err)
	}
	return nil
}
