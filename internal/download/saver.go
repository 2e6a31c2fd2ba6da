// Package download saves export archives into the user's download
// directory.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/heimdex/heimdex-exporter/internal/logging"
)

// FileSaver writes archives into a directory through a temporary file that
// is renamed into place once complete.
type FileSaver struct {
	dir    string
	logger *slog.Logger
}

func NewFileSaver(dir string, logger *slog.Logger) *FileSaver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &FileSaver{dir: dir, logger: logging.WithComponent(logger, "download")}
}

// Dir returns the directory archives are saved into.
func (s *FileSaver) Dir() string {
	return s.dir
}

// Save stores data as filename in the download directory and returns the
// final path. The temporary file is released on every path out of Save.
func (s *FileSaver) Save(ctx context.Context, filename string, data []byte) (string, error) {
	name, err := archiveName(filename)
	if err != nil {
		return "", err
	}

	if err := checkDir(s.dir); err != nil {
		return "", err
	}

	ref, err := acquire(s.dir, name)
	if err != nil {
		return "", err
	}
	defer ref.release(s.logger)

	if err := ref.write(ctx, data); err != nil {
		return "", err
	}

	final := filepath.Join(s.dir, name)
	if err := ref.commit(final); err != nil {
		return "", err
	}

	s.logger.Debug("archive written", "path", logging.SanitizePath(final), "size", logging.Size(int64(len(data))))
	return final, nil
}

// tempRef is the temporary on-disk reference to an archive being saved.
type tempRef struct {
	file *os.File
	path string
}

func acquire(dir, name string) (*tempRef, error) {
	f, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &tempRef{file: f, path: f.Name()}, nil
}

const copyChunk = 1 << 20

func (r *tempRef) write(ctx context.Context, data []byte) error {
	src := bytes.NewReader(data)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.CopyN(r.file, src, copyChunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("sync archive: %w", err)
	}
	return nil
}

func (r *tempRef) commit(final string) error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(r.path, final); err != nil {
		return fmt.Errorf("move archive into place: %w", err)
	}
	return nil
}

// release closes the temp file and removes it if it was never committed.
func (r *tempRef) release(logger *slog.Logger) {
	_ = r.file.Close()
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove temp archive", "path", logging.SanitizePath(r.path), "error", err)
	}
}
