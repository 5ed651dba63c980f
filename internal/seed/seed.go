// Package seed reads and writes collection files in the backend wire shape:
// {"articles": [...], "tags": [...]}.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/dto"
	"github.com/cewkb/kbsearch/internal/logger"
)

// MaxFileSize bounds how much of a seed file is read.
const MaxFileSize = 256 << 20

// File is a seed file on disk. It implements catalog.Source.
type File struct {
	path   string
	mapper *dto.Mapper
	policy dto.Policy
	logger *slog.Logger
}

// NewFile creates a File for path. A nil mapper uses a default one.
func NewFile(path string, mapper *dto.Mapper, policy dto.Policy, log *slog.Logger) *File {
	if mapper == nil {
		mapper = dto.NewMapper(nil)
	}
	if policy == "" {
		policy = dto.PolicySkip
	}
	if log == nil {
		log = logger.Discard()
	}
	return &File{path: path, mapper: mapper, policy: policy, logger: log}
}

// Name implements catalog.Source.
func (f *File) Name() string { return "seed" }

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Load reads and maps the file.
func (f *File) Load(ctx context.Context) (domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return domain.Collection{}, err
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("stat seed file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return domain.Collection{}, fmt.Errorf("seed file %s is %d bytes, limit is %d", f.path, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("read seed file: %w", err)
	}

	var p dto.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Collection{}, fmt.Errorf("decode seed file %s: %w", f.path, err)
	}

	col, skipped, err := f.mapper.MapCollection(p, f.policy)
	if err != nil {
		return domain.Collection{}, err
	}
	for _, e := range skipped {
		f.logger.Warn("skipped invalid seed record", "path", f.path, "error", e)
	}
	return col, nil
}

// Save writes col to the file. It implements catalog.Sink.
func (f *File) Save(_ context.Context, col domain.Collection) error {
	return Write(f.path, col)
}

// Write stores col at path in wire form. The file is replaced atomically so
// a watcher never sees a half-written seed.
func Write(path string, col domain.Collection) error {
	data, err := json.MarshalIndent(dto.FromDomain(col), "", "  ")
	if err != nil {
		return fmt.Errorf("encode seed: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create seed dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".seed-*.json")
	if err != nil {
		return fmt.Errorf("create temp seed: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp seed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp seed: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename seed: %w", err)
	}
	return nil
}
