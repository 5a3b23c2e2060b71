package transfer

import (
	"context"
	"os"
	"path/filepath"
)

// Sink materializes downloaded content at a destination.
type Sink interface {
	Write(ctx context.Context, dest string, data []byte) error
}

// FileSink writes content to the local filesystem.
// A failed write may leave a partial file behind; nothing cleans it up.
type FileSink struct {
	Perm os.FileMode // Perm is the mode for new files, 0644 when zero
}

// Write creates the parent directory if needed and writes data to dest.
func (s FileSink) Write(ctx context.Context, dest string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	perm := s.Perm
	if perm == 0 {
		perm = 0644
	}

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(dest, data, perm)
}
