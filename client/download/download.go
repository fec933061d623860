package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Save copies body into a temp file beside destPath and renames it to
// destPath once the size and checksum checks pass. size < 0 skips the
// size check. On any error the temp file is removed.
func Save(ctx context.Context, body io.Reader, size int64, destPath string, logger *slog.Logger, optFns ...Option) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return fmt.Errorf("applying option: %w", err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing export", "path", destPath)
			return nil
		}
	}

	body = &contextReader{ctx: ctx, r: body}

	file, err := os.CreateTemp(filepath.Dir(destPath), ".datalake-export-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	var writer io.Writer = file
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}
	var pw *progressWriter
	if opts.progress {
		pw = &progressWriter{
			w:         writer,
			logger:    logger,
			path:      destPath,
			total:     size,
			startTime: time.Now(),
		}
		writer = pw
	}

	n, err := io.Copy(writer, body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return fmt.Errorf("copying export body: %w", err)
	}
	if pw != nil && size < 0 {
		pw.log("export written")
	}

	if size >= 0 && n != size {
		return &Error{
			Err:    ErrSizeMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", size, n),
		}
	}

	if err := opts.checksum.Verify(); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(file.Name(), destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	successful = true

	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}
