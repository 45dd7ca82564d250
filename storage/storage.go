// Package storage persists run artifacts (reports, retained Parquet files,
// metrics) to a local directory or an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type Storage interface {
	Write(ctx context.Context, filepath string, data io.Reader) error
	Read(ctx context.Context, filepath string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Options selects the artifact destination. A bucket wins over Dir.
type Options struct {
	Dir      string
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// Open returns the storage described by opts, or nil when opts names no
// destination.
func Open(ctx context.Context, opts Options) (Storage, error) {
	switch {
	case opts.Bucket != "":
		return NewS3StorageFromOptions(ctx, opts)
	case opts.Dir != "":
		return NewLocalStorage(opts.Dir)
	}
	return nil, nil
}

// Upload copies every regular file below dir into st under prefix, keeping
// relative paths.
func Upload(ctx context.Context, st Storage, dir, prefix string) ([]string, error) {
	var written []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("opening artifact: %w", err)
		}
		defer f.Close()

		key := filepath.ToSlash(filepath.Join(prefix, rel))
		if err := st.Write(ctx, key, f); err != nil {
			return fmt.Errorf("uploading %s: %w", key, err)
		}
		written = append(written, key)
		return nil
	})
	return written, err
}
