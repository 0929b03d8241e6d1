// Package source enumerates the candidate slice files at a location.
// A location may be a directory, a .zip bundle or a single file; a single
// file stands for every file in its parent directory.
package source

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver turns a location into a sorted list of regular files
type Resolver struct {
	// TempDir is where zip bundles are extracted. Empty means os.TempDir().
	TempDir string
}

// NewResolver creates a resolver extracting archives under os.TempDir()
func NewResolver() *Resolver {
	return &Resolver{}
}

// Open lists the files at location. For zip bundles the archive is
// extracted into a fresh temporary directory which cleanup removes.
// cleanup is never nil. A missing location wraps fs.ErrNotExist.
func (r *Resolver) Open(ctx context.Context, location string) ([]string, func() error, error) {
	noop := func() error { return nil }

	info, err := os.Stat(location)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open location: %w", err)
	}

	switch {
	case info.IsDir():
		files, err := ListDir(ctx, location)
		return files, noop, err
	case strings.EqualFold(filepath.Ext(location), ".zip"):
		dir, cleanup, err := r.extract(ctx, location)
		if err != nil {
			return nil, cleanup, err
		}
		files, err := ListDir(ctx, dir)
		return files, cleanup, err
	default:
		files, err := ListDir(ctx, filepath.Dir(location))
		return files, noop, err
	}
}

// ListDir walks dir and returns every regular, non-hidden file in lexical
// order. Hidden directories are not descended into.
func ListDir(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		hidden := strings.HasPrefix(d.Name(), ".") && path != dir
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !d.Type().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

// extract unpacks the archive into a new temporary directory. When the
// archive holds exactly one top-level directory, that directory is
// returned instead of the extraction root.
func (r *Resolver) extract(ctx context.Context, archive string) (string, func() error, error) {
	root, err := os.MkdirTemp(r.TempDir, "dicomseries-*")
	if err != nil {
		return "", func() error { return nil }, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(root) }

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return "", cleanup, err
		}
		if err := extractFile(root, f); err != nil {
			return "", cleanup, err
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to read extraction directory: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(root, entries[0].Name()), cleanup, nil
	}
	return root, cleanup, nil
}

func extractFile(root string, f *zip.File) error {
	dest := filepath.Join(root, filepath.FromSlash(f.Name))
	if !strings.HasPrefix(dest, filepath.Clean(root)+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %q escapes extraction directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
