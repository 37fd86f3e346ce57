package documentloaders

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sevigo/sourceqa/schema"
)

const maxFileSize = 10 * 1024 * 1024

// Directory walks a tree and loads every file with a known extension.
// Sources are paths relative to the root. Unreadable files are logged and
// skipped so one bad file does not abort an ingest.
type Directory struct {
	root string
	opts options
}

var _ Loader = (*Directory)(nil)

func NewDirectory(root string, opts ...Option) *Directory {
	return &Directory{root: root, opts: applyOptions(opts...)}
}

// loaderFor picks a loader by file extension, or returns nil when the
// format is not supported.
func loaderFor(path, source string, opts options) Loader {
	withSource := []Option{WithLogger(opts.logger), WithSource(source)}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		return NewText(path, withSource...)
	case ".md", ".markdown":
		return NewMarkdown(path, withSource...)
	case ".pdf":
		return NewPDF(path, withSource...)
	default:
		return nil
	}
}

// NewFile returns the loader for a single file, chosen by extension.
func NewFile(path string, opts ...Option) (Loader, error) {
	o := applyOptions(opts...)
	l := loaderFor(path, o.sourceFor(path), o)
	if l == nil {
		return nil, ErrUnsupportedFormat
	}
	return l, nil
}

func (d *Directory) Load(ctx context.Context) ([]schema.Document, error) {
	if d.root == "" {
		return nil, ErrEmptyPath
	}
	logger := d.opts.logger.With("component", "directory_loader", "root", d.root)
	logger.InfoContext(ctx, "Starting directory load")

	var docs []schema.Document
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.root {
				return err
			}
			logger.WarnContext(ctx, "Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if path != d.root && shouldSkipDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := entry.Info()
		if err != nil || info.Size() > maxFileSize {
			logger.DebugContext(ctx, "Skipping file", "path", path)
			return nil
		}

		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			rel = path
		}
		loader := loaderFor(path, filepath.ToSlash(rel), d.opts)
		if loader == nil {
			logger.DebugContext(ctx, "Skipping unsupported file", "path", path)
			return nil
		}

		fileDocs, err := loader.Load(ctx)
		if err != nil {
			logger.WarnContext(ctx, "Failed to load file, skipping", "path", path, "error", err)
			return nil
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "Directory walk failed", "error", err)
		return nil, err
	}

	logger.InfoContext(ctx, "Directory load completed", "documents", len(docs))
	return docs, nil
}

// shouldSkipDir reports directories that never hold documents worth indexing.
func shouldSkipDir(name string) bool {
	skipDirs := []string{
		".git", ".svn", ".hg",
		"vendor", "node_modules", "__pycache__",
		"build", "dist", "target",
		".vscode", ".idea",
	}
	return slices.Contains(skipDirs, name)
}
