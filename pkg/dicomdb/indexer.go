package dicomdb

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jpfielding/qreport.go/pkg/util"
)

// skipDirs are never descended into
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
}

// HasDICMPrefix reports whether the file has "DICM" at offset 128
func HasDICMPrefix(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	header := make([]byte, 132)
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return string(header[128:132]) == "DICM"
}

// FindFiles returns every Part 10 file below root, sorted
func FindFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if HasDICMPrefix(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Indexer adds files to an Index
type Indexer struct {
	Index  *Index
	Parser HeaderParser
}

// NewIndexer returns an indexer filling idx with p
func NewIndexer(idx *Index, p HeaderParser) *Indexer {
	return &Indexer{Index: idx, Parser: p}
}

// IndexFiles parses and adds each path. Unparseable files are logged and
// skipped; the count of indexed files is returned.
func (ix *Indexer) IndexFiles(ctx context.Context, paths []string) (int, error) {
	n := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		inst, err := ix.Parser.ParseHeader(p)
		if err != nil {
			slog.WarnContext(ctx, "skipping file", slog.String("path", p), slog.Any("error", err))
			continue
		}
		ix.Index.Add(inst)
		n++
	}
	slog.DebugContext(ctx, "indexed files", slog.Int("count", n), slog.Int("total", ix.Index.Len()))
	return n, nil
}

// IndexDirectory indexes every DICOM file below root
func (ix *Indexer) IndexDirectory(ctx context.Context, root string) (int, error) {
	files, err := FindFiles(root)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", root, err)
	}
	return ix.IndexFiles(ctx, files)
}

// IndexAsync indexes paths in the background. The returned channel yields
// the result once.
func (ix *Indexer) IndexAsync(ctx context.Context, paths []string) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := ix.IndexFiles(ctx, paths)
		done <- err
	}()
	return done
}

// WaitIndexed polls until every uid is present in idx
func WaitIndexed(ctx context.Context, idx *Index, ticks int, interval time.Duration, uids ...string) error {
	err := util.Poll(ctx, ticks, interval, func() (bool, error) {
		return idx.HasInstances(uids...), nil
	})
	if err != nil {
		return fmt.Errorf("waiting for %d instances to be indexed: %w", len(uids), err)
	}
	return nil
}
