package crawler

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-logr/logr"

	"modelc/internal/skeleton"
)

// Crawler scans a directory for skeleton documents.
type Crawler struct {
	patterns []string
	ignored  []string
	log      logr.Logger
}

// NewCrawler creates a crawler matching slash-separated doublestar patterns
// relative to the scanned root.
func NewCrawler(patterns []string, log logr.Logger) *Crawler {
	return &Crawler{
		patterns: patterns,
		ignored:  []string{".git", ".modelc", "vendor", "node_modules"},
		log:      log,
	}
}

// Discover returns the matching files under root in lexical order.
func (c *Crawler) Discover(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip ignored directories
		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign && path != root {
					return filepath.SkipDir
				}
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, p := range c.patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				out = append(out, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// ScanProject loads every discovered document and streams it to onDoc.
// Files that fail to load are reported to onError and skipped.
func (c *Crawler) ScanProject(root string, onDoc func(*skeleton.Document), onError func(path string, err error)) error {
	paths, err := c.Discover(root)
	if err != nil {
		return err
	}
	for _, path := range paths {
		doc, err := skeleton.Load(path)
		if err != nil {
			c.log.V(1).Info("skipping document", "path", path, "error", err.Error())
			if onError != nil {
				onError(path, err)
			}
			continue
		}
		onDoc(doc)
	}
	return nil
}
