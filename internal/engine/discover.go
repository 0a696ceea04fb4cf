package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// discovery is the outcome of walking the scan targets: the files to analyze
// plus the count of candidates dropped by the size and suffix filters.
type discovery struct {
	files   []string
	skipped int
}

// discover walks each target and collects the analyzable files. Directories
// named in ExcludeDirs are pruned entirely; files that match an include
// extension but fail the suffix or size filters count as skipped.
func (e *Engine) discover(targets []string) (*discovery, error) {
	d := &discovery{}
	seen := make(map[string]bool)

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			d.files = append(d.files, path)
		}
	}

	for _, target := range targets {
		info, err := e.fs.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("stat target %s: %w", target, err)
		}

		if !info.IsDir() {
			// Explicit file targets still honor the filters so a scan of
			// "bundle.min.js" does not bypass the noise controls.
			if !e.matchesExtension(target) {
				return nil, fmt.Errorf("target %s has no supported extension", target)
			}
			if e.filtered(target, info.Size()) {
				d.skipped++
				continue
			}
			add(target)
			continue
		}

		err = afero.Walk(e.fs, target, func(path string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if fi.IsDir() {
				if path != target && e.excludedDir(fi.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !e.matchesExtension(path) {
				return nil
			}
			if e.filtered(path, fi.Size()) {
				d.skipped++
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking target %s: %w", target, err)
		}
	}

	sort.Strings(d.files)
	return d, nil
}

func (e *Engine) matchesExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, inc := range e.cfg.Engine.IncludeExtensions {
		if ext == strings.ToLower(inc) {
			return true
		}
	}
	return false
}

// filtered reports whether a file with a supported extension should be
// skipped anyway: minified-style suffixes and oversized inputs.
func (e *Engine) filtered(path string, size int64) bool {
	lower := strings.ToLower(path)
	for _, suffix := range e.cfg.Engine.ExcludeSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return size > e.cfg.Engine.MaxFileSize
}

func (e *Engine) excludedDir(name string) bool {
	for _, dir := range e.cfg.Engine.ExcludeDirs {
		if name == dir {
			return true
		}
	}
	return false
}
