package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions are the image types scanned when none are configured
var DefaultExtensions = []string{".png"}

// ListImages returns the files of dir whose extension is one of exts,
// compared case insensitively, in lexicographic order of their path relative
// to dir.  Sub directories are scanned when recursive is set, except those
// matched by exclude.  A plain name in exclude skips every directory of that
// name, any other entry skips the one directory it resolves to.
func ListImages(dir string, exts []string, recursive bool, exclude ...string) ([]string, error) {

	info, err := os.Stat(dir)

	if err != nil {
		return nil, fmt.Errorf("error reading test set: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("test set %s is not a directory", dir)
	}

	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	want := make(map[string]bool, len(exts))

	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		want[ext] = true
	}

	names, paths := excludes(exclude)

	var rel []string

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {

		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == dir {
				return nil
			}

			if !recursive || names[d.Name()] || paths[absPath(path)] {
				return filepath.SkipDir
			}

			return nil
		}

		if !want[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		r, err := filepath.Rel(dir, path)

		if err != nil {
			return err
		}

		rel = append(rel, r)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("error scanning test set %s: %w", dir, err)
	}

	sort.Strings(rel)

	files := make([]string, len(rel))

	for i, r := range rel {
		files[i] = filepath.Join(dir, r)
	}

	return files, nil
}

// excludes splits exclude into directory names and absolute paths
func excludes(exclude []string) (names, paths map[string]bool) {

	names = make(map[string]bool)
	paths = make(map[string]bool)

	for _, e := range exclude {
		if e == "" {
			continue
		}

		if !filepath.IsAbs(e) && !strings.ContainsRune(e, filepath.Separator) {
			names[e] = true
			continue
		}

		paths[absPath(e)] = true
	}

	return names, paths
}

func absPath(path string) string {

	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}

	return filepath.Clean(path)
}
