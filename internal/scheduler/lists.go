package scheduler

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"redditdl/pkg/logger"
)

const (
	// DefaultListExtension marks files that hold subreddit lists
	DefaultListExtension = ".list"

	commentPrefix = "#"
)

// JobList is a parsed list file: an ordered set of subreddits sharing an output folder
type JobList struct {
	Name     string
	Path     string
	Subjects []string
}

// ParseList reads one subject per line, skipping blank lines and # comments
func ParseList(r io.Reader) ([]string, error) {
	var subjects []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		subjects = append(subjects, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return subjects, nil
}

// LoadList parses the list file at path. The list is named after the file
// with its extension removed.
func LoadList(path string) (*JobList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list: %w", err)
	}
	defer f.Close()

	subjects, err := ParseList(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", path, err)
	}

	base := filepath.Base(path)
	return &JobList{
		Name:     strings.TrimSuffix(base, filepath.Ext(base)),
		Path:     path,
		Subjects: subjects,
	}, nil
}

// IsListFile reports whether path names a list file. A file called exactly
// ext (".list") is not a list.
func IsListFile(path, ext string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ext) && base != ext
}

// FindLists expands files and directories into list file paths in argument
// order. Missing paths are logged and skipped, and a list reached twice is
// kept only the first time.
func FindLists(paths []string, ext string, recursive bool, log logger.Logger) []string {
	if log == nil {
		log = logger.GetLogger()
	}
	if ext == "" {
		ext = DefaultListExtension
	}

	var found []string
	seen := make(map[string]bool)
	add := func(path string) {
		key := path
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		if seen[key] {
			log.WarnWithFields("list already encountered, ignored", map[string]interface{}{
				"path": path,
			})
			return
		}
		seen[key] = true
		found = append(found, path)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			log.WarnWithFields("invalid path, skipping", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}

		if !info.IsDir() {
			if IsListFile(path, ext) {
				add(path)
			} else {
				log.WarnWithFields("not a list file, skipping", map[string]interface{}{
					"path":      path,
					"extension": ext,
				})
			}
			continue
		}

		for _, p := range listsInDir(path, ext, recursive, log) {
			add(p)
		}
	}

	return found
}

func listsInDir(dir, ext string, recursive bool, log logger.Logger) []string {
	var paths []string

	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.WarnWithFields("failed to read directory", map[string]interface{}{
				"path":  dir,
				"error": err.Error(),
			})
			return nil
		}
		for _, entry := range entries {
			if !entry.IsDir() && IsListFile(entry.Name(), ext) {
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}
		return paths
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WarnWithFields("failed to walk path", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsListFile(path, ext) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		log.WarnWithFields("failed to walk directory", map[string]interface{}{
			"path":  dir,
			"error": err.Error(),
		})
	}
	return paths
}

// LoadLists finds and parses every list reachable from paths. Unreadable
// lists are logged and skipped.
func LoadLists(paths []string, ext string, recursive bool, log logger.Logger) []*JobList {
	if log == nil {
		log = logger.GetLogger()
	}

	var lists []*JobList
	for _, path := range FindLists(paths, ext, recursive, log) {
		list, err := LoadList(path)
		if err != nil {
			log.WarnWithFields("failed to load list", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		log.DebugWithFields("list loaded", map[string]interface{}{
			"list":     list.Name,
			"path":     path,
			"subjects": len(list.Subjects),
		})
		lists = append(lists, list)
	}
	return lists
}
