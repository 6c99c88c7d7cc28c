package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	errs "redditdl/pkg/errors"
)

const (
	// DefaultMaxFilenameLength is the common filesystem limit for one path component
	DefaultMaxFilenameLength = 255

	// maxExtensionLength is the longest extension the downloader writes (".webp")
	maxExtensionLength = 5

	tempPrefix = ".redditdl-"
	tempSuffix = ".tmp"
)

// Manager tracks which asset identifiers exist in one destination directory
// and writes new assets there atomically. It is safe for concurrent use.
type Manager struct {
	outputDir   string
	maxFilename int

	mu         sync.Mutex
	downloaded map[string]bool
	inFlight   map[string]bool
}

// NewManager creates the directory if needed and indexes the files already in it
func NewManager(outputDir string, maxFilename int) (*Manager, error) {
	if maxFilename <= 0 {
		maxFilename = DefaultMaxFilenameLength
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, 0, "failed to create output directory", err)
	}

	manager := &Manager{
		outputDir:   outputDir,
		maxFilename: maxFilename,
		downloaded:  make(map[string]bool),
		inFlight:    make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, 0, "failed to scan existing files", err)
	}

	return manager, nil
}

// scanExistingFiles records every file stem in the directory, whatever its extension
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		// identifiers never start with a dot, so this also skips our temp files
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == "" {
			continue
		}
		m.downloaded[m.key(stem)] = true
	}

	return nil
}

// key maps an identifier to its dedup key. Long identifiers are cut to the
// length that survives filename truncation with any supported extension, so
// a truncated file on disk and the full identifier share a key.
func (m *Manager) key(identifier string) string {
	return truncateIdentifier(identifier, m.maxFilename-maxExtensionLength)
}

// IsDownloaded reports whether an asset with this identifier has been stored
func (m *Manager) IsDownloaded(identifier string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloaded[m.key(identifier)]
}

// Claim reserves identifier for download. It returns false if the identifier
// is already stored or another worker holds the reservation.
func (m *Manager) Claim(identifier string) bool {
	k := m.key(identifier)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.downloaded[k] || m.inFlight[k] {
		return false
	}
	m.inFlight[k] = true
	return true
}

// Release drops a reservation taken by Claim without storing anything
func (m *Manager) Release(identifier string) {
	m.mu.Lock()
	delete(m.inFlight, m.key(identifier))
	m.mu.Unlock()
}

// SaveAsset writes r to identifier+ext through a temp file and rename, marks
// the identifier stored and returns the final path
func (m *Manager) SaveAsset(r io.Reader, identifier, ext string) (string, error) {
	filename := filepath.Join(m.outputDir, TruncateFilename(identifier+ext, m.maxFilename))

	out, err := os.CreateTemp(m.outputDir, tempPrefix+"*"+tempSuffix)
	if err != nil {
		return "", errs.New(errs.ErrorTypeStorage, 0, "failed to create temporary file", err)
	}
	tempFile := out.Name()

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", errs.New(errs.ErrorTypeStorage, 0, "failed to save asset data", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", errs.New(errs.ErrorTypeStorage, 0, "failed to close file", closeErr)
	}

	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return "", errs.New(errs.ErrorTypeStorage, 0, "failed to set file mode", err)
	}

	// Atomic rename
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", errs.New(errs.ErrorTypeStorage, 0, "failed to rename temporary file", err)
	}

	k := m.key(identifier)
	m.mu.Lock()
	m.downloaded[k] = true
	delete(m.inFlight, k)
	m.mu.Unlock()

	return filename, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetDownloadedCount returns the number of identifiers known to be stored
func (m *Manager) GetDownloadedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.downloaded)
}

// TruncateFilename shortens name to at most max bytes while keeping its
// extension and any trailing _<index> asset suffix. The cut never splits a
// UTF-8 sequence, and names already within max are returned unchanged.
func TruncateFilename(name string, max int) string {
	if len(name) <= max {
		return name
	}

	ext := filepath.Ext(name)
	if len(ext) >= max {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)
	return truncateIdentifier(stem, max-len(ext)) + ext
}

// truncateIdentifier cuts id to max bytes, cutting before a trailing
// _<digits> suffix so album assets keep distinct names
func truncateIdentifier(id string, max int) string {
	if len(id) <= max {
		return id
	}
	suffix := indexSuffix(id)
	if suffix == "" || len(suffix) >= max {
		return truncateBytes(id, max)
	}
	return truncateBytes(strings.TrimSuffix(id, suffix), max-len(suffix)) + suffix
}

// indexSuffix returns the trailing "_<digits>" of id, or ""
func indexSuffix(id string) string {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 || i == len(id)-1 {
		return ""
	}
	for _, r := range id[i+1:] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id[i:]
}

func truncateBytes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
