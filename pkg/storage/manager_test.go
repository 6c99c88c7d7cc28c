package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	errs "redditdl/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir, 0)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.GetDownloadedCount() != 0 {
		t.Error("Expected initial download count to be 0")
	}

	if manager.IsDownloaded("Sunset") {
		t.Error("Expected IsDownloaded to return false for non-existent file")
	}

	testData := []byte("test image data")
	path, err := manager.SaveAsset(bytes.NewReader(testData), "Sunset", ".png")
	if err != nil {
		t.Fatalf("Failed to save asset: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "Sunset.png")
	if path != expectedPath {
		t.Errorf("Expected path %s, got %s", expectedPath, path)
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.IsDownloaded("Sunset") {
		t.Error("Expected IsDownloaded to return true for existing file")
	}

	if manager.GetDownloadedCount() != 1 {
		t.Errorf("Expected download count to be 1, got %d", manager.GetDownloadedCount())
	}

	// No temp files left behind
	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 1 {
		t.Errorf("Expected exactly one file in directory, got %d", len(entries))
	}
}

func TestManagerScansExistingFilesAnyExtension(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "Lake.png"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "Hill_2.gif"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".redditdl-123.tmp"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "Nested"), 0755))

	manager, err := NewManager(tempDir, 0)
	require.NoError(t, err)

	assert.True(t, manager.IsDownloaded("Lake"))
	assert.True(t, manager.IsDownloaded("Hill_2"))
	assert.False(t, manager.IsDownloaded("Nested"))
	assert.Equal(t, 2, manager.GetDownloadedCount())
}

func TestManagerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	_, err := NewManager(dir, 0)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestManagerDirectoryIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := NewManager(file, 0)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeStorage, errs.TypeOf(err))
}

func TestClaimRelease(t *testing.T) {
	manager, err := NewManager(t.TempDir(), 0)
	require.NoError(t, err)

	assert.True(t, manager.Claim("Dune"))
	assert.False(t, manager.Claim("Dune"), "second claim must fail while in flight")

	manager.Release("Dune")
	assert.True(t, manager.Claim("Dune"))

	_, err = manager.SaveAsset(strings.NewReader("x"), "Dune", ".jpg")
	require.NoError(t, err)
	assert.False(t, manager.Claim("Dune"), "claim must fail once stored")
}

func TestClaimConcurrent(t *testing.T) {
	manager, err := NewManager(t.TempDir(), 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if manager.Claim("shared") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestSaveAssetReadFailure(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir, 0)
	require.NoError(t, err)

	_, err = manager.SaveAsset(failingReader{}, "Broken", ".jpg")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeStorage, errs.TypeOf(err))
	assert.False(t, manager.IsDownloaded("Broken"))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveAssetTruncatesLongNames(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir, 32)
	require.NoError(t, err)

	id := strings.Repeat("a", 60)
	path, err := manager.SaveAsset(strings.NewReader("x"), id, ".jpg")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 28)+".jpg", filepath.Base(path))

	// A fresh scan recognises the truncated file as the same identifier
	rescanned, err := NewManager(tempDir, 32)
	require.NoError(t, err)
	assert.True(t, rescanned.IsDownloaded(id))
	assert.False(t, rescanned.Claim(id))
}

func TestTruncateFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short unchanged", "cat.jpg", 255, "cat.jpg"},
		{"exact fit", "abcdef.jpg", 10, "abcdef.jpg"},
		{"keeps extension", "abcdefghij.jpg", 10, "abcdef.jpg"},
		{"no extension", "abcdefghij", 4, "abcd"},
		{"multibyte boundary", "ééééé.png", 9, "éé.png"},
		{"keeps index suffix", "abcdefghij_12.jpg", 12, "abcde_12.jpg"},
		{"underscore without digits", "abcdefghij_x.jpg", 10, "abcdef.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateFilename(tt.input, tt.max)
			assert.Equal(t, tt.expected, got)
			assert.LessOrEqual(t, len(got), tt.max)
			assert.True(t, utf8.ValidString(got))
			assert.Equal(t, got, TruncateFilename(got, tt.max), "truncation must be idempotent")
		})
	}
}

func TestTruncateFilenameASCIILength(t *testing.T) {
	for _, n := range []int{16, 64, 255} {
		got := TruncateFilename(strings.Repeat("x", 400)+".webp", n)
		assert.Len(t, got, n)
		assert.True(t, strings.HasSuffix(got, ".webp"))
	}
}

func TestRegistrySharesManagers(t *testing.T) {
	base := t.TempDir()
	registry := NewRegistry(0)

	a, err := registry.Manager(filepath.Join(base, "list", "pics"))
	require.NoError(t, err)
	b, err := registry.Manager(filepath.Join(base, "list", "..", "list", "pics") + "/")
	require.NoError(t, err)
	c, err := registry.Manager(filepath.Join(base, "list", "earthporn"))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, registry.Len())

	require.True(t, a.Claim("Lake"))
	assert.False(t, b.Claim("Lake"), "a shared directory must share in-flight claims")
}

func TestLongIndexedIdentifiersStayDistinct(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 0)
	require.NoError(t, err)

	title := strings.Repeat("t", 290)
	first, second := title+"_0", title+"_1"

	require.True(t, m.Claim(first))
	require.True(t, m.Claim(second), "index suffix must survive key truncation")

	p0, err := m.SaveAsset(strings.NewReader("a"), first, ".jpg")
	require.NoError(t, err)
	p1, err := m.SaveAsset(strings.NewReader("b"), second, ".webp")
	require.NoError(t, err)

	assert.NotEqual(t, p0, p1)
	assert.True(t, strings.HasSuffix(p0, "_0.jpg"))
	assert.True(t, strings.HasSuffix(p1, "_1.webp"))
	assert.LessOrEqual(t, len(filepath.Base(p0)), DefaultMaxFilenameLength)
	assert.LessOrEqual(t, len(filepath.Base(p1)), DefaultMaxFilenameLength)

	rescanned, err := NewManager(dir, 0)
	require.NoError(t, err)
	assert.True(t, rescanned.IsDownloaded(first))
	assert.True(t, rescanned.IsDownloaded(second))
	assert.False(t, rescanned.IsDownloaded(title+"_2"))
}
