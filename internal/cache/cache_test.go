package cache

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestGetSet_RoundTrip(t *testing.T) {
	c := New(t.TempDir(), testLogger())

	c.Set("spoUrl", "https://contoso.sharepoint.com")

	got, ok := c.Get("spoUrl")
	assert.True(t, ok)
	assert.Equal(t, "https://contoso.sharepoint.com", got)
}

func TestGet_MissingKey(t *testing.T) {
	c := New(t.TempDir(), testLogger())

	got, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestGet_MissingDirectory(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "never-created"), testLogger())

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestSet_FailOpen(t *testing.T) {
	dir := t.TempDir()

	// A file where the cache directory should be makes MkdirAll fail.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o600))

	c := New(blocked, testLogger())

	// Must not panic or return an error to anyone.
	c.Set("key", "value")

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestSet_Overwrite(t *testing.T) {
	c := New(t.TempDir(), testLogger())

	c.Set("key", "old")
	c.Set("key", "new")

	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestKeysWithUnsafeCharacters(t *testing.T) {
	c := New(t.TempDir(), testLogger())

	key := "https://graph.microsoft.com/v1.0/sites/root?select=webUrl"
	c.Set(key, "value")

	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "value", got)
}

// writeEntry creates an entry file directly, bypassing Set so no background
// sweep goroutine races with the test's clock manipulation.
func writeEntry(t *testing.T, c *DiskCache, key, value string) string {
	t.Helper()

	path := c.entryPath(key)
	require.NoError(t, os.WriteFile(path, []byte(value), 0o600))

	return path
}

func TestClearExpired_RemovesStaleEntries(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, testLogger())

	stalePath := writeEntry(t, c, "stale", "v")
	freshPath := writeEntry(t, c, "fresh", "v")

	old := time.Now().Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(stalePath, old, old))

	done := make(chan struct{})
	c.ClearExpired(func() { close(done) })
	<-done

	_, staleOK := fileExists(t, stalePath)
	assert.False(t, staleOK, "entry older than 24h must be swept")

	_, freshOK := fileExists(t, freshPath)
	assert.True(t, freshOK, "entry accessed within 24h must survive")
}

func TestClearExpired_BoundaryWithin24h(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, testLogger())

	path := writeEntry(t, c, "key", "v")

	old := time.Now().Add(-23 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	done := make(chan struct{})
	c.ClearExpired(func() { close(done) })
	<-done

	_, ok := fileExists(t, path)
	assert.True(t, ok)
}

func TestClearExpired_InjectedClock(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, testLogger())

	// Shift the cache's clock 25 hours ahead before any activity: an entry
	// written at real wall-clock time is then past the TTL.
	base := time.Now()
	c.now = func() time.Time { return base.Add(25 * time.Hour) }

	path := writeEntry(t, c, "key", "v")

	done := make(chan struct{})
	c.ClearExpired(func() { close(done) })
	<-done

	_, ok := fileExists(t, path)
	assert.False(t, ok)
}

func TestClearExpired_NeverRemovesDirectories(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, testLogger())

	nested := filepath.Join(dir, "namespace")
	require.NoError(t, os.Mkdir(nested, 0o700))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(nested, old, old))

	done := make(chan struct{})
	c.ClearExpired(func() { close(done) })
	<-done

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestClearExpired_MissingDirectory(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "nope"), testLogger())

	done := make(chan struct{})
	c.ClearExpired(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestGet_BumpsAccessTime(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, testLogger())

	c.Set("key", "v")

	// Backdate the entry, read it, and verify the timestamps moved forward.
	path := c.entryPath("key")
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	_, ok := c.Get("key")
	require.True(t, ok)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(old.Add(time.Hour)))
}

func fileExists(t *testing.T, path string) (os.FileInfo, bool) {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	return info, true
}
