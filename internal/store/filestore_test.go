package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T, key string) (*FileTokenStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tokens.json")

	return NewFileTokenStore(path, key, testLogger()), path
}

func TestGet_FileNotFound(t *testing.T) {
	s, _ := newTestStore(t, "public|common|app")

	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_EntryNotFound(t *testing.T) {
	s, path := newTestStore(t, "public|common|app")

	other := NewFileTokenStore(path, "usgov|contoso|other", testLogger())
	require.NoError(t, other.Set(context.Background(), `{"connected":true}`))

	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSet_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t, "public|common|app")
	doc := `{"accessTokens":{},"authType":0,"connected":false}`

	require.NoError(t, s.Set(context.Background(), doc))

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestSet_EmptyExistingFile(t *testing.T) {
	s, path := newTestStore(t, "public|common|app")

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.NoError(t, s.Set(context.Background(), `{"connected":true}`))

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"connected":true}`, got)
}

func TestSet_CorruptExistingFile(t *testing.T) {
	s, path := newTestStore(t, "public|common|app")

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	require.NoError(t, s.Set(context.Background(), `{"connected":true}`))

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"connected":true}`, got)
}

func TestSet_MergePreservesSiblings(t *testing.T) {
	s, path := newTestStore(t, "A")
	sibling := NewFileTokenStore(path, "B", testLogger())

	siblingDoc := `{"connected":true,"tenant":"contoso","accessTokens":{"https://graph.microsoft.com":{"accessToken":"abc","expiresOn":"2099-01-01T00:00:00Z"}}}`
	require.NoError(t, sibling.Set(context.Background(), siblingDoc))
	require.NoError(t, s.Set(context.Background(), `{"connected":false}`))
	require.NoError(t, s.Set(context.Background(), `{"connected":true}`))

	got, err := sibling.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, siblingDoc, got, "sibling entry must survive byte-for-byte")
}

func TestSet_FilePermissions(t *testing.T) {
	s, path := newTestStore(t, "public|common|app")

	require.NoError(t, s.Set(context.Background(), `{"connected":false}`))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSet_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "tokens.json")
	s := NewFileTokenStore(path, "k", testLogger())

	require.NoError(t, s.Set(context.Background(), `{"connected":false}`))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSet_WriteFailureSurfacedVerbatim(t *testing.T) {
	dir := t.TempDir()

	// A directory at the token path makes the final rename fail with a
	// plain OS error, which must come back unwrapped.
	path := filepath.Join(dir, "tokens.json")
	require.NoError(t, os.Mkdir(path, 0o700))

	s := NewFileTokenStore(path, "k", testLogger())

	err := s.Set(context.Background(), `{"connected":false}`)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "store:")
}

func TestRemove_NoFile(t *testing.T) {
	s, _ := newTestStore(t, "public|common|app")

	assert.NoError(t, s.Remove(context.Background()))
}

func TestRemove_Idempotent(t *testing.T) {
	s, _ := newTestStore(t, "public|common|app")

	require.NoError(t, s.Set(context.Background(), `{"connected":true}`))
	require.NoError(t, s.Remove(context.Background()))
	require.NoError(t, s.Remove(context.Background()))

	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_LeavesSiblings(t *testing.T) {
	s, path := newTestStore(t, "A")
	sibling := NewFileTokenStore(path, "B", testLogger())

	siblingDoc := `{"connected":true,"spoUrl":"https://contoso.sharepoint.com"}`
	require.NoError(t, sibling.Set(context.Background(), siblingDoc))
	require.NoError(t, s.Set(context.Background(), `{"connected":true}`))
	require.NoError(t, s.Remove(context.Background()))

	got, err := sibling.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, siblingDoc, got)
}

func TestRemove_UnrecognizedStructure(t *testing.T) {
	s, path := newTestStore(t, "abc")

	// A legacy file without the connections wrapper: remove must not error.
	require.NoError(t, os.WriteFile(path, []byte(`{"services":{"abc":"def"}}`), 0o600))

	assert.NoError(t, s.Remove(context.Background()))
}

func TestFileStaysValidJSON(t *testing.T) {
	s, path := newTestStore(t, "A")

	require.NoError(t, s.Set(context.Background(), `{"connected":true}`))
	require.NoError(t, s.Remove(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "connections")
}
