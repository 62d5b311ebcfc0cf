package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FilePerms restricts the token file to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token file's parent directory.
const DirPerms = 0o700

// fileDocument is the on-disk format of the shared token file. Entries for
// connections other than the current one are carried as raw bytes so a
// rewrite leaves them byte-for-byte unchanged.
type fileDocument struct {
	Connections map[string]json.RawMessage `json:"connections"`
}

// FileTokenStore stores one named connection inside a shared JSON file.
//
// Writes are read-modify-write against shared mutable state: two CLI
// invocations saving concurrently can lose one update. Each individual
// write is atomic (temp file + rename), so readers never observe a torn
// file, but there is no cross-process lock around the merge itself.
type FileTokenStore struct {
	path   string
	key    string
	logger *slog.Logger
}

// NewFileTokenStore returns a store bound to the token file at path and the
// connection entry named key.
func NewFileTokenStore(path, key string, logger *slog.Logger) *FileTokenStore {
	return &FileTokenStore{path: path, key: key, logger: logger}
}

// Get returns the serialized connection for this store's key.
func (s *FileTokenStore) Get(_ context.Context) (string, error) {
	doc, err := s.readDocument()
	if err != nil {
		return "", err
	}

	if doc == nil {
		return "", ErrNotFound
	}

	raw, ok := doc.Connections[s.key]
	if !ok {
		return "", ErrNotFound
	}

	return string(raw), nil
}

// Set merges the serialized connection into the shared file and rewrites it
// atomically. A missing or unrecognizable existing file is replaced with a
// fresh document containing only this connection.
func (s *FileTokenStore) Set(_ context.Context, serialized string) error {
	doc, err := s.readDocument()
	if err != nil && !errors.Is(err, ErrNotFound) {
		// Corrupt or unreadable file: start over with a fresh document
		// rather than refusing to save a successful login.
		s.logger.Warn("token file unreadable, rewriting",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)

		doc = nil
	}

	if doc == nil || doc.Connections == nil {
		doc = &fileDocument{Connections: map[string]json.RawMessage{}}
	}

	doc.Connections[s.key] = json.RawMessage(serialized)

	return s.writeDocument(doc)
}

// Remove deletes this store's entry and rewrites the file. Succeeds without
// error when the file or the entry does not exist.
func (s *FileTokenStore) Remove(_ context.Context) error {
	doc, err := s.readDocument()
	if err != nil {
		// Nothing to remove, or nothing recoverable to rewrite.
		return nil
	}

	if doc == nil {
		return nil
	}

	if _, ok := doc.Connections[s.key]; !ok {
		return nil
	}

	delete(doc.Connections, s.key)

	return s.writeDocument(doc)
}

// encodeDocument serializes the shared file by hand instead of through
// json.Marshal: MarshalIndent would reformat the raw entry values, and the
// contract is that writing one connection leaves every sibling entry
// byte-for-byte unchanged.
func encodeDocument(doc *fileDocument) ([]byte, error) {
	keys := make([]string, 0, len(doc.Connections))
	for k := range doc.Connections {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("{\n  \"connections\": {")

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}

		buf.WriteString("\n    ")
		buf.Write(name)
		buf.WriteString(": ")
		buf.Write(doc.Connections[k])
	}

	if len(keys) > 0 {
		buf.WriteString("\n  ")
	}

	buf.WriteString("}\n}\n")

	return buf.Bytes(), nil
}

// readDocument loads and parses the shared file. Returns (nil, ErrNotFound)
// when the file does not exist and a parse error for corrupt content.
func (s *FileTokenStore) readDocument() (*fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, nil //nolint:nilnil // empty file: treat as no document
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: decoding %s: %w", s.path, err)
	}

	return &doc, nil
}

// writeDocument serializes and writes the shared file atomically
// (write-to-temp + rename) with 0600 permissions. OS errors are returned
// unwrapped so the caller sees the verbatim failure reason.
func (s *FileTokenStore) writeDocument(doc *fileDocument) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("store: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return mkErr
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()

	// Clean up temp file on any error path.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush to stable storage before rename so a power loss between close
	// and rename cannot leave an empty or partial token file at the final
	// path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}

	success = true

	return nil
}
