// Package archive reads and patches zip archives: deployable package and flow
// binaries, and the bundled flow templates used for synthetic deployments.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// ReadAll unpacks a zip archive into a path → content map. Directory entries
// are skipped.
func ReadAll(data []byte) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	entries := make(map[string][]byte, len(reader.File))
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry %s: %w", f.Name, err)
		}
		entries[f.Name] = content
	}
	return entries, nil
}

// PatchOne rewrites a single named entry of an archive through transform and
// re-zips the result, leaving every other entry untouched.
func PatchOne(data []byte, entryPath string, transform func([]byte) ([]byte, error)) ([]byte, error) {
	entries, err := ReadAll(data)
	if err != nil {
		return nil, err
	}

	original, ok := entries[entryPath]
	if !ok {
		return nil, fmt.Errorf("archive has no entry %s", entryPath)
	}

	patched, err := transform(original)
	if err != nil {
		return nil, fmt.Errorf("failed to patch entry %s: %w", entryPath, err)
	}
	entries[entryPath] = patched

	return Write(entries)
}

// Write zips a path → content map into an archive.
func Write(entries map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for path, content := range entries {
		entry, err := w.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive entry %s: %w", path, err)
		}
		if _, err := entry.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write archive entry %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
