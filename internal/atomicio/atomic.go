package atomicio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSONExclusive writes JSON to a temp file and links it into place.
// It fails with an error matching os.ErrExist when path is already present.
func WriteJSONExclusive(path string, v any) error {
	data, err := marshal(path, v)
	if err != nil {
		return err
	}
	return WriteFileExclusive(path, data)
}

// WriteFileExclusive hard-links a fully written temp file to path. The link
// fails if path exists, so concurrent writers cannot both win.
func WriteFileExclusive(path string, data []byte) error {
	tmpPath, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	return os.Link(tmpPath, path)
}

func marshal(path string, v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

func writeTemp(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}
