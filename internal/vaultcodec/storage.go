package vaultcodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/nevrhq/nevr/internal/vaulterr"
)

// Load reads and JSON-decodes a vault file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, vaulterr.Wrap(vaulterr.FileNotFound, path, err)
		}
		if errors.Is(err, os.ErrPermission) {
			return nil, vaulterr.Wrap(vaulterr.PermissionDenied, path, err)
		}
		return nil, fmt.Errorf("reading vault file: %w", err)
	}

	var vault File
	if err := json.Unmarshal(data, &vault); err != nil {
		return nil, fmt.Errorf("decoding vault file: %w", err)
	}
	return &vault, nil
}

// Save atomically writes a vault file to path: encode to a temporary
// sibling, then rename over the target, so a process interrupted
// mid-write never leaves a truncated vault on disk.
func Save(path string, vault *File) error {
	data, err := json.MarshalIndent(vault, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding vault file: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return vaulterr.Wrap(vaulterr.PermissionDenied, path, err)
		}
		return fmt.Errorf("writing vault file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalizing vault file: %w", err)
	}
	return nil
}

// Exists reports whether a vault file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
