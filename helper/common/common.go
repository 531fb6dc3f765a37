package common

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

const dataDirPerm = 0700

// SetupDataDir creates the data directory and the given sub-directories.
// Existing directories are left untouched.
func SetupDataDir(dataDir string, paths ...string) error {
	for _, path := range append([]string{""}, paths...) {
		path = filepath.Join(dataDir, path)

		if err := createDir(path); err != nil {
			return fmt.Errorf("failed to create data dir %s: %w", path, err)
		}
	}

	return nil
}

func createDir(path string) error {
	info, err := os.Stat(path)

	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(path, dataDirPerm)
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("%s exists and is not a directory", path)
	default:
		return nil
	}
}

// EncodeUint64ToBytes encodes value as 8 big endian bytes, so encoded keys sort numerically
func EncodeUint64ToBytes(value uint64) []byte {
	result := make([]byte, 8)
	binary.BigEndian.PutUint64(result, value)

	return result
}
