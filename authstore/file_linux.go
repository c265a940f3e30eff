//go:build linux

package authstore

import (
	"os"
	"os/user"
	"path/filepath"
)

func init() { Default = fileStore{} }

type fileStore struct{}

func (fileStore) path(name string) string {
	u, _ := user.Current()
	return filepath.Join(u.HomeDir, ".wampc", "auth", name)
}

func (f fileStore) Put(name string, data []byte) error {
	path := f.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (f fileStore) Get(name string) ([]byte, error) { return os.ReadFile(f.path(name)) }

func (f fileStore) Delete(name string) error { return os.Remove(f.path(name)) }
