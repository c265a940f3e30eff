//go:build darwin

package authstore

import "github.com/zalando/go-keyring"

func init() { Default = keyringStore(service) }

type keyringStore string

func (k keyringStore) Put(name string, data []byte) error {
	return keyring.Set(string(k), name, string(data))
}

func (k keyringStore) Get(name string) ([]byte, error) {
	s, err := keyring.Get(string(k), name)
	return []byte(s), err
}

func (k keyringStore) Delete(name string) error { return keyring.Delete(string(k), name) }
