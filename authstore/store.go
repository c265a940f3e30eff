// Package authstore persists auth secrets (tickets, wampcra passwords,
// cryptosign private keys) outside of process memory, backed by the OS
// keyring on darwin and a dotfile on linux.
package authstore

// Store persists named secrets. Names are caller-chosen identifiers,
// typically a realm or authid, not the secret itself.
type Store interface {
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
	Delete(name string) error
}

// Default is set by a platform-specific init(): keychain_darwin.go under
// darwin, file_linux.go under linux. On other platforms it stays nil.
var Default Store

// service names the keyring service / dotdir namespace used for every
// stored secret in this process.
const service = "wampc"
