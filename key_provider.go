package filemask

import (
	"crypto/md5"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DigestSize is the size of the password fingerprint stored as the
	// ownership tag
	DigestSize = md5.Size

	// KeySize is the size of the XOR pad derived from the password
	KeySize = 32

	// padIterations and padSalt are part of the on-disk format. Changing
	// either makes existing sidecars unreadable.
	padIterations = 4096
	padSalt       = "filemask/xor-pad"
)

// Identity holds the values derived from a password for one call.
// It is never persisted in clear form.
type Identity struct {
	digest [DigestSize]byte
	key    [KeySize]byte
}

// NewIdentity derives the password digest and XOR pad
func NewIdentity(password []byte) (*Identity, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	id := &Identity{digest: md5.Sum(password)}
	key := pbkdf2.Key(password, []byte(padSalt), padIterations, KeySize, sha256.New)
	copy(id.key[:], key)
	return id, nil
}

// Digest returns the 16-byte password fingerprint
func (id *Identity) Digest() []byte {
	d := id.digest
	return d[:]
}

// Key returns the 32-byte XOR pad
func (id *Identity) Key() []byte {
	k := id.key
	return k[:]
}

// Mask XORs data with the pad. Mask(Mask(b)) == b.
func (id *Identity) Mask(data []byte) []byte {
	return XORMask(data, id.key[:])
}

// OwnershipTag returns the masked digest written at offset 0 of a sidecar
func (id *Identity) OwnershipTag() [TagSize]byte {
	var tag [TagSize]byte
	copy(tag[:], id.Mask(id.digest[:]))
	return tag
}
