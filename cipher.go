package filemask

import (
	"crypto/rand"
	"io"
	mrand "math/rand/v2"

	"github.com/cockroachdb/errors"
)

// EncodeMapSize is the number of entries in an encode map
const EncodeMapSize = 256

// EncodeMap is a permutation of the 256 byte values used as a substitution
// table. Index i maps plaintext byte i to EncodeMap[i].
type EncodeMap [EncodeMapSize]byte

// XORMask returns data XORed with key repeated to the length of data.
// The operation is its own inverse.
func XORMask(data, key []byte) []byte {
	out := make([]byte, len(data))
	if len(key) == 0 {
		copy(out, data)
		return out
	}
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)]
	}
	return out
}

// GeneratePermutation returns a uniformly random encode map.
// The shuffle is driven by a ChaCha8 stream seeded with 32 bytes from r;
// a nil r uses crypto/rand.
func GeneratePermutation(r io.Reader) (EncodeMap, error) {
	if r == nil {
		r = cryptoRandReader
	}

	var seed [32]byte
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return EncodeMap{}, errors.Mark(errors.Wrap(err, "read permutation seed"), ErrShortEntropyRead)
	}
	rng := mrand.New(mrand.NewChaCha8(seed))

	var m EncodeMap
	for i := range m {
		m[i] = byte(i)
	}
	// Fisher-Yates
	for i := EncodeMapSize - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		m[i], m[j] = m[j], m[i]
	}
	return m, nil
}

// EncodeMapFromBytes copies b into an encode map and checks it is a bijection
func EncodeMapFromBytes(b []byte) (EncodeMap, error) {
	var m EncodeMap
	if len(b) != EncodeMapSize {
		return m, &ValidationError{
			Field:   "encode_map",
			Value:   len(b),
			Message: "encode map must be 256 bytes",
		}
	}
	copy(m[:], b)
	if err := m.Validate(); err != nil {
		return EncodeMap{}, err
	}
	return m, nil
}

// Validate checks that every byte value appears exactly once
func (m *EncodeMap) Validate() error {
	var seen [EncodeMapSize]bool
	for i, v := range m {
		if seen[v] {
			return errors.Wrapf(ErrNotBijection, "value %d repeated at index %d", v, i)
		}
		seen[v] = true
	}
	return nil
}

// Inverse returns the decode map: Inverse()[m[v]] == v for every v
func (m *EncodeMap) Inverse() EncodeMap {
	var inv EncodeMap
	for i, v := range m {
		inv[v] = byte(i)
	}
	return inv
}

// Substitute maps every byte of data through m, or through its inverse when
// forward is false. The input is not modified.
func (m *EncodeMap) Substitute(data []byte, forward bool) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	m.substituteInPlace(out, forward)
	return out
}

func (m *EncodeMap) substituteInPlace(data []byte, forward bool) {
	table := m
	if !forward {
		inv := m.Inverse()
		table = &inv
	}
	for i, b := range data {
		data[i] = table[b]
	}
}

// Bytes returns the map as a 256-byte slice
func (m *EncodeMap) Bytes() []byte {
	b := make([]byte, EncodeMapSize)
	copy(b, m[:])
	return b
}

var cryptoRandReader io.Reader = rand.Reader
