package filemask

import (
	"crypto/rand"
	"io"
	"os"

	"github.com/absfs/absfs"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// EncryptResult is what an Encoder hands back after transforming a target.
// Raw is the original data to be stored (substituted) in the sidecar and
// Working is the replacement value the encoder applied, if any.
type EncryptResult struct {
	Raw     []byte
	Working []byte
}

// Encoder transforms one part of a target. The set of encoders is fixed;
// see NewEncoder.
type Encoder interface {
	// Type returns the encode type this encoder implements
	Type() EncodeType

	// SupportsDirectories reports whether directories can be targets
	SupportsDirectories() bool

	// Encrypt transforms target. The encode map is only supplied to the
	// content encoder.
	Encrypt(target string, m *EncodeMap) (*EncryptResult, error)

	// Decrypt restores target. payload is the inverse-substituted original
	// data for name and header encoding; the content encoder uses m.
	Decrypt(target string, payload []byte, m *EncodeMap) error
}

// NewEncoder returns the encoder for t
func NewEncoder(t EncodeType, fs absfs.FileSystem, chunkSize int) (Encoder, error) {
	if fs == nil {
		return nil, ErrNilFileSystem
	}
	sep := string([]byte{fs.Separator()})
	switch t {
	case EncodeName:
		return &nameEncoder{fs: fs, sep: sep}, nil
	case EncodeHeader:
		return &headerEncoder{fs: fs, rand: rand.Reader}, nil
	case EncodeContent:
		if chunkSize <= 0 {
			chunkSize = DefaultChunkSize
		}
		return &contentEncoder{fs: fs, chunkSize: chunkSize}, nil
	}
	return nil, NewValidationError("type", t, "unknown encode type")
}

// nameEncoder replaces the target's name with a random UUID
type nameEncoder struct {
	fs  absfs.FileSystem
	sep string
}

func (e *nameEncoder) Type() EncodeType          { return EncodeName }
func (e *nameEncoder) SupportsDirectories() bool { return true }

func (e *nameEncoder) Encrypt(target string, _ *EncodeMap) (*EncryptResult, error) {
	dir, base := splitPath(target, e.sep)
	if base == "" {
		return nil, NewValidationError("path", target, "target has no name")
	}

	newName := uuid.New().String()
	dst := joinPath(e.sep, dir, newName)
	if err := e.rename(target, dst); err != nil {
		return nil, err
	}
	return &EncryptResult{Raw: []byte(base), Working: []byte(newName)}, nil
}

func (e *nameEncoder) Decrypt(target string, payload []byte, _ *EncodeMap) error {
	if len(payload) == 0 {
		return errors.Wrap(ErrInvalidPayload, "empty name payload")
	}
	name := string(payload)
	if err := validateName("name_payload", name); err != nil {
		return errors.Mark(err, ErrInvalidPayload)
	}
	dir, _ := splitPath(target, e.sep)
	return e.rename(target, joinPath(e.sep, dir, name))
}

// rename refuses to overwrite an existing entry
func (e *nameEncoder) rename(src, dst string) error {
	if _, err := e.fs.Stat(dst); err == nil {
		return errors.Wrapf(ErrNameTaken, "%s", dst)
	} else if !os.IsNotExist(err) {
		return NewIOError("stat", dst, err)
	}
	if err := e.fs.Rename(src, dst); err != nil {
		return NewIOError("rename", src, err)
	}
	return nil
}

// headerEncoder overwrites the first HeaderSize bytes of a file with random
// bytes, keeping the original in the sidecar
type headerEncoder struct {
	fs   absfs.FileSystem
	rand io.Reader
}

func (e *headerEncoder) Type() EncodeType          { return EncodeHeader }
func (e *headerEncoder) SupportsDirectories() bool { return false }

func (e *headerEncoder) Encrypt(target string, _ *EncodeMap) (*EncryptResult, error) {
	f, err := openRegular(e.fs, target)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, newIOErrorAt("read", target, 0, err)
	}
	if n == 0 {
		return nil, errors.Wrapf(ErrEmptyFile, "%s", target)
	}
	if n < HeaderSize {
		return nil, errors.Wrapf(ErrShortFile, "%s has %d bytes", target, n)
	}

	noise := make([]byte, HeaderSize)
	if _, err := io.ReadFull(e.rand, noise); err != nil {
		return nil, errors.Wrap(err, "generate header noise")
	}
	if err := overwriteAt(f, target, 0, noise); err != nil {
		return nil, err
	}
	if err := f.Sync(); err != nil {
		return nil, NewIOError("sync", target, err)
	}

	return &EncryptResult{Raw: header, Working: noise}, nil
}

func (e *headerEncoder) Decrypt(target string, payload []byte, _ *EncodeMap) error {
	if len(payload) != HeaderSize {
		return errors.Wrapf(ErrInvalidPayload, "header payload is %d bytes", len(payload))
	}
	f, err := openRegular(e.fs, target)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return NewIOError("stat", target, err)
	}
	if info.Size() < HeaderSize {
		return errors.Wrapf(ErrShortFile, "%s has %d bytes", target, info.Size())
	}
	if err := overwriteAt(f, target, 0, payload); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return NewIOError("sync", target, err)
	}
	return nil
}

// contentEncoder substitutes every byte of a file through the encode map
type contentEncoder struct {
	fs        absfs.FileSystem
	chunkSize int
}

func (e *contentEncoder) Type() EncodeType          { return EncodeContent }
func (e *contentEncoder) SupportsDirectories() bool { return false }

func (e *contentEncoder) Encrypt(target string, m *EncodeMap) (*EncryptResult, error) {
	if m == nil {
		return nil, NewValidationError("encode_map", nil, "content encoding requires an encode map")
	}
	if err := e.transform(target, m, true); err != nil {
		return nil, err
	}
	return &EncryptResult{}, nil
}

func (e *contentEncoder) Decrypt(target string, _ []byte, m *EncodeMap) error {
	if m == nil {
		return NewValidationError("encode_map", nil, "content decoding requires an encode map")
	}
	return e.transform(target, m, false)
}

// transform rewrites the file in place one chunk at a time
func (e *contentEncoder) transform(target string, m *EncodeMap, forward bool) error {
	f, err := openRegular(e.fs, target)
	if err != nil {
		return err
	}
	defer f.Close()

	table := *m
	if !forward {
		table = m.Inverse()
	}

	buf := make([]byte, e.chunkSize)
	var offset int64
	for {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return newIOErrorAt("seek", target, offset, err)
		}
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			table.substituteInPlace(buf[:n], true)
			if werr := overwriteAt(f, target, offset, buf[:n]); werr != nil {
				return werr
			}
			offset += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return newIOErrorAt("read", target, offset, err)
		}
	}
	if err := f.Sync(); err != nil {
		return NewIOError("sync", target, err)
	}
	return nil
}

// openRegular opens target for in-place rewriting
func openRegular(fs absfs.FileSystem, target string) (absfs.File, error) {
	info, err := fs.Stat(target)
	if err != nil {
		return nil, NewIOError("stat", target, err)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Wrapf(ErrNotRegularFile, "%s", target)
	}
	f, err := fs.OpenFile(target, os.O_RDWR, 0)
	if err != nil {
		return nil, NewIOError("open", target, err)
	}
	return f, nil
}

func overwriteAt(f absfs.File, target string, off int64, b []byte) error {
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return newIOErrorAt("seek", target, off, err)
	}
	if _, err := f.Write(b); err != nil {
		return newIOErrorAt("write", target, off, err)
	}
	return nil
}
