package filemask

import (
	"io"
	"os"
	"strings"

	"github.com/absfs/absfs"
	"github.com/cockroachdb/errors"
)

// SidecarStore locates and opens the sidecar records kept in a hidden
// container directory next to each target
type SidecarStore struct {
	fs      absfs.FileSystem
	dirName string
	sep     string
}

// NewSidecarStore creates a store whose container directories are named dirName
func NewSidecarStore(fs absfs.FileSystem, dirName string) (*SidecarStore, error) {
	if fs == nil {
		return nil, ErrNilFileSystem
	}
	if err := ValidateDirName(dirName); err != nil {
		return nil, err
	}
	return &SidecarStore{
		fs:      fs,
		dirName: dirName,
		sep:     string([]byte{fs.Separator()}),
	}, nil
}

// DirName returns the name of the container directory
func (s *SidecarStore) DirName() string {
	return s.dirName
}

// Locate returns the sidecar path for target
func (s *SidecarStore) Locate(target string) string {
	dir, base := splitPath(target, s.sep)
	return joinPath(s.sep, joinPath(s.sep, dir, s.dirName), base)
}

// ContainerDir returns the container directory that holds target's sidecar
func (s *SidecarStore) ContainerDir(target string) string {
	dir, _ := splitPath(target, s.sep)
	return joinPath(s.sep, dir, s.dirName)
}

// IsSidecar reports whether target is a container directory or a record
// inside one
func (s *SidecarStore) IsSidecar(target string) bool {
	dir, base := splitPath(target, s.sep)
	if base == s.dirName {
		return true
	}
	_, parent := splitPath(dir, s.sep)
	return parent == s.dirName
}

// EnsureContainerDir creates target's container directory if it is absent
func (s *SidecarStore) EnsureContainerDir(target string) error {
	dir := s.ContainerDir(target)
	info, err := s.fs.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return NewIOError("mkdir", dir, errors.New("sidecar container exists and is not a directory"))
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return NewIOError("stat", dir, err)
	}
	if err := s.fs.Mkdir(dir, 0o700); err != nil && !os.IsExist(err) {
		return NewIOError("mkdir", dir, err)
	}
	return nil
}

// Exists reports whether target has a sidecar record
func (s *SidecarStore) Exists(target string) (bool, error) {
	path := s.Locate(target)
	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, NewIOError("stat", path, err)
	}
	if info.IsDir() {
		return false, NewCorruptionError(path, "sidecar record is a directory")
	}
	return true, nil
}

// Open opens target's sidecar for reading and writing. When create is false
// and no record exists, the error wraps ErrSidecarNotFound.
func (s *SidecarStore) Open(target string, create bool) (*Sidecar, error) {
	path := s.Locate(target)
	flag := os.O_RDWR
	if create {
		flag |= os.O_CREATE
	}
	f, err := s.fs.OpenFile(path, flag, 0o600)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Mark(NewIOError("open", path, err), ErrSidecarNotFound)
		}
		return nil, NewIOError("open", path, err)
	}
	return &Sidecar{store: s, file: f, path: path}, nil
}

// Rename moves the sidecar at path to newBase inside the same container. An
// existing record under newBase is never replaced.
func (s *SidecarStore) Rename(path, newBase string) (string, error) {
	dir, _ := splitPath(path, s.sep)
	dst := joinPath(s.sep, dir, newBase)
	if dst == path {
		return dst, nil
	}
	if _, err := s.fs.Stat(dst); err == nil {
		return "", errors.Wrapf(ErrNameTaken, "%s", dst)
	} else if !os.IsNotExist(err) {
		return "", NewIOError("stat", dst, err)
	}
	if err := s.fs.Rename(path, dst); err != nil {
		return "", NewIOError("rename", path, err)
	}
	return dst, nil
}

// Sidecar is an open sidecar record
type Sidecar struct {
	store  *SidecarStore
	file   absfs.File
	path   string
	closed bool
}

// Path returns the location of the record
func (sc *Sidecar) Path() string {
	return sc.path
}

// Size returns the current length of the record
func (sc *Sidecar) Size() (int64, error) {
	if sc.closed {
		return 0, ErrSidecarClosed
	}
	info, err := sc.file.Stat()
	if err != nil {
		return 0, NewIOError("stat", sc.path, err)
	}
	return info.Size(), nil
}

// Flags reads the three encode flags. Bytes past the end of a short record
// read as clear.
func (sc *Sidecar) Flags() (Flags, error) {
	b, err := sc.readAt(FlagsOffset, FlagCount, true)
	if err != nil {
		return Flags{}, err
	}
	return decodeFlags(b), nil
}

// SetFlag sets or clears the flag for t
func (sc *Sidecar) SetFlag(t EncodeType, v bool) error {
	b := flagClear
	if v {
		b = flagSet
	}
	return sc.writeAt(FlagsOffset+int64(t.flagIndex()), []byte{b})
}

// OwnershipTag reads the masked digest at offset 0
func (sc *Sidecar) OwnershipTag() ([TagSize]byte, error) {
	var tag [TagSize]byte
	b, err := sc.readAt(TagOffset, TagSize, false)
	if err != nil {
		return tag, err
	}
	copy(tag[:], b)
	return tag, nil
}

// SetOwnershipTag writes the masked digest at offset 0
func (sc *Sidecar) SetOwnershipTag(tag [TagSize]byte) error {
	return sc.writeAt(TagOffset, tag[:])
}

// EncodeMap reads the masked encode map
func (sc *Sidecar) EncodeMap() ([]byte, error) {
	return sc.readAt(MapOffset, EncodeMapSize, false)
}

// SetEncodeMap writes the masked encode map
func (sc *Sidecar) SetEncodeMap(masked []byte) error {
	if err := ValidateBuffer(masked, "encode_map", EncodeMapSize); err != nil {
		return err
	}
	return sc.writeAt(MapOffset, masked[:EncodeMapSize])
}

// Payload reads the stored payload for t. The header payload is always
// HeaderSize bytes (zero filled if the record is short); the name payload
// runs to the end of the record.
func (sc *Sidecar) Payload(t EncodeType) ([]byte, error) {
	off, ok := payloadOffset(t)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidPayload, "%s encoding keeps no payload", t)
	}
	if t == EncodeHeader {
		return sc.readAt(off, HeaderSize, true)
	}
	size, err := sc.Size()
	if err != nil {
		return nil, err
	}
	if size <= off {
		return []byte{}, nil
	}
	return sc.readAt(off, int(size-off), false)
}

// SetPayload stores b as the payload for t. A name payload replaces any
// previous one entirely.
func (sc *Sidecar) SetPayload(t EncodeType, b []byte) error {
	off, ok := payloadOffset(t)
	if !ok {
		return errors.Wrapf(ErrInvalidPayload, "%s encoding keeps no payload", t)
	}
	switch t {
	case EncodeHeader:
		if len(b) != HeaderSize {
			return &ValidationError{
				Field:   "header_payload",
				Value:   len(b),
				Message: "header payload must be 32 bytes",
				Err:     ErrInvalidPayload,
			}
		}
	case EncodeName:
		if len(b) == 0 {
			return &ValidationError{
				Field:   "name_payload",
				Message: "name payload cannot be empty",
				Err:     ErrInvalidPayload,
			}
		}
		if err := sc.TruncateNamePayload(); err != nil {
			return err
		}
	}
	return sc.writeAt(off, b)
}

// TruncateNamePayload shrinks the record back to the length it has without a
// name payload. Records shorter than that are left alone.
func (sc *Sidecar) TruncateNamePayload() error {
	size, err := sc.Size()
	if err != nil {
		return err
	}
	if size <= NamePayloadOffset {
		return nil
	}
	if err := sc.file.Truncate(NamePayloadOffset); err != nil {
		return newIOErrorAt("truncate", sc.path, NamePayloadOffset, err)
	}
	return nil
}

// Close releases the record
func (sc *Sidecar) Close() error {
	if sc.closed {
		return nil
	}
	sc.closed = true
	if err := sc.file.Close(); err != nil {
		return NewIOError("close", sc.path, err)
	}
	return nil
}

// Rename moves the record to newBase inside its container. The record must
// be closed first.
func (sc *Sidecar) Rename(newBase string) error {
	if !sc.closed {
		return errors.WithStack(ErrSidecarOpen)
	}
	dst, err := sc.store.Rename(sc.path, newBase)
	if err != nil {
		return err
	}
	sc.path = dst
	return nil
}

// readAt reads n bytes at off. With pad set, a short record yields zero bytes
// for the missing tail instead of an error.
func (sc *Sidecar) readAt(off int64, n int, pad bool) ([]byte, error) {
	if sc.closed {
		return nil, ErrSidecarClosed
	}
	if _, err := sc.file.Seek(off, io.SeekStart); err != nil {
		return nil, newIOErrorAt("seek", sc.path, off, err)
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(sc.file, buf)
	if err != nil {
		if pad && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			clear(buf[got:])
			return buf, nil
		}
		return nil, newIOErrorAt("read", sc.path, off, err)
	}
	return buf, nil
}

// writeAt writes b at off, zero filling any gap between the current end of
// the record and off.
func (sc *Sidecar) writeAt(off int64, b []byte) error {
	if sc.closed {
		return ErrSidecarClosed
	}
	if err := ValidateOffset(off, "offset"); err != nil {
		return err
	}
	size, err := sc.Size()
	if err != nil {
		return err
	}
	if size < off {
		if _, err := sc.file.Seek(size, io.SeekStart); err != nil {
			return newIOErrorAt("seek", sc.path, size, err)
		}
		if _, err := sc.file.Write(make([]byte, off-size)); err != nil {
			return newIOErrorAt("write", sc.path, size, err)
		}
	}
	if _, err := sc.file.Seek(off, io.SeekStart); err != nil {
		return newIOErrorAt("seek", sc.path, off, err)
	}
	if _, err := sc.file.Write(b); err != nil {
		return newIOErrorAt("write", sc.path, off, err)
	}
	return nil
}

// splitPath splits name into its parent directory and final element using
// the filesystem separator
func splitPath(name, sep string) (dir, base string) {
	trimmed := strings.TrimRight(name, sep)
	if trimmed == "" {
		return name, ""
	}
	i := strings.LastIndex(trimmed, sep)
	if i < 0 {
		return "", trimmed
	}
	dir = trimmed[:i]
	if dir == "" {
		dir = sep
	}
	return dir, trimmed[i+len(sep):]
}

// joinPath appends base to dir with exactly one separator between them
func joinPath(sep, dir, base string) string {
	if dir == "" {
		return base
	}
	return strings.TrimRight(dir, sep) + sep + base
}
