package filemask

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func TestNewEncoder(t *testing.T) {
	fs := NewOSFS()
	tests := []struct {
		typ  EncodeType
		dirs bool
	}{
		{EncodeName, true},
		{EncodeHeader, false},
		{EncodeContent, false},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			enc, err := NewEncoder(tt.typ, fs, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, enc.Type())
			assert.Equal(t, tt.dirs, enc.SupportsDirectories())
		})
	}

	_, err := NewEncoder(EncodeType(9), fs, 0)
	assert.True(t, IsValidationError(err))
	_, err = NewEncoder(EncodeName, nil, 0)
	assert.ErrorIs(t, err, ErrNilFileSystem)
}

func TestNameEncoder_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "report.pdf")
	writeFile(t, target, []byte("pdf"))

	enc, err := NewEncoder(EncodeName, NewOSFS(), 0)
	require.NoError(t, err)

	res, err := enc.Encrypt(target, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("report.pdf"), res.Raw)
	_, err = uuid.Parse(string(res.Working))
	require.NoError(t, err, "replacement name should be a UUID")

	renamed := filepath.Join(dir, string(res.Working))
	assert.Equal(t, []byte("pdf"), readFile(t, renamed))
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, enc.Decrypt(renamed, res.Raw, nil))
	assert.Equal(t, []byte("pdf"), readFile(t, target))
}

func TestNameEncoder_DecryptRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "masked"), []byte("1"))
	writeFile(t, filepath.Join(dir, "taken"), []byte("2"))

	enc, err := NewEncoder(EncodeName, NewOSFS(), 0)
	require.NoError(t, err)

	err = enc.Decrypt(filepath.Join(dir, "masked"), []byte("taken"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNameTaken))
	assert.Equal(t, []byte("2"), readFile(t, filepath.Join(dir, "taken")))
}

func TestNameEncoder_RejectsPathPayload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "masked"), []byte("1"))

	enc, err := NewEncoder(EncodeName, NewOSFS(), 0)
	require.NoError(t, err)

	err = enc.Decrypt(filepath.Join(dir, "masked"), []byte("../escape"), nil)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
	err = enc.Decrypt(filepath.Join(dir, "masked"), nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestNameEncoder_PayloadErrorNamesField(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "masked"), []byte("1"))

	enc, err := NewEncoder(EncodeName, NewOSFS(), 0)
	require.NoError(t, err)

	for _, payload := range []string{"..", "a/b", `a\b`} {
		err = enc.Decrypt(filepath.Join(dir, "masked"), []byte(payload), nil)
		require.Error(t, err, payload)
		assert.True(t, errors.Is(err, ErrInvalidPayload), payload)

		var ve *ValidationError
		require.True(t, errors.As(err, &ve), payload)
		assert.Equal(t, "name_payload", ve.Field)
		assert.Equal(t, payload, ve.Value)
	}
	assert.Equal(t, []byte("1"), readFile(t, filepath.Join(dir, "masked")))
}

func TestHeaderEncoder_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"longer than header", bytes.Repeat([]byte("0123456789"), 10)},
		{"exactly header", bytes.Repeat([]byte{'h'}, HeaderSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := filepath.Join(t.TempDir(), "f.bin")
			writeFile(t, target, tt.data)

			enc, err := NewEncoder(EncodeHeader, NewOSFS(), 0)
			require.NoError(t, err)

			res, err := enc.Encrypt(target, nil)
			require.NoError(t, err)
			require.Len(t, res.Raw, HeaderSize)

			assert.Equal(t, tt.data[:HeaderSize], res.Raw)

			scrambled := readFile(t, target)
			require.Len(t, scrambled, len(tt.data))
			assert.Equal(t, res.Working, scrambled[:HeaderSize])
			assert.Equal(t, tt.data[HeaderSize:], scrambled[HeaderSize:])

			require.NoError(t, enc.Decrypt(target, res.Raw, nil))
			assert.Equal(t, tt.data, readFile(t, target))
		})
	}
}

func TestHeaderEncoder_RejectsShortFile(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short")
	writeFile(t, short, []byte("HELLO"))

	enc, err := NewEncoder(EncodeHeader, NewOSFS(), 0)
	require.NoError(t, err)

	_, err = enc.Encrypt(short, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortFile))
	assert.Equal(t, []byte("HELLO"), readFile(t, short))

	// a record written before the file shrank must not be restored over it
	err = enc.Decrypt(short, bytes.Repeat([]byte{'h'}, HeaderSize), nil)
	assert.True(t, errors.Is(err, ErrShortFile))
	assert.Equal(t, []byte("HELLO"), readFile(t, short))
}

func TestHeaderEncoder_Failures(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	writeFile(t, empty, nil)

	enc, err := NewEncoder(EncodeHeader, NewOSFS(), 0)
	require.NoError(t, err)

	_, err = enc.Encrypt(empty, nil)
	assert.True(t, errors.Is(err, ErrEmptyFile))

	_, err = enc.Encrypt(dir, nil)
	assert.True(t, errors.Is(err, ErrNotRegularFile))

	_, err = enc.Encrypt(filepath.Join(dir, "missing"), nil)
	assert.True(t, IsIOError(err))

	err = enc.Decrypt(empty, []byte("short"), nil)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestContentEncoder_RoundTrip(t *testing.T) {
	m, err := GeneratePermutation(nil)
	require.NoError(t, err)

	// chunk size smaller than the file so several passes are needed
	enc, err := NewEncoder(EncodeContent, NewOSFS(), 7)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "data")
	data := append(allBytes(), []byte("trailing data that is not a chunk multiple")...)
	writeFile(t, target, data)

	res, err := enc.Encrypt(target, &m)
	require.NoError(t, err)
	assert.Empty(t, res.Raw)

	encoded := readFile(t, target)
	assert.Equal(t, m.Substitute(data, true), encoded)

	require.NoError(t, enc.Decrypt(target, nil, &m))
	assert.Equal(t, data, readFile(t, target))
}

func TestContentEncoder_EmptyFileAndMissingMap(t *testing.T) {
	m, err := GeneratePermutation(nil)
	require.NoError(t, err)
	enc, err := NewEncoder(EncodeContent, NewOSFS(), 0)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "empty")
	writeFile(t, target, nil)

	_, err = enc.Encrypt(target, &m)
	require.NoError(t, err)
	assert.Empty(t, readFile(t, target))

	_, err = enc.Encrypt(target, nil)
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(enc.Decrypt(target, nil, nil)))
}
