package filemask

import (
	"io"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newMemMasker returns a Masker over an in-memory filesystem holding
// /docs/<name> with the given content
func newMemMasker(t *testing.T, name string, content []byte) (*Masker, absfs.FileSystem, string) {
	t.Helper()
	base, err := memfs.NewFS()
	require.NoError(t, err)
	require.NoError(t, base.MkdirAll("/docs", 0o755))

	path := "/docs/" + name
	f, err := base.Create(path)
	require.NoError(t, err)
	_, err = f.Write(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	m, err := New(base, &Config{Logger: zaptest.NewLogger(t), ChunkSize: 5})
	require.NoError(t, err)
	return m, base, path
}

func readMem(t *testing.T, fs absfs.FileSystem, path string) []byte {
	t.Helper()
	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestMemFS_ContentRoundTrip(t *testing.T) {
	content := []byte("in-memory content spanning several chunks")
	m, fs, path := newMemMasker(t, "notes.txt", content)

	report, err := m.Encrypt(path, FileOnly, EncodeContent, testPassword)
	require.NoError(t, err)
	require.Equal(t, OutcomeEncrypted, outcomeOf(t, report, path))

	encoded := readMem(t, fs, path)
	assert.NotEqual(t, content, encoded)
	raw := readMem(t, fs, "/docs/.filemask/notes.txt")
	require.Len(t, raw, MinSidecarSize)
	encodeMap := storedMap(t, raw, testPassword)
	assert.Equal(t, content, encodeMap.Substitute(encoded, false))

	report, err = m.Decrypt(path, FileOnly, EncodeContent, testPassword)
	require.NoError(t, err)
	require.Equal(t, OutcomeDecrypted, outcomeOf(t, report, path))
	assert.Equal(t, content, readMem(t, fs, path))
}

func TestMemFS_HeaderRoundTrip(t *testing.T) {
	content := []byte("%PDF-1.7 header bytes followed by the body of the document")
	m, fs, path := newMemMasker(t, "doc.pdf", content)

	_, err := m.Encrypt(path, FileOnly, EncodeHeader, testPassword)
	require.NoError(t, err)
	scrambled := readMem(t, fs, path)
	assert.Equal(t, content[HeaderSize:], scrambled[HeaderSize:])

	report, err := m.Decrypt(path, FileOnly, EncodeHeader, []byte("not it"))
	require.NoError(t, err)
	assert.Equal(t, SkipOwnershipMismatch, outcomeOf(t, report, path))
	assert.Equal(t, scrambled, readMem(t, fs, path))

	_, err = m.Decrypt(path, FileOnly, EncodeHeader, testPassword)
	require.NoError(t, err)
	assert.Equal(t, content, readMem(t, fs, path))
}

func TestMemFS_NameRoundTrip(t *testing.T) {
	m, fs, path := newMemMasker(t, "plan.md", []byte("plan"))

	report, err := m.Encrypt(path, FileOnly, EncodeName, testPassword)
	require.NoError(t, err)
	res, ok := report.Lookup(path)
	require.True(t, ok)
	require.Equal(t, OutcomeEncrypted, res.Outcome)
	assert.Equal(t, []byte("plan"), readMem(t, fs, res.NewPath))

	report, err = m.Decrypt(res.NewPath, FileOnly, EncodeName, testPassword)
	require.NoError(t, err)
	require.Equal(t, OutcomeDecrypted, outcomeOf(t, report, res.NewPath))
	assert.Equal(t, []byte("plan"), readMem(t, fs, path))
}
