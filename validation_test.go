package filemask

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBuffer(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		minSize int
		wantErr bool
	}{
		{"nil buffer", nil, 0, true},
		{"no min size", make([]byte, 10), 0, false},
		{"too small", make([]byte, 5), 10, true},
		{"exact size", make([]byte, 10), 10, false},
		{"larger than min", make([]byte, 20), 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBuffer(tt.buf, "data", tt.minSize)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsValidationError(err), "got %T", err)
		})
	}
}

func TestValidateOffset(t *testing.T) {
	assert.NoError(t, ValidateOffset(0, "offset"))
	assert.NoError(t, ValidateOffset(1<<40, "offset"))

	err := ValidateOffset(-1, "offset")
	assert.True(t, IsValidationError(err))
	assert.True(t, errors.Is(err, ErrNegativeOffset))
}

func TestValidateSize(t *testing.T) {
	tests := []struct {
		name           string
		size, min, max int
		wantErr        bool
	}{
		{"negative", -1, 0, 100, true},
		{"zero", 0, 0, 100, false},
		{"below min", 5, 10, 100, true},
		{"above max", 150, 10, 100, true},
		{"within bounds", 50, 10, 100, false},
		{"at min", 10, 10, 100, false},
		{"at max", 100, 10, 100, false},
		{"no max", 1 << 30, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSize(tt.size, "chunk_size", tt.min, tt.max)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsValidationError(err), "got %T", err)
		})
	}
}

func TestValidateFilePath(t *testing.T) {
	assert.True(t, IsValidationError(ValidateFilePath("")))
	assert.NoError(t, ValidateFilePath("/test/file.txt"))
	assert.NoError(t, ValidateFilePath("test/file.txt"))
}

func TestValidateDirName(t *testing.T) {
	for _, name := range []string{".filemask", "hidden", "..x", "a b"} {
		assert.NoErrorf(t, ValidateDirName(name), "name %q", name)
	}
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "/"} {
		assert.Truef(t, IsValidationError(ValidateDirName(name)), "name %q", name)
	}

	var ve *ValidationError
	require.True(t, errors.As(ValidateDirName(".."), &ve))
	assert.Equal(t, "hidden_dir", ve.Field)
	require.True(t, errors.As(validateName("name_payload", "a/b"), &ve))
	assert.Equal(t, "name_payload", ve.Field)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword([]byte("x")))

	err := ValidatePassword(nil)
	assert.True(t, IsValidationError(err))
	assert.True(t, errors.Is(err, ErrEmptyPassword))
	assert.True(t, errors.Is(ValidatePassword([]byte{}), ErrEmptyPassword))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"nil config", nil, true},
		{"zero value", &Config{}, true},
		{"defaults", &Config{HiddenDirName: DefaultHiddenDirName, ChunkSize: DefaultChunkSize}, false},
		{"chunk size zero", &Config{HiddenDirName: "x"}, false},
		{"negative chunk size", &Config{HiddenDirName: "x", ChunkSize: -1}, true},
		{"huge chunk size", &Config{HiddenDirName: "x", ChunkSize: 1 << 30}, true},
		{"separator in dir name", &Config{HiddenDirName: "a/b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.ErrorIs(t, (*Config)(nil).Validate(), ErrNilConfig)
}

func TestConfig_WithDefaults(t *testing.T) {
	var nilConfig *Config
	cfg := nilConfig.withDefaults()
	assert.Equal(t, DefaultHiddenDirName, cfg.HiddenDirName)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.NotNil(t, cfg.Logger)
	assert.Nil(t, cfg.Rand)

	seed := bytes.NewReader(nil)
	in := &Config{HiddenDirName: ".mine", ChunkSize: 16, Rand: seed}
	cfg = in.withDefaults()
	assert.Equal(t, ".mine", cfg.HiddenDirName)
	assert.Equal(t, 16, cfg.ChunkSize)
	assert.Same(t, seed, cfg.Rand)
	assert.Nil(t, in.Logger, "withDefaults must not modify its receiver")
}

func TestParseEncodeType(t *testing.T) {
	for _, typ := range []EncodeType{EncodeName, EncodeHeader, EncodeContent} {
		got, err := ParseEncodeType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseEncodeType("everything")
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "unknown", EncodeType(42).String())
}

func TestParseSelectMode(t *testing.T) {
	for _, mode := range []SelectMode{FileOnly, DirectoryShallow, DirectoryCascade} {
		got, err := ParseSelectMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, got)
	}
	_, err := ParseSelectMode("recursive")
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "unknown", SelectMode(42).String())
}

func TestEncodeType_Conflicts(t *testing.T) {
	assert.True(t, EncodeHeader.conflictsWith(EncodeContent))
	assert.True(t, EncodeContent.conflictsWith(EncodeHeader))
	assert.False(t, EncodeName.conflictsWith(EncodeContent))
	assert.False(t, EncodeName.conflictsWith(EncodeHeader))
	assert.False(t, EncodeContent.conflictsWith(EncodeName))
	assert.False(t, EncodeContent.conflictsWith(EncodeContent))
}
