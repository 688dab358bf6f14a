package filemask

import (
	"fmt"
	"strings"
)

// Input validation helpers

// ValidateBuffer checks if a buffer is valid (non-nil and has expected size)
func ValidateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return &ValidationError{
			Field:   name,
			Message: "buffer cannot be nil",
		}
	}
	if minSize > 0 && len(buf) < minSize {
		return &ValidationError{
			Field:   name,
			Value:   len(buf),
			Message: fmt.Sprintf("buffer too small: got %d bytes, need at least %d bytes", len(buf), minSize),
		}
	}
	return nil
}

// ValidateOffset checks if a file offset is valid
func ValidateOffset(offset int64, name string) error {
	if offset < 0 {
		return &ValidationError{
			Field:   name,
			Value:   offset,
			Message: "offset cannot be negative",
			Err:     ErrNegativeOffset,
		}
	}
	return nil
}

// ValidateSize checks if a size parameter is valid
func ValidateSize(size int, name string, minSize, maxSize int) error {
	if size < 0 {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: "size cannot be negative",
		}
	}
	if minSize >= 0 && size < minSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too small: got %d, minimum is %d", size, minSize),
		}
	}
	if maxSize > 0 && size > maxSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too large: got %d, maximum is %d", size, maxSize),
		}
	}
	return nil
}

// ValidateFilePath checks if a file path is valid (not empty)
func ValidateFilePath(path string) error {
	if path == "" {
		return &ValidationError{
			Field:   "path",
			Message: "file path cannot be empty",
		}
	}
	return nil
}

// ValidateDirName checks that name can be used as a single path component
func ValidateDirName(name string) error {
	return validateName("hidden_dir", name)
}

// validateName reports a bad path component against field
func validateName(field, name string) error {
	if name == "" || name == "." || name == ".." {
		return &ValidationError{
			Field:   field,
			Value:   name,
			Message: "must be a plain name",
		}
	}
	if strings.ContainsAny(name, `/\`) {
		return &ValidationError{
			Field:   field,
			Value:   name,
			Message: "must not contain a path separator",
		}
	}
	return nil
}

// ValidatePassword rejects empty passwords
func ValidatePassword(password []byte) error {
	if len(password) == 0 {
		return &ValidationError{
			Field:   "password",
			Message: "password cannot be empty",
			Err:     ErrEmptyPassword,
		}
	}
	return nil
}
