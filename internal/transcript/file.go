package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is a transcript file picked for upload
type File struct {
	Name string
	Data []byte
}

// Size returns the file size in bytes
func (f *File) Size() int64 {
	return int64(len(f.Data))
}

// ReadFile loads a transcript file from disk
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}
	return &File{Name: filepath.Base(path), Data: data}, nil
}

// FileValidator decides whether a file may be attached to an entry
type FileValidator interface {
	Validate(f *File) error
}

// ValidatorFunc adapts a function to FileValidator
type ValidatorFunc func(f *File) error

// Validate calls fn(f)
func (fn ValidatorFunc) Validate(f *File) error {
	return fn(f)
}

// AcceptAll accepts every non-nil file
var AcceptAll FileValidator = ValidatorFunc(func(f *File) error {
	if f == nil {
		return fmt.Errorf("%w: no file", ErrInvalidFile)
	}
	return nil
})

// RulesValidator checks extension and size limits
type RulesValidator struct {
	AllowedExtensions []string
	MaxSize           int64
}

// NewRulesValidator creates a validator; empty extensions or a zero size disable that rule
func NewRulesValidator(allowedExtensions []string, maxSize int64) *RulesValidator {
	return &RulesValidator{AllowedExtensions: allowedExtensions, MaxSize: maxSize}
}

// Validate implements FileValidator
func (v *RulesValidator) Validate(f *File) error {
	if err := AcceptAll.Validate(f); err != nil {
		return err
	}

	if f.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidFile, f.Name)
	}

	if v.MaxSize > 0 && f.Size() > v.MaxSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrInvalidFile, f.Name, f.Size(), v.MaxSize)
	}

	if len(v.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(f.Name))
		for _, allowed := range v.AllowedExtensions {
			if ext == strings.ToLower(allowed) {
				return nil
			}
		}
		return fmt.Errorf("%w: %s must be one of %s", ErrInvalidFile, f.Name, strings.Join(v.AllowedExtensions, ", "))
	}

	return nil
}
