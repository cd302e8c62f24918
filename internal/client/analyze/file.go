package analyze

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// MaxFileBytes mirrors the server's upload limit.
const MaxFileBytes = 10 << 20

// File is an image picked by the user.
type File struct {
	Name        string
	Data        []byte
	ContentType string
}

// LoadFile reads path and sniffs its content type.
func LoadFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileBytes {
		return nil, fmt.Errorf("%s is larger than %d MB", filepath.Base(path), MaxFileBytes>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewFile(filepath.Base(path), data), nil
}

// NewFile wraps data read from elsewhere.
func NewFile(name string, data []byte) *File {
	return &File{Name: name, Data: data, ContentType: http.DetectContentType(data)}
}

// Accepted reports whether the file is a JPEG or PNG image.
func (f *File) Accepted() bool {
	return f != nil && (f.ContentType == "image/jpeg" || f.ContentType == "image/png")
}

// DataURL encodes the file as an inline preview.
func (f *File) DataURL() string {
	return "data:" + f.ContentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}
