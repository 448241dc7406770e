package blob

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mesgd/pkg/apperr"
	"mesgd/pkg/logger"
)

// Store persists uploaded media and hands back opaque references that go
// into message and status payloads as mediaRef.
type Store interface {
	Save(r io.Reader, contentType string) (ref string, err error)
	Open(ref string) (io.ReadCloser, string, error)
}

// FS is a flat-directory blob store. References are random names with an
// extension derived from the upload's content type.
type FS struct {
	dir     string
	baseURL string
}

func NewFS(dir, baseURL string) (*FS, error) {
	if dir == "" {
		dir = "./.blobs"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("blob dir: %w", err)
	}
	return &FS{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save streams the upload to disk and returns its reference.
func (f *FS) Save(r io.Reader, contentType string) (string, error) {
	name := uuid.NewString() + extFor(contentType)
	tmp, err := os.CreateTemp(f.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	logger.Debug("blob_saved", "ref", name, "content_type", contentType)
	return name, nil
}

// Open returns the blob's content and its content type.
func (f *FS) Open(ref string) (io.ReadCloser, string, error) {
	// refs are generated names, never paths
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return nil, "", fmt.Errorf("%w: bad media ref", apperr.ErrInvalidInput)
	}
	fh, err := os.Open(filepath.Join(f.dir, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: unknown media %s", apperr.ErrNotFound, ref)
		}
		return nil, "", err
	}
	ct := mime.TypeByExtension(filepath.Ext(ref))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return fh, ct, nil
}

// URL renders the public download URL for a reference.
func (f *FS) URL(ref string) string {
	if f.baseURL == "" {
		return "/v1/media/" + ref
	}
	return f.baseURL + "/v1/media/" + ref
}

func extFor(contentType string) string {
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
