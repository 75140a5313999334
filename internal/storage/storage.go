package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Uploader stores a document buffer and returns the URL it will be served
// from. Failures abort application creation upstream.
type Uploader interface {
	Upload(ctx context.Context, data []byte, folder, filename string) (string, error)
}

// Disk writes uploads under a local root and serves them from a static
// route. It stands in for an object store behind the same interface.
type Disk struct {
	root    string
	baseURL string
}

func NewDisk(root, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Disk{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory uploads are written to, for the static route.
func (d *Disk) Root() string { return d.root }

func (d *Disk) Upload(_ context.Context, data []byte, folder, filename string) (string, error) {
	name, err := uniqueName(filename)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(d.root, filepath.Clean("/"+folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return d.baseURL + "/" + strings.Trim(folder, "/") + "/" + name, nil
}

// uniqueName keeps the original extension but never the original name, so
// two applicants uploading "resume.pdf" cannot collide.
func uniqueName(filename string) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%d_%x%s", time.Now().Unix(), buf, ext), nil
}
