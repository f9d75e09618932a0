// Package storage validates uploads and stores them in a blob store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Policy bounds one kind of upload.
type Policy struct {
	MaxBytes int64
	Types    map[string]bool
}

var (
	// DocumentPolicy covers task documents and bug attachments.
	DocumentPolicy = Policy{
		MaxBytes: 20 << 20,
		Types: map[string]bool{
			"image/jpeg":         true,
			"image/png":          true,
			"application/pdf":    true,
			"application/msword": true,
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
			"application/zip":              true,
			"application/x-zip-compressed": true,
		},
	}

	// ImagePolicy covers profile pictures.
	ImagePolicy = Policy{
		MaxBytes: 5 << 20,
		Types: map[string]bool{
			"image/jpeg": true,
			"image/png":  true,
			"image/jpg":  true,
			"image/gif":  true,
		},
	}
)

// Upload is a validated file ready to be written.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store persists uploads and returns the URL clients use to fetch them.
type Store interface {
	Put(ctx context.Context, folder string, up *Upload) (string, error)
}

const sniffLen = 3072

// Open validates fh against p. The declared Content-Type wins when the client
// sends a specific one; otherwise the content is sniffed.
func Open(fh *multipart.FileHeader, p Policy) (*Upload, io.Closer, error) {
	if fh.Size > p.MaxBytes {
		return nil, nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, fh.Filename, fh.Size, p.MaxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}

	ct := strings.ToLower(strings.TrimSpace(strings.Split(fh.Header.Get("Content-Type"), ";")[0]))
	var body io.Reader = f
	if ct == "" || ct == "application/octet-stream" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(f, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			f.Close()
			return nil, nil, fmt.Errorf("read upload: %w", err)
		}
		head = head[:n]
		ct = mimetype.Detect(head).String()
		ct = strings.Split(ct, ";")[0]
		body = io.MultiReader(bytes.NewReader(head), f)
	}
	if !p.Types[ct] {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	return &Upload{Filename: fh.Filename, ContentType: ct, Size: fh.Size, Body: body}, f, nil
}

// objectName keeps the original extension behind a random name.
func objectName(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(folder, uuid.NewString()+ext)
}
