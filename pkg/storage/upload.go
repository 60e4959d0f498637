package storage

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"

	"github.com/raci-tracker/backend/pkg/apperr"
)

// Upload is a file received from a client, not yet stored.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromFileHeader wraps a multipart file. It returns nil for a nil header.
func FromFileHeader(fh *multipart.FileHeader) *Upload {
	if fh == nil {
		return nil
	}
	return &Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes builds an Upload from memory.
func FromBytes(filename, contentType string, data []byte) *Upload {
	return &Upload{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Stored is an uploaded object. Key is used to delete it again.
type Stored struct {
	Key string
	URL string
}

// Save validates u against allowed and writes it under folder.
func Save(ctx context.Context, blob Blob, folder string, allowed map[string]string, u *Upload) (*Stored, error) {
	if u.Size > MaxUploadSize {
		return nil, apperr.Validation("file size exceeds 10MB limit")
	}
	ct, ok := ValidateFileType(allowed, u.ContentType, u.Filename)
	if !ok {
		return nil, apperr.Validation("file type not allowed: %s", u.Filename)
	}
	rc, err := u.Open()
	if err != nil {
		return nil, apperr.Wrap(err, "open upload")
	}
	defer rc.Close()

	key := NewKey(folder, u.Filename)
	url, err := blob.Put(ctx, key, ct, rc, u.Size)
	if err != nil {
		return nil, apperr.Wrap(err, "store upload")
	}
	return &Stored{Key: key, URL: url}, nil
}
