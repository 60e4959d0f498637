package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxUploadSize is the maximum accepted multipart file size (10MB).
	MaxUploadSize = 10 * 1024 * 1024
	// FolderLogos is the key prefix for company logos.
	FolderLogos = "logos"
	// FolderDocuments is the key prefix for event documents.
	FolderDocuments = "documents"
)

// Blob stores uploaded files. Put returns the public URL of the stored object.
type Blob interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// Allowed MIME types and extensions per upload kind.
var (
	LogoExtensions = map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".webp": "image/webp",
		".gif":  "image/gif",
		".svg":  "image/svg+xml",
	}
	DocumentExtensions = map[string]string{
		".pdf":  "application/pdf",
		".doc":  "application/msword",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
	}
)

// ValidateFileType returns the content type to store for filename when its extension is in
// allowed and the declared content type (if any) agrees with it.
func ValidateFileType(allowed map[string]string, contentType, filename string) (string, bool) {
	ext := strings.ToLower(path.Ext(filename))
	want, ok := allowed[ext]
	if !ok {
		return "", false
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if ct == "" || ct == "application/octet-stream" || ct == want || (ct == "image/jpg" && want == "image/jpeg") {
		return want, true
	}
	return "", false
}

// NewKey returns a unique object key under folder that keeps the file extension.
func NewKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(folder, uuid.NewString()+ext)
}
