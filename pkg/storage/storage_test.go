package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/raci-tracker/backend/pkg/apperr"
)

func TestValidateFileType(t *testing.T) {
	tests := []struct {
		allowed  map[string]string
		ct, name string
		want     string
		ok       bool
	}{
		{LogoExtensions, "image/png", "logo.PNG", "image/png", true},
		{LogoExtensions, "", "logo.svg", "image/svg+xml", true},
		{LogoExtensions, "image/jpg", "logo.jpg", "image/jpeg", true},
		{LogoExtensions, "application/pdf", "logo.png", "", false},
		{LogoExtensions, "image/png", "logo.exe", "", false},
		{DocumentExtensions, "application/pdf; charset=binary", "plan.pdf", "application/pdf", true},
		{DocumentExtensions, "application/octet-stream", "plan.docx", DocumentExtensions[".docx"], true},
		{DocumentExtensions, "image/gif", "plan.gif", "", false},
	}
	for _, tt := range tests {
		got, ok := ValidateFileType(tt.allowed, tt.ct, tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestNewKey(t *testing.T) {
	k := NewKey(FolderLogos, "Company Logo.PNG")
	assert.True(t, strings.HasPrefix(k, "logos/"))
	assert.True(t, strings.HasSuffix(k, ".png"))
	assert.NotEqual(t, k, NewKey(FolderLogos, "Company Logo.PNG"))
}

func TestLocalPutDelete(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "http://localhost:8080/", zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	url, err := l.Put(ctx, "logos/a.png", "image/png", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/logos/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "logos", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, l.Delete(ctx, "logos/a.png"))
	_, err = os.Stat(filepath.Join(dir, "logos", "a.png"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, l.Delete(ctx, "logos/a.png"), "missing file is not an error")
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "", zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = l.Put(context.Background(), "../escape.txt", "text/plain", strings.NewReader("x"), 1)
	assert.Error(t, err)
	assert.Error(t, l.Delete(context.Background(), "../../etc/passwd"))
}

func TestSaveValidatesAndStores(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "http://api.test", zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	stored, err := Save(ctx, l, FolderDocuments, DocumentExtensions, FromBytes("plan.pdf", "application/pdf", []byte("%PDF")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Key, "documents/"))
	assert.Equal(t, "http://api.test/uploads/"+stored.Key, stored.URL)

	_, err = Save(ctx, l, FolderLogos, LogoExtensions, FromBytes("run.exe", "", []byte("MZ")))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	big := &Upload{Filename: "big.png", Size: MaxUploadSize + 1}
	_, err = Save(ctx, l, FolderLogos, LogoExtensions, big)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
