// Package transcript validates and reads user-supplied transcripts.
package transcript

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/zawasasa/note-blog-generator/generator"
)

const (
	// MessagePDF is shown when a PDF is uploaded.
	MessagePDF         = "PDFファイルは対応していません。テキストファイル（.txt）またはマークダウンファイル（.md）をご利用ください。"
	// MessageUnsupported is shown for any other rejected type.
	MessageUnsupported = "対応していないファイル形式です。テキストファイル（.txt）またはマークダウンファイル（.md）をご利用ください。"
	MessageEmpty       = "テープ起こしが空です。"
	MessageNotUTF8     = "ファイルの文字コードを読み取れませんでした。UTF-8のテキストファイルをご利用ください。"
	MessageTooLarge    = "ファイルが大きすぎます。"

	DefaultLimit = 1 << 20
)

var (
	allowedTypes      = []string{"text/plain", "text/markdown"}
	allowedExtensions = []string{".txt", ".md"}
)

// ValidateUpload checks the declared MIME type first and the file name suffix second.
// An empty or generic declared type is replaced by one sniffed from content.
func ValidateUpload(name, declaredType string, content []byte) error {
	mt := mediaType(declaredType)
	if (mt == "" || mt == "application/octet-stream") && len(content) > 0 {
		mt = mediaType(mimetype.Detect(content).String())
	}
	ext := strings.ToLower(filepath.Ext(name))

	if mt == "application/pdf" || ext == ".pdf" {
		return generator.NewValidationError(MessagePDF)
	}
	for _, t := range allowedTypes {
		if mt == t {
			return nil
		}
	}
	for _, e := range allowedExtensions {
		if ext == e {
			return nil
		}
	}
	return generator.NewValidationError(MessageUnsupported)
}

// Read reads at most limit bytes of an uploaded file, validates it and returns its text.
func Read(name, declaredType string, r io.Reader, limit int64) (string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if n > limit {
		return "", generator.NewValidationError(MessageTooLarge)
	}
	if err := ValidateUpload(name, declaredType, buf.Bytes()); err != nil {
		return "", err
	}
	return FromText(buf.String())
}

// FromText validates pasted text.
func FromText(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", generator.NewValidationError(MessageNotUTF8)
	}
	if strings.TrimSpace(text) == "" {
		return "", generator.NewValidationError(MessageEmpty)
	}
	return text, nil
}

func mediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(v)
	}
	return mt
}
