// Package local extracts plain text from uploaded resume files without
// calling out to an external document server.
//
// It supports PDF, DOC, and DOCX. Parsed text is sanitized of control
// characters and collapsed to single-space whitespace so downstream
// consumers get one clean line of content.
package local

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"github.com/jobfindr/matchengine/internal/domain"
	"github.com/jobfindr/matchengine/pkg/textx"
)

// Extractor implements domain.TextExtractor over in-process parsers.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor { return &Extractor{} }

// ExtractFile parses the uploaded bytes according to the filename extension
// and returns sanitized plain text. Unknown extensions yield
// domain.ErrUnsupportedFormat; parse failures and documents with no usable
// text yield domain.ErrCorruptDocument.
func (e *Extractor) ExtractFile(ctx domain.Context, fileName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(fileName))

	var (
		raw string
		err error
	)
	switch ext {
	case ".pdf":
		raw, err = extractPDF(data)
	case ".docx":
		raw, _, err = docconv.ConvertDocx(bytes.NewReader(data))
	case ".doc":
		raw, _, err = docconv.ConvertDoc(bytes.NewReader(data))
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", domain.ErrCorruptDocument, ext, err)
	}

	text := textx.CollapseWhitespace(textx.SanitizeText(raw))
	if text == "" {
		return "", fmt.Errorf("%w: no extractable text", domain.ErrCorruptDocument)
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	rs, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return "", err
	}
	return buf.String(), nil
}
