// Package pdf provides a Normaliser for PDF documents backed by
// github.com/ledongthuc/pdf. Only the text layer is read; scanned pages
// without one yield no text.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/normalisers/textutil"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles PDF documents.
type Normaliser struct{}

// New creates a new PDF normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise extracts the plain text of every page.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, pages, err := extract(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: read pdf: %v", domain.ErrInvalidInput, err)
	}

	res := textutil.Result(raw, "", textutil.CollapseBlankLines(text), domain.FileTypePDF)
	res.Document.Metadata[domain.MetaPages] = pages
	return res, nil
}

// extract returns the document text and page count. The parser panics on
// some malformed inputs; those are reported as errors.
func extract(content []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed document: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, err
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", 0, err
	}
	return buf.String(), r.NumPage(), nil
}
