package service

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/faycaldjilali/sorabo/model"
)

// TextExtractor turns a downloaded document into plain text, one entry per
// page.
type TextExtractor interface {
	Extract(data []byte) ([]string, error)
}

// PDFExtractor extracts text from PDF payloads.
type PDFExtractor struct{}

// Extract reads every page of the document. The pdf package panics on some
// malformed inputs, so panics are converted into errors to keep a bad
// document from taking down the caller.
func (PDFExtractor) Extract(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &model.ExtractError{Err: fmt.Errorf("document parsing panicked: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &model.ExtractError{Err: err}
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, &model.ExtractError{Err: err}
		}
		pages = append(pages, text)
	}
	return pages, nil
}
