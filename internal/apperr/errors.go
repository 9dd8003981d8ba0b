// Package apperr holds sentinel errors shared by the service, API and MCP layers.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrNoDocuments is returned when a scrape selection resolves to nothing.
	ErrNoDocuments = errors.New("no documents selected")
	// ErrAmbiguousWriteBack rejects front-matter write-back for documents
	// holding more than one dream entry.
	ErrAmbiguousWriteBack = errors.New("document has more than one dream entry")
	ErrInvalidInput       = errors.New("invalid input")
)
