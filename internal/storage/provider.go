// Package storage defines the document store the journal engine reads from
// and writes front-matter updates back to.
package storage

import "github.com/starford/dreamvault/internal/models"

// ListOptions narrows a folder listing.
type ListOptions struct {
	// Recursive descends into subfolders.
	Recursive bool
	// ExcludeFolders are folder paths (relative to the vault root) skipped
	// together with everything below them.
	ExcludeFolders []string
	// ExcludeNotes are document paths, or names without extension, to skip.
	ExcludeNotes []string
}

// Provider is the interface for vault document operations. All paths are
// relative to the vault root.
type Provider interface {
	// List returns the .md documents under dir in lexical path order.
	List(dir string, opts ListOptions) ([]models.DocumentMeta, error)
	// Read returns the raw bytes of the document at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the document at path.
	Write(path string, content []byte) error
}
