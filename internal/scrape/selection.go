package scrape

import (
	"fmt"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dreamvault/internal/apperr"
	"github.com/starford/dreamvault/internal/storage"
)

// Mode selects how documents are chosen for a run.
type Mode string

// Selection modes.
const (
	ModeNotes  Mode = "notes"
	ModeFolder Mode = "folder"
)

// Selection describes which documents a run processes: either an explicit
// list of paths or a folder scan with exclusions. MaxDocuments caps the
// selection for very large vaults (0 = unlimited).
type Selection struct {
	Mode           Mode     `yaml:"selection_mode"`
	Notes          []string `yaml:"notes"`
	Folder         string   `yaml:"folder"`
	Recursive      bool     `yaml:"recursive"`
	ExcludeFolders []string `yaml:"exclude_folders"`
	ExcludeNotes   []string `yaml:"exclude_notes"`
	MaxDocuments   int      `yaml:"max_documents"`
}

// Validate checks the selection is usable.
func (s Selection) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Mode, validation.Required, validation.In(ModeNotes, ModeFolder)),
		validation.Field(&s.MaxDocuments, validation.Min(0)),
	)
}

// resolve turns the selection into document paths. The second return value
// reports whether the list was truncated by MaxDocuments.
func (s Selection) resolve(store storage.Provider) ([]string, bool, error) {
	if err := s.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: selection: %v", apperr.ErrInvalidInput, err)
	}

	var paths []string
	switch s.Mode {
	case ModeNotes:
		seen := make(map[string]bool, len(s.Notes))
		for _, n := range s.Notes {
			p := normalizeNote(n)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			paths = append(paths, p)
		}
	case ModeFolder:
		metas, err := store.List(s.Folder, storage.ListOptions{
			Recursive:      s.Recursive,
			ExcludeFolders: s.ExcludeFolders,
			ExcludeNotes:   s.ExcludeNotes,
		})
		if err != nil {
			return nil, false, err
		}
		for _, m := range metas {
			paths = append(paths, m.Path)
		}
	}

	if len(paths) == 0 {
		return nil, false, apperr.ErrNoDocuments
	}
	if s.MaxDocuments > 0 && len(paths) > s.MaxDocuments {
		return paths[:s.MaxDocuments], true, nil
	}
	return paths, false, nil
}

// Includes reports whether a document path falls inside a folder selection.
// Explicit note selections include exactly their listed paths.
func (s Selection) Includes(p string) bool {
	p = normalizeNote(p)
	switch s.Mode {
	case ModeNotes:
		for _, n := range s.Notes {
			if normalizeNote(n) == p {
				return true
			}
		}
		return false
	case ModeFolder:
		folder := strings.Trim(s.Folder, "/")
		dir := path.Dir(p)
		if dir == "." {
			dir = ""
		}
		if folder != "" && dir != folder && !strings.HasPrefix(dir, folder+"/") {
			return false
		}
		if !s.Recursive && dir != folder {
			return false
		}
		for _, f := range s.ExcludeFolders {
			f = strings.Trim(f, "/")
			if f != "" && (strings.EqualFold(dir, f) || strings.HasPrefix(strings.ToLower(dir), strings.ToLower(f)+"/")) {
				return false
			}
		}
		stem := strings.TrimSuffix(path.Base(p), path.Ext(p))
		for _, n := range s.ExcludeNotes {
			n = strings.Trim(n, "/")
			if strings.EqualFold(n, p) || strings.EqualFold(n, strings.TrimSuffix(p, ".md")) || strings.EqualFold(n, stem) {
				return false
			}
		}
		return true
	}
	return false
}

// normalizeNote cleans a note reference and adds the .md extension.
func normalizeNote(n string) string {
	n = strings.TrimSpace(n)
	if n == "" {
		return ""
	}
	n = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(n, "\\", "/")), "/")
	if !strings.EqualFold(path.Ext(n), ".md") {
		n += ".md"
	}
	return n
}
