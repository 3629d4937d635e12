package attachment

import (
	"path"
	"strconv"
	"strings"
)

const maxExtLen = 7

// FilenameInfo carries the proposal details that go into canonical file names.
type FilenameInfo struct {
	Committee  string
	Reference  string
	LastName   string
	StudyOrder int // order of the owning study; ignored for proposal slots
}

// Filename returns the canonical download name of the slot's attachment:
// FETC-{committee}-{reference}-{lastname}-[T{study}]-{KindLabel}-[{order}].{ext}
func (s *Slot) Filename(info FilenameInfo) string {
	parts := []string{"FETC", info.Committee, info.Reference, info.LastName}
	if s.Owner.Type == OwnerStudy && info.StudyOrder > 0 {
		parts = append(parts, "T"+strconv.Itoa(info.StudyOrder))
	}
	parts = append(parts, Label(s.Kind))
	if s.Order > 0 {
		parts = append(parts, strconv.Itoa(s.Order))
	}

	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	name := strings.Join(kept, "-")

	if s.Attachment != nil {
		if ext := Extension(s.Attachment.Upload.Name); ext != "" {
			name += "." + ext
		}
	}
	return name
}

// Extension returns the lowercased extension of filename without its dot, cut to 7 characters.
func Extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if r := []rune(ext); len(r) > maxExtLen {
		ext = string(r[:maxExtLen])
	}
	return ext
}
