package stepper

import (
	"strings"

	"github.com/fetc/proposals/core/proposal"
)

// Location tells where an item lives and whether a request path targets it.
type Location interface {
	URL() string
	Matches(path string, p *proposal.Proposal) bool
}

// URLLocation is current when the request path equals its URL.
type URLLocation struct {
	Path string
}

func (l URLLocation) URL() string { return l.Path }

func (l URLLocation) Matches(path string, _ *proposal.Proposal) bool {
	return l.Path != "" && strings.TrimSuffix(path, "/") == strings.TrimSuffix(l.Path, "/")
}

// SessionsLocation is current for the study's sessions page and for every page of a
// session or task the study owns.
type SessionsLocation struct {
	StudyID string
}

func (l SessionsLocation) URL() string { return studyURL(l.StudyID, "sessions") }

func (l SessionsLocation) Matches(path string, p *proposal.Proposal) bool {
	if (URLLocation{Path: l.URL()}).Matches(path, p) {
		return true
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || p == nil {
		return false
	}

	var (
		owner string
		ok    bool
	)
	switch segments[0] {
	case "sessions":
		owner, ok = p.SessionOwner(segments[1])
	case "tasks":
		owner, ok = p.TaskOwner(segments[1])
	}
	return ok && owner == l.StudyID
}

// Item is a node of the stepper tree.
type Item struct {
	Title    string
	Location Location
	Parent   *Item
	Children []*Item

	// form builds the step's form from the proposal; nil for containers.
	form formFunc
	// check adds checker errors to the form errors.
	check func(s *Stepper) []string
	// deferred items compute their errors after every other item.
	deferred bool

	errors []string
}

func (it *Item) URL() string {
	if it.Location == nil {
		return ""
	}
	return it.Location.URL()
}

// Errors returns the item's own errors.
func (it *Item) Errors() []string {
	return it.errors
}

// HasErrors reports whether the item or any of its descendants has errors.
func (it *Item) HasErrors() bool {
	if len(it.errors) > 0 {
		return true
	}
	for _, child := range it.Children {
		if child.HasErrors() {
			return true
		}
	}
	return false
}

// IsCurrent reports whether path targets this item.
func (it *Item) IsCurrent(path string, p *proposal.Proposal) bool {
	return it.Location != nil && it.Location.Matches(path, p)
}

// Depth is 0 for top level items.
func (it *Item) Depth() int {
	var d int
	for parent := it.Parent; parent != nil; parent = parent.Parent {
		d++
	}
	return d
}

func (it *Item) appendChild(child *Item) {
	child.Parent = it
	it.Children = append(it.Children, child)
}

func proposalURL(id, page string) string {
	return "/proposals/" + id + "/" + page
}

func studyURL(id, page string) string {
	return "/studies/" + id + "/" + page
}
