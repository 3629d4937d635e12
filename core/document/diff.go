package document

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	warnAdded   = "this section is new in this version"
	warnRemoved = "this section was removed in this version"
)

// DiffRow compares one field of two versions.
type DiffRow struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Changed bool   `json:"changed"`
	// Unified is set for changed multi-line values.
	Unified string `json:"unified,omitempty"`
}

// DiffSection compares a section of two versions. Warning is set when the section
// exists on one side only.
type DiffSection struct {
	Key     string    `json:"key"`
	Title   string    `json:"title"`
	Warning string    `json:"warning,omitempty"`
	Rows    []DiffRow `json:"rows"`
}

// Changed reports whether any row differs.
func (d DiffSection) Changed() bool {
	for _, r := range d.Rows {
		if r.Changed {
			return true
		}
	}
	return false
}

// Diff pairs the sections of two versions by key. The result follows the order of
// newer, with sections only in older placed after their predecessor in older.
func Diff(older, newer []Section) []DiffSection {
	oldByKey := make(map[string]Section, len(older))
	oldKeys := make([]string, 0, len(older))
	for _, s := range older {
		oldByKey[s.Key()] = s
		oldKeys = append(oldKeys, s.Key())
	}
	newByKey := make(map[string]Section, len(newer))
	newKeys := make([]string, 0, len(newer))
	for _, s := range newer {
		newByKey[s.Key()] = s
		newKeys = append(newKeys, s.Key())
	}

	out := make([]DiffSection, 0, len(newer))
	for _, key := range mergeKeys(oldKeys, newKeys) {
		o, inOld := oldByKey[key]
		n, inNew := newByKey[key]
		switch {
		case inOld && inNew:
			out = append(out, DiffSection{Key: key, Title: n.Title(), Rows: diffRows(MakeRows(o), MakeRows(n))})
		case inNew:
			out = append(out, DiffSection{Key: key, Title: n.Title(), Warning: warnAdded, Rows: diffRows(nil, MakeRows(n))})
		default:
			out = append(out, DiffSection{Key: key, Title: o.Title(), Warning: warnRemoved, Rows: diffRows(MakeRows(o), nil)})
		}
	}
	return out
}

func diffRows(older, newer []Row) []DiffRow {
	oldByName := make(map[string]Row, len(older))
	oldNames := make([]string, 0, len(older))
	for _, r := range older {
		oldByName[r.Name] = r
		oldNames = append(oldNames, r.Name)
	}
	newByName := make(map[string]Row, len(newer))
	newNames := make([]string, 0, len(newer))
	for _, r := range newer {
		newByName[r.Name] = r
		newNames = append(newNames, r.Name)
	}

	rows := make([]DiffRow, 0, len(newer))
	for _, name := range mergeKeys(oldNames, newNames) {
		o, inOld := oldByName[name]
		n, inNew := newByName[name]
		label := n.Label
		if !inNew {
			label = o.Label
		}
		d := DiffRow{Name: name, Label: label, Old: o.Value, New: n.Value}
		d.Changed = inOld != inNew || o.Value != n.Value
		if d.Changed && (strings.Contains(d.Old, "\n") || strings.Contains(d.New, "\n")) {
			d.Unified = unified(d.Old, d.New)
		}
		rows = append(rows, d)
	}
	return rows
}

func unified(a, b string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "previous",
		ToFile:   "current",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return text
}

// mergeKeys returns newer with the keys only present in older inserted right
// after the key preceding them in older.
func mergeKeys(older, newer []string) []string {
	inNew := make(map[string]bool, len(newer))
	for _, k := range newer {
		inNew[k] = true
	}
	// keys of older not in newer, grouped by the closest preceding shared key
	after := make(map[string][]string)
	var leading []string
	prev := ""
	for _, k := range older {
		if inNew[k] {
			prev = k
			continue
		}
		if prev == "" {
			leading = append(leading, k)
		} else {
			after[prev] = append(after[prev], k)
		}
	}

	out := make([]string, 0, len(newer)+len(older))
	out = append(out, leading...)
	for _, k := range newer {
		out = append(out, k)
		out = append(out, after[k]...)
	}
	return out
}
