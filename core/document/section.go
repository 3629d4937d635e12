// Package document turns a proposal into ordered sections of labelled values,
// used both for the PDF snapshot taken at submission and for comparing revisions.
package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	yes         = "yes"
	no          = "no"
	notProvided = "not provided"
	bullet      = "• "
)

// Field is one labelled value of a section.
type Field struct {
	Name  string
	Label string
	Value interface{}
}

// Row is a formatted field.
type Row struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type Section interface {
	// Key pairs sections of two versions when diffing.
	Key() string
	Title() string
	Fields() []Field
}

// Choice is a stored value with its human description.
type Choice struct {
	Value       string
	Description string
}

// FileRef points at an uploaded document.
type FileRef struct {
	Name string
	URL  string
}

type section struct {
	key    string
	title  string
	fields []Field
}

func (s section) Key() string     { return s.key }
func (s section) Title() string   { return s.title }
func (s section) Fields() []Field { return s.fields }

func (s *section) add(name, label string, value interface{}) {
	s.fields = append(s.fields, Field{Name: name, Label: label, Value: value})
}

// addIf adds the field only when it applies to the current answers.
func (s *section) addIf(cond bool, name, label string, value interface{}) {
	if cond {
		s.add(name, label, value)
	}
}

// MakeRows formats the section's fields in order.
func MakeRows(s Section) []Row {
	fields := s.Fields()
	rows := make([]Row, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, Row{Name: f.Name, Label: f.Label, Value: FormatValue(f.Value)})
	}
	return rows
}

// FormatValue renders a field value for display.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return yes
		}
		return no
	case *bool:
		if val == nil {
			return ""
		}
		return FormatValue(*val)
	case int:
		return strconv.Itoa(val)
	case Choice:
		if val.Description != "" {
			return val.Description
		}
		return val.Value
	case []Choice:
		items := make([]string, 0, len(val))
		for _, c := range val {
			items = append(items, FormatValue(c))
		}
		return bulleted(items)
	case []string:
		return bulleted(val)
	case FileRef:
		if val.Name == "" {
			return notProvided
		}
		if val.URL == "" {
			return val.Name
		}
		return val.Name + " (" + val.URL + ")"
	case *FileRef:
		if val == nil {
			return notProvided
		}
		return FormatValue(*val)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02")
	case *time.Time:
		if val == nil {
			return ""
		}
		return FormatValue(*val)
	case func() interface{}:
		return FormatValue(val())
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func bulleted(items []string) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, bullet+it)
	}
	return strings.Join(lines, "\n")
}
