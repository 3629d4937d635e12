package proposal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// RefFormat identifies one of the reference number layouts in use over the years.
type RefFormat int

const (
	// FormatCurrent is "{yy}-{seq:03}-{version:02}".
	FormatCurrent RefFormat = iota
	// FormatLegacy is "{username}-{seq:02}-{yyyy}".
	FormatLegacy
	// FormatLegacyVersioned is "{username}-{seq:02}-{version}-{yyyy}".
	FormatLegacyVersioned
)

var (
	currentRegex         = regexp.MustCompile(`^(\d{2})-(\d{3,})-(\d{2,})$`)
	legacyVersionedRegex = regexp.MustCompile(`^(.+)-(\d{2})-(\d+)-(\d{4})$`)
	legacyRegex          = regexp.MustCompile(`^(.+)-(\d{2})-(\d{4})$`)
)

// Reference is a parsed proposal reference number.
// Year has two digits for FormatCurrent and four for the legacy formats.
type Reference struct {
	Format   RefFormat
	Username string
	Year     int
	Seq      int
	Version  int
}

// NewReference returns the first version of a new chain in the current format.
func NewReference(year, seq int) Reference {
	return Reference{Format: FormatCurrent, Year: year % 100, Seq: seq, Version: 1}
}

// ParseReference recognises the current and both legacy formats.
// Legacy versioned references win over unversioned ones when both patterns match.
func ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	atoi := func(v string) int {
		n, _ := strconv.Atoi(v)
		return n
	}

	if m := currentRegex.FindStringSubmatch(s); m != nil {
		return Reference{Format: FormatCurrent, Year: atoi(m[1]), Seq: atoi(m[2]), Version: atoi(m[3])}, nil
	}
	if m := legacyVersionedRegex.FindStringSubmatch(s); m != nil {
		return Reference{
			Format:   FormatLegacyVersioned,
			Username: m[1],
			Seq:      atoi(m[2]),
			Version:  atoi(m[3]),
			Year:     atoi(m[4]),
		}, nil
	}
	if m := legacyRegex.FindStringSubmatch(s); m != nil {
		return Reference{Format: FormatLegacy, Username: m[1], Seq: atoi(m[2]), Version: 1, Year: atoi(m[3])}, nil
	}
	return Reference{}, errors.Wrapf(ErrMalformedReference, "%q", s)
}

func (r Reference) String() string {
	switch r.Format {
	case FormatLegacy:
		return fmt.Sprintf("%s-%02d-%04d", r.Username, r.Seq, r.Year)
	case FormatLegacyVersioned:
		return fmt.Sprintf("%s-%02d-%d-%04d", r.Username, r.Seq, r.Version, r.Year)
	default:
		return fmt.Sprintf("%02d-%03d-%02d", r.Year, r.Seq, r.Version)
	}
}

// ChainKey identifies the revision chain: every version of a proposal shares it.
func (r Reference) ChainKey() string {
	if r.Format == FormatCurrent {
		return fmt.Sprintf("%02d-%03d", r.Year, r.Seq)
	}
	return fmt.Sprintf("%s-%02d-%04d", r.Username, r.Seq, r.Year)
}

// WithVersion returns the reference of another version in the same chain.
// Unversioned legacy references gain a version segment.
func (r Reference) WithVersion(version int) Reference {
	if r.Format == FormatLegacy {
		r.Format = FormatLegacyVersioned
	}
	r.Version = version
	return r
}

// MaxSequence returns the highest sequence among current format references of the
// given year. Unparseable references are skipped.
func MaxSequence(refs []string, year int) int {
	var max int
	for _, s := range refs {
		r, err := ParseReference(s)
		if err != nil || r.Format != FormatCurrent || r.Year != year%100 {
			continue
		}
		if r.Seq > max {
			max = r.Seq
		}
	}
	return max
}

// MaxVersion returns the highest version among references sharing chainKey.
func MaxVersion(refs []string, chainKey string) int {
	var max int
	for _, s := range refs {
		r, err := ParseReference(s)
		if err != nil || r.ChainKey() != chainKey {
			continue
		}
		if r.Version > max {
			max = r.Version
		}
	}
	return max
}

// YearPrefix is the LIKE pattern matching current format references of a year.
func YearPrefix(year int) string {
	return fmt.Sprintf("%02d-%%", year%100)
}
