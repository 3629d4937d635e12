package document

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
)

type stringer struct{}

func (stringer) String() string { return "stringer" }

func TestFormatValue(t *testing.T) {
	tr, fa := true, false
	day := time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "text", want: "text"},
		{name: "true", in: true, want: "yes"},
		{name: "false", in: false, want: "no"},
		{name: "bool ptr", in: &tr, want: "yes"},
		{name: "bool ptr false", in: &fa, want: "no"},
		{name: "nil bool ptr", in: (*bool)(nil), want: ""},
		{name: "int", in: 12, want: "12"},
		{name: "choice", in: Choice{Value: "consent", Description: "informed consent"}, want: "informed consent"},
		{name: "choice without description", in: Choice{Value: "x"}, want: "x"},
		{name: "choices", in: []Choice{{Value: "a", Description: "A"}, {Value: "b"}}, want: "• A\n• b"},
		{name: "list", in: []string{"one", "two"}, want: "• one\n• two"},
		{name: "empty list", in: []string{}, want: ""},
		{name: "file", in: FileRef{Name: "f.pdf", URL: "/dl/1"}, want: "f.pdf (/dl/1)"},
		{name: "file without url", in: FileRef{Name: "f.pdf"}, want: "f.pdf"},
		{name: "missing file", in: (*FileRef)(nil), want: "not provided"},
		{name: "func", in: func() interface{} { return true }, want: "yes"},
		{name: "time", in: day, want: "2024-03-01"},
		{name: "time ptr", in: &day, want: "2024-03-01"},
		{name: "nil time ptr", in: (*time.Time)(nil), want: ""},
		{name: "stringer", in: stringer{}, want: "stringer"},
		{name: "other", in: 1.5, want: "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func testProposal() proposal.Proposal {
	return proposal.Proposal{
		ID:           "p1",
		Reference:    "24-001-01",
		Title:        "Reading in the classroom",
		Institution:  "linguistics",
		ApplicantIDs: []string{"u1"},
		Relation:     proposal.RelationStaff,
		Funding:      []string{"nwo"},
		Summary:      "summary",
		Aims:         "aims",
		Wmo:          &proposal.Wmo{Metc: proposal.No, IsMedical: proposal.No},
		Studies: []proposal.Study{{
			ID:             "s1",
			Order:          1,
			AgeGroups:      []proposal.AgeGroup{proposal.AgeGroupAdults},
			LegalBasis:     proposal.LegalBasisConsent,
			HasObservation: true,
			Observation: &proposal.Observation{
				Setting:       []proposal.Setting{proposal.SettingLab},
				Registrations: []proposal.Registration{proposal.RegistrationQuestionary},
			},
			Deception:  proposal.No,
			Negativity: proposal.No,
			Risk:       proposal.No,
		}},
	}
}

func keys(secs []Section) []string {
	out := make([]string, 0, len(secs))
	for _, s := range secs {
		out = append(out, s.Key())
	}
	return out
}

func field(s Section, name string) (Field, bool) {
	for _, f := range s.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func TestBuild_sections(t *testing.T) {
	p := testProposal()

	secs := Build(&p, nil, Options{Names: map[string]string{"u1": "A. Jansen"}})

	assert.Equal(t, []string{
		"general", "researchers", "goals", "wmo", "trajectories",
		"study-1-participants", "study-1-design", "study-1-observation", "study-1-overview",
		"data_management", "attachments", "translation", "submit",
	}, keys(secs))

	applicants, ok := field(secs[0], "applicants")
	require.True(t, ok)
	assert.Equal(t, "• A. Jansen", FormatValue(applicants.Value))
	_, ok = field(secs[0], "supervisor")
	assert.False(t, ok, "supervisor shown without one")
}

func TestBuild_prunesInapplicableFields(t *testing.T) {
	tests := []struct {
		name    string
		wmo     proposal.Wmo
		present []string
		absent  []string
	}{
		{
			name:    "no metc",
			wmo:     proposal.Wmo{Metc: proposal.No, IsMedical: proposal.No},
			present: []string{"metc", "is_medical"},
			absent:  []string{"metc_details", "metc_institution", "metc_application"},
		},
		{
			name:    "metc",
			wmo:     proposal.Wmo{Metc: proposal.Yes, MetcInstitution: "UMC", MetcDecision: true},
			present: []string{"metc", "metc_details", "metc_institution", "metc_application", "metc_decision"},
			absent:  []string{"is_medical"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProposal()
			p.Wmo = &tt.wmo
			sec := wmoSection(&p)
			for _, name := range tt.present {
				if _, ok := field(sec, name); !ok {
					t.Errorf("field %q missing", name)
				}
			}
			for _, name := range tt.absent {
				if _, ok := field(sec, name); ok {
					t.Errorf("field %q present", name)
				}
			}
		})
	}
}

func TestBuild_variants(t *testing.T) {
	p := testProposal()
	p.IsPreApproved = true
	assert.Equal(t, []string{"general", "pre_approval", "attachments", "submit"}, keys(Build(&p, nil, Options{})))

	p = testProposal()
	p.IsPreAssessment = true
	assert.Equal(t, []string{"general", "wmo", "attachments", "submit"}, keys(Build(&p, nil, Options{})))
}

func TestBuild_attachments(t *testing.T) {
	p := testProposal()
	owner := attachment.StudyOwner("s1")
	pool := attachment.NewPool([]attachment.Attachment{{
		ID: "a1", Kind: attachment.ConsentFormAdults, AttachedTo: []attachment.Owner{owner},
		Upload: attachment.Upload{Name: "consent.pdf"},
	}})
	filled := attachment.NewSlot(pool, owner, attachment.ConsentFormAdults)
	filled.MatchAndSet(map[string]bool{})
	empty := attachment.NewSlot(pool, owner, attachment.InformationLetterConsent)
	extra := attachment.NewSlot(pool, owner, attachment.OtherStudyAttachment, attachment.Extra)

	sec := attachmentsSection(&p, []*attachment.Slot{empty, filled, extra}, Options{
		FileURL: func(s *attachment.Slot) string { return "/files/" + s.Attachment.ID },
	})

	rows := MakeRows(sec)
	require.Len(t, rows, 2)
	assert.Equal(t, "not provided", rows[0].Value)
	assert.Equal(t, "consent.pdf (/files/a1)", rows[1].Value)
	assert.Contains(t, rows[1].Label, "trajectory 1")
	assert.True(t, strings.HasPrefix(rows[1].Name, "study-1-"))
}

func TestDiff(t *testing.T) {
	older := testProposal()
	newer := testProposal()
	newer.ID = "p2"
	newer.Studies[0].ID = "s2"
	newer.Title = "Reading at home"
	newer.Aims = "first\nsecond"
	older.Aims = "first\nthird"
	newer.Studies[0].HasObservation = false
	newer.Studies[0].HasIntervention = true
	newer.Studies[0].Intervention = &proposal.Intervention{Period: "spring"}

	diff := Diff(Build(&older, nil, Options{}), Build(&newer, nil, Options{}))

	byKey := make(map[string]DiffSection)
	var order []string
	for _, d := range diff {
		byKey[d.Key] = d
		order = append(order, d.Key)
	}

	assert.Equal(t, []string{
		"general", "researchers", "goals", "wmo", "trajectories",
		"study-1-participants", "study-1-design", "study-1-observation", "study-1-intervention", "study-1-overview",
		"data_management", "attachments", "translation", "submit",
	}, order)
	assert.Equal(t, warnAdded, byKey["study-1-intervention"].Warning)
	assert.Equal(t, warnRemoved, byKey["study-1-observation"].Warning)
	assert.False(t, byKey["study-1-participants"].Changed(), "study ids must not affect pairing")
	assert.True(t, byKey["study-1-design"].Changed())

	var title, aims DiffRow
	for _, r := range byKey["general"].Rows {
		if r.Name == "title" {
			title = r
		}
	}
	for _, r := range byKey["goals"].Rows {
		if r.Name == "aims" {
			aims = r
		}
	}
	assert.True(t, title.Changed)
	assert.Empty(t, title.Unified)
	assert.Equal(t, "Reading at home", title.New)
	require.True(t, aims.Changed)
	assert.Contains(t, aims.Unified, "-third")
	assert.Contains(t, aims.Unified, "+second")
}

func TestMergeKeys(t *testing.T) {
	tests := []struct {
		name         string
		older, newer []string
		want         []string
	}{
		{name: "same", older: []string{"a", "b"}, newer: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "removed middle", older: []string{"a", "b", "c"}, newer: []string{"a", "c"}, want: []string{"a", "b", "c"}},
		{name: "removed first", older: []string{"x", "a"}, newer: []string{"a"}, want: []string{"x", "a"}},
		{name: "added", older: []string{"a"}, newer: []string{"a", "n"}, want: []string{"a", "n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeKeys(tt.older, tt.newer))
		})
	}
}

func TestRenderPDF(t *testing.T) {
	p := testProposal()
	p.Aims = "Aims with an accent: é"

	var buf bytes.Buffer
	err := RenderPDF(&buf, "24-001-01 Reading in the classroom", Build(&p, nil, Options{}), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
