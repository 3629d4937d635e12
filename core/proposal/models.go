package proposal

import (
	"time"

	"github.com/fetc/proposals/core"
)

type Status string

const (
	StatusDraft                 Status = "draft"
	StatusSubmittedToSupervisor Status = "submitted_to_supervisor"
	StatusSubmitted             Status = "submitted"
	StatusDecided               Status = "decided"
)

type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeApproved Outcome = "approved"
	OutcomeRevision Outcome = "revision"
	OutcomeRejected Outcome = "rejected"
)

var AllOutcomes = []string{string(OutcomeApproved), string(OutcomeRevision), string(OutcomeRejected)}

type YesNoDoubt string

const (
	Yes   YesNoDoubt = "yes"
	No    YesNoDoubt = "no"
	Doubt YesNoDoubt = "doubt"
)

type LegalBasis string

const (
	LegalBasisAnonymous      LegalBasis = "anonymous"
	LegalBasisPublicInterest LegalBasis = "public_interest"
	LegalBasisConsent        LegalBasis = "consent"
)

type AgeGroup string

const (
	AgeGroupChildren    AgeGroup = "children_4_11"
	AgeGroupAdolescents AgeGroup = "adolescents_12_15"
	AgeGroupMinors      AgeGroup = "minors_16_17"
	AgeGroupAdults      AgeGroup = "adults"
)

type Setting string

const (
	SettingLab    Setting = "lab"
	SettingSchool Setting = "school"
	SettingHome   Setting = "home"
	SettingOnline Setting = "online"
	SettingOther  Setting = "other"
)

type Registration string

const (
	RegistrationAudio       Registration = "audio"
	RegistrationVideo       Registration = "video"
	RegistrationPhysiology  Registration = "physiology"
	RegistrationQuestionary Registration = "questionnaire"
	RegistrationOther       Registration = "other"
)

// Relation of the creator to the institution.
type Relation string

const (
	RelationStaff    Relation = "staff"
	RelationPhD      Relation = "phd"
	RelationMaster   Relation = "master"
	RelationBachelor Relation = "bachelor"
)

// NeedsSupervisor reports whether researchers with this relation must name a supervisor.
func (r Relation) NeedsSupervisor() bool {
	return r == RelationMaster || r == RelationBachelor
}

// WmoStatus is derived from the WMO answers.
type WmoStatus string

const (
	WmoStatusNoWmo   WmoStatus = "no_wmo"
	WmoStatusWaiting WmoStatus = "waiting"
	WmoStatusJudged  WmoStatus = "judged"
)

// Wmo holds the medical research act triage answers.
type Wmo struct {
	Metc            YesNoDoubt `json:"metc"`
	MetcDetails     string     `json:"metc_details"`
	MetcInstitution string     `json:"metc_institution"`
	IsMedical       YesNoDoubt `json:"is_medical"`
	MetcApplication bool       `json:"metc_application"`
	MetcDecision    bool       `json:"metc_decision"`
}

// NeedsMetc reports whether the proposal must follow the METC route.
func (w *Wmo) NeedsMetc() bool {
	if w == nil {
		return false
	}
	return w.Metc == Yes || (w.Metc != "" && w.IsMedical == Yes)
}

func (w *Wmo) Status() WmoStatus {
	switch {
	case !w.NeedsMetc():
		return WmoStatusNoWmo
	case w.MetcDecision:
		return WmoStatusJudged
	default:
		return WmoStatusWaiting
	}
}

type Intervention struct {
	Setting             []Setting      `json:"setting"`
	Period              string         `json:"period"`
	Description         string         `json:"description"`
	Amount              int            `json:"amount"`
	HasControls         bool           `json:"has_controls"`
	ControlsDescription string         `json:"controls_description"`
	Registrations       []Registration `json:"registrations"`
}

type Observation struct {
	Setting             []Setting      `json:"setting"`
	Details             string         `json:"details"`
	IsAnonymous         bool           `json:"is_anonymous"`
	NeedsApproval       bool           `json:"needs_approval"`
	ApprovalInstitution string         `json:"approval_institution"`
	Registrations       []Registration `json:"registrations"`
}

type Task struct {
	ID            string         `json:"id"`
	SessionID     string         `json:"session_id"`
	Order         int            `json:"order"`
	Name          string         `json:"name"`
	Duration      int            `json:"duration"` // minutes
	Description   string         `json:"description"`
	Registrations []Registration `json:"registrations"`
}

type Session struct {
	ID       string    `json:"id"`
	StudyID  string    `json:"study_id"`
	Order    int       `json:"order"`
	Setting  []Setting `json:"setting"`
	Repeats  int       `json:"repeats"`
	Leader   string    `json:"leader"`
	Tasks    []Task    `json:"tasks"`
	Comments string    `json:"comments"`
}

// Study is one research trajectory of a proposal.
type Study struct {
	ID         string     `json:"id"`
	ProposalID string     `json:"proposal_id"`
	Order      int        `json:"order"`
	Name       string     `json:"name"`
	AgeGroups  []AgeGroup `json:"age_groups"`
	LegalBasis LegalBasis `json:"legal_basis"`
	Necessity  YesNoDoubt `json:"necessity"`

	NecessityReason string `json:"necessity_reason"`

	HasIntervention bool          `json:"has_intervention"`
	HasObservation  bool          `json:"has_observation"`
	HasSessions     bool          `json:"has_sessions"`
	Intervention    *Intervention `json:"intervention,omitempty"`
	Observation     *Observation  `json:"observation,omitempty"`
	Sessions        []Session     `json:"sessions,omitempty"`

	Deception        YesNoDoubt `json:"deception"`
	DeceptionDetails string     `json:"deception_details"`
	Negativity       YesNoDoubt `json:"negativity"`
	NegativityDetail string     `json:"negativity_details"`
	Risk             YesNoDoubt `json:"risk"`
	RiskDetails      string     `json:"risk_details"`
}

func (st Study) HasAdults() bool {
	for _, ag := range st.AgeGroups {
		if ag == AgeGroupAdults {
			return true
		}
	}
	return false
}

func (st Study) HasChildren() bool {
	for _, ag := range st.AgeGroups {
		if ag != AgeGroupAdults {
			return true
		}
	}
	return false
}

// Settings returns every setting used by the study's sub-designs, deduplicated.
func (st Study) Settings() []Setting {
	seen := make(map[Setting]bool)
	var out []Setting
	add := func(ss []Setting) {
		for _, s := range ss {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	if st.HasIntervention && st.Intervention != nil {
		add(st.Intervention.Setting)
	}
	if st.HasObservation && st.Observation != nil {
		add(st.Observation.Setting)
	}
	if st.HasSessions {
		for _, ses := range st.Sessions {
			add(ses.Setting)
		}
	}
	return out
}

func (st Study) AtSchool() bool {
	for _, s := range st.Settings() {
		if s == SettingSchool {
			return true
		}
	}
	return false
}

// HasRecordings reports whether any sub-design records audio or video.
func (st Study) HasRecordings() bool {
	recorded := func(regs []Registration) bool {
		for _, r := range regs {
			if r == RegistrationAudio || r == RegistrationVideo {
				return true
			}
		}
		return false
	}
	if st.HasIntervention && st.Intervention != nil && recorded(st.Intervention.Registrations) {
		return true
	}
	if st.HasObservation && st.Observation != nil && recorded(st.Observation.Registrations) {
		return true
	}
	if st.HasSessions {
		for _, ses := range st.Sessions {
			for _, t := range ses.Tasks {
				if recorded(t.Registrations) {
					return true
				}
			}
		}
	}
	return false
}

// Session returns the study's session with the given id.
func (st Study) Session(id string) (Session, bool) {
	for _, ses := range st.Sessions {
		if ses.ID == id {
			return ses, true
		}
	}
	return Session{}, false
}

type DataManagement struct {
	AvgUnderstood  bool   `json:"avg_understood"`
	PrivacyOfficer bool   `json:"privacy_officer"`
	Storage        string `json:"storage"`
}

type Translation struct {
	DutchSpeaking            bool       `json:"dutch_speaking"`
	TranslatedForms          YesNoDoubt `json:"translated_forms"`
	TranslatedFormsLanguages string     `json:"translated_forms_languages"`
}

// Proposal is a single ethics review application, versioned through its parent chain.
type Proposal struct {
	ID              string    `json:"id"`
	Reference       string    `json:"reference"`
	Title           string    `json:"title"`
	Institution     string    `json:"institution"`
	Status          Status    `json:"status"`
	Outcome         Outcome   `json:"outcome"`
	IsPreAssessment bool      `json:"is_pre_assessment"`
	IsPreApproved   bool      `json:"is_pre_approved"`
	IsPractice      bool      `json:"is_practice"`
	IsRevision      bool      `json:"is_revision"`
	ParentID        string    `json:"parent_id"`
	CreatedByID     string    `json:"created_by_id"`
	ApplicantIDs    []string  `json:"applicant_ids"`
	SupervisorID    string    `json:"supervisor_id"`
	Relation        Relation  `json:"relation"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC

	OtherStakeholders bool     `json:"other_stakeholders"`
	Stakeholders      string   `json:"stakeholders"`
	Funding           []string `json:"funding"`
	FundingDetails    string   `json:"funding_details"`
	Summary           string   `json:"summary"`
	Aims              string   `json:"aims"`

	PreApprovalInstitution string `json:"pre_approval_institution"`
	PreApprovalReference   string `json:"pre_approval_reference"`

	Wmo            *Wmo           `json:"wmo,omitempty"`
	Studies        []Study        `json:"studies"`
	DataManagement DataManagement `json:"data_management"`
	Translation    Translation    `json:"translation"`

	Comments           string     `json:"comments"`
	Embargo            bool       `json:"embargo"`
	EmbargoEnd         *time.Time `json:"embargo_end"`
	SupervisorComments string     `json:"supervisor_comments"`
	DecisionComments   string     `json:"decision_comments"`
	// PDFKey locates the snapshot stored at submission.
	PDFKey string `json:"-"`

	DateSubmittedSupervisor *time.Time `json:"date_submitted_supervisor"`
	DateSubmitted           *time.Time `json:"date_submitted"`
	DateDecided             *time.Time `json:"date_decided"`
}

func (p Proposal) IsApplicant(userID string) bool {
	for _, id := range p.ApplicantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CanEdit reports whether userID may change the proposal data.
func (p Proposal) CanEdit(userID string) bool {
	return p.Status == StatusDraft && (p.IsApplicant(userID) || p.SupervisorID == userID)
}

func (p Proposal) Study(id string) (Study, bool) {
	for _, st := range p.Studies {
		if st.ID == id {
			return st, true
		}
	}
	return Study{}, false
}

// SessionOwner returns the id of the study owning the session.
func (p Proposal) SessionOwner(sessionID string) (string, bool) {
	for _, st := range p.Studies {
		if _, ok := st.Session(sessionID); ok {
			return st.ID, true
		}
	}
	return "", false
}

// TaskOwner returns the id of the study owning the task, through its session.
func (p Proposal) TaskOwner(taskID string) (string, bool) {
	for _, st := range p.Studies {
		for _, ses := range st.Sessions {
			for _, t := range ses.Tasks {
				if t.ID == taskID {
					return st.ID, true
				}
			}
		}
	}
	return "", false
}

// AssignIDs gives an id to the proposal and to every study, session and task lacking
// one, and links children to their parents.
func (p *Proposal) AssignIDs(newID func() string) {
	if p.ID == "" {
		p.ID = newID()
	}
	for i := range p.Studies {
		st := &p.Studies[i]
		if st.ID == "" {
			st.ID = newID()
		}
		st.ProposalID = p.ID
		for j := range st.Sessions {
			ses := &st.Sessions[j]
			if ses.ID == "" {
				ses.ID = newID()
			}
			ses.StudyID = st.ID
			for k := range ses.Tasks {
				t := &ses.Tasks[k]
				if t.ID == "" {
					t.ID = newID()
				}
				t.SessionID = ses.ID
			}
		}
	}
}

// NewProposal contains information needed to create a new Proposal.
type NewProposal struct {
	Title           string `json:"title" validate:"required,max=200"`
	IsPreAssessment bool   `json:"is_pre_assessment"`
	IsPreApproved   bool   `json:"is_pre_approved" validate:"excluded_with=IsPreAssessment"`
	IsPractice      bool   `json:"is_practice"`
	StudyCount      int    `json:"study_count" validate:"omitempty,min=1,max=10"`
}

// DefaultOrdering lists the newest proposals first.
var DefaultOrdering = []core.DBOrdering{{Field: "created_at"}}

// Filter narrows proposal listings. Zero fields are ignored.
type Filter struct {
	UserID   string
	Statuses []Status
	Search   string
	Ordering []core.DBOrdering
}
