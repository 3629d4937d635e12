package stepper

import (
	"fmt"
	"time"

	"github.com/fetc/proposals/core/proposal"
)

// formStep declares a step backed by a validated form.
type formStep struct {
	title string
	build func(s *Stepper, st *proposal.Study) interface{}
}

type formFunc func(s *Stepper) interface{}

// mustFormStep panics when the step is declared without a title or form.
func mustFormStep(title string, build func(s *Stepper, st *proposal.Study) interface{}) formStep {
	if title == "" {
		panic("stepper: form step declared without a title")
	}
	if build == nil {
		panic(fmt.Sprintf("stepper: form step %q declared without a form", title))
	}
	return formStep{title: title, build: build}
}

// item returns a new item for the step; st is nil for proposal level steps.
func (fs formStep) item(loc Location, st *proposal.Study) *Item {
	return &Item{
		Title:    fs.title,
		Location: loc,
		form:     func(s *Stepper) interface{} { return fs.build(s, st) },
	}
}

// Applicants is embedded by the forms that set who applies.
// The current user must be an applicant unless they supervise the proposal or are a secretary.
type Applicants struct {
	ApplicantIDs []string `json:"applicants" validate:"required,min=1,dive,required"`

	userID       string
	supervisorID string
	isSecretary  bool
}

func newApplicants(s *Stepper) Applicants {
	return Applicants{
		ApplicantIDs: s.proposal.ApplicantIDs,
		userID:       s.user.ID,
		supervisorID: s.proposal.SupervisorID,
		isSecretary:  s.user.IsSecretary(),
	}
}

type StartForm struct {
	Title       string `json:"title" validate:"required,max=200"`
	Institution string `json:"institution" validate:"required,oneof=humanities linguistics philosophy other"`
	Applicants
}

type ResearchersForm struct {
	Relation     proposal.Relation `json:"relation" validate:"required,oneof=staff phd master bachelor"`
	SupervisorID string            `json:"supervisor"`
	creatorID    string
}

type OtherResearchersForm struct {
	OtherStakeholders bool   `json:"other_stakeholders"`
	Stakeholders      string `json:"stakeholders" validate:"required_if=OtherStakeholders true,max=2000"`
}

type FundingForm struct {
	Funding        []string `json:"funding" validate:"required,min=1,dive,oneof=none university nwo eu other"`
	FundingDetails string   `json:"funding_details" validate:"max=2000"`
}

type GoalsForm struct {
	Summary string `json:"summary" validate:"required,max=4000"`
	Aims    string `json:"aims" validate:"required,max=4000"`
}

type WmoForm struct {
	Metc            proposal.YesNoDoubt `json:"metc" validate:"required,oneof=yes no doubt"`
	MetcDetails     string              `json:"metc_details" validate:"required_unless=Metc no,max=2000"`
	MetcInstitution string              `json:"metc_institution" validate:"required_if=Metc yes"`
	IsMedical       proposal.YesNoDoubt `json:"is_medical" validate:"omitempty,oneof=yes no doubt"`
}

type WmoApplicationForm struct {
	MetcApplication bool `json:"metc_application" validate:"required"`
	MetcDecision    bool `json:"metc_decision"`
}

type ParticipantsForm struct {
	Name            string              `json:"name" validate:"max=200"`
	AgeGroups       []proposal.AgeGroup `json:"age_groups" validate:"required,min=1,dive,oneof=children_4_11 adolescents_12_15 minors_16_17 adults"`
	LegalBasis      proposal.LegalBasis `json:"legal_basis" validate:"required,oneof=anonymous public_interest consent"`
	Necessity       proposal.YesNoDoubt `json:"necessity" validate:"omitempty,oneof=yes no doubt"`
	NecessityReason string              `json:"necessity_reason" validate:"max=2000"`

	multiStudy  bool
	hasChildren bool
}

type DesignForm struct {
	HasIntervention bool `json:"has_intervention"`
	HasObservation  bool `json:"has_observation"`
	HasSessions     bool `json:"has_sessions"`
}

type InterventionForm struct {
	Setting             []proposal.Setting      `json:"setting" validate:"required,min=1,dive,oneof=lab school home online other"`
	Period              string                  `json:"period" validate:"required,max=200"`
	Description         string                  `json:"description" validate:"required,max=4000"`
	Amount              int                     `json:"amount" validate:"gte=1"`
	HasControls         bool                    `json:"has_controls"`
	ControlsDescription string                  `json:"controls_description" validate:"required_if=HasControls true"`
	Registrations       []proposal.Registration `json:"registrations" validate:"dive,oneof=audio video physiology questionnaire other"`
}

type ObservationForm struct {
	Setting             []proposal.Setting      `json:"setting" validate:"required,min=1,dive,oneof=lab school home online other"`
	Details             string                  `json:"details" validate:"required,max=4000"`
	IsAnonymous         bool                    `json:"is_anonymous"`
	NeedsApproval       bool                    `json:"needs_approval"`
	ApprovalInstitution string                  `json:"approval_institution" validate:"required_if=NeedsApproval true"`
	Registrations       []proposal.Registration `json:"registrations" validate:"dive,oneof=audio video physiology questionnaire other"`
}

type TaskForm struct {
	Name          string                  `json:"name" validate:"required,max=200"`
	Duration      int                     `json:"duration" validate:"gte=1"`
	Description   string                  `json:"description" validate:"required,max=4000"`
	Registrations []proposal.Registration `json:"registrations" validate:"dive,oneof=audio video physiology questionnaire other"`
}

type SessionForm struct {
	Setting []proposal.Setting `json:"setting" validate:"required,min=1,dive,oneof=lab school home online other"`
	Repeats int                `json:"repeats" validate:"gte=1"`
	Leader  string             `json:"leader" validate:"required"`
	Tasks   []TaskForm         `json:"tasks" validate:"required,min=1,dive"`
}

type OverviewForm struct {
	Deception        proposal.YesNoDoubt `json:"deception" validate:"required,oneof=yes no doubt"`
	DeceptionDetails string              `json:"deception_details" validate:"required_unless=Deception no"`
	Negativity       proposal.YesNoDoubt `json:"negativity" validate:"required,oneof=yes no doubt"`
	NegativityDetail string              `json:"negativity_details" validate:"required_unless=Negativity no"`
	Risk             proposal.YesNoDoubt `json:"risk" validate:"required,oneof=yes no doubt"`
	RiskDetails      string              `json:"risk_details" validate:"required_unless=Risk no"`
}

type DataManagementForm struct {
	AvgUnderstood  bool   `json:"avg_understood" validate:"required"`
	PrivacyOfficer bool   `json:"privacy_officer"`
	Storage        string `json:"storage" validate:"required,max=2000"`
}

type TranslationForm struct {
	DutchSpeaking            bool                `json:"dutch_speaking"`
	TranslatedForms          proposal.YesNoDoubt `json:"translated_forms" validate:"required,oneof=yes no doubt"`
	TranslatedFormsLanguages string              `json:"translated_forms_languages" validate:"required_if=TranslatedForms yes"`
}

type SubmitForm struct {
	Comments   string     `json:"comments" validate:"max=4000"`
	Embargo    bool       `json:"embargo"`
	EmbargoEnd *time.Time `json:"embargo_end" validate:"required_if=Embargo true"`
}

type PreAssessmentForm struct {
	Title   string `json:"title" validate:"required,max=200"`
	Summary string `json:"summary" validate:"required,max=4000"`
	Applicants
}

type PreApprovedForm struct {
	Title                  string `json:"title" validate:"required,max=200"`
	PreApprovalInstitution string `json:"pre_approval_institution" validate:"required,max=200"`
	PreApprovalReference   string `json:"pre_approval_reference" validate:"required,max=100"`
	Applicants
}

func interventionOf(st *proposal.Study) proposal.Intervention {
	if st.Intervention == nil {
		return proposal.Intervention{}
	}
	return *st.Intervention
}

func observationOf(st *proposal.Study) proposal.Observation {
	if st.Observation == nil {
		return proposal.Observation{}
	}
	return *st.Observation
}

func sessionForm(ses proposal.Session) SessionForm {
	f := SessionForm{Setting: ses.Setting, Repeats: ses.Repeats, Leader: ses.Leader}
	for _, t := range ses.Tasks {
		f.Tasks = append(f.Tasks, TaskForm{
			Name:          t.Name,
			Duration:      t.Duration,
			Description:   t.Description,
			Registrations: t.Registrations,
		})
	}
	return f
}

func wmoOf(p *proposal.Proposal) proposal.Wmo {
	if p.Wmo == nil {
		return proposal.Wmo{}
	}
	return *p.Wmo
}

// Steps
var (
	startStep = mustFormStep("Start", func(s *Stepper, _ *proposal.Study) interface{} {
		return StartForm{Title: s.proposal.Title, Institution: s.proposal.Institution, Applicants: newApplicants(s)}
	})
	researchersStep = mustFormStep("Researchers", func(s *Stepper, _ *proposal.Study) interface{} {
		return ResearchersForm{
			Relation:     s.proposal.Relation,
			SupervisorID: s.proposal.SupervisorID,
			creatorID:    s.proposal.CreatedByID,
		}
	})
	otherResearchersStep = mustFormStep("Other researchers", func(s *Stepper, _ *proposal.Study) interface{} {
		return OtherResearchersForm{OtherStakeholders: s.proposal.OtherStakeholders, Stakeholders: s.proposal.Stakeholders}
	})
	fundingStep = mustFormStep("Funding", func(s *Stepper, _ *proposal.Study) interface{} {
		return FundingForm{Funding: s.proposal.Funding, FundingDetails: s.proposal.FundingDetails}
	})
	goalsStep = mustFormStep("Research goals", func(s *Stepper, _ *proposal.Study) interface{} {
		return GoalsForm{Summary: s.proposal.Summary, Aims: s.proposal.Aims}
	})
	wmoStep = mustFormStep("Ethical assessment", func(s *Stepper, _ *proposal.Study) interface{} {
		w := wmoOf(s.proposal)
		return WmoForm{Metc: w.Metc, MetcDetails: w.MetcDetails, MetcInstitution: w.MetcInstitution, IsMedical: w.IsMedical}
	})
	wmoApplicationStep = mustFormStep("Application to METC", func(s *Stepper, _ *proposal.Study) interface{} {
		w := wmoOf(s.proposal)
		return WmoApplicationForm{MetcApplication: w.MetcApplication, MetcDecision: w.MetcDecision}
	})
	participantsStep = mustFormStep("Participants", func(s *Stepper, st *proposal.Study) interface{} {
		return ParticipantsForm{
			Name:            st.Name,
			AgeGroups:       st.AgeGroups,
			LegalBasis:      st.LegalBasis,
			Necessity:       st.Necessity,
			NecessityReason: st.NecessityReason,
			multiStudy:      len(s.proposal.Studies) > 1,
			hasChildren:     st.HasChildren(),
		}
	})
	designStep = mustFormStep("Design", func(_ *Stepper, st *proposal.Study) interface{} {
		return DesignForm{HasIntervention: st.HasIntervention, HasObservation: st.HasObservation, HasSessions: st.HasSessions}
	})
	interventionStep = mustFormStep("Intervention", func(_ *Stepper, st *proposal.Study) interface{} {
		iv := interventionOf(st)
		return InterventionForm{
			Setting:             iv.Setting,
			Period:              iv.Period,
			Description:         iv.Description,
			Amount:              iv.Amount,
			HasControls:         iv.HasControls,
			ControlsDescription: iv.ControlsDescription,
			Registrations:       iv.Registrations,
		}
	})
	observationStep = mustFormStep("Observation", func(_ *Stepper, st *proposal.Study) interface{} {
		ob := observationOf(st)
		return ObservationForm{
			Setting:             ob.Setting,
			Details:             ob.Details,
			IsAnonymous:         ob.IsAnonymous,
			NeedsApproval:       ob.NeedsApproval,
			ApprovalInstitution: ob.ApprovalInstitution,
			Registrations:       ob.Registrations,
		}
	})
	overviewStep = mustFormStep("Trajectory overview", func(_ *Stepper, st *proposal.Study) interface{} {
		return OverviewForm{
			Deception:        st.Deception,
			DeceptionDetails: st.DeceptionDetails,
			Negativity:       st.Negativity,
			NegativityDetail: st.NegativityDetail,
			Risk:             st.Risk,
			RiskDetails:      st.RiskDetails,
		}
	})
	dataManagementStep = mustFormStep("Data management", func(s *Stepper, _ *proposal.Study) interface{} {
		dm := s.proposal.DataManagement
		return DataManagementForm{AvgUnderstood: dm.AvgUnderstood, PrivacyOfficer: dm.PrivacyOfficer, Storage: dm.Storage}
	})
	translationStep = mustFormStep("Translation", func(s *Stepper, _ *proposal.Study) interface{} {
		tr := s.proposal.Translation
		return TranslationForm{
			DutchSpeaking:            tr.DutchSpeaking,
			TranslatedForms:          tr.TranslatedForms,
			TranslatedFormsLanguages: tr.TranslatedFormsLanguages,
		}
	})
	submitStep = mustFormStep("Submit", func(s *Stepper, _ *proposal.Study) interface{} {
		return SubmitForm{Comments: s.proposal.Comments, Embargo: s.proposal.Embargo, EmbargoEnd: s.proposal.EmbargoEnd}
	})
	preAssessmentStep = mustFormStep("Pre-assessment", func(s *Stepper, _ *proposal.Study) interface{} {
		return PreAssessmentForm{Title: s.proposal.Title, Summary: s.proposal.Summary, Applicants: newApplicants(s)}
	})
	preApprovedStep = mustFormStep("Pre-approved application", func(s *Stepper, _ *proposal.Study) interface{} {
		return PreApprovedForm{
			Title:                  s.proposal.Title,
			PreApprovalInstitution: s.proposal.PreApprovalInstitution,
			PreApprovalReference:   s.proposal.PreApprovalReference,
			Applicants:             newApplicants(s),
		}
	})
)
