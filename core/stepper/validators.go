package stepper

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/proposal"
)

var (
	applicantSelfTag  = "applicantself"
	applicantSelfText = "you must be one of the applicants unless you are the supervisor"

	supervisorRequiredTag  = "supervisorrequired"
	supervisorRequiredText = "students must name a supervisor"

	supervisorSelfTag  = "supervisorself"
	supervisorSelfText = "you cannot supervise your own application"

	fundingDetailsTag  = "fundingdetails"
	fundingDetailsText = "describe the external funding"

	oneDesignTag  = "onedesign"
	oneDesignText = "choose at least one of intervention, observation or sessions"

	requiredTag = "required"
)

// InitValidators registers the step form rules. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(applicantsStructValidation, Applicants{})
	validate.RegisterStructValidation(researchersStructValidation, ResearchersForm{})
	validate.RegisterStructValidation(fundingStructValidation, FundingForm{})
	validate.RegisterStructValidation(wmoStructValidation, WmoForm{})
	validate.RegisterStructValidation(participantsStructValidation, ParticipantsForm{})
	validate.RegisterStructValidation(designStructValidation, DesignForm{})

	core.RegisterCustomTranslation(validate, translator, applicantSelfTag, applicantSelfText)
	core.RegisterCustomTranslation(validate, translator, supervisorRequiredTag, supervisorRequiredText)
	core.RegisterCustomTranslation(validate, translator, supervisorSelfTag, supervisorSelfText)
	core.RegisterCustomTranslation(validate, translator, fundingDetailsTag, fundingDetailsText)
	core.RegisterCustomTranslation(validate, translator, oneDesignTag, oneDesignText)
}

func applicantsStructValidation(sl validator.StructLevel) {
	a, ok := sl.Current().Interface().(Applicants)
	if !ok || a.isSecretary || (a.supervisorID != "" && a.userID == a.supervisorID) {
		return
	}
	for _, id := range a.ApplicantIDs {
		if id == a.userID {
			return
		}
	}
	sl.ReportError(a.ApplicantIDs, "applicants", "ApplicantIDs", applicantSelfTag, "")
}

func researchersStructValidation(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(ResearchersForm)
	if !ok {
		return
	}
	switch {
	case f.Relation.NeedsSupervisor() && f.SupervisorID == "":
		sl.ReportError(f.SupervisorID, "supervisor", "SupervisorID", supervisorRequiredTag, "")
	case f.SupervisorID != "" && f.SupervisorID == f.creatorID:
		sl.ReportError(f.SupervisorID, "supervisor", "SupervisorID", supervisorSelfTag, "")
	}
}

func fundingStructValidation(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(FundingForm)
	if !ok || f.FundingDetails != "" {
		return
	}
	for _, fund := range f.Funding {
		if fund == "nwo" || fund == "eu" || fund == "other" {
			sl.ReportError(f.FundingDetails, "funding_details", "FundingDetails", fundingDetailsTag, "")
			return
		}
	}
}

func wmoStructValidation(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(WmoForm)
	if !ok {
		return
	}
	if f.Metc != "" && f.Metc != proposal.Yes && f.IsMedical == "" {
		sl.ReportError(f.IsMedical, "is_medical", "IsMedical", requiredTag, "")
	}
}

func participantsStructValidation(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(ParticipantsForm)
	if !ok {
		return
	}
	if f.multiStudy && f.Name == "" {
		sl.ReportError(f.Name, "name", "Name", requiredTag, "")
	}
	if f.hasChildren && f.Necessity == "" {
		sl.ReportError(f.Necessity, "necessity", "Necessity", requiredTag, "")
	}
	if (f.Necessity == proposal.Yes || f.Necessity == proposal.Doubt) && f.NecessityReason == "" {
		sl.ReportError(f.NecessityReason, "necessity_reason", "NecessityReason", requiredTag, "")
	}
}

func designStructValidation(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(DesignForm)
	if !ok {
		return
	}
	if !f.HasIntervention && !f.HasObservation && !f.HasSessions {
		sl.ReportError(f.HasIntervention, "has_intervention", "HasIntervention", oneDesignTag, "")
	}
}
