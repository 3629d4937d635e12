package document

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
)

var (
	yesNoDoubtLabels = map[string]string{
		string(proposal.Yes):   "yes",
		string(proposal.No):    "no",
		string(proposal.Doubt): "doubt",
	}
	relationLabels = map[string]string{
		string(proposal.RelationStaff):    "staff member",
		string(proposal.RelationPhD):      "PhD candidate",
		string(proposal.RelationMaster):   "master student",
		string(proposal.RelationBachelor): "bachelor student",
	}
	institutionLabels = map[string]string{
		"humanities":  "Faculty of Humanities",
		"linguistics": "Institute for Linguistics",
		"philosophy":  "Department of Philosophy",
		"other":       "other",
	}
	fundingLabels = map[string]string{
		"none":       "no external funding",
		"university": "university funds",
		"nwo":        "NWO",
		"eu":         "EU",
		"other":      "other",
	}
	legalBasisLabels = map[string]string{
		string(proposal.LegalBasisAnonymous):      "anonymous data",
		string(proposal.LegalBasisPublicInterest): "public interest",
		string(proposal.LegalBasisConsent):        "informed consent",
	}
	ageGroupLabels = map[string]string{
		string(proposal.AgeGroupChildren):    "children (4-11)",
		string(proposal.AgeGroupAdolescents): "adolescents (12-15)",
		string(proposal.AgeGroupMinors):      "minors (16-17)",
		string(proposal.AgeGroupAdults):      "adults (18+)",
	}
	settingLabels = map[string]string{
		string(proposal.SettingLab):    "laboratory",
		string(proposal.SettingSchool): "school",
		string(proposal.SettingHome):   "at home",
		string(proposal.SettingOnline): "online",
		string(proposal.SettingOther):  "other",
	}
	registrationLabels = map[string]string{
		string(proposal.RegistrationAudio):       "audio recording",
		string(proposal.RegistrationVideo):       "video recording",
		string(proposal.RegistrationPhysiology):  "physiological measurement",
		string(proposal.RegistrationQuestionary): "questionnaire",
		string(proposal.RegistrationOther):       "other",
	}
)

func choice(value string, labels map[string]string) Choice {
	return Choice{Value: value, Description: labels[value]}
}

func choices[T ~string](values []T, labels map[string]string) []Choice {
	return lo.Map(values, func(v T, _ int) Choice { return choice(string(v), labels) })
}

// Options supplies what the proposal alone cannot tell.
type Options struct {
	// Names maps user ids to display names. Unknown ids are shown as is.
	Names map[string]string
	// Filename gives the download name of a filled slot. Defaults to the upload name.
	Filename func(*attachment.Slot) string
	// FileURL gives the link of a filled slot, if any.
	FileURL func(*attachment.Slot) string
}

func (o Options) name(userID string) string {
	if n, ok := o.Names[userID]; ok && n != "" {
		return n
	}
	return userID
}

// Build returns the sections of p in display order.
func Build(p *proposal.Proposal, slots []*attachment.Slot, opts Options) []Section {
	secs := []Section{generalSection(p, opts)}
	switch {
	case p.IsPreApproved:
		secs = append(secs, preApprovedSection(p))
	case p.IsPreAssessment:
		secs = append(secs, wmoSection(p))
	default:
		secs = append(secs, researchersSection(p), goalsSection(p), wmoSection(p), trajectoriesSection(p))
		for i := range p.Studies {
			secs = append(secs, studySections(p, &p.Studies[i])...)
		}
		secs = append(secs, dataManagementSection(p))
	}
	secs = append(secs, attachmentsSection(p, slots, opts))
	if !p.IsPreApproved && !p.IsPreAssessment {
		secs = append(secs, translationSection(p))
	}
	secs = append(secs, submitSection(p))
	return secs
}

func generalSection(p *proposal.Proposal, opts Options) section {
	s := section{key: "general", title: "General information"}
	s.add("reference", "Reference number", p.Reference)
	s.add("title", "Title", p.Title)
	s.add("institution", "Institution", choice(p.Institution, institutionLabels))
	s.addIf(p.Relation != "", "relation", "Relation to the institution", choice(string(p.Relation), relationLabels))
	s.add("applicants", "Applicants", lo.Map(p.ApplicantIDs, func(id string, _ int) string { return opts.name(id) }))
	s.addIf(p.SupervisorID != "", "supervisor", "Supervisor", opts.name(p.SupervisorID))
	s.addIf(p.IsRevision, "is_revision", "Revision of an earlier application", true)
	s.addIf(p.IsPractice, "is_practice", "Practice application", true)
	s.addIf(p.DateSubmitted != nil, "date_submitted", "Date submitted", p.DateSubmitted)
	return s
}

func researchersSection(p *proposal.Proposal) section {
	s := section{key: "researchers", title: "Researchers"}
	s.add("other_stakeholders", "Other researchers or stakeholders involved", p.OtherStakeholders)
	s.addIf(p.OtherStakeholders, "stakeholders", "Stakeholders", p.Stakeholders)
	return s
}

func goalsSection(p *proposal.Proposal) section {
	s := section{key: "goals", title: "Funding and research goals"}
	s.add("funding", "Funding", lo.Map(p.Funding, func(f string, _ int) Choice { return choice(f, fundingLabels) }))
	s.addIf(lo.Contains(p.Funding, "other") || lo.Contains(p.Funding, "eu"), "funding_details", "Funding details", p.FundingDetails)
	s.add("summary", "Summary", p.Summary)
	s.add("aims", "Research aims", p.Aims)
	return s
}

func preApprovedSection(p *proposal.Proposal) section {
	s := section{key: "pre_approval", title: "Pre-approval"}
	s.add("pre_approval_institution", "Approving institution", p.PreApprovalInstitution)
	s.add("pre_approval_reference", "Approval reference", p.PreApprovalReference)
	s.add("summary", "Summary", p.Summary)
	return s
}

func wmoSection(p *proposal.Proposal) section {
	s := section{key: "wmo", title: "Ethical assessment"}
	w := p.Wmo
	if w == nil {
		w = &proposal.Wmo{}
	}
	s.add("metc", "Will the research be assessed by a METC?", choice(string(w.Metc), yesNoDoubtLabels))
	s.addIf(w.Metc == proposal.Yes || w.Metc == proposal.Doubt, "metc_details", "Details", w.MetcDetails)
	s.addIf(w.Metc == proposal.Yes, "metc_institution", "METC institution", w.MetcInstitution)
	s.addIf(w.Metc != proposal.Yes, "is_medical", "Is this medical research?", choice(string(w.IsMedical), yesNoDoubtLabels))
	if w.NeedsMetc() {
		s.add("metc_application", "Application sent to the METC", w.MetcApplication)
		s.add("metc_decision", "METC decision received", w.MetcDecision)
	}
	return s
}

func trajectoriesSection(p *proposal.Proposal) section {
	s := section{key: "trajectories", title: "Trajectories"}
	s.add("count", "Number of trajectories", len(p.Studies))
	if len(p.Studies) > 1 {
		s.add("names", "Trajectories", lo.Map(p.Studies, func(st proposal.Study, _ int) string { return studyTitle(st) }))
	}
	return s
}

func studyTitle(st proposal.Study) string {
	t := fmt.Sprintf("Trajectory %d", st.Order)
	if st.Name != "" {
		t += ": " + st.Name
	}
	return t
}

// studySections are keyed by study order so revisions pair up even though ids change.
func studySections(p *proposal.Proposal, st *proposal.Study) []Section {
	prefix := fmt.Sprintf("study-%d", st.Order)
	title := func(t string) string {
		if len(p.Studies) > 1 {
			return studyTitle(*st) + " | " + t
		}
		return t
	}

	part := section{key: prefix + "-participants", title: title("Participants")}
	part.addIf(len(p.Studies) > 1, "name", "Name", st.Name)
	part.add("age_groups", "Age groups", choices(st.AgeGroups, ageGroupLabels))
	part.add("legal_basis", "Legal basis", choice(string(st.LegalBasis), legalBasisLabels))
	if st.HasChildren() {
		part.add("necessity", "Is the participation of minors necessary?", choice(string(st.Necessity), yesNoDoubtLabels))
		part.addIf(st.Necessity == proposal.Yes || st.Necessity == proposal.Doubt, "necessity_reason", "Reason", st.NecessityReason)
	}

	design := section{key: prefix + "-design", title: title("Design")}
	design.add("has_intervention", "Intervention", st.HasIntervention)
	design.add("has_observation", "Observation", st.HasObservation)
	design.add("has_sessions", "Sessions and tasks", st.HasSessions)

	secs := []Section{part, design}
	if st.HasIntervention && st.Intervention != nil {
		iv := st.Intervention
		s := section{key: prefix + "-intervention", title: title("Intervention")}
		s.add("setting", "Setting", choices(iv.Setting, settingLabels))
		s.add("period", "Period", iv.Period)
		s.add("amount", "Number of sessions", iv.Amount)
		s.add("description", "Description", iv.Description)
		s.add("has_controls", "Control group", iv.HasControls)
		s.addIf(iv.HasControls, "controls_description", "Control group description", iv.ControlsDescription)
		s.add("registrations", "Registrations", choices(iv.Registrations, registrationLabels))
		secs = append(secs, s)
	}
	if st.HasObservation && st.Observation != nil {
		ob := st.Observation
		s := section{key: prefix + "-observation", title: title("Observation")}
		s.add("setting", "Setting", choices(ob.Setting, settingLabels))
		s.add("details", "Details", ob.Details)
		s.add("is_anonymous", "Anonymous observation", ob.IsAnonymous)
		s.add("needs_approval", "Approval needed", ob.NeedsApproval)
		s.addIf(ob.NeedsApproval, "approval_institution", "Approving institution", ob.ApprovalInstitution)
		s.add("registrations", "Registrations", choices(ob.Registrations, registrationLabels))
		secs = append(secs, s)
	}
	if st.HasSessions {
		for _, ses := range st.Sessions {
			secs = append(secs, sessionSection(prefix, title, ses))
		}
	}

	overview := section{key: prefix + "-overview", title: title("Trajectory overview")}
	overview.add("deception", "Deception", choice(string(st.Deception), yesNoDoubtLabels))
	overview.addIf(st.Deception != proposal.No, "deception_details", "Deception details", st.DeceptionDetails)
	overview.add("negativity", "Negative experiences", choice(string(st.Negativity), yesNoDoubtLabels))
	overview.addIf(st.Negativity != proposal.No, "negativity_details", "Negative experience details", st.NegativityDetail)
	overview.add("risk", "Risks", choice(string(st.Risk), yesNoDoubtLabels))
	overview.addIf(st.Risk != proposal.No, "risk_details", "Risk details", st.RiskDetails)
	return append(secs, overview)
}

func sessionSection(prefix string, title func(string) string, ses proposal.Session) section {
	s := section{
		key:   fmt.Sprintf("%s-session-%d", prefix, ses.Order),
		title: title(fmt.Sprintf("Session %d", ses.Order)),
	}
	s.add("setting", "Setting", choices(ses.Setting, settingLabels))
	s.add("repeats", "Repeats", ses.Repeats)
	s.add("leader", "Session leader", ses.Leader)
	for _, t := range ses.Tasks {
		t := t
		s.add(fmt.Sprintf("task-%d", t.Order), fmt.Sprintf("Task %d", t.Order), func() interface{} {
			return fmt.Sprintf("%s (%d min)\n%s", t.Name, t.Duration, t.Description)
		})
	}
	s.addIf(ses.Comments != "", "comments", "Comments", ses.Comments)
	return s
}

func dataManagementSection(p *proposal.Proposal) section {
	s := section{key: "data_management", title: "Data management"}
	s.add("avg_understood", "GDPR guidelines read", p.DataManagement.AvgUnderstood)
	s.add("privacy_officer", "Privacy officer consulted", p.DataManagement.PrivacyOfficer)
	s.add("storage", "Data storage", p.DataManagement.Storage)
	return s
}

func translationSection(p *proposal.Proposal) section {
	s := section{key: "translation", title: "Translation"}
	s.add("dutch_speaking", "Dutch speaking participants", p.Translation.DutchSpeaking)
	s.add("translated_forms", "Translated forms", choice(string(p.Translation.TranslatedForms), yesNoDoubtLabels))
	s.addIf(p.Translation.TranslatedForms == proposal.Yes, "translated_forms_languages", "Languages", p.Translation.TranslatedFormsLanguages)
	return s
}

// attachmentsSection lists every slot that is filled or expected. Empty extra
// slots are left out.
func attachmentsSection(p *proposal.Proposal, slots []*attachment.Slot, opts Options) section {
	s := section{key: "attachments", title: "Documents"}
	for _, sl := range slots {
		if !sl.Filled() && sl.Desiredness() == attachment.Extra {
			continue
		}
		label := fmt.Sprintf("%s (%s)", sl.Info().Name, ownerLabel(p, sl.Owner))
		if sl.Order > 0 {
			label = fmt.Sprintf("%s %d (%s)", sl.Info().Name, sl.Order, ownerLabel(p, sl.Owner))
		}
		s.add(fmt.Sprintf("%s-%s-%d", ownerKey(p, sl.Owner), sl.Kind, sl.Order), label, fileRef(sl, opts))
	}
	return s
}

func fileRef(sl *attachment.Slot, opts Options) *FileRef {
	if !sl.Filled() {
		return nil
	}
	ref := &FileRef{Name: sl.Attachment.Upload.Name}
	if opts.Filename != nil {
		ref.Name = opts.Filename(sl)
	}
	if opts.FileURL != nil {
		ref.URL = opts.FileURL(sl)
	}
	return ref
}

// ownerKey identifies an owner across revisions, which renew every id.
func ownerKey(p *proposal.Proposal, o attachment.Owner) string {
	if o.Type == attachment.OwnerStudy {
		if st, ok := p.Study(o.ID); ok {
			return fmt.Sprintf("study-%d", st.Order)
		}
	}
	return "proposal"
}

func ownerLabel(p *proposal.Proposal, o attachment.Owner) string {
	if o.Type == attachment.OwnerStudy {
		if st, ok := p.Study(o.ID); ok {
			return fmt.Sprintf("trajectory %d", st.Order)
		}
	}
	return "application"
}

func submitSection(p *proposal.Proposal) section {
	s := section{key: "submit", title: "Submission"}
	s.add("comments", "Comments", p.Comments)
	s.add("embargo", "Embargo", p.Embargo)
	s.addIf(p.Embargo, "embargo_end", "Embargo end", p.EmbargoEnd)
	return s
}
