package attachment

import (
	"fmt"

	"github.com/volatiletech/strmangle"
)

// Desiredness says how strongly a slot should be filled.
type Desiredness string

const (
	Required    Desiredness = "required"
	Recommended Desiredness = "recommended"
	Optional    Desiredness = "optional"
	Extra       Desiredness = "extra"
)

// OwnerType is the kind of object an attachment is attached to.
type OwnerType string

const (
	OwnerProposal OwnerType = "proposal"
	OwnerStudy    OwnerType = "study"
)

// Kind is the db name of a document requirement.
type Kind string

const (
	InformationLetterAnonymous           Kind = "information_letter_anonymous"
	InformationLetterPublicInterest      Kind = "information_letter_public_interest"
	InformationLetterConsent             Kind = "information_letter_consent"
	ConsentFormAdults                    Kind = "consent_form_adults"
	ConsentFormChildren                  Kind = "consent_form_children"
	ConsentFormParents                   Kind = "consent_form_parents"
	ScriptVerbalConsentRecordings        Kind = "script_verbal_consent_recordings"
	AgreementRecordingsAdults            Kind = "agreement_recordings_adults"
	AgreementRecordingsChildrenNoParents Kind = "agreement_recordings_children_no_parents"
	AgreementRecordingsChildrenParents   Kind = "agreement_recordings_children_parents"
	OtherStudyAttachment                 Kind = "other_study_attachment"

	DataManagementPlan      Kind = "data_management_plan"
	SchoolConsentLetter     Kind = "school_consent_letter"
	MetcDecision            Kind = "metc_decision"
	PreAssessmentForm       Kind = "pre_assessment_form"
	PreApprovalDecision     Kind = "pre_approval_decision"
	OtherProposalAttachment Kind = "other_proposal_attachment"
)

type KindInfo struct {
	Kind        Kind        `json:"kind"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Desiredness Desiredness `json:"desiredness"`
	AttachTo    OwnerType   `json:"attach_to"`
	MoreInfoURL string      `json:"more_info_url,omitempty"`
}

const infoBaseURL = "https://fetc.example.org/documents/"

var catalog = []KindInfo{
	{
		Kind:        InformationLetterAnonymous,
		Name:        "Information letter for anonymous participation",
		Description: "Information letter for studies that collect no personal data.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "information-letters",
	},
	{
		Kind:        InformationLetterPublicInterest,
		Name:        "Information letter for public interest",
		Description: "Information letter for studies processing personal data on the basis of public interest.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "information-letters",
	},
	{
		Kind:        InformationLetterConsent,
		Name:        "Information letter for consent",
		Description: "Information letter for studies processing personal data on the basis of consent.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "information-letters",
	},
	{
		Kind:        ConsentFormAdults,
		Name:        "Consent form for adults",
		Description: "Consent form for participants aged 16 or older.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "consent-forms",
	},
	{
		Kind:        ConsentFormChildren,
		Name:        "Consent form for children",
		Description: "Consent form signed by participants aged 12 to 15.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "consent-forms",
	},
	{
		Kind:        ConsentFormParents,
		Name:        "Consent form for parents",
		Description: "Consent form signed by the parents or guardians of minor participants.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "consent-forms",
	},
	{
		Kind:        ScriptVerbalConsentRecordings,
		Name:        "Script for verbal consent to recordings",
		Description: "Script read to adult participants to obtain verbal consent for audio or video recordings.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "recordings",
	},
	{
		Kind:        AgreementRecordingsAdults,
		Name:        "Agreement to recordings for adults",
		Description: "Written agreement of adult participants to audio or video recordings.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "recordings",
	},
	{
		Kind:        AgreementRecordingsChildrenNoParents,
		Name:        "Agreement to recordings for children without parents",
		Description: "Agreement to recordings signed by minor participants themselves.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "recordings",
	},
	{
		Kind:        AgreementRecordingsChildrenParents,
		Name:        "Agreement to recordings for children with parents",
		Description: "Agreement to recordings of minor participants signed by their parents.",
		Desiredness: Required,
		AttachTo:    OwnerStudy,
		MoreInfoURL: infoBaseURL + "recordings",
	},
	{
		Kind:        OtherStudyAttachment,
		Name:        "Other document for this trajectory",
		Description: "Any other document relevant to this trajectory.",
		Desiredness: Extra,
		AttachTo:    OwnerStudy,
	},
	{
		Kind:        DataManagementPlan,
		Name:        "Data management plan",
		Description: "The data management plan agreed with the faculty data steward.",
		Desiredness: Recommended,
		AttachTo:    OwnerProposal,
		MoreInfoURL: infoBaseURL + "data-management",
	},
	{
		Kind:        SchoolConsentLetter,
		Name:        "Consent letter from school",
		Description: "Letter from the school or institution where the research takes place.",
		Desiredness: Required,
		AttachTo:    OwnerProposal,
		MoreInfoURL: infoBaseURL + "schools",
	},
	{
		Kind:        MetcDecision,
		Name:        "METC decision",
		Description: "The decision of the medical ethics review committee.",
		Desiredness: Required,
		AttachTo:    OwnerProposal,
	},
	{
		Kind:        PreAssessmentForm,
		Name:        "Pre-assessment form",
		Description: "The filled in pre-assessment application form.",
		Desiredness: Required,
		AttachTo:    OwnerProposal,
	},
	{
		Kind:        PreApprovalDecision,
		Name:        "Pre-approval decision",
		Description: "The approval granted by another ethics committee.",
		Desiredness: Required,
		AttachTo:    OwnerProposal,
	},
	{
		Kind:        OtherProposalAttachment,
		Name:        "Other document",
		Description: "Any other document relevant to this application.",
		Desiredness: Extra,
		AttachTo:    OwnerProposal,
	},
}

var catalogIndex = func() map[Kind]int {
	idx := make(map[Kind]int, len(catalog))
	for i, info := range catalog {
		idx[info.Kind] = i
	}
	return idx
}()

// Lookup returns the catalog entry for kind.
func Lookup(kind Kind) (KindInfo, bool) {
	i, ok := catalogIndex[kind]
	if !ok {
		return KindInfo{}, false
	}
	return catalog[i], true
}

// MustLookup is like Lookup but panics on unknown kinds.
func MustLookup(kind Kind) KindInfo {
	info, ok := Lookup(kind)
	if !ok {
		panic(fmt.Sprintf("attachment: unknown kind %q", kind))
	}
	return info
}

// KindsFor lists the kinds attachable to the owner type, in catalog order.
func KindsFor(ownerType OwnerType) []KindInfo {
	var out []KindInfo
	for _, info := range catalog {
		if info.AttachTo == ownerType {
			out = append(out, info)
		}
	}
	return out
}

// OtherKind returns the catalog's catch-all kind for the owner type.
func OtherKind(ownerType OwnerType) Kind {
	if ownerType == OwnerStudy {
		return OtherStudyAttachment
	}
	return OtherProposalAttachment
}

// Label is the kind as used in file names, e.g. "ConsentFormAdults".
func Label(kind Kind) string {
	return strmangle.TitleCase(string(kind))
}
