package stepper

import (
	"fmt"
	"strings"

	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
)

// requiredSlots declares the slots the proposal's answers call for: proposal slots
// first, then each study in order.
func requiredSlots(p *proposal.Proposal, pool *attachment.Pool) []*attachment.Slot {
	owner := attachment.ProposalOwner(p.ID)
	var slots []*attachment.Slot
	add := func(o attachment.Owner, kind attachment.Kind, force ...attachment.Desiredness) *attachment.Slot {
		s := attachment.NewSlot(pool, o, kind, force...)
		slots = append(slots, s)
		return s
	}

	switch {
	case p.IsPreApproved:
		add(owner, attachment.PreApprovalDecision)
		return slots
	case p.IsPreAssessment:
		add(owner, attachment.PreAssessmentForm)
		if p.Wmo.NeedsMetc() {
			add(owner, attachment.MetcDecision)
		}
		return slots
	}

	if p.Wmo.NeedsMetc() {
		add(owner, attachment.MetcDecision)
	}
	add(owner, attachment.DataManagementPlan)
	if force, ok := schoolLetterDesiredness(p.Studies); ok {
		add(owner, attachment.SchoolConsentLetter, force)
	}

	for _, st := range p.Studies {
		so := attachment.StudyOwner(st.ID)
		switch st.LegalBasis {
		case proposal.LegalBasisAnonymous:
			add(so, attachment.InformationLetterAnonymous)
		case proposal.LegalBasisPublicInterest:
			add(so, attachment.InformationLetterPublicInterest)
			if st.HasRecordings() {
				if st.HasAdults() {
					attachment.NewGroup(
						add(so, attachment.ScriptVerbalConsentRecordings),
						add(so, attachment.AgreementRecordingsAdults),
					)
				}
				if st.HasChildren() {
					attachment.NewGroup(
						add(so, attachment.AgreementRecordingsChildrenNoParents),
						add(so, attachment.AgreementRecordingsChildrenParents),
					)
				}
			}
		case proposal.LegalBasisConsent:
			add(so, attachment.InformationLetterConsent)
			if st.HasAdults() {
				add(so, attachment.ConsentFormAdults)
			}
			if st.HasChildren() {
				add(so, attachment.ConsentFormChildren)
				add(so, attachment.ConsentFormParents)
			}
		}
	}
	return slots
}

// schoolLetterDesiredness is Required when a study at a school has children and
// Recommended when only adults are studied at schools. ok is false without schools.
func schoolLetterDesiredness(studies []proposal.Study) (attachment.Desiredness, bool) {
	var atSchool bool
	for _, st := range studies {
		if !st.AtSchool() {
			continue
		}
		atSchool = true
		if st.HasChildren() {
			return attachment.Required, true
		}
	}
	if atSchool {
		return attachment.Recommended, true
	}
	return "", false
}

// buildSlots matches the declared slots, appends the extra slots per owner and
// numbers slots sharing a kind.
func buildSlots(p *proposal.Proposal, pool *attachment.Pool) []*attachment.Slot {
	slots := requiredSlots(p, pool)
	claimed := attachment.MatchAll(slots)

	owners := []attachment.Owner{attachment.ProposalOwner(p.ID)}
	if !p.IsPreAssessment && !p.IsPreApproved {
		for _, st := range p.Studies {
			owners = append(owners, attachment.StudyOwner(st.ID))
		}
	}
	for _, o := range owners {
		slots = append(slots, attachment.ExtraSlots(pool, o, claimed)...)
	}

	attachment.EnumerateSlots(slots)
	return slots
}

// OwnerLabel names the slot owner for messages: "application" or "trajectory N".
func OwnerLabel(p *proposal.Proposal, owner attachment.Owner) string {
	if owner.Type == attachment.OwnerStudy {
		if st, ok := p.Study(owner.ID); ok {
			return fmt.Sprintf("trajectory %d", st.Order)
		}
	}
	return "application"
}

// FilenameInfo returns the file name details for slots of the proposal.
func FilenameInfo(p *proposal.Proposal, committee, lastName string, owner attachment.Owner) attachment.FilenameInfo {
	info := attachment.FilenameInfo{Committee: committee, Reference: p.Reference, LastName: lastName}
	if owner.Type == attachment.OwnerStudy {
		if st, ok := p.Study(owner.ID); ok {
			info.StudyOrder = st.Order
		}
	}
	return info
}

func missingSlotErrors(s *Stepper) []string {
	var errs []string
	for _, e := range attachment.MergeGroups(s.Slots()) {
		switch {
		case e.Group != nil && !e.Group.Filled():
			names := make([]string, 0, len(e.Group.Members))
			for _, m := range e.Group.Members {
				names = append(names, m.Info().Name)
			}
			errs = append(errs, fmt.Sprintf("one of %s is missing for the %s",
				strings.Join(names, " or "), OwnerLabel(s.proposal, e.Group.Members[0].Owner)))
		case e.Slot != nil && e.Slot.Missing():
			errs = append(errs, fmt.Sprintf("%s is missing for the %s", e.Slot.Info().Name, OwnerLabel(s.proposal, e.Slot.Owner)))
		}
	}
	return errs
}
