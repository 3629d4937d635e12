package review

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/user"
)

// CreateRevision copies the proposal parentID into a new draft. A revision continues
// the reference chain of its parent; a plain copy gets a fresh reference. The copy
// shares the parent's attachments.
func (svc *service) CreateRevision(ctx context.Context, usr user.User, parentID string, isRevision bool) (proposal.Proposal, error) {
	parent, err := svc.Get(ctx, usr, parentID)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if !parent.IsApplicant(usr.ID) && parent.SupervisorID != usr.ID && parent.CreatedByID != usr.ID {
		return proposal.Proposal{}, ErrForbidden
	}
	if isRevision && parent.Status == proposal.StatusDraft {
		return proposal.Proposal{}, ErrWrongStatus
	}

	now := svc.now()
	var ref proposal.Reference
	if isRevision {
		parentRef, err := proposal.ParseReference(parent.Reference)
		if err != nil {
			return proposal.Proposal{}, err
		}
		ref, err = svc.Proposals.NextRevisionReference(ctx, parentRef)
		if err != nil {
			return proposal.Proposal{}, errors.Wrap(err, "allocating revision reference")
		}
	} else {
		ref, err = svc.Proposals.NextReference(ctx, now.Year())
		if err != nil {
			return proposal.Proposal{}, errors.Wrap(err, "allocating reference")
		}
	}

	cp := copyProposal(parent)
	cp.Reference = ref.String()
	cp.ParentID = parent.ID
	cp.IsRevision = isRevision
	cp.CreatedByID = usr.ID
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if !cp.IsApplicant(usr.ID) && cp.SupervisorID != usr.ID {
		cp.ApplicantIDs = append(cp.ApplicantIDs, usr.ID)
	}

	created, err := svc.Proposals.CreateProposal(ctx, cp)
	if err != nil {
		return proposal.Proposal{}, errors.Wrap(err, "creating revision")
	}
	if err := svc.carryAttachments(ctx, parent, created); err != nil {
		return proposal.Proposal{}, err
	}
	svc.Logger.Info("proposal "+parent.Reference+" copied to "+created.Reference, usr)
	return created, nil
}

// carryAttachments attaches the attachments of from to the matching owners of to.
// Studies are matched by order.
func (svc *service) carryAttachments(ctx context.Context, from, to proposal.Proposal) error {
	mapping := map[attachment.Owner]attachment.Owner{
		attachment.ProposalOwner(from.ID): attachment.ProposalOwner(to.ID),
	}
	for i, st := range from.Studies {
		if i < len(to.Studies) {
			mapping[attachment.StudyOwner(st.ID)] = attachment.StudyOwner(to.Studies[i].ID)
		}
	}

	atts, err := svc.Attachments.ListAttachments(ctx, ownersOf(from)...)
	if err != nil {
		return errors.Wrap(err, "listing attachments")
	}
	for _, a := range atts {
		for _, o := range a.AttachedTo {
			if target, ok := mapping[o]; ok {
				a.Attach(target)
			}
		}
		if _, err := svc.Attachments.UpdateAttachment(ctx, a); err != nil {
			return errors.Wrap(err, "carrying attachment over")
		}
	}
	return nil
}

// copyProposal returns a draft with the answers of p. Ids are cleared so the
// repository assigns new ones.
func copyProposal(p proposal.Proposal) proposal.Proposal {
	cp := proposal.Proposal{
		Title:             p.Title,
		Institution:       p.Institution,
		Status:            proposal.StatusDraft,
		IsPreAssessment:   p.IsPreAssessment,
		IsPreApproved:     p.IsPreApproved,
		IsPractice:        p.IsPractice,
		ApplicantIDs:      append([]string(nil), p.ApplicantIDs...),
		SupervisorID:      p.SupervisorID,
		Relation:          p.Relation,
		OtherStakeholders: p.OtherStakeholders,
		Stakeholders:      p.Stakeholders,
		Funding:           append([]string(nil), p.Funding...),
		FundingDetails:    p.FundingDetails,
		Summary:           p.Summary,
		Aims:              p.Aims,

		PreApprovalInstitution: p.PreApprovalInstitution,
		PreApprovalReference:   p.PreApprovalReference,

		DataManagement: p.DataManagement,
		Translation:    p.Translation,
		Comments:       p.Comments,
		Embargo:        p.Embargo,
	}
	if p.Wmo != nil {
		w := *p.Wmo
		cp.Wmo = &w
	}
	if p.EmbargoEnd != nil {
		end := *p.EmbargoEnd
		cp.EmbargoEnd = &end
	}
	for _, st := range p.Studies {
		cp.Studies = append(cp.Studies, copyStudy(st))
	}
	return cp
}

func copyStudy(st proposal.Study) proposal.Study {
	cp := st
	cp.ID = ""
	cp.ProposalID = ""
	cp.AgeGroups = append([]proposal.AgeGroup(nil), st.AgeGroups...)
	if st.Intervention != nil {
		iv := *st.Intervention
		iv.Setting = append([]proposal.Setting(nil), iv.Setting...)
		iv.Registrations = append([]proposal.Registration(nil), iv.Registrations...)
		cp.Intervention = &iv
	}
	if st.Observation != nil {
		ob := *st.Observation
		ob.Setting = append([]proposal.Setting(nil), ob.Setting...)
		ob.Registrations = append([]proposal.Registration(nil), ob.Registrations...)
		cp.Observation = &ob
	}
	cp.Sessions = nil
	for _, ses := range st.Sessions {
		sc := ses
		sc.ID = ""
		sc.StudyID = ""
		sc.Setting = append([]proposal.Setting(nil), ses.Setting...)
		sc.Tasks = nil
		for _, t := range ses.Tasks {
			tc := t
			tc.ID = ""
			tc.SessionID = ""
			tc.Registrations = append([]proposal.Registration(nil), t.Registrations...)
			sc.Tasks = append(sc.Tasks, tc)
		}
		cp.Sessions = append(cp.Sessions, sc)
	}
	return cp
}
