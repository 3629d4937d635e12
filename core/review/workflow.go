package review

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/stepper"
	"github.com/fetc/proposals/core/user"
)

// Submit hands a complete draft over for review. When a supervisor other than the
// submitter is named, it goes to the supervisor first.
func (svc *service) Submit(ctx context.Context, usr user.User, id string) (proposal.Proposal, error) {
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if err := editable(p, usr); err != nil {
		return proposal.Proposal{}, err
	}
	if p.IsPractice {
		return proposal.Proposal{}, ErrPractice
	}

	st, err := svc.stepper(ctx, usr, p)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if !st.CanSubmit() {
		steps := lo.Uniq(lo.Map(st.Incomplete(), func(it *stepper.Item, _ int) string { return it.Title }))
		return proposal.Proposal{}, &IncompleteError{Steps: steps}
	}

	now := svc.now()
	var snapped bool
	var prevPDF string
	if p.SupervisorID != "" && p.SupervisorID != usr.ID {
		p.Status = proposal.StatusSubmittedToSupervisor
		p.DateSubmittedSupervisor = &now
	} else {
		p.Status = proposal.StatusSubmitted
		p.DateSubmitted = &now
		if prevPDF, err = svc.snapshot(ctx, usr, &p); err != nil {
			return proposal.Proposal{}, err
		}
		snapped = true
	}
	p.UpdatedAt = now

	saved, err := svc.Proposals.UpdateProposal(ctx, p)
	if snapped {
		svc.settleSnapshot(ctx, p, prevPDF, err)
	}
	if err != nil {
		return proposal.Proposal{}, errors.Wrap(err, "submitting proposal")
	}

	if saved.Status == proposal.StatusSubmittedToSupervisor {
		svc.notifySupervisor(ctx, saved, usr)
	} else {
		svc.notifyApplicants(ctx, saved, tmplSubmitted, "Application submitted", nil)
	}
	svc.Logger.Info("proposal submitted: "+saved.Reference, usr)
	return saved, nil
}

// SupervisorDecide records the supervisor's verdict. Approval forwards the proposal to
// the committee; otherwise it returns to draft.
func (svc *service) SupervisorDecide(ctx context.Context, usr user.User, id string, approved bool, comments string) (proposal.Proposal, error) {
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if p.SupervisorID != usr.ID {
		return proposal.Proposal{}, ErrForbidden
	}
	if p.Status != proposal.StatusSubmittedToSupervisor {
		return proposal.Proposal{}, ErrWrongStatus
	}

	now := svc.now()
	p.SupervisorComments = core.CleanString(comments)
	p.UpdatedAt = now
	var prevPDF string
	if approved {
		p.Status = proposal.StatusSubmitted
		p.DateSubmitted = &now
		if prevPDF, err = svc.snapshot(ctx, usr, &p); err != nil {
			return proposal.Proposal{}, err
		}
	} else {
		p.Status = proposal.StatusDraft
		p.DateSubmittedSupervisor = nil
	}

	saved, err := svc.Proposals.UpdateProposal(ctx, p)
	if approved {
		svc.settleSnapshot(ctx, p, prevPDF, err)
	}
	if err != nil {
		return proposal.Proposal{}, errors.Wrap(err, "saving supervisor decision")
	}
	svc.notifyApplicants(ctx, saved, tmplSupervisorDecision, "Supervisor decision", map[string]interface{}{
		"Approved": approved,
		"Comments": saved.SupervisorComments,
	})
	return saved, nil
}

// Decide closes the review of a submitted proposal. Only the committee secretary or
// chair may decide.
func (svc *service) Decide(ctx context.Context, usr user.User, id string, outcome proposal.Outcome, comments string) (proposal.Proposal, error) {
	if !usr.IsSecretary() && !usr.IsChair() {
		return proposal.Proposal{}, ErrForbidden
	}
	if !lo.Contains(proposal.AllOutcomes, string(outcome)) {
		return proposal.Proposal{}, core.NewValidationError(nil, core.FieldError{Field: "outcome", Error: "unknown outcome"})
	}
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if p.Status != proposal.StatusSubmitted {
		return proposal.Proposal{}, ErrWrongStatus
	}

	now := svc.now()
	p.Status = proposal.StatusDecided
	p.Outcome = outcome
	p.DecisionComments = core.CleanString(comments)
	p.DateDecided = &now
	p.UpdatedAt = now

	saved, err := svc.Proposals.UpdateProposal(ctx, p)
	if err != nil {
		return proposal.Proposal{}, errors.Wrap(err, "saving decision")
	}
	svc.notifyApplicants(ctx, saved, tmplDecision, "Decision on your application", map[string]interface{}{
		"Outcome":  outcomeLabels[saved.Outcome],
		"Comments": saved.DecisionComments,
	})
	svc.Logger.Info("proposal decided: "+saved.Reference+" "+string(saved.Outcome), usr)
	return saved, nil
}

var outcomeLabels = map[proposal.Outcome]string{
	proposal.OutcomeApproved: "approved",
	proposal.OutcomeRevision: "revision needed",
	proposal.OutcomeRejected: "rejected",
}
