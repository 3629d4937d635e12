// Package review runs the life cycle of proposals: drafting, revising, attaching
// documents, submitting and deciding.
package review

import (
	"context"
	"io"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/document"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/stepper"
	"github.com/fetc/proposals/core/user"
)

var (
	// errors
	ErrForbidden   = errors.New("you are not allowed to do this")
	ErrNotEditable = errors.New("the application can no longer be edited")
	ErrPractice    = errors.New("practice applications cannot be submitted")
	ErrWrongStatus = errors.New("the application is not awaiting this action")
	ErrNoParent    = errors.New("the application has no earlier version")
	ErrIncomplete  = errors.New("the application still has errors")
)

// IncompleteError lists the steps that keep a proposal from being submitted.
// Its cause is ErrIncomplete.
type IncompleteError struct {
	Steps []string
}

func (e *IncompleteError) Error() string {
	return ErrIncomplete.Error() + ": " + strings.Join(e.Steps, ", ")
}

func (e *IncompleteError) Cause() error { return ErrIncomplete }

// FileStore keeps uploaded files and generated documents.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (key string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type (
	Service interface {
		Create(ctx context.Context, usr user.User, np proposal.NewProposal) (proposal.Proposal, error)
		CreateRevision(ctx context.Context, usr user.User, parentID string, isRevision bool) (proposal.Proposal, error)
		Get(ctx context.Context, usr user.User, id string) (proposal.Proposal, error)
		List(ctx context.Context, usr user.User, filter proposal.Filter) ([]proposal.Proposal, error)
		Update(ctx context.Context, usr user.User, p proposal.Proposal) (proposal.Proposal, error)
		Delete(ctx context.Context, usr user.User, id string) error

		Stepper(ctx context.Context, usr user.User, id string) (*stepper.Stepper, error)
		Slots(ctx context.Context, usr user.User, id string) ([]*attachment.Slot, error)
		AttachFile(ctx context.Context, usr user.User, proposalID string, na attachment.NewAttachment, filename string, r io.Reader) (attachment.Attachment, error)
		Detach(ctx context.Context, usr user.User, proposalID, attachmentID string) error
		Download(ctx context.Context, usr user.User, proposalID, attachmentID string) (io.ReadCloser, string, error)

		Submit(ctx context.Context, usr user.User, id string) (proposal.Proposal, error)
		SupervisorDecide(ctx context.Context, usr user.User, id string, approved bool, comments string) (proposal.Proposal, error)
		Decide(ctx context.Context, usr user.User, id string, outcome proposal.Outcome, comments string) (proposal.Proposal, error)

		Document(ctx context.Context, usr user.User, id string) ([]byte, error)
		Diff(ctx context.Context, usr user.User, id string) ([]document.DiffSection, error)
	}

	// Deps are the collaborators of the review service.
	Deps struct {
		Conf        *core.Config
		Proposals   proposal.Repository
		Attachments attachment.Repository
		Users       user.Service
		Files       FileStore
		Mailer      core.EmailService
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
	}

	service struct {
		Deps
		now func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{
		Deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (svc *service) validate(v interface{}) error {
	if err := svc.Validate.Struct(v); err != nil {
		return core.NewValidationError(err, core.TranslateErrors(err, svc.Translator)...)
	}
	return nil
}

func canView(p proposal.Proposal, usr user.User) bool {
	return p.IsApplicant(usr.ID) || p.SupervisorID == usr.ID || p.CreatedByID == usr.ID || usr.IsCommitteeMember()
}

// editable returns the reason usr may not change p, if any.
func editable(p proposal.Proposal, usr user.User) error {
	if !p.IsApplicant(usr.ID) && p.SupervisorID != usr.ID {
		return ErrForbidden
	}
	if p.Status != proposal.StatusDraft {
		return ErrNotEditable
	}
	return nil
}

func (svc *service) Create(ctx context.Context, usr user.User, np proposal.NewProposal) (proposal.Proposal, error) {
	np.Title = core.CleanString(np.Title)
	if err := svc.validate(np); err != nil {
		return proposal.Proposal{}, err
	}

	now := svc.now()
	ref, err := svc.Proposals.NextReference(ctx, now.Year())
	if err != nil {
		return proposal.Proposal{}, errors.Wrap(err, "allocating reference")
	}

	p := proposal.Proposal{
		Reference:       ref.String(),
		Title:           np.Title,
		Status:          proposal.StatusDraft,
		IsPreAssessment: np.IsPreAssessment,
		IsPreApproved:   np.IsPreApproved,
		IsPractice:      np.IsPractice,
		CreatedByID:     usr.ID,
		ApplicantIDs:    []string{usr.ID},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !p.IsPreAssessment && !p.IsPreApproved {
		count := np.StudyCount
		if count == 0 {
			count = 1
		}
		for i := 1; i <= count; i++ {
			p.Studies = append(p.Studies, proposal.Study{Order: i})
		}
	}

	created, err := svc.Proposals.CreateProposal(ctx, p)
	if err != nil {
		return proposal.Proposal{}, errors.Wrap(err, "creating proposal")
	}
	svc.Logger.Info("proposal created: "+created.Reference, usr)
	return created, nil
}

func (svc *service) Get(ctx context.Context, usr user.User, id string) (proposal.Proposal, error) {
	p, err := svc.Proposals.GetProposal(ctx, id)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if !canView(p, usr) {
		return proposal.Proposal{}, ErrForbidden
	}
	return p, nil
}

// List returns the proposals usr takes part in; committee members see all of them.
func (svc *service) List(ctx context.Context, usr user.User, filter proposal.Filter) ([]proposal.Proposal, error) {
	if !usr.IsCommitteeMember() {
		filter.UserID = usr.ID
	}
	return svc.Proposals.ListProposals(ctx, filter)
}

// Update saves the answers of a draft. Life cycle fields are kept from the stored proposal.
func (svc *service) Update(ctx context.Context, usr user.User, p proposal.Proposal) (proposal.Proposal, error) {
	stored, err := svc.Get(ctx, usr, p.ID)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if err := editable(stored, usr); err != nil {
		return proposal.Proposal{}, err
	}

	p.Reference = stored.Reference
	p.Status = stored.Status
	p.Outcome = stored.Outcome
	p.IsPreAssessment = stored.IsPreAssessment
	p.IsPreApproved = stored.IsPreApproved
	p.IsPractice = stored.IsPractice
	p.IsRevision = stored.IsRevision
	p.ParentID = stored.ParentID
	p.CreatedByID = stored.CreatedByID
	p.CreatedAt = stored.CreatedAt
	p.SupervisorComments = stored.SupervisorComments
	p.DecisionComments = stored.DecisionComments
	p.DateSubmittedSupervisor = stored.DateSubmittedSupervisor
	p.DateSubmitted = stored.DateSubmitted
	p.DateDecided = stored.DateDecided
	p.PDFKey = stored.PDFKey
	p.Title = core.CleanString(p.Title)
	p.UpdatedAt = svc.now()
	keepStoredIDs(&p, stored)
	renumber(&p)

	updated, err := svc.Proposals.UpdateProposal(ctx, p)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if err := svc.releaseDropped(ctx, stored, updated); err != nil {
		return proposal.Proposal{}, err
	}
	return updated, nil
}

// keepStoredIDs clears every study, session and task id that the stored proposal
// does not have, or that appears twice, so that the repository assigns a new one.
func keepStoredIDs(p *proposal.Proposal, stored proposal.Proposal) {
	known := make(map[string]bool)
	for _, st := range stored.Studies {
		known[st.ID] = true
		for _, ses := range st.Sessions {
			known[ses.ID] = true
			for _, t := range ses.Tasks {
				known[t.ID] = true
			}
		}
	}
	seen := make(map[string]bool)
	keep := func(id *string) {
		if !known[*id] || seen[*id] {
			*id = ""
			return
		}
		seen[*id] = true
	}
	for i := range p.Studies {
		st := &p.Studies[i]
		keep(&st.ID)
		for j := range st.Sessions {
			ses := &st.Sessions[j]
			keep(&ses.ID)
			for k := range ses.Tasks {
				keep(&ses.Tasks[k].ID)
			}
		}
	}
}

// releaseDropped detaches the attachments of the studies an update removed.
func (svc *service) releaseDropped(ctx context.Context, stored, updated proposal.Proposal) error {
	kept := make(map[string]bool, len(updated.Studies))
	for _, st := range updated.Studies {
		kept[st.ID] = true
	}
	var dropped []attachment.Owner
	for _, st := range stored.Studies {
		if !kept[st.ID] {
			dropped = append(dropped, attachment.StudyOwner(st.ID))
		}
	}
	if len(dropped) == 0 {
		return nil
	}

	atts, err := svc.Attachments.ListAttachments(ctx, dropped...)
	if err != nil {
		return errors.Wrap(err, "listing attachments")
	}
	for _, a := range atts {
		for _, o := range dropped {
			a.Detach(o)
		}
		if err := svc.release(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// renumber makes orders follow slice positions and links children to their parents.
func renumber(p *proposal.Proposal) {
	for i := range p.Studies {
		st := &p.Studies[i]
		st.Order = i + 1
		st.ProposalID = p.ID
		for j := range st.Sessions {
			ses := &st.Sessions[j]
			ses.Order = j + 1
			ses.StudyID = st.ID
			for k := range ses.Tasks {
				ses.Tasks[k].Order = k + 1
				ses.Tasks[k].SessionID = ses.ID
			}
		}
	}
}

// Delete removes a draft and the attachments only it used.
func (svc *service) Delete(ctx context.Context, usr user.User, id string) error {
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return err
	}
	if err := editable(p, usr); err != nil {
		return err
	}

	owners := ownersOf(p)
	atts, err := svc.Attachments.ListAttachments(ctx, owners...)
	if err != nil {
		return errors.Wrap(err, "listing attachments")
	}
	for _, a := range atts {
		for _, o := range owners {
			a.Detach(o)
		}
		if err := svc.release(ctx, a); err != nil {
			return err
		}
	}
	return svc.Proposals.DeleteProposal(ctx, id)
}

// ownersOf returns the proposal and its studies as attachment owners.
func ownersOf(p proposal.Proposal) []attachment.Owner {
	owners := []attachment.Owner{attachment.ProposalOwner(p.ID)}
	for _, st := range p.Studies {
		owners = append(owners, attachment.StudyOwner(st.ID))
	}
	return owners
}
