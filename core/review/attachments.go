package review

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/stepper"
	"github.com/fetc/proposals/core/user"
)

// pool loads the attachments the stepper of p may match: those of p, of its parent
// and the attachments they replaced.
func (svc *service) pool(ctx context.Context, p proposal.Proposal) (*attachment.Pool, error) {
	owners := ownersOf(p)
	var ancestors []attachment.Owner
	if p.ParentID != "" {
		parent, err := svc.Proposals.GetProposal(ctx, p.ParentID)
		switch {
		case err == nil:
			ancestors = ownersOf(parent)
		case errors.Cause(err) != proposal.ErrNotFound:
			return nil, errors.Wrap(err, "loading parent proposal")
		}
	}

	atts, err := svc.Attachments.ListAttachments(ctx, append(owners, ancestors...)...)
	if err != nil {
		return nil, errors.Wrap(err, "listing attachments")
	}
	seen := make(map[string]bool, len(atts))
	for _, a := range atts {
		seen[a.ID] = true
	}
	for i := 0; i < len(atts); i++ {
		parentID := atts[i].ParentID
		if parentID == "" || seen[parentID] {
			continue
		}
		seen[parentID] = true
		parent, err := svc.Attachments.GetAttachment(ctx, parentID)
		if err != nil {
			if errors.Cause(err) == attachment.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "loading replaced attachment")
		}
		atts = append(atts, parent)
	}
	return attachment.NewPool(atts, ancestors...), nil
}

func (svc *service) stepper(ctx context.Context, usr user.User, p proposal.Proposal) (*stepper.Stepper, error) {
	pool, err := svc.pool(ctx, p)
	if err != nil {
		return nil, err
	}
	return stepper.New(p, usr, pool, stepper.Options{Validate: svc.Validate, Translator: svc.Translator}), nil
}

func (svc *service) Stepper(ctx context.Context, usr user.User, id string) (*stepper.Stepper, error) {
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return nil, err
	}
	return svc.stepper(ctx, usr, p)
}

func (svc *service) Slots(ctx context.Context, usr user.User, id string) ([]*attachment.Slot, error) {
	st, err := svc.Stepper(ctx, usr, id)
	if err != nil {
		return nil, err
	}
	return st.Slots(), nil
}

// AttachFile stores an upload for an owner of the proposal. An upload replacing an
// earlier attachment records it as its parent and takes its place for that owner.
func (svc *service) AttachFile(ctx context.Context, usr user.User, proposalID string, na attachment.NewAttachment, filename string, r io.Reader) (attachment.Attachment, error) {
	p, err := svc.Get(ctx, usr, proposalID)
	if err != nil {
		return attachment.Attachment{}, err
	}
	if err := editable(p, usr); err != nil {
		return attachment.Attachment{}, err
	}

	if na.Owner.ID == "" {
		if info, ok := attachment.Lookup(na.Kind); ok && info.AttachTo == attachment.OwnerProposal {
			na.Owner = attachment.ProposalOwner(p.ID)
		}
	}
	na.Name = core.CleanString(na.Name)
	if err := svc.validate(na); err != nil {
		return attachment.Attachment{}, err
	}
	if !ownsAttachable(p, na.Owner) {
		return attachment.Attachment{}, core.NewValidationError(nil, core.FieldError{Field: "owner", Error: "unknown owner"})
	}

	var replaced *attachment.Attachment
	if na.Replaces != "" {
		old, err := svc.Attachments.GetAttachment(ctx, na.Replaces)
		if err != nil {
			return attachment.Attachment{}, err
		}
		if !old.IsAttachedTo(na.Owner) {
			return attachment.Attachment{}, attachment.ErrNotFound
		}
		replaced = &old
	}

	key, err := svc.Files.Save(ctx, filename, r)
	if err != nil {
		return attachment.Attachment{}, errors.Wrap(err, "storing upload")
	}
	a := attachment.Attachment{
		Kind:       na.Kind,
		Upload:     attachment.Upload{Key: key, Name: filename},
		Name:       na.Name,
		Comments:   core.CleanString(na.Comments),
		AttachedTo: []attachment.Owner{na.Owner},
		AuthorID:   usr.ID,
		CreatedAt:  svc.now(),
	}
	if replaced != nil {
		a.ParentID = replaced.ID
	}
	created, err := svc.Attachments.CreateAttachment(ctx, a)
	if err != nil {
		_ = svc.Files.Delete(ctx, key)
		return attachment.Attachment{}, errors.Wrap(err, "creating attachment")
	}

	if replaced != nil {
		replaced.Detach(na.Owner)
		if _, err := svc.Attachments.UpdateAttachment(ctx, *replaced); err != nil {
			return attachment.Attachment{}, errors.Wrap(err, "detaching replaced attachment")
		}
	}
	return created, nil
}

func ownsAttachable(p proposal.Proposal, o attachment.Owner) bool {
	for _, owner := range ownersOf(p) {
		if owner == o {
			return true
		}
	}
	return false
}

// Detach removes the attachment from the proposal and its studies. Attachments left
// without owners are deleted along with their file.
func (svc *service) Detach(ctx context.Context, usr user.User, proposalID, attachmentID string) error {
	p, err := svc.Get(ctx, usr, proposalID)
	if err != nil {
		return err
	}
	if err := editable(p, usr); err != nil {
		return err
	}
	a, err := svc.Attachments.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	owners := ownersOf(p)
	if !a.IsAttachedTo(owners...) {
		return attachment.ErrNotFound
	}
	for _, o := range owners {
		a.Detach(o)
	}
	return svc.release(ctx, a)
}

// release saves a detached attachment or deletes it once nothing refers to it.
func (svc *service) release(ctx context.Context, a attachment.Attachment) error {
	if len(a.AttachedTo) > 0 {
		_, err := svc.Attachments.UpdateAttachment(ctx, a)
		return errors.Wrap(err, "updating attachment")
	}
	if err := svc.Attachments.DeleteAttachment(ctx, a.ID); err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	if err := svc.Files.Delete(ctx, a.Upload.Key); err != nil {
		svc.Logger.Warn("deleting upload "+a.Upload.Key, err)
	}
	return nil
}

// Download opens the attachment's file and returns it with its canonical name.
func (svc *service) Download(ctx context.Context, usr user.User, proposalID, attachmentID string) (io.ReadCloser, string, error) {
	p, err := svc.Get(ctx, usr, proposalID)
	if err != nil {
		return nil, "", err
	}
	st, err := svc.stepper(ctx, usr, p)
	if err != nil {
		return nil, "", err
	}
	var slot *attachment.Slot
	for _, s := range st.Slots() {
		if s.Attachment != nil && s.Attachment.ID == attachmentID {
			slot = s
			break
		}
	}
	if slot == nil {
		return nil, "", attachment.ErrNotFound
	}

	rc, err := svc.Files.Open(ctx, slot.Attachment.Upload.Key)
	if err != nil {
		return nil, "", errors.Wrap(err, "opening upload")
	}
	return rc, svc.filename(ctx, p, slot), nil
}

func (svc *service) filename(ctx context.Context, p proposal.Proposal, slot *attachment.Slot) string {
	var lastName string
	if creator, err := svc.Users.GetByID(ctx, p.CreatedByID); err == nil {
		lastName = creator.LastName
	}
	return slot.Filename(stepper.FilenameInfo(&p, svc.Conf.Committee, lastName, slot.Owner))
}
