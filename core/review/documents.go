package review

import (
	"bytes"
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/document"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/stepper"
	"github.com/fetc/proposals/core/user"
)

// sections builds the document of p. Without links, attachments show their upload
// names, which stay the same across versions.
func (svc *service) sections(ctx context.Context, usr user.User, p proposal.Proposal, links bool) ([]document.Section, error) {
	st, err := svc.stepper(ctx, usr, p)
	if err != nil {
		return nil, err
	}

	ids := append([]string{p.CreatedByID}, p.ApplicantIDs...)
	if p.SupervisorID != "" {
		ids = append(ids, p.SupervisorID)
	}
	users, err := svc.Users.GetByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "loading users")
	}
	names := make(map[string]string, len(users))
	var lastName string
	for _, u := range users {
		names[u.ID] = u.FullName()
		if u.ID == p.CreatedByID {
			lastName = u.LastName
		}
	}

	opts := document.Options{Names: names}
	if links {
		opts.Filename = func(s *attachment.Slot) string {
			return s.Filename(stepper.FilenameInfo(&p, svc.Conf.Committee, lastName, s.Owner))
		}
		opts.FileURL = func(s *attachment.Slot) string {
			return proposalPath(p) + "/attachments/" + s.Attachment.ID + "/download"
		}
	}
	return document.Build(st.Proposal(), st.Slots(), opts), nil
}

func (svc *service) render(ctx context.Context, usr user.User, p proposal.Proposal) ([]byte, error) {
	secs, err := svc.sections(ctx, usr, p, true)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := document.RenderPDF(&buf, p.Reference+" "+p.Title, secs, p.UpdatedAt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// snapshot stores the PDF of p as submitted and points p at it. It returns the key
// of the snapshot it replaces, to be passed to settleSnapshot once p is saved.
func (svc *service) snapshot(ctx context.Context, usr user.User, p *proposal.Proposal) (string, error) {
	pdf, err := svc.render(ctx, usr, *p)
	if err != nil {
		return "", errors.Wrap(err, "rendering snapshot")
	}
	key, err := svc.Files.Save(ctx, p.Reference+".pdf", bytes.NewReader(pdf))
	if err != nil {
		return "", errors.Wrap(err, "storing snapshot")
	}
	prev := p.PDFKey
	p.PDFKey = key
	return prev, nil
}

// settleSnapshot deletes the snapshot that is no longer referenced: the new one when
// saving the proposal failed, the previous one otherwise.
func (svc *service) settleSnapshot(ctx context.Context, p proposal.Proposal, prev string, saveErr error) {
	stale := prev
	if saveErr != nil {
		stale = p.PDFKey
	}
	if stale == "" {
		return
	}
	if err := svc.Files.Delete(ctx, stale); err != nil {
		svc.Logger.Warn("deleting snapshot of "+p.Reference, err)
	}
}

// Document returns the PDF of the proposal: the snapshot taken at submission, or the
// current answers for drafts.
func (svc *service) Document(ctx context.Context, usr user.User, id string) ([]byte, error) {
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return nil, err
	}
	if p.Status == proposal.StatusDraft || p.PDFKey == "" {
		return svc.render(ctx, usr, p)
	}

	rc, err := svc.Files.Open(ctx, p.PDFKey)
	if err != nil {
		svc.Logger.Warn("opening snapshot of "+p.Reference, err)
		return svc.render(ctx, usr, p)
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// Diff compares the proposal with the version it was copied from.
func (svc *service) Diff(ctx context.Context, usr user.User, id string) ([]document.DiffSection, error) {
	p, err := svc.Get(ctx, usr, id)
	if err != nil {
		return nil, err
	}
	if p.ParentID == "" {
		return nil, ErrNoParent
	}
	parent, err := svc.Proposals.GetProposal(ctx, p.ParentID)
	if err != nil {
		if errors.Cause(err) == proposal.ErrNotFound {
			return nil, ErrNoParent
		}
		return nil, err
	}

	older, err := svc.sections(ctx, usr, parent, false)
	if err != nil {
		return nil, err
	}
	newer, err := svc.sections(ctx, usr, p, false)
	if err != nil {
		return nil, err
	}
	return document.Diff(older, newer), nil
}
