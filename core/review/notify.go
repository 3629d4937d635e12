package review

import (
	"context"
	"net/mail"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/user"
)

// email templates
const (
	tmplSubmittedSupervisor = "submitted_supervisor"
	tmplSupervisorDecision  = "supervisor_decision"
	tmplSubmitted           = "submitted"
	tmplDecision            = "decision"
)

func proposalPath(p proposal.Proposal) string {
	return "/proposals/" + p.ID
}

func (svc *service) message(to user.User, subject, tmpl string, p proposal.Proposal, extra map[string]interface{}) *core.EmailMessage {
	data := map[string]interface{}{
		"RecipientName": to.FullName(),
		"Title":         p.Title,
		"Reference":     p.Reference,
		"Path":          proposalPath(p),
	}
	for k, v := range extra {
		data[k] = v
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: to.FullName(), Address: to.Email}},
		Subject:      subject + " " + p.Reference,
		TemplateName: tmpl,
		TemplateData: data,
	}
}

func (svc *service) notifySupervisor(ctx context.Context, p proposal.Proposal, submitter user.User) {
	sup, err := svc.Users.GetByID(ctx, p.SupervisorID)
	if err != nil {
		svc.Logger.Error("loading supervisor of "+p.Reference, err)
		return
	}
	svc.Mailer.SendMessages(svc.message(sup, "Application to review", tmplSubmittedSupervisor, p, map[string]interface{}{
		"SubmitterName": submitter.FullName(),
	}))
}

func (svc *service) notifyApplicants(ctx context.Context, p proposal.Proposal, tmpl, subject string, extra map[string]interface{}) {
	applicants, err := svc.Users.GetByIDs(ctx, p.ApplicantIDs...)
	if err != nil {
		svc.Logger.Error("loading applicants of "+p.Reference, err)
		return
	}
	msgs := make([]*core.EmailMessage, 0, len(applicants))
	for _, a := range applicants {
		if a.Email != "" {
			msgs = append(msgs, svc.message(a, subject, tmpl, p, extra))
		}
	}
	if len(msgs) > 0 {
		svc.Mailer.SendMessages(msgs...)
	}
}
