package proposal

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound           = errors.New("proposal not found")
	ErrMalformedReference = errors.New("malformed reference number")
	ErrReferenceExists    = errors.New("a proposal with this reference already exists")
)

// Repository stores proposals with their studies, sessions and tasks.
//
// NextReference and NextRevisionReference allocate atomically: two concurrent calls
// never return the same reference, and a sequence is not handed out again after the
// proposal holding it is deleted.
//
// ListProposals orders by created_at, reference, title or date_submitted; newest first
// by default.
type Repository interface {
	NextReference(ctx context.Context, year int) (Reference, error)
	NextRevisionReference(ctx context.Context, parent Reference) (Reference, error)

	// CreateProposal assigns the missing ids, see Proposal.AssignIDs.
	CreateProposal(ctx context.Context, p Proposal) (Proposal, error)
	GetProposal(ctx context.Context, id string) (Proposal, error)
	ListProposals(ctx context.Context, filter Filter) ([]Proposal, error)
	UpdateProposal(ctx context.Context, p Proposal) (Proposal, error)
	DeleteProposal(ctx context.Context, id string) error
}
