package attachment

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound    = errors.New("attachment not found")
	ErrUnknownKind = errors.New("unknown attachment kind")
)

// Owner identifies a proposal or study an attachment is attached to.
type Owner struct {
	Type OwnerType `json:"type"`
	ID   string    `json:"id"`
}

func ProposalOwner(id string) Owner { return Owner{Type: OwnerProposal, ID: id} }
func StudyOwner(id string) Owner    { return Owner{Type: OwnerStudy, ID: id} }

// Upload points at the stored file.
type Upload struct {
	Key  string `json:"key"`
	Name string `json:"name"` // original file name
}

// Attachment is a stored upload. ParentID links to the attachment it replaced.
type Attachment struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	ParentID   string    `json:"parent_id"`
	Upload     Upload    `json:"upload"`
	Name       string    `json:"name"`
	Comments   string    `json:"comments"`
	AttachedTo []Owner   `json:"attached_to"`
	AuthorID   string    `json:"author_id"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// IsAttachedTo reports whether the attachment is attached to any of owners.
func (a Attachment) IsAttachedTo(owners ...Owner) bool {
	for _, at := range a.AttachedTo {
		for _, o := range owners {
			if at == o {
				return true
			}
		}
	}
	return false
}

// Attach adds owner to AttachedTo if missing.
func (a *Attachment) Attach(owner Owner) {
	if !a.IsAttachedTo(owner) {
		a.AttachedTo = append(a.AttachedTo, owner)
	}
}

// Detach removes owner from AttachedTo.
func (a *Attachment) Detach(owner Owner) {
	kept := make([]Owner, 0, len(a.AttachedTo))
	for _, at := range a.AttachedTo {
		if at != owner {
			kept = append(kept, at)
		}
	}
	a.AttachedTo = kept
}

// NewAttachment contains the user provided information of an upload.
type NewAttachment struct {
	Kind     Kind   `json:"kind" validate:"required,attachmentkind"`
	Owner    Owner  `json:"owner"`
	Name     string `json:"name" validate:"max=200"`
	Comments string `json:"comments" validate:"max=2000"`
	// Replaces is the id of the attachment this upload supersedes for Owner.
	Replaces string `json:"replaces"`
}

type Repository interface {
	CreateAttachment(ctx context.Context, a Attachment) (Attachment, error)
	GetAttachment(ctx context.Context, id string) (Attachment, error)
	// ListAttachments returns the attachments attached to any of owners, oldest first.
	ListAttachments(ctx context.Context, owners ...Owner) ([]Attachment, error)
	// UpdateAttachment saves the attachment's name, comments and owners.
	UpdateAttachment(ctx context.Context, a Attachment) (Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}

// SortAttachments orders attachments oldest first; ids break ties.
func SortAttachments(atts []Attachment) {
	sort.SliceStable(atts, func(i, j int) bool {
		if atts[i].CreatedAt.Equal(atts[j].CreatedAt) {
			return atts[i].ID < atts[j].ID
		}
		return atts[i].CreatedAt.Before(atts[j].CreatedAt)
	})
}
