package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/fetc/proposals/core/attachment"
)

type attachmentRepository struct {
	db *attachmentTable
}

var _ attachment.Repository = (*attachmentRepository)(nil) // interface compliance check

func NewAttachmentRepository(db *DB) attachment.Repository {
	return &attachmentRepository{db: db.attachment}
}

func (repo *attachmentRepository) CreateAttachment(_ context.Context, a attachment.Attachment) (attachment.Attachment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = uuid.New().String()
	stored := clone(a)
	repo.db.table[a.ID] = &stored
	return clone(stored), nil
}

func (repo *attachmentRepository) GetAttachment(_ context.Context, id string) (attachment.Attachment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return clone(*a), nil
	}
	return attachment.Attachment{}, attachment.ErrNotFound
}

func (repo *attachmentRepository) ListAttachments(_ context.Context, owners ...attachment.Owner) ([]attachment.Attachment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var out []attachment.Attachment
	for _, a := range repo.db.table {
		if a.IsAttachedTo(owners...) {
			out = append(out, clone(*a))
		}
	}
	attachment.SortAttachments(out)
	return out, nil
}

func (repo *attachmentRepository) UpdateAttachment(_ context.Context, a attachment.Attachment) (attachment.Attachment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[a.ID]
	if !ok {
		return attachment.Attachment{}, attachment.ErrNotFound
	}
	stored.Name = a.Name
	stored.Comments = a.Comments
	stored.AttachedTo = append([]attachment.Owner(nil), a.AttachedTo...)
	return clone(*stored), nil
}

func (repo *attachmentRepository) DeleteAttachment(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return attachment.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
