package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/attachment"
)

const attachmentColumns = "id, kind, parent_id, upload_key, upload_name, name, comments, author_id, created_at"

type attachmentRow struct {
	ID         string      `db:"id"`
	Kind       string      `db:"kind"`
	ParentID   null.String `db:"parent_id"`
	UploadKey  string      `db:"upload_key"`
	UploadName string      `db:"upload_name"`
	Name       string      `db:"name"`
	Comments   string      `db:"comments"`
	AuthorID   string      `db:"author_id"`
	CreatedAt  time.Time   `db:"created_at"`
}

type ownerRow struct {
	AttachmentID string `db:"attachment_id"`
	OwnerType    string `db:"owner_type"`
	OwnerID      string `db:"owner_id"`
}

type attachmentRepository struct {
	db core.DB
}

var _ attachment.Repository = (*attachmentRepository)(nil) // interface compliance check

func NewAttachmentRepository(db core.DB) attachment.Repository {
	return &attachmentRepository{db: db}
}

func (repo attachmentRepository) toRow(a attachment.Attachment) attachmentRow {
	return attachmentRow{
		ID:         a.ID,
		Kind:       string(a.Kind),
		ParentID:   null.NewString(a.ParentID, a.ParentID != ""),
		UploadKey:  a.Upload.Key,
		UploadName: a.Upload.Name,
		Name:       a.Name,
		Comments:   a.Comments,
		AuthorID:   a.AuthorID,
		CreatedAt:  a.CreatedAt.UTC(),
	}
}

func (repo attachmentRepository) fromRow(row attachmentRow, owners []attachment.Owner) attachment.Attachment {
	return attachment.Attachment{
		ID:         row.ID,
		Kind:       attachment.Kind(row.Kind),
		ParentID:   row.ParentID.String,
		Upload:     attachment.Upload{Key: row.UploadKey, Name: row.UploadName},
		Name:       row.Name,
		Comments:   row.Comments,
		AttachedTo: owners,
		AuthorID:   row.AuthorID,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

// trapNoRowsErr maps sql "no rows" err to attachment.ErrNotFound
func (repo attachmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attachment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// owners loads the owners of the attachments ids, keyed by attachment id.
func (repo attachmentRepository) owners(ctx context.Context, exec core.DBExecutor, ids ...string) (map[string][]attachment.Owner, error) {
	byID := make(map[string][]attachment.Owner, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	q, args, err := in(exec, "SELECT attachment_id, owner_type, owner_id FROM attachment_owners WHERE attachment_id IN (?) ORDER BY owner_type, owner_id", ids)
	if err != nil {
		return nil, errors.Wrap(err, "selecting owners")
	}
	var rows []ownerRow
	if err := exec.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting owners")
	}
	for _, r := range rows {
		byID[r.AttachmentID] = append(byID[r.AttachmentID], attachment.Owner{Type: attachment.OwnerType(r.OwnerType), ID: r.OwnerID})
	}
	return byID, nil
}

func (repo attachmentRepository) saveOwners(ctx context.Context, tx *sqlx.Tx, a attachment.Attachment) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM attachment_owners WHERE attachment_id = ?"), a.ID); err != nil {
		return errors.Wrap(err, "clearing owners")
	}
	q := tx.Rebind("INSERT INTO attachment_owners (attachment_id, owner_type, owner_id) VALUES (?, ?, ?)")
	seen := make(map[attachment.Owner]bool, len(a.AttachedTo))
	for _, o := range a.AttachedTo {
		if seen[o] {
			continue
		}
		seen[o] = true
		if _, err := tx.ExecContext(ctx, q, a.ID, string(o.Type), o.ID); err != nil {
			return errors.Wrap(err, "inserting owner")
		}
	}
	return nil
}

func (repo attachmentRepository) CreateAttachment(ctx context.Context, a attachment.Attachment) (attachment.Attachment, error) {
	a.ID = uuid.New().String()
	row := repo.toRow(a)
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := tx.Rebind("INSERT INTO attachments (" + attachmentColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
		_, err := tx.ExecContext(ctx, q,
			row.ID, row.Kind, row.ParentID, row.UploadKey, row.UploadName,
			row.Name, row.Comments, row.AuthorID, row.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "inserting attachment")
		}
		return repo.saveOwners(ctx, tx, a)
	})
	if err != nil {
		return attachment.Attachment{}, err
	}
	return repo.GetAttachment(ctx, a.ID)
}

func (repo attachmentRepository) GetAttachment(ctx context.Context, id string) (attachment.Attachment, error) {
	var row attachmentRow
	q := repo.db.Rebind("SELECT " + attachmentColumns + " FROM attachments WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return attachment.Attachment{}, repo.trapNoRowsErr(err, "selecting attachment")
	}
	owners, err := repo.owners(ctx, repo.db, id)
	if err != nil {
		return attachment.Attachment{}, err
	}
	return repo.fromRow(row, owners[id]), nil
}

func (repo attachmentRepository) ListAttachments(ctx context.Context, owners ...attachment.Owner) ([]attachment.Attachment, error) {
	if len(owners) == 0 {
		return []attachment.Attachment{}, nil
	}
	conds := make([]string, 0, len(owners))
	args := make([]interface{}, 0, 2*len(owners))
	for _, o := range owners {
		conds = append(conds, "(owner_type = ? AND owner_id = ?)")
		args = append(args, string(o.Type), o.ID)
	}
	q := repo.db.Rebind("SELECT " + attachmentColumns + " FROM attachments WHERE id IN (" +
		"SELECT attachment_id FROM attachment_owners WHERE " + strings.Join(conds, " OR ") + ")")

	var rows []attachmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attachments")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	byID, err := repo.owners(ctx, repo.db, ids...)
	if err != nil {
		return nil, err
	}

	atts := make([]attachment.Attachment, 0, len(rows))
	for _, r := range rows {
		atts = append(atts, repo.fromRow(r, byID[r.ID]))
	}
	attachment.SortAttachments(atts)
	return atts, nil
}

func (repo attachmentRepository) UpdateAttachment(ctx context.Context, a attachment.Attachment) (attachment.Attachment, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := tx.Rebind("UPDATE attachments SET name = ?, comments = ? WHERE id = ?")
		res, err := tx.ExecContext(ctx, q, a.Name, a.Comments, a.ID)
		if err != nil {
			return errors.Wrap(err, "updating attachment")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return attachment.ErrNotFound
		}
		return repo.saveOwners(ctx, tx, a)
	})
	if err != nil {
		return attachment.Attachment{}, err
	}
	return repo.GetAttachment(ctx, a.ID)
}

func (repo attachmentRepository) DeleteAttachment(ctx context.Context, id string) error {
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM attachment_owners WHERE attachment_id = ?"), id); err != nil {
			return errors.Wrap(err, "deleting owners")
		}
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM attachments WHERE id = ?"), id)
		if err != nil {
			return errors.Wrap(err, "deleting attachment")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return attachment.ErrNotFound
		}
		return nil
	})
}
