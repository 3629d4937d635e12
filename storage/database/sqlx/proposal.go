package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/volatiletech/null/v8"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/proposal"
)

const proposalColumns = "id, reference, title, status, parent_id, created_by_id, supervisor_id, pdf_key, created_at, updated_at, date_submitted, data"

// proposalRow keeps the columns used for lookups next to the whole proposal as JSON.
type proposalRow struct {
	ID            string      `db:"id"`
	Reference     string      `db:"reference"`
	Title         string      `db:"title"`
	Status        string      `db:"status"`
	ParentID      null.String `db:"parent_id"`
	CreatedByID   string      `db:"created_by_id"`
	SupervisorID  null.String `db:"supervisor_id"`
	PDFKey        null.String `db:"pdf_key"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
	DateSubmitted null.Time   `db:"date_submitted"`
	Data          string      `db:"data"`
}

var proposalOrderings = map[string]string{
	"created_at":     "created_at",
	"reference":      "reference",
	"title":          "title",
	"date_submitted": "date_submitted",
}

type proposalRepository struct {
	db core.DB
}

var _ proposal.Repository = (*proposalRepository)(nil) // interface compliance check

func NewProposalRepository(db core.DB) proposal.Repository {
	return &proposalRepository{db: db}
}

func newID() string { return uuid.New().String() }

func (repo proposalRepository) toRow(p proposal.Proposal) (proposalRow, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return proposalRow{}, errors.Wrap(err, "encoding proposal")
	}
	row := proposalRow{
		ID:           p.ID,
		Reference:    p.Reference,
		Title:        p.Title,
		Status:       string(p.Status),
		ParentID:     null.NewString(p.ParentID, p.ParentID != ""),
		CreatedByID:  p.CreatedByID,
		SupervisorID: null.NewString(p.SupervisorID, p.SupervisorID != ""),
		PDFKey:       null.NewString(p.PDFKey, p.PDFKey != ""),
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
		Data:         string(data),
	}
	if p.DateSubmitted != nil {
		row.DateSubmitted = null.TimeFrom(p.DateSubmitted.UTC())
	}
	return row, nil
}

func (repo proposalRepository) fromRow(row proposalRow) (proposal.Proposal, error) {
	var p proposal.Proposal
	if err := json.Unmarshal([]byte(row.Data), &p); err != nil {
		return proposal.Proposal{}, errors.Wrapf(err, "decoding proposal %s", row.ID)
	}
	p.PDFKey = row.PDFKey.String
	return p, nil
}

// trapNoRowsErr maps sql "no rows" err to proposal.ErrNotFound
func (repo proposalRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return proposal.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo proposalRepository) references(ctx context.Context, pattern string) ([]string, error) {
	var refs []string
	q := repo.db.Rebind("SELECT reference FROM proposals WHERE reference LIKE ?")
	if err := repo.db.SelectContext(ctx, &refs, q, pattern); err != nil {
		return nil, errors.Wrap(err, "selecting references")
	}
	return refs, nil
}

// bump raises a counter atomically: the stored value plus one, or floor when the
// stored value is below it. It returns the new value.
func (repo proposalRepository) bump(ctx context.Context, table, keyCol, valCol string, key interface{}, floor int) (int, error) {
	q := repo.db.Rebind(fmt.Sprintf(
		`INSERT INTO %[1]s (%[2]s, %[3]s) VALUES (?, ?)
		ON CONFLICT (%[2]s) DO UPDATE SET %[3]s = CASE
			WHEN %[1]s.%[3]s >= excluded.%[3]s THEN %[1]s.%[3]s + 1
			ELSE excluded.%[3]s
		END
		RETURNING %[3]s`, table, keyCol, valCol))

	var next int
	if err := repo.db.GetContext(ctx, &next, q, key, floor); err != nil {
		return 0, errors.Wrapf(err, "bumping %s", table)
	}
	return next, nil
}

func (repo proposalRepository) NextReference(ctx context.Context, year int) (proposal.Reference, error) {
	refs, err := repo.references(ctx, proposal.YearPrefix(year))
	if err != nil {
		return proposal.Reference{}, err
	}
	seq, err := repo.bump(ctx, "reference_counters", "year", "last_seq", year, proposal.MaxSequence(refs, year)+1)
	if err != nil {
		return proposal.Reference{}, err
	}
	return proposal.NewReference(year, seq), nil
}

// chainPattern is the LIKE pattern matching every version of the chain of r.
func chainPattern(r proposal.Reference) string {
	if r.Format == proposal.FormatCurrent {
		return r.ChainKey() + "-%"
	}
	return fmt.Sprintf("%s-%02d-%%", r.Username, r.Seq)
}

func (repo proposalRepository) NextRevisionReference(ctx context.Context, parent proposal.Reference) (proposal.Reference, error) {
	refs, err := repo.references(ctx, chainPattern(parent))
	if err != nil {
		return proposal.Reference{}, err
	}
	key := parent.ChainKey()
	version, err := repo.bump(ctx, "reference_chains", "chain_key", "last_version", key, proposal.MaxVersion(refs, key)+1)
	if err != nil {
		return proposal.Reference{}, err
	}
	return parent.WithVersion(version), nil
}

// participants are the users a proposal is listed for.
func participants(p proposal.Proposal) []string {
	ids := append([]string{p.CreatedByID}, p.ApplicantIDs...)
	if p.SupervisorID != "" {
		ids = append(ids, p.SupervisorID)
	}
	return lo.Uniq(lo.Compact(ids))
}

func (repo proposalRepository) saveParticipants(ctx context.Context, tx *sqlx.Tx, p proposal.Proposal) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM proposal_users WHERE proposal_id = ?"), p.ID); err != nil {
		return errors.Wrap(err, "clearing participants")
	}
	q := tx.Rebind("INSERT INTO proposal_users (proposal_id, user_id) VALUES (?, ?)")
	for _, id := range participants(p) {
		if _, err := tx.ExecContext(ctx, q, p.ID, id); err != nil {
			return errors.Wrap(err, "inserting participant")
		}
	}
	return nil
}

func (repo proposalRepository) CreateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	p.ID = ""
	p.AssignIDs(newID)
	row, err := repo.toRow(p)
	if err != nil {
		return proposal.Proposal{}, err
	}

	err = inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var taken int
		if err := tx.GetContext(ctx, &taken, tx.Rebind("SELECT COUNT(*) FROM proposals WHERE reference = ?"), row.Reference); err != nil {
			return errors.Wrap(err, "checking reference")
		}
		if taken > 0 {
			return proposal.ErrReferenceExists
		}

		q := tx.Rebind("INSERT INTO proposals (" + proposalColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		_, err := tx.ExecContext(ctx, q,
			row.ID, row.Reference, row.Title, row.Status, row.ParentID, row.CreatedByID,
			row.SupervisorID, row.PDFKey, row.CreatedAt, row.UpdatedAt, row.DateSubmitted, row.Data,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return proposal.ErrReferenceExists
			}
			return errors.Wrap(err, "inserting proposal")
		}
		return repo.saveParticipants(ctx, tx, p)
	})
	if err != nil {
		return proposal.Proposal{}, err
	}
	return p, nil
}

func (repo proposalRepository) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	var row proposalRow
	q := repo.db.Rebind("SELECT " + proposalColumns + " FROM proposals WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return proposal.Proposal{}, repo.trapNoRowsErr(err, "selecting proposal")
	}
	return repo.fromRow(row)
}

func (repo proposalRepository) ListProposals(ctx context.Context, filter proposal.Filter) ([]proposal.Proposal, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.UserID != "" {
		conds = append(conds, "id IN (SELECT proposal_id FROM proposal_users WHERE user_id = ?)")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		conds = append(conds, "status IN (?)")
		args = append(args, lo.Map(filter.Statuses, func(s proposal.Status, _ int) string { return string(s) }))
	}
	if filter.Search != "" {
		conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(reference) LIKE ?)")
		val := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, val, val)
	}

	query := "SELECT " + proposalColumns + " FROM proposals"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	ordering := filter.Ordering
	if len(ordering) == 0 {
		ordering = proposal.DefaultOrdering
	}
	query += " ORDER BY " + core.OrderBy(ordering, proposalOrderings, "created_at DESC") + ", id ASC"

	q, args, err := in(repo.db, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building proposal query")
	}
	var rows []proposalRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting proposals")
	}

	out := make([]proposal.Proposal, 0, len(rows))
	for _, row := range rows {
		p, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (repo proposalRepository) UpdateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	p.AssignIDs(newID)
	row, err := repo.toRow(p)
	if err != nil {
		return proposal.Proposal{}, err
	}

	err = inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := tx.Rebind(`UPDATE proposals SET reference = ?, title = ?, status = ?, parent_id = ?, supervisor_id = ?,
			pdf_key = ?, updated_at = ?, date_submitted = ?, data = ? WHERE id = ?`)
		res, err := tx.ExecContext(ctx, q,
			row.Reference, row.Title, row.Status, row.ParentID, row.SupervisorID,
			row.PDFKey, row.UpdatedAt, row.DateSubmitted, row.Data, row.ID,
		)
		if err != nil {
			return errors.Wrap(err, "updating proposal")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return proposal.ErrNotFound
		}
		return repo.saveParticipants(ctx, tx, p)
	})
	if err != nil {
		return proposal.Proposal{}, err
	}
	return p, nil
}

func (repo proposalRepository) DeleteProposal(ctx context.Context, id string) error {
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM proposals WHERE id = ?"), id)
		if err != nil {
			return errors.Wrap(err, "deleting proposal")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return proposal.ErrNotFound
		}
		_, err = tx.ExecContext(ctx, tx.Rebind("DELETE FROM proposal_users WHERE proposal_id = ?"), id)
		return errors.Wrap(err, "deleting participants")
	})
}
