package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/user"
)

const userColumns = "id, username, email, first_name, last_name, is_active, roles, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           string      `db:"id"`
	Username     string      `db:"username"`
	Email        null.String `db:"email"`
	FirstName    string      `db:"first_name"`
	LastName     string      `db:"last_name"`
	IsActive     bool        `db:"is_active"`
	Roles        string      `db:"roles"`
	PasswordHash null.String `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Username:     usr.Username,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		IsActive:     usr.IsActive,
		Roles:        strings.Join(usr.Roles, ","),
		PasswordHash: null.NewString(string(usr.PasswordHash), len(usr.PasswordHash) > 0),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	usr := user.User{
		ID:        row.ID,
		Username:  row.Username,
		Email:     row.Email.String,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if row.Roles != "" {
		usr.Roles = strings.Split(row.Roles, ",")
	}
	if row.PasswordHash.Valid {
		usr.PasswordHash = []byte(row.PasswordHash.String)
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

// trapNoRowsErr maps sql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := "SELECT username, email FROM users WHERE (username = ? OR email = ?)"
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += " AND id NOT IN (?)"
		args = append(args, ids)
	}
	q, args, err := in(repo.db, query, args...)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}

	var found []struct {
		Username string      `db:"username"`
		Email    null.String `db:"email"`
	}
	if err := repo.db.SelectContext(ctx, &found, q, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, f := range found {
		if f.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(found) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.toRow(usr)
	q := repo.db.Rebind("INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err := repo.db.ExecContext(ctx, q,
		row.ID, row.Username, row.Email, row.FirstName, row.LastName, row.IsActive,
		row.Roles, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) getBy(ctx context.Context, where string, args ...interface{}) (user.User, error) {
	var row userRow
	q := repo.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + where)
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "selecting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getBy(ctx, "id = ?", id)
}

// GetUsersByID skips unknown ids.
func (repo userRepository) GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	q, args, err := in(repo.db, "SELECT "+userColumns+" FROM users WHERE id IN (?)", ids)
	if err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}

	byID := make(map[string]userRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	// keep the order of ids
	users := make([]user.User, 0, len(rows))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			users = append(users, repo.fromRow(r))
			delete(byID, id)
		}
	}
	return users, nil
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getBy(ctx, "username = ? OR email = ?", username, username)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := repo.toRow(usr)
	q := repo.db.Rebind(`UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, is_active = ?,
		roles = ?, password_hash = ?, updated_at = ?, last_login = ? WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q,
		row.Username, row.Email, row.FirstName, row.LastName, row.IsActive,
		row.Roles, row.PasswordHash, row.UpdatedAt, row.LastLogin, row.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}
