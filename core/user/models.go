package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/fetc/proposals/core"
)

// Roles
const (
	RoleResearcher = "researcher"
	RoleMember     = "committee:member"
	RoleSecretary  = "committee:secretary"
	RoleChair      = "committee:chair"

	roleCommitteePrefix = "committee:"
)

var (
	AllRoles = []string{RoleResearcher, RoleMember, RoleSecretary, RoleChair}

	Roles = []Role{
		{Name: "Researcher", Value: RoleResearcher},
		{Name: "Committee member", Value: RoleMember},
		{Name: "Secretary", Value: RoleSecretary},
		{Name: "Chair", Value: RoleChair},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u User) IsSecretary() bool { return u.HasRole(RoleSecretary) }
func (u User) IsChair() bool     { return u.HasRole(RoleChair) }

// IsCommitteeMember reports whether the user holds any committee role.
func (u User) IsCommitteeMember() bool {
	for _, r := range u.Roles {
		if strings.HasPrefix(r, roleCommitteePrefix) {
			return true
		}
	}
	return false
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username        string   `json:"username" validate:"required,min=3,alphanum_"`
	Email           string   `json:"email" validate:"required,email"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name" validate:"required"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	return validate.Struct(nu)
}
