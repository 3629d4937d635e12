package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/review"
	"github.com/fetc/proposals/core/user"
	emailsvc "github.com/fetc/proposals/services/email"
	logsvc "github.com/fetc/proposals/services/logger"
	sqlxrepos "github.com/fetc/proposals/storage/database/sqlx"
	"github.com/fetc/proposals/storage/files"
	testutil "github.com/fetc/proposals/tests"
)

type fixture struct {
	cli     *commandLine
	out     *bytes.Buffer
	usrRepo user.Repository
}

func setup(t *testing.T) *fixture {
	// set up DB & repos
	db := testutil.OpenDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)

	conf := &core.Config{AppName: "FETC", Committee: "AK"}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	validate, translator := testutil.NewValidator()
	usrSvc := user.NewService(usrRepo)

	out := new(bytes.Buffer)
	cli := &commandLine{
		db:     db,
		usrSvc: usrSvc,
		reviewSvc: review.NewService(review.Deps{
			Conf:        conf,
			Proposals:   sqlxrepos.NewProposalRepository(db),
			Attachments: sqlxrepos.NewAttachmentRepository(db),
			Users:       usrSvc,
			Files:       files.NewStore(t.TempDir()),
			Mailer:      emailsvc.NewConsoleServiceMock(conf, logger),
			Logger:      logger,
			Validate:    validate,
			Translator:  translator,
		}),
		validate: validate,
		out:      out,
	}
	return &fixture{cli: cli, out: out, usrRepo: usrRepo}
}

// withPassword makes the password prompt answer pwd for the duration of the test.
func withPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	var ran []string
	orig := runMigrationsFunc
	runMigrationsFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		ran = append(ran, strings.Join(append([]string{command}, args...), " "))
		return nil
	}
	t.Cleanup(func() { runMigrationsFunc = orig })

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
	assert.Equal(t, []string{"up", "up-to 1", "status"}, ran)
}

func Test_commandLine_migrateForReal(t *testing.T) {
	f := setup(t)

	// the schema is already up to date
	require.NoError(t, f.cli.run([]string{"admin", "migrate", "up"}))
	require.NoError(t, f.cli.run([]string{"admin", "migrate", "version"}))
	assert.Error(t, f.cli.run([]string{"admin", "migrate", "lol"}))
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "Ann", "Jansen", "jansen", "ann@example.com", "", nil)

	const pwd = "Tr0ub4dor&3x"
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "last name required", args: []string{"adduser", "-username", "devries", "-email", "sam@example.com"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "devries", "-email", "sam@example.com", "-lastname", "de Vries"}, wantErr: errHelp},
		{name: "weak password", args: []string{"adduser", "-username", "devries", "-email", "sam@example.com", "-lastname", "de Vries"}, pwd: "password", wantErrStr: "pwd"},
		{name: "unknown role", args: []string{"adduser", "-username", "devries", "-email", "sam@example.com", "-lastname", "de Vries", "-roles", "admin"}, pwd: pwd, wantErrStr: "allroles"},
		{name: "email taken", args: []string{"adduser", "-username", "devries", "-email", "ann@example.com", "-lastname", "de Vries"}, pwd: pwd, wantErr: user.ErrEmailExists},
		{name: "created", args: []string{"adduser", "-username", "DeVries", "-email", "sam@example.com", "-firstname", "Sam", "-lastname", "de Vries", "-roles", user.RoleSecretary + "," + user.RoleMember}, pwd: pwd},
		{name: "updated", args: []string{"adduser", "-username", "devries", "-email", "sam@example.org", "-lastname", "de Vries", "-roles", user.RoleChair}, pwd: pwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withPassword(t, tt.pwd)
			err := f.cli.run(append([]string{"admin"}, tt.args...))
			var ve *core.ValidationError
			if errors.As(err, &ve) && tt.wantErr != nil {
				err = ve.Err
			}
			tt.check(t, err)
		})
	}

	usr, err := f.usrRepo.GetUserByUsernameOrEmail(context.Background(), "devries")
	require.NoError(t, err)
	assert.Equal(t, "sam@example.org", usr.Email)
	assert.Empty(t, usr.FirstName)
	assert.Equal(t, []string{user.RoleChair}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(pwd))
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, "Ann", "Jansen", "jansen", "ann@example.com", "old", nil)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "jansen"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withPassword(t, tt.pwd)
			tt.check(t, f.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	refreshed, err := f.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_stepper(t *testing.T) {
	f := setup(t)
	ann := testutil.CreateUser(t, f.usrRepo, "Ann", "Jansen", "jansen", "ann@example.com", "", nil)
	testutil.CreateUser(t, f.usrRepo, "Eve", "Visser", "visser", "eve@example.com", "", nil)

	p, err := f.cli.reviewSvc.Create(context.Background(), ann, proposal.NewProposal{Title: "Reading"})
	require.NoError(t, err)
	// consent from adults asks for a letter and a form
	p.Studies[0].LegalBasis = proposal.LegalBasisConsent
	p.Studies[0].AgeGroups = []proposal.AgeGroup{proposal.AgeGroupAdults}
	p, err = f.cli.reviewSvc.Update(context.Background(), ann, p)
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no args", args: []string{"stepper"}, wantErr: errHelp},
		{name: "unknown user", args: []string{"stepper", "-proposal", p.ID, "-username", "lol"}, wantErr: user.ErrNotFound},
		{name: "unknown proposal", args: []string{"stepper", "-proposal", "lol", "-username", "jansen"}, wantErr: proposal.ErrNotFound},
		{name: "outsider", args: []string{"stepper", "-proposal", p.ID, "-username", "visser"}, wantErr: review.ErrForbidden},
		{name: "printed", args: []string{"stepper", "-proposal", p.ID, "-username", "jansen"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.out.Reset()
			tt.check(t, f.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	out := f.out.String()
	assert.True(t, strings.HasPrefix(out, p.Reference+" Reading [draft]\n"), out)
	assert.Contains(t, out, "Documents")
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "incomplete: ")
}
