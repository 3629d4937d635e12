package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/fetc/proposals/core/review"
	"github.com/fetc/proposals/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB
	usrSvc    user.Service
	reviewSvc review.Service
	validate  *validator.Validate
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL -lastname NAME [-firstname NAME] [-roles ROLES] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  stepper -proposal ID -username USERNAME|EMAIL [-path PATH] - print the steps of a proposal")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(label string) (string, error) {
	fmt.Fprint(cli.out, label+":")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	return string(pwd), err
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserFirst := addUserCmd.String("firstname", "", "The user's first name.")
	addUserLast := addUserCmd.String("lastname", "", "The user's last name.")
	addUserRoles := addUserCmd.String("roles", user.RoleResearcher, "Comma separated roles: "+strings.Join(user.AllRoles, ", "))

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	stepperCmd := flag.NewFlagSet("stepper", flag.ContinueOnError)
	stepperProposal := stepperCmd.String("proposal", "", "The proposal's ID.")
	stepperUname := stepperCmd.String("username", "", "The username or email of the user viewing the proposal.")
	stepperPath := stepperCmd.String("path", "", "Marks the step at this page as current.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, stepperCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" || *addUserEmail == "" || *addUserLast == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			Username:        *addUserUname,
			Email:           *addUserEmail,
			FirstName:       *addUserFirst,
			LastName:        *addUserLast,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           strings.Split(*addUserRoles, ","),
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "stepper":
		if err := stepperCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *stepperProposal == "" || *stepperUname == "" {
			stepperCmd.Usage()
			return errHelp
		}
		return cli.printStepper(*stepperProposal, *stepperUname, *stepperPath)

	default:
		cli.printUsage()
		return errHelp
	}
}
