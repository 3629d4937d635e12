package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/fetc/proposals/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, nu.Username)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}
	if err == nil {
		if err := cli.usrSvc.CheckUniqueness(ctx, nu.Username, nu.Email, usr); err != nil {
			return err
		}
	} else {
		if err := cli.usrSvc.CheckUniqueness(ctx, nu.Username, nu.Email); err != nil {
			return err
		}
		usr = user.User{Username: nu.Username}
	}

	usr.Email = nu.Email
	usr.FirstName = nu.FirstName
	usr.LastName = nu.LastName
	usr.Roles = nu.Roles
	usr.IsActive = true
	if err := usr.SetPassword(nu.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	saved, err := cli.usrSvc.Save(ctx, usr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "saved user %s (%s)\n", saved.Username, saved.ID)
	return nil
}
