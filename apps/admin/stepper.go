package main

import (
	"context"
	"fmt"
	"strings"
)

// printStepper prints the step tree of a proposal as uname sees it, with the
// errors of every step.
func (cli *commandLine) printStepper(proposalID, uname, path string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	st, err := cli.reviewSvc.Stepper(ctx, usr, proposalID)
	if err != nil {
		return err
	}

	p := st.Proposal()
	fmt.Fprintf(cli.out, "%s %s [%s]\n", p.Reference, p.Title, p.Status)

	current := st.Current(path)
	for _, it := range st.Flatten() {
		marker := " "
		if it == current {
			marker = ">"
		}
		fmt.Fprintf(cli.out, "%s %s%s\n", marker, strings.Repeat("  ", it.Depth()), it.Title)
		for _, e := range it.Errors() {
			fmt.Fprintf(cli.out, "  %s  ! %s\n", strings.Repeat("  ", it.Depth()), e)
		}
	}

	for _, slot := range st.Slots() {
		state := "missing"
		if slot.Attachment != nil {
			state = slot.Attachment.Upload.Name
		} else if !slot.Missing() {
			state = "-"
		}
		fmt.Fprintf(cli.out, "  [%s] %s %s: %s\n", slot.Desiredness(), slot.Owner.Type, slot.Info().Name, state)
	}

	if st.CanSubmit() {
		fmt.Fprintln(cli.out, "ready to submit")
	} else {
		titles := make([]string, 0)
		for _, it := range st.Incomplete() {
			titles = append(titles, it.Title)
		}
		fmt.Fprintf(cli.out, "incomplete: %s\n", strings.Join(titles, ", "))
	}
	return nil
}
