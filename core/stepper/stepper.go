// Package stepper computes, from a proposal's current answers, the ordered tree of
// steps an applicant has to go through and which of them are still incomplete.
//
// The tree is built by a walk over checkers. Each checker looks at the proposal,
// contributes items under its parent and returns the checkers to continue with;
// those run before any checker queued earlier. Nothing is cached: a Stepper is
// built per request and reflects the data it was given.
package stepper

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/user"
)

const stillHasErrors = "the application still has errors"

// Checker contributes items under parent and returns the work that follows.
type Checker interface {
	Check(s *Stepper, parent *Item) Result
}

// Result of a check. Items are appended to the task's parent; Next runs before any
// task queued earlier, in order.
type Result struct {
	Items []*Item
	Next  []Task
}

// Task binds a checker to the item its items attach to; nil is the top level.
type Task struct {
	Checker Checker
	Parent  *Item
}

type Options struct {
	Validate   *validator.Validate
	Translator ut.Translator
}

type Stepper struct {
	proposal *proposal.Proposal
	user     user.User
	pool     *attachment.Pool
	opts     Options

	items      []*Item
	slots      []*attachment.Slot
	slotsBuilt bool
	incomplete []*Item
	submit     *Item
}

// New walks the checkers for p as seen by usr. pool holds the attachments of p, its
// studies and its parent proposal.
func New(p proposal.Proposal, usr user.User, pool *attachment.Pool, opts Options) *Stepper {
	if pool == nil {
		pool = attachment.NewPool(nil)
	}
	s := &Stepper{proposal: &p, user: usr, pool: pool, opts: opts}
	s.walk(rootChecker{})
	s.computeErrors()
	return s
}

func (s *Stepper) walk(root Checker) {
	queue := []Task{{Checker: root}}
	for len(queue) > 0 {
		task := queue[0]
		queue = queue[1:]

		res := task.Checker.Check(s, task.Parent)
		for _, it := range res.Items {
			if task.Parent == nil {
				s.items = append(s.items, it)
			} else {
				task.Parent.appendChild(it)
			}
		}
		if len(res.Next) > 0 {
			queue = append(append([]Task{}, res.Next...), queue...)
		}
	}
}

// computeErrors runs in two passes so deferred items can consult the errors of
// every other item without recomputing them.
func (s *Stepper) computeErrors() {
	all := s.Flatten()
	for _, it := range all {
		if !it.deferred {
			it.errors = s.itemErrors(it)
		}
	}
	s.incomplete = lo.Filter(all, func(it *Item, _ int) bool { return len(it.errors) > 0 })
	for _, it := range all {
		if it.deferred {
			it.errors = s.itemErrors(it)
		}
	}
}

func (s *Stepper) itemErrors(it *Item) []string {
	var errs []string
	if it.form != nil {
		errs = s.formErrors(it.form(s))
	}
	if it.check != nil {
		errs = append(errs, it.check(s)...)
	}
	return errs
}

func (s *Stepper) formErrors(form interface{}) []string {
	if s.opts.Validate == nil {
		return nil
	}
	fErrs := core.TranslateErrors(s.opts.Validate.Struct(form), s.opts.Translator)
	errs := make([]string, 0, len(fErrs))
	for _, fe := range fErrs {
		if fe.Field == "" {
			errs = append(errs, fe.Error)
			continue
		}
		errs = append(errs, fmt.Sprintf("%s: %s", fe.Field, fe.Error))
	}
	return errs
}

func (s *Stepper) Proposal() *proposal.Proposal { return s.proposal }

// Items returns the top level items.
func (s *Stepper) Items() []*Item { return s.items }

// Flatten returns every item in display order.
func (s *Stepper) Flatten() []*Item {
	var out []*Item
	var visit func(items []*Item)
	visit = func(items []*Item) {
		for _, it := range items {
			out = append(out, it)
			visit(it.Children)
		}
	}
	visit(s.items)
	return out
}

// Current returns the item targeted by path, or nil. Containers share the URL of
// their first step, so the deepest match wins.
func (s *Stepper) Current(path string) *Item {
	var current *Item
	for _, it := range s.Flatten() {
		if it.IsCurrent(path, s.proposal) && (current == nil || it.Depth() > current.Depth()) {
			current = it
		}
	}
	return current
}

// Incomplete returns the items with errors of their own, in display order.
func (s *Stepper) Incomplete() []*Item {
	return lo.Filter(s.Flatten(), func(it *Item, _ int) bool { return len(it.errors) > 0 })
}

func (s *Stepper) HasErrors() bool {
	return lo.SomeBy(s.items, func(it *Item) bool { return it.HasErrors() })
}

// CanSubmit reports whether the walk reached the submit step and nothing is incomplete.
func (s *Stepper) CanSubmit() bool {
	return s.submit != nil && !s.HasErrors()
}

// Slots returns the matched and numbered attachment slots of the proposal.
func (s *Stepper) Slots() []*attachment.Slot {
	if !s.slotsBuilt {
		s.slots = buildSlots(s.proposal, s.pool)
		s.slotsBuilt = true
	}
	return s.slots
}

// Entries returns the slots with optionality groups merged.
func (s *Stepper) Entries() []attachment.Entry {
	return attachment.MergeGroups(s.Slots())
}
