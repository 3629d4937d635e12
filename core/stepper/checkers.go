package stepper

import (
	"fmt"

	"github.com/fetc/proposals/core/proposal"
)

// rootChecker picks the chain for the proposal variant.
type rootChecker struct{}

func (rootChecker) Check(s *Stepper, parent *Item) Result {
	var next Checker
	switch {
	case s.proposal.IsPreAssessment:
		next = preAssessmentChecker{}
	case s.proposal.IsPreApproved:
		next = preApprovedChecker{}
	default:
		next = basicDetailsChecker{}
	}
	return Result{Next: []Task{{Checker: next, Parent: parent}}}
}

// formChecker adds a single form step.
type formChecker struct {
	step  formStep
	loc   Location
	study *proposal.Study
}

func (c formChecker) Check(_ *Stepper, _ *Item) Result {
	return Result{Items: []*Item{c.step.item(c.loc, c.study)}}
}

func proposalStep(s *Stepper, step formStep, page string) formChecker {
	return formChecker{step: step, loc: URLLocation{Path: proposalURL(s.proposal.ID, page)}}
}

// basicDetailsChecker groups the general steps under one container.
type basicDetailsChecker struct{}

func (basicDetailsChecker) Check(s *Stepper, parent *Item) Result {
	container := &Item{
		Title:    "Basic details",
		Location: URLLocation{Path: proposalURL(s.proposal.ID, "update")},
	}
	return Result{
		Items: []*Item{container},
		Next: []Task{
			{Checker: proposalStep(s, startStep, "update"), Parent: container},
			{Checker: proposalStep(s, researchersStep, "researchers"), Parent: container},
			{Checker: proposalStep(s, otherResearchersStep, "other-researchers"), Parent: container},
			{Checker: proposalStep(s, fundingStep, "funding"), Parent: container},
			{Checker: proposalStep(s, goalsStep, "goals"), Parent: container},
			{Checker: wmoChecker{next: trajectoriesChecker{}}, Parent: parent},
		},
	}
}

// wmoChecker adds the triage step and, on the METC route, the application step.
type wmoChecker struct {
	next Checker
}

func (c wmoChecker) Check(s *Stepper, parent *Item) Result {
	it := wmoStep.item(URLLocation{Path: proposalURL(s.proposal.ID, "wmo")}, nil)
	res := Result{Items: []*Item{it}}
	if s.proposal.Wmo.NeedsMetc() {
		res.Next = []Task{{Checker: wmoApplicationChecker{next: c.next}, Parent: parent}}
	} else {
		res.Next = []Task{{Checker: c.next, Parent: parent}}
	}
	return res
}

// wmoApplicationChecker stops the walk while the METC decision is awaited.
type wmoApplicationChecker struct {
	next Checker
}

func (c wmoApplicationChecker) Check(s *Stepper, parent *Item) Result {
	it := wmoApplicationStep.item(URLLocation{Path: proposalURL(s.proposal.ID, "wmo/application")}, nil)
	if s.proposal.Wmo.Status() == proposal.WmoStatusWaiting {
		it.check = func(*Stepper) []string {
			return []string{"the application can continue once the METC decision has been received"}
		}
		return Result{Items: []*Item{it}}
	}
	return Result{Items: []*Item{it}, Next: []Task{{Checker: c.next, Parent: parent}}}
}

// trajectoriesChecker adds one subtree per study. With several studies each
// subtree gets its own container; a single study attaches directly.
type trajectoriesChecker struct{}

func (trajectoriesChecker) Check(s *Stepper, parent *Item) Result {
	it := &Item{
		Title:    "Trajectories",
		Location: URLLocation{Path: proposalURL(s.proposal.ID, "trajectories")},
		check: func(s *Stepper) []string {
			if len(s.proposal.Studies) == 0 {
				return []string{"add at least one trajectory"}
			}
			return nil
		},
	}

	var next []Task
	multi := len(s.proposal.Studies) > 1
	for i := range s.proposal.Studies {
		st := &s.proposal.Studies[i]
		studyParent := it
		if multi {
			title := fmt.Sprintf("Trajectory %d", st.Order)
			if st.Name != "" {
				title += ": " + st.Name
			}
			container := &Item{Title: title, Location: URLLocation{Path: studyURL(st.ID, "update")}}
			it.appendChild(container)
			studyParent = container
		}
		next = append(next, Task{Checker: studyChecker{study: st}, Parent: studyParent})
	}
	next = append(next, Task{Checker: dataManagementChecker{}, Parent: parent})
	return Result{Items: []*Item{it}, Next: next}
}

// studyChecker adds the steps of one study, depending on its chosen designs.
type studyChecker struct {
	study *proposal.Study
}

func (c studyChecker) Check(_ *Stepper, _ *Item) Result {
	st := c.study
	items := []*Item{
		participantsStep.item(URLLocation{Path: studyURL(st.ID, "update")}, st),
		designStep.item(URLLocation{Path: studyURL(st.ID, "design")}, st),
	}
	if st.HasIntervention {
		items = append(items, interventionStep.item(URLLocation{Path: studyURL(st.ID, "intervention")}, st))
	}
	if st.HasObservation {
		items = append(items, observationStep.item(URLLocation{Path: studyURL(st.ID, "observation")}, st))
	}
	if st.HasSessions {
		items = append(items, sessionsItem(st))
	}
	items = append(items, overviewStep.item(URLLocation{Path: studyURL(st.ID, "end")}, st))
	return Result{Items: items}
}

// sessionsItem stands in for every session and task page of the study.
func sessionsItem(st *proposal.Study) *Item {
	return &Item{
		Title:    "Sessions",
		Location: SessionsLocation{StudyID: st.ID},
		check: func(s *Stepper) []string {
			if len(st.Sessions) == 0 {
				return []string{"add at least one session"}
			}
			var errs []string
			for _, ses := range st.Sessions {
				for _, e := range s.formErrors(sessionForm(ses)) {
					errs = append(errs, fmt.Sprintf("session %d: %s", ses.Order, e))
				}
			}
			return errs
		},
	}
}

type dataManagementChecker struct{}

func (dataManagementChecker) Check(s *Stepper, parent *Item) Result {
	it := dataManagementStep.item(URLLocation{Path: proposalURL(s.proposal.ID, "data-management")}, nil)
	return Result{Items: []*Item{it}, Next: []Task{{Checker: attachmentsChecker{}, Parent: parent}}}
}

// attachmentsChecker folds the missing required documents into one item.
type attachmentsChecker struct{}

func (attachmentsChecker) Check(s *Stepper, parent *Item) Result {
	it := &Item{
		Title:    "Documents",
		Location: URLLocation{Path: proposalURL(s.proposal.ID, "attachments")},
		check:    missingSlotErrors,
	}
	return Result{Items: []*Item{it}, Next: []Task{{Checker: translationChecker{}, Parent: parent}}}
}

type translationChecker struct{}

func (translationChecker) Check(s *Stepper, parent *Item) Result {
	it := translationStep.item(URLLocation{Path: proposalURL(s.proposal.ID, "translation")}, nil)
	return Result{Items: []*Item{it}, Next: []Task{{Checker: submitChecker{}, Parent: parent}}}
}

// submitChecker adds the final step. It reports one error when any other step is incomplete.
type submitChecker struct{}

func (submitChecker) Check(s *Stepper, _ *Item) Result {
	it := submitStep.item(URLLocation{Path: proposalURL(s.proposal.ID, "submit")}, nil)
	it.deferred = true
	it.check = func(s *Stepper) []string {
		if len(s.incomplete) > 0 {
			return []string{stillHasErrors}
		}
		return nil
	}
	s.submit = it
	return Result{Items: []*Item{it}}
}

type preAssessmentChecker struct{}

func (preAssessmentChecker) Check(s *Stepper, parent *Item) Result {
	it := preAssessmentStep.item(URLLocation{Path: proposalURL(s.proposal.ID, "pre-assessment/update")}, nil)
	return Result{
		Items: []*Item{it},
		Next:  []Task{{Checker: wmoChecker{next: preAssessmentUploadChecker{}}, Parent: parent}},
	}
}

type preAssessmentUploadChecker struct{}

func (preAssessmentUploadChecker) Check(s *Stepper, parent *Item) Result {
	it := &Item{
		Title:    "Upload pre-assessment",
		Location: URLLocation{Path: proposalURL(s.proposal.ID, "pre-assessment/upload")},
		check:    missingSlotErrors,
	}
	return Result{Items: []*Item{it}, Next: []Task{{Checker: submitChecker{}, Parent: parent}}}
}

type preApprovedChecker struct{}

func (preApprovedChecker) Check(s *Stepper, parent *Item) Result {
	it := preApprovedStep.item(URLLocation{Path: proposalURL(s.proposal.ID, "pre-approved/update")}, nil)
	it.check = missingSlotErrors
	return Result{Items: []*Item{it}, Next: []Task{{Checker: submitChecker{}, Parent: parent}}}
}
