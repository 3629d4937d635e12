package review

import (
	"context"
	"io"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/user"
	emailsvc "github.com/fetc/proposals/services/email"
	logsvc "github.com/fetc/proposals/services/logger"
	inmemdb "github.com/fetc/proposals/storage/database/inmem"
	"github.com/fetc/proposals/storage/files"
	testutil "github.com/fetc/proposals/tests"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *service
	mail   *emailsvc.ConsoleService
	atts   attachment.Repository
	files  *files.Store
	dir    string // root of files
	ann    user.User // applicant
	bob    user.User // supervisor
	eve    user.User // outsider
	sec    user.User
	member user.User // committee member without decision rights
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.Open()
	userRepo := inmemdb.NewUserRepository(db)
	conf := &core.Config{AppName: "FETC", Committee: "AK", FrontendBaseURL: "http://localhost:3000"}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	validate, translator := testutil.NewValidator()

	dir := t.TempDir()
	f := &fixture{
		mail:  emailsvc.NewConsoleServiceMock(conf, logger),
		atts:  inmemdb.NewAttachmentRepository(db),
		files: files.NewStore(dir),
		dir:   dir,
	}
	f.svc = NewService(Deps{
		Conf:        conf,
		Proposals:   inmemdb.NewProposalRepository(db),
		Attachments: f.atts,
		Users:       user.NewService(userRepo),
		Files:       f.files,
		Mailer:      f.mail,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
	}).(*service)
	f.svc.now = func() time.Time { return testNow }

	f.ann = testutil.CreateUser(t, userRepo, "Ann", "Jansen", "jansen", "ann@example.com", "", nil)
	f.bob = testutil.CreateUser(t, userRepo, "Bob", "Smit", "smit", "bob@example.com", "", nil)
	f.eve = testutil.CreateUser(t, userRepo, "Eve", "Visser", "visser", "eve@example.com", "", nil)
	f.sec = testutil.CreateUser(t, userRepo, "Sam", "de Vries", "devries", "sec@example.com", "", []string{user.RoleSecretary})
	f.member = testutil.CreateUser(t, userRepo, "Mia", "Bakker", "bakker", "", "", []string{user.RoleMember})
	return f
}

// complete fills in every answer a regular single study proposal needs.
func complete(p *proposal.Proposal) {
	p.Institution = "linguistics"
	p.Relation = proposal.RelationStaff
	p.Funding = []string{"university"}
	p.Summary = "summary"
	p.Aims = "aims"
	p.Wmo = &proposal.Wmo{Metc: proposal.No, IsMedical: proposal.No}
	for i := range p.Studies {
		st := &p.Studies[i]
		st.Name = "Reading"
		st.AgeGroups = []proposal.AgeGroup{proposal.AgeGroupAdults}
		st.LegalBasis = proposal.LegalBasisConsent
		st.HasObservation = true
		st.Observation = &proposal.Observation{Setting: []proposal.Setting{proposal.SettingLab}, Details: "reading times"}
		st.Deception = proposal.No
		st.Negativity = proposal.No
		st.Risk = proposal.No
	}
	p.DataManagement = proposal.DataManagement{AvgUnderstood: true, Storage: "faculty storage"}
	p.Translation = proposal.Translation{TranslatedForms: proposal.No}
}

func (f *fixture) attach(t *testing.T, usr user.User, p proposal.Proposal, kind attachment.Kind, filename string) attachment.Attachment {
	t.Helper()
	na := attachment.NewAttachment{Kind: kind, Owner: attachment.StudyOwner(p.Studies[0].ID)}
	a, err := f.svc.AttachFile(context.Background(), usr, p.ID, na, filename, strings.NewReader("content of "+filename))
	require.NoError(t, err)
	return a
}

// draft creates a complete draft of ann with its consent documents.
func (f *fixture) draft(t *testing.T, edit func(p *proposal.Proposal)) proposal.Proposal {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, f.ann, proposal.NewProposal{Title: "Reading in a second language"})
	require.NoError(t, err)
	complete(&p)
	if edit != nil {
		edit(&p)
	}
	p, err = f.svc.Update(ctx, f.ann, p)
	require.NoError(t, err)
	f.attach(t, f.ann, p, attachment.InformationLetterConsent, "letter.pdf")
	f.attach(t, f.ann, p, attachment.ConsentFormAdults, "consent.PDF")
	return p
}

// storedFiles counts the files kept in the store.
func (f *fixture) storedFiles(t *testing.T) int {
	t.Helper()
	var n int
	err := filepath.WalkDir(f.dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	require.NoError(t, err)
	return n
}

var errSaveFailed = errors.New("save failed")

// failingUpdates refuses to update proposals.
type failingUpdates struct {
	proposal.Repository
}

func (failingUpdates) UpdateProposal(context.Context, proposal.Proposal) (proposal.Proposal, error) {
	return proposal.Proposal{}, errSaveFailed
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		np          proposal.NewProposal
		wantRef     string
		wantStudies int
		wantErr     bool
	}{
		{name: "regular", np: proposal.NewProposal{Title: "  Reading  "}, wantRef: "24-001-01", wantStudies: 1},
		{name: "several studies", np: proposal.NewProposal{Title: "Listening", StudyCount: 3}, wantRef: "24-002-01", wantStudies: 3},
		{name: "pre-assessment", np: proposal.NewProposal{Title: "Pre", IsPreAssessment: true}, wantRef: "24-003-01"},
		{name: "no title", np: proposal.NewProposal{}, wantErr: true},
		{name: "both variants", np: proposal.NewProposal{Title: "x", IsPreAssessment: true, IsPreApproved: true}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.svc.Create(ctx, f.ann, tt.np)
			if tt.wantErr {
				var ve *core.ValidationError
				assert.True(t, errors.As(err, &ve), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRef, p.Reference)
			assert.Equal(t, proposal.StatusDraft, p.Status)
			assert.Equal(t, []string{f.ann.ID}, p.ApplicantIDs)
			assert.Equal(t, f.ann.ID, p.CreatedByID)
			assert.Len(t, p.Studies, tt.wantStudies)
			for i, st := range p.Studies {
				assert.NotEmpty(t, st.ID)
				assert.Equal(t, i+1, st.Order)
			}
		})
	}
}

func TestService_permissions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, f.ann, proposal.NewProposal{Title: "Reading"})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.eve, p.ID)
	assert.Equal(t, ErrForbidden, errors.Cause(err))
	_, err = f.svc.Get(ctx, f.member, p.ID)
	assert.NoError(t, err)

	p.Title = "Changed"
	_, err = f.svc.Update(ctx, f.sec, p)
	assert.Equal(t, ErrForbidden, errors.Cause(err))

	mine, err := f.svc.List(ctx, f.eve, proposal.Filter{})
	require.NoError(t, err)
	assert.Empty(t, mine)
	all, err := f.svc.List(ctx, f.sec, proposal.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, f.ann, proposal.NewProposal{Title: "Reading", StudyCount: 2})
	require.NoError(t, err)

	p.Title = " Reading aloud "
	p.Reference = "99-999-99"
	p.Status = proposal.StatusDecided
	p.Studies = []proposal.Study{p.Studies[1], p.Studies[0]}
	got, err := f.svc.Update(ctx, f.ann, p)
	require.NoError(t, err)

	assert.Equal(t, "Reading aloud", got.Title)
	assert.Equal(t, "24-001-01", got.Reference)
	assert.Equal(t, proposal.StatusDraft, got.Status)
	require.Len(t, got.Studies, 2)
	assert.Equal(t, p.Studies[0].ID, got.Studies[0].ID)
	assert.Equal(t, 1, got.Studies[0].Order)
	assert.Equal(t, 2, got.Studies[1].Order)
}

func TestService_Update_foreignIDs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.draft(t, nil)
	parentStudy := attachment.StudyOwner(p.Studies[0].ID)

	p, err := f.svc.Submit(ctx, f.ann, p.ID)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, f.sec, p.ID, proposal.OutcomeApproved, "")
	require.NoError(t, err)
	rev, err := f.svc.CreateRevision(ctx, f.ann, p.ID, true)
	require.NoError(t, err)

	other, err := f.svc.Create(ctx, f.ann, proposal.NewProposal{Title: "Listening"})
	require.NoError(t, err)

	rev.Studies[0].ID = p.Studies[0].ID
	rev.Studies[0].Sessions = []proposal.Session{{ID: other.Studies[0].ID, Tasks: []proposal.Task{{ID: p.ID}}}}
	rev.Studies = append(rev.Studies, proposal.Study{ID: other.Studies[0].ID})
	got, err := f.svc.Update(ctx, f.ann, rev)
	require.NoError(t, err)

	require.Len(t, got.Studies, 2)
	foreign := []string{p.Studies[0].ID, other.Studies[0].ID, p.ID}
	for _, st := range got.Studies {
		assert.NotContains(t, foreign, st.ID)
		assert.NotEmpty(t, st.ID)
		for _, ses := range st.Sessions {
			assert.NotContains(t, foreign, ses.ID)
			for _, task := range ses.Tasks {
				assert.NotContains(t, foreign, task.ID)
			}
		}
	}

	// the decided parent keeps its documents whatever the revision does
	atts, err := f.atts.ListAttachments(ctx, parentStudy)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	for _, a := range atts {
		assert.Equal(t, attachment.ErrNotFound, errors.Cause(f.svc.Detach(ctx, f.ann, rev.ID, a.ID)))
	}
	atts, err = f.atts.ListAttachments(ctx, parentStudy)
	require.NoError(t, err)
	assert.Len(t, atts, 2)
}

func TestService_Update_droppedStudy(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.draft(t, nil)
	dropped := attachment.StudyOwner(p.Studies[0].ID)

	atts, err := f.atts.ListAttachments(ctx, dropped)
	require.NoError(t, err)
	require.Len(t, atts, 2)

	p.Studies = []proposal.Study{{Name: "Listening"}}
	got, err := f.svc.Update(ctx, f.ann, p)
	require.NoError(t, err)
	require.Len(t, got.Studies, 1)
	assert.NotEqual(t, dropped.ID, got.Studies[0].ID)

	left, err := f.atts.ListAttachments(ctx, dropped)
	require.NoError(t, err)
	assert.Empty(t, left)
	for _, a := range atts {
		_, err := f.atts.GetAttachment(ctx, a.ID)
		assert.Equal(t, attachment.ErrNotFound, errors.Cause(err))
		_, err = f.files.Open(ctx, a.Upload.Key)
		assert.Error(t, err)
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("incomplete", func(t *testing.T) {
		f := setup(t)
		p, err := f.svc.Create(ctx, f.ann, proposal.NewProposal{Title: "Reading"})
		require.NoError(t, err)
		// consent from adults asks for a letter and a form
		p.Studies[0].LegalBasis = proposal.LegalBasisConsent
		p.Studies[0].AgeGroups = []proposal.AgeGroup{proposal.AgeGroupAdults}
		_, err = f.svc.Update(ctx, f.ann, p)
		require.NoError(t, err)

		_, err = f.svc.Submit(ctx, f.ann, p.ID)
		var ie *IncompleteError
		require.True(t, errors.As(err, &ie), "err = %v", err)
		assert.Equal(t, ErrIncomplete, errors.Cause(err))
		assert.Contains(t, ie.Steps, "Documents")
		assert.Contains(t, ie.Steps, "Submit")
		assert.Empty(t, f.mail.Sent())
	})

	t.Run("practice", func(t *testing.T) {
		f := setup(t)
		p, err := f.svc.Create(ctx, f.ann, proposal.NewProposal{Title: "Reading", IsPractice: true})
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, f.ann, p.ID)
		assert.Equal(t, ErrPractice, errors.Cause(err))
	})

	t.Run("to the committee", func(t *testing.T) {
		f := setup(t)
		p := f.draft(t, nil)

		got, err := f.svc.Submit(ctx, f.ann, p.ID)
		require.NoError(t, err)
		assert.Equal(t, proposal.StatusSubmitted, got.Status)
		require.NotNil(t, got.DateSubmitted)
		assert.True(t, got.DateSubmitted.Equal(testNow))
		assert.NotEmpty(t, got.PDFKey)

		sent := f.mail.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "ann@example.com", sent[0].To[0].Address)
		assert.Equal(t, "Application submitted 24-001-01", sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "has been submitted to the committee")

		pdf, err := f.svc.Document(ctx, f.ann, p.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))

		_, err = f.svc.Update(ctx, f.ann, got)
		assert.Equal(t, ErrNotEditable, errors.Cause(err))
		_, err = f.svc.Submit(ctx, f.ann, p.ID)
		assert.Equal(t, ErrNotEditable, errors.Cause(err))
	})

	t.Run("to the supervisor", func(t *testing.T) {
		f := setup(t)
		p := f.draft(t, func(p *proposal.Proposal) {
			p.Relation = proposal.RelationMaster
			p.SupervisorID = f.bob.ID
		})

		got, err := f.svc.Submit(ctx, f.ann, p.ID)
		require.NoError(t, err)
		assert.Equal(t, proposal.StatusSubmittedToSupervisor, got.Status)
		assert.NotNil(t, got.DateSubmittedSupervisor)
		assert.Nil(t, got.DateSubmitted)
		assert.Empty(t, got.PDFKey)

		sent := f.mail.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "bob@example.com", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "Ann Jansen has submitted")
	})
}

func TestService_snapshotCleanup(t *testing.T) {
	ctx := context.Background()

	t.Run("failed save", func(t *testing.T) {
		f := setup(t)
		p := f.draft(t, nil)
		before := f.storedFiles(t)

		repo := f.svc.Proposals
		f.svc.Proposals = failingUpdates{repo}
		_, err := f.svc.Submit(ctx, f.ann, p.ID)
		assert.Equal(t, errSaveFailed, errors.Cause(err))
		assert.Equal(t, before, f.storedFiles(t))

		f.svc.Proposals = repo
		got, err := f.svc.Get(ctx, f.ann, p.ID)
		require.NoError(t, err)
		assert.Equal(t, proposal.StatusDraft, got.Status)
		assert.Empty(t, got.PDFKey)
	})

	t.Run("failed supervisor approval", func(t *testing.T) {
		f := setup(t)
		p := f.draft(t, func(p *proposal.Proposal) {
			p.Relation = proposal.RelationMaster
			p.SupervisorID = f.bob.ID
		})
		p, err := f.svc.Submit(ctx, f.ann, p.ID)
		require.NoError(t, err)
		require.Empty(t, p.PDFKey)
		before := f.storedFiles(t)

		repo := f.svc.Proposals
		f.svc.Proposals = failingUpdates{repo}
		_, err = f.svc.SupervisorDecide(ctx, f.bob, p.ID, true, "")
		assert.Equal(t, errSaveFailed, errors.Cause(err))
		assert.Equal(t, before, f.storedFiles(t))

		f.svc.Proposals = repo
		got, err := f.svc.SupervisorDecide(ctx, f.bob, p.ID, true, "")
		require.NoError(t, err)
		require.NotEmpty(t, got.PDFKey)
		assert.Equal(t, before+1, f.storedFiles(t))
	})
}

func TestService_SupervisorDecide(t *testing.T) {
	ctx := context.Background()
	submitted := func(t *testing.T, f *fixture) proposal.Proposal {
		p := f.draft(t, func(p *proposal.Proposal) {
			p.Relation = proposal.RelationMaster
			p.SupervisorID = f.bob.ID
		})
		p, err := f.svc.Submit(ctx, f.ann, p.ID)
		require.NoError(t, err)
		f.mail.Reset()
		return p
	}

	t.Run("approve", func(t *testing.T) {
		f := setup(t)
		p := submitted(t, f)

		_, err := f.svc.SupervisorDecide(ctx, f.ann, p.ID, true, "")
		assert.Equal(t, ErrForbidden, errors.Cause(err))

		got, err := f.svc.SupervisorDecide(ctx, f.bob, p.ID, true, " fine ")
		require.NoError(t, err)
		assert.Equal(t, proposal.StatusSubmitted, got.Status)
		assert.Equal(t, "fine", got.SupervisorComments)
		assert.NotEmpty(t, got.PDFKey)

		sent := f.mail.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "ann@example.com", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "forwarded to the committee")

		_, err = f.svc.SupervisorDecide(ctx, f.bob, p.ID, true, "")
		assert.Equal(t, ErrWrongStatus, errors.Cause(err))
	})

	t.Run("return", func(t *testing.T) {
		f := setup(t)
		p := submitted(t, f)

		got, err := f.svc.SupervisorDecide(ctx, f.bob, p.ID, false, "add a debriefing")
		require.NoError(t, err)
		assert.Equal(t, proposal.StatusDraft, got.Status)
		assert.Nil(t, got.DateSubmittedSupervisor)

		sent := f.mail.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].TextContent, "http://localhost:3000/proposals/"+p.ID)
	})
}

func TestService_Decide(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.draft(t, nil)

	_, err := f.svc.Decide(ctx, f.sec, p.ID, proposal.OutcomeApproved, "")
	assert.Equal(t, ErrWrongStatus, errors.Cause(err))

	p, err = f.svc.Submit(ctx, f.ann, p.ID)
	require.NoError(t, err)
	f.mail.Reset()

	tests := []struct {
		name    string
		usr     user.User
		outcome proposal.Outcome
		wantErr error
	}{
		{name: "applicant", usr: f.ann, outcome: proposal.OutcomeApproved, wantErr: ErrForbidden},
		{name: "committee member", usr: f.member, outcome: proposal.OutcomeApproved, wantErr: ErrForbidden},
		{name: "unknown outcome", usr: f.sec, outcome: "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Decide(ctx, tt.usr, p.ID, tt.outcome, "")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			} else {
				var ve *core.ValidationError
				assert.True(t, errors.As(err, &ve), "err = %v", err)
			}
		})
	}

	got, err := f.svc.Decide(ctx, f.sec, p.ID, proposal.OutcomeRevision, "clarify the risks")
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusDecided, got.Status)
	assert.Equal(t, proposal.OutcomeRevision, got.Outcome)
	assert.NotNil(t, got.DateDecided)

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "revision needed")
	assert.Contains(t, sent[0].TextContent, "clarify the risks")
}

func TestService_CreateRevision(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.draft(t, nil)

	_, err := f.svc.CreateRevision(ctx, f.ann, p.ID, true)
	assert.Equal(t, ErrWrongStatus, errors.Cause(err))

	p, err = f.svc.Submit(ctx, f.ann, p.ID)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, f.sec, p.ID, proposal.OutcomeRevision, "")
	require.NoError(t, err)

	_, err = f.svc.CreateRevision(ctx, f.eve, p.ID, true)
	assert.Equal(t, ErrForbidden, errors.Cause(err))

	rev, err := f.svc.CreateRevision(ctx, f.ann, p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "24-001-02", rev.Reference)
	assert.Equal(t, p.ID, rev.ParentID)
	assert.True(t, rev.IsRevision)
	assert.Equal(t, proposal.StatusDraft, rev.Status)
	assert.Empty(t, rev.PDFKey)
	require.Len(t, rev.Studies, 1)
	assert.NotEqual(t, p.Studies[0].ID, rev.Studies[0].ID)
	assert.Equal(t, p.Studies[0].Name, rev.Studies[0].Name)

	// the documents came along, so the revision can be submitted as is
	st, err := f.svc.Stepper(ctx, f.ann, rev.ID)
	require.NoError(t, err)
	assert.True(t, st.CanSubmit())
	for _, s := range st.Slots() {
		if s.Filled() {
			assert.False(t, s.IsNew(), "slot %s", s.Kind)
		}
	}

	again, err := f.svc.CreateRevision(ctx, f.ann, p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "24-001-03", again.Reference)

	cp, err := f.svc.CreateRevision(ctx, f.ann, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "24-002-01", cp.Reference)
	assert.False(t, cp.IsRevision)
}

func TestService_attachments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.draft(t, nil)
	owner := attachment.StudyOwner(p.Studies[0].ID)

	t.Run("unknown owner", func(t *testing.T) {
		na := attachment.NewAttachment{Kind: attachment.ConsentFormAdults, Owner: attachment.StudyOwner("elsewhere")}
		_, err := f.svc.AttachFile(ctx, f.ann, p.ID, na, "x.pdf", strings.NewReader("x"))
		var ve *core.ValidationError
		assert.True(t, errors.As(err, &ve), "err = %v", err)
	})

	t.Run("outsider", func(t *testing.T) {
		na := attachment.NewAttachment{Kind: attachment.ConsentFormAdults, Owner: owner}
		_, err := f.svc.AttachFile(ctx, f.eve, p.ID, na, "x.pdf", strings.NewReader("x"))
		assert.Equal(t, ErrForbidden, errors.Cause(err))
	})

	slots, err := f.svc.Slots(ctx, f.ann, p.ID)
	require.NoError(t, err)
	var consent *attachment.Slot
	for _, s := range slots {
		if s.Kind == attachment.ConsentFormAdults {
			consent = s
		}
	}
	require.NotNil(t, consent)
	require.True(t, consent.Filled())
	old := *consent.Attachment

	t.Run("download", func(t *testing.T) {
		rc, name, err := f.svc.Download(ctx, f.ann, p.ID, old.ID)
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "content of consent.PDF", string(body))
		assert.Equal(t, "FETC-AK-24-001-01-Jansen-T1-ConsentFormAdults.pdf", name)
	})

	t.Run("replace", func(t *testing.T) {
		na := attachment.NewAttachment{Kind: attachment.ConsentFormAdults, Owner: owner, Replaces: old.ID}
		a, err := f.svc.AttachFile(ctx, f.ann, p.ID, na, "consent-v2.pdf", strings.NewReader("v2"))
		require.NoError(t, err)
		assert.Equal(t, old.ID, a.ParentID)

		stored, err := f.atts.GetAttachment(ctx, old.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsAttachedTo(owner))

		slots, err := f.svc.Slots(ctx, f.ann, p.ID)
		require.NoError(t, err)
		var ids []string
		for _, s := range slots {
			if s.Filled() {
				ids = append(ids, s.Attachment.ID)
			}
		}
		assert.Contains(t, ids, a.ID)
		assert.NotContains(t, ids, old.ID)
	})

	t.Run("detach", func(t *testing.T) {
		slots, err := f.svc.Slots(ctx, f.ann, p.ID)
		require.NoError(t, err)
		var letter attachment.Attachment
		for _, s := range slots {
			if s.Kind == attachment.InformationLetterConsent && s.Filled() {
				letter = *s.Attachment
			}
		}
		require.NotEmpty(t, letter.ID)

		require.NoError(t, f.svc.Detach(ctx, f.ann, p.ID, letter.ID))
		_, err = f.atts.GetAttachment(ctx, letter.ID)
		assert.Equal(t, attachment.ErrNotFound, errors.Cause(err))
		_, err = f.files.Open(ctx, letter.Upload.Key)
		assert.Error(t, err)

		err = f.svc.Detach(ctx, f.ann, p.ID, letter.ID)
		assert.Equal(t, attachment.ErrNotFound, errors.Cause(err))

		_, err = f.svc.Submit(ctx, f.ann, p.ID)
		assert.Equal(t, ErrIncomplete, errors.Cause(err))
	})
}

func TestService_Diff(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.draft(t, nil)

	_, err := f.svc.Diff(ctx, f.ann, p.ID)
	assert.Equal(t, ErrNoParent, errors.Cause(err))

	_, err = f.svc.Submit(ctx, f.ann, p.ID)
	require.NoError(t, err)
	rev, err := f.svc.CreateRevision(ctx, f.ann, p.ID, true)
	require.NoError(t, err)
	rev.Studies[0].Observation.Details = "eye movements"
	_, err = f.svc.Update(ctx, f.ann, rev)
	require.NoError(t, err)

	secs, err := f.svc.Diff(ctx, f.ann, rev.ID)
	require.NoError(t, err)
	var changed []string
	for _, s := range secs {
		assert.Empty(t, s.Warning, "section %s", s.Key)
		if s.Changed() {
			changed = append(changed, s.Key)
		}
	}
	// the general section shows the new reference and the revision flag
	assert.Equal(t, []string{"general", "study-1-observation"}, changed)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.draft(t, nil)

	atts, err := f.atts.ListAttachments(ctx, attachment.StudyOwner(p.Studies[0].ID))
	require.NoError(t, err)
	require.Len(t, atts, 2)

	assert.Equal(t, ErrForbidden, errors.Cause(f.svc.Delete(ctx, f.eve, p.ID)))
	require.NoError(t, f.svc.Delete(ctx, f.ann, p.ID))

	_, err = f.svc.Get(ctx, f.ann, p.ID)
	assert.Equal(t, proposal.ErrNotFound, errors.Cause(err))
	for _, a := range atts {
		_, err := f.atts.GetAttachment(ctx, a.ID)
		assert.Equal(t, attachment.ErrNotFound, errors.Cause(err))
	}
}
