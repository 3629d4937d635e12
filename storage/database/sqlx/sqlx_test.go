package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/attachment"
	"github.com/fetc/proposals/core/proposal"
	"github.com/fetc/proposals/core/user"
	testutil "github.com/fetc/proposals/tests"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testutil.OpenDB(t))

	ann := testutil.CreateUser(t, repo, "Ann", "Jansen", "jansen", "ann@example.com", "secret", []string{user.RoleResearcher, user.RoleSecretary})
	bob := testutil.CreateUser(t, repo, "Bob", "Smit", "smit", "", "", nil)
	testutil.CreateUser(t, repo, "Cor", "Visser", "visser", "", "", nil) // several users without email

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetUserByID(ctx, ann.ID)
		require.NoError(t, err)
		assert.Equal(t, ann.Username, got.Username)
		assert.Equal(t, []string{user.RoleResearcher, user.RoleSecretary}, got.Roles)
		assert.NoError(t, got.CheckPassword("secret"))
		assert.True(t, got.LastLogin.IsZero())

		_, err = repo.GetUserByID(ctx, "unknown")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("username or email", func(t *testing.T) {
		for _, login := range []string{"jansen", "ann@example.com"} {
			got, err := repo.GetUserByUsernameOrEmail(ctx, login)
			require.NoError(t, err, login)
			assert.Equal(t, ann.ID, got.ID)
		}
	})

	t.Run("several", func(t *testing.T) {
		got, err := repo.GetUsersByID(ctx, bob.ID, "unknown", ann.ID, bob.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, bob.ID, got[0].ID)
		assert.Equal(t, ann.ID, got[1].ID)
	})

	t.Run("uniqueness", func(t *testing.T) {
		tests := []struct {
			name     string
			username string
			email    string
			excluded []user.User
			wantErr  error
		}{
			{name: "free", username: "new", email: "new@example.com"},
			{name: "username taken", username: "jansen", email: "new@example.com", wantErr: user.ErrUsernameExists},
			{name: "email taken", username: "new", email: "ann@example.com", wantErr: user.ErrEmailExists},
			{name: "own", username: "jansen", email: "ann@example.com", excluded: []user.User{ann}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := repo.CheckUsernameUniqueness(ctx, tt.username, tt.email, tt.excluded...)
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		login := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
		bob.LastName = "Smits"
		bob.Email = "bob@example.com"
		bob.LastLogin = login
		got, err := repo.UpdateUser(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, "Smits", got.LastName)
		assert.Equal(t, "bob@example.com", got.Email)
		assert.True(t, got.LastLogin.Equal(login))

		_, err = repo.UpdateUser(ctx, user.User{ID: "unknown", Username: "x"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}

func newProposal(ref, title, creator string, created time.Time) proposal.Proposal {
	return proposal.Proposal{
		Reference:    ref,
		Title:        title,
		Status:       proposal.StatusDraft,
		CreatedByID:  creator,
		ApplicantIDs: []string{creator},
		Wmo:          &proposal.Wmo{Metc: proposal.No},
		Studies: []proposal.Study{{
			Order:    1,
			Name:     "Reading",
			Sessions: []proposal.Session{{Order: 1, Tasks: []proposal.Task{{Order: 1, Name: "read"}}}},
		}},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestProposalRepository_references(t *testing.T) {
	ctx := context.Background()
	repo := NewProposalRepository(testutil.OpenDB(t))
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// imported proposals whose numbers were never allocated here
	for _, ref := range []string{"24-007-01", "24-007-02", "jansen-03-2019"} {
		_, err := repo.CreateProposal(ctx, newProposal(ref, "imported", "u1", created))
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		next func() (proposal.Reference, error)
		want string
	}{
		{name: "continues after imported", next: func() (proposal.Reference, error) { return repo.NextReference(ctx, 2024) }, want: "24-008-01"},
		{name: "counts up", next: func() (proposal.Reference, error) { return repo.NextReference(ctx, 2024) }, want: "24-009-01"},
		{name: "other year", next: func() (proposal.Reference, error) { return repo.NextReference(ctx, 2025) }, want: "25-001-01"},
		{
			name: "revision",
			next: func() (proposal.Reference, error) {
				return repo.NextRevisionReference(ctx, proposal.Reference{Format: proposal.FormatCurrent, Year: 24, Seq: 7, Version: 1})
			},
			want: "24-007-03",
		},
		{
			name: "next revision",
			next: func() (proposal.Reference, error) {
				return repo.NextRevisionReference(ctx, proposal.Reference{Format: proposal.FormatCurrent, Year: 24, Seq: 7, Version: 2})
			},
			want: "24-007-04",
		},
		{
			name: "legacy revision",
			next: func() (proposal.Reference, error) {
				return repo.NextRevisionReference(ctx, proposal.Reference{Format: proposal.FormatLegacy, Username: "jansen", Seq: 3, Year: 2019, Version: 1})
			},
			want: "jansen-03-2-2019",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.next()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	t.Run("not reused after deletion", func(t *testing.T) {
		ref, err := repo.NextReference(ctx, 2024)
		require.NoError(t, err)
		assert.Equal(t, "24-010-01", ref.String())
		p, err := repo.CreateProposal(ctx, newProposal(ref.String(), "new", "u1", created))
		require.NoError(t, err)
		require.NoError(t, repo.DeleteProposal(ctx, p.ID))

		got, err := repo.NextReference(ctx, 2024)
		require.NoError(t, err)
		assert.Equal(t, "24-011-01", got.String())
	})
}

func TestProposalRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProposalRepository(testutil.OpenDB(t))
	day := func(d int) time.Time { return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC) }

	reading, err := repo.CreateProposal(ctx, newProposal("24-001-01", "Reading", "u1", day(1)))
	require.NoError(t, err)
	listening, err := repo.CreateProposal(ctx, newProposal("24-002-01", "Listening", "u2", day(2)))
	require.NoError(t, err)
	speaking := newProposal("24-003-01", "Speaking", "u2", day(3))
	speaking.SupervisorID = "u1"
	speaking.Status = proposal.StatusSubmitted
	speaking, err = repo.CreateProposal(ctx, speaking)
	require.NoError(t, err)

	t.Run("ids", func(t *testing.T) {
		require.NotEmpty(t, reading.ID)
		st := reading.Studies[0]
		assert.NotEmpty(t, st.ID)
		assert.Equal(t, reading.ID, st.ProposalID)
		assert.Equal(t, st.ID, st.Sessions[0].StudyID)
		assert.Equal(t, st.Sessions[0].ID, st.Sessions[0].Tasks[0].SessionID)
	})

	t.Run("duplicate reference", func(t *testing.T) {
		_, err := repo.CreateProposal(ctx, newProposal("24-001-01", "again", "u1", day(4)))
		assert.Equal(t, proposal.ErrReferenceExists, errors.Cause(err))
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetProposal(ctx, reading.ID)
		require.NoError(t, err)
		assert.Equal(t, reading, got)

		_, err = repo.GetProposal(ctx, "unknown")
		assert.Equal(t, proposal.ErrNotFound, errors.Cause(err))
	})

	t.Run("list", func(t *testing.T) {
		tests := []struct {
			name   string
			filter proposal.Filter
			want   []string
		}{
			{name: "all, newest first", want: []string{"Speaking", "Listening", "Reading"}},
			{name: "participant", filter: proposal.Filter{UserID: "u1"}, want: []string{"Speaking", "Reading"}},
			{name: "status", filter: proposal.Filter{Statuses: []proposal.Status{proposal.StatusDraft}}, want: []string{"Listening", "Reading"}},
			{name: "search title", filter: proposal.Filter{Search: "LIST"}, want: []string{"Listening"}},
			{name: "search reference", filter: proposal.Filter{Search: "24-003"}, want: []string{"Speaking"}},
			{
				name:   "by title",
				filter: proposal.Filter{Ordering: []core.DBOrdering{{Field: "title", Ascending: true}}},
				want:   []string{"Listening", "Reading", "Speaking"},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.ListProposals(ctx, tt.filter)
				require.NoError(t, err)
				titles := make([]string, 0, len(got))
				for _, p := range got {
					titles = append(titles, p.Title)
				}
				assert.Equal(t, tt.want, titles)
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		submitted := day(5)
		listening.Title = "Listening closely"
		listening.Status = proposal.StatusSubmitted
		listening.DateSubmitted = &submitted
		listening.PDFKey = "2024/02/snapshot.pdf"
		listening.ApplicantIDs = append(listening.ApplicantIDs, "u3")
		listening.Studies = append(listening.Studies, proposal.Study{Order: 2, Name: "Follow-up"})

		got, err := repo.UpdateProposal(ctx, listening)
		require.NoError(t, err)
		assert.NotEmpty(t, got.Studies[1].ID)

		stored, err := repo.GetProposal(ctx, listening.ID)
		require.NoError(t, err)
		assert.Equal(t, got, stored)
		assert.Equal(t, "2024/02/snapshot.pdf", stored.PDFKey)

		mine, err := repo.ListProposals(ctx, proposal.Filter{UserID: "u3"})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, listening.ID, mine[0].ID)

		_, err = repo.UpdateProposal(ctx, proposal.Proposal{ID: "unknown"})
		assert.Equal(t, proposal.ErrNotFound, errors.Cause(err))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteProposal(ctx, speaking.ID))
		_, err := repo.GetProposal(ctx, speaking.ID)
		assert.Equal(t, proposal.ErrNotFound, errors.Cause(err))
		assert.Equal(t, proposal.ErrNotFound, errors.Cause(repo.DeleteProposal(ctx, speaking.ID)))
	})
}

func TestAttachmentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAttachmentRepository(testutil.OpenDB(t))
	study := attachment.StudyOwner("s1")
	prop := attachment.ProposalOwner("p1")
	at := func(m int) time.Time { return time.Date(2024, 2, 1, 10, m, 0, 0, time.UTC) }

	letter, err := repo.CreateAttachment(ctx, attachment.Attachment{
		Kind:       attachment.InformationLetterConsent,
		Upload:     attachment.Upload{Key: "2024/02/a.pdf", Name: "letter.pdf"},
		AttachedTo: []attachment.Owner{study},
		AuthorID:   "u1",
		CreatedAt:  at(2),
	})
	require.NoError(t, err)
	form, err := repo.CreateAttachment(ctx, attachment.Attachment{
		Kind:       attachment.ConsentFormAdults,
		Upload:     attachment.Upload{Key: "2024/02/b.pdf", Name: "form.pdf"},
		AttachedTo: []attachment.Owner{study, prop},
		AuthorID:   "u1",
		CreatedAt:  at(1),
	})
	require.NoError(t, err)
	replacement, err := repo.CreateAttachment(ctx, attachment.Attachment{
		Kind:       attachment.ConsentFormAdults,
		ParentID:   form.ID,
		Upload:     attachment.Upload{Key: "2024/02/c.pdf", Name: "form-v2.pdf"},
		AttachedTo: []attachment.Owner{attachment.StudyOwner("s2")},
		AuthorID:   "u1",
		CreatedAt:  at(3),
	})
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetAttachment(ctx, replacement.ID)
		require.NoError(t, err)
		assert.Equal(t, form.ID, got.ParentID)
		assert.Equal(t, "form-v2.pdf", got.Upload.Name)
		assert.True(t, got.CreatedAt.Equal(at(3)))

		_, err = repo.GetAttachment(ctx, "unknown")
		assert.Equal(t, attachment.ErrNotFound, errors.Cause(err))
	})

	t.Run("list", func(t *testing.T) {
		got, err := repo.ListAttachments(ctx, study, prop)
		require.NoError(t, err)
		require.Len(t, got, 2)
		// oldest first
		assert.Equal(t, form.ID, got[0].ID)
		assert.ElementsMatch(t, []attachment.Owner{study, prop}, got[0].AttachedTo)
		assert.Equal(t, letter.ID, got[1].ID)

		none, err := repo.ListAttachments(ctx)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("update", func(t *testing.T) {
		letter.Name = "Letter"
		letter.Comments = "second version"
		letter.Detach(study)
		letter.Attach(prop)
		letter.Upload.Name = "ignored.pdf"
		got, err := repo.UpdateAttachment(ctx, letter)
		require.NoError(t, err)
		assert.Equal(t, "Letter", got.Name)
		assert.Equal(t, "second version", got.Comments)
		assert.Equal(t, []attachment.Owner{prop}, got.AttachedTo)
		assert.Equal(t, "letter.pdf", got.Upload.Name)

		onStudy, err := repo.ListAttachments(ctx, study)
		require.NoError(t, err)
		require.Len(t, onStudy, 1)
		assert.Equal(t, form.ID, onStudy[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteAttachment(ctx, form.ID))
		_, err := repo.GetAttachment(ctx, form.ID)
		assert.Equal(t, attachment.ErrNotFound, errors.Cause(err))
		assert.Equal(t, attachment.ErrNotFound, errors.Cause(repo.DeleteAttachment(ctx, form.ID)))

		onProposal, err := repo.ListAttachments(ctx, prop)
		require.NoError(t, err)
		require.Len(t, onProposal, 1)
		assert.Equal(t, letter.ID, onProposal[0].ID)
	})
}
