package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fetc/proposals/core/proposal"
)

type proposalRepository struct {
	db *proposalTable
}

var _ proposal.Repository = (*proposalRepository)(nil) // interface compliance check

func NewProposalRepository(db *DB) proposal.Repository {
	return &proposalRepository{db: db.proposal}
}

func copyProposal(p proposal.Proposal) proposal.Proposal {
	cp := clone(p)
	cp.PDFKey = p.PDFKey
	return cp
}

func newID() string { return uuid.New().String() }

func (repo *proposalRepository) references() []string {
	refs := make([]string, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		refs = append(refs, p.Reference)
	}
	return refs
}

func (repo *proposalRepository) NextReference(_ context.Context, year int) (proposal.Reference, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	seq := repo.db.counters[year]
	if max := proposal.MaxSequence(repo.references(), year); max > seq {
		seq = max
	}
	seq++
	repo.db.counters[year] = seq
	return proposal.NewReference(year, seq), nil
}

func (repo *proposalRepository) NextRevisionReference(_ context.Context, parent proposal.Reference) (proposal.Reference, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := parent.ChainKey()
	version := repo.db.chains[key]
	if max := proposal.MaxVersion(repo.references(), key); max > version {
		version = max
	}
	version++
	repo.db.chains[key] = version
	return parent.WithVersion(version), nil
}

func (repo *proposalRepository) CreateProposal(_ context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.table {
		if other.Reference == p.Reference {
			return proposal.Proposal{}, proposal.ErrReferenceExists
		}
	}
	p.ID = ""
	p.AssignIDs(newID)
	stored := copyProposal(p)
	repo.db.table[p.ID] = &stored
	return copyProposal(stored), nil
}

func (repo *proposalRepository) GetProposal(_ context.Context, id string) (proposal.Proposal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return copyProposal(*p), nil
	}
	return proposal.Proposal{}, proposal.ErrNotFound
}

func matches(p *proposal.Proposal, filter proposal.Filter) bool {
	if filter.UserID != "" && !p.IsApplicant(filter.UserID) && p.SupervisorID != filter.UserID && p.CreatedByID != filter.UserID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if p.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Reference), q) {
			return false
		}
	}
	return true
}

// less compares on a single ordering field.
func less(a, b *proposal.Proposal, field string) (bool, bool) {
	switch field {
	case "reference":
		return a.Reference < b.Reference, a.Reference == b.Reference
	case "title":
		return a.Title < b.Title, a.Title == b.Title
	case "date_submitted":
		at, bt := a.DateSubmitted, b.DateSubmitted
		switch {
		case at == nil && bt == nil:
			return false, true
		case at == nil:
			return true, false
		case bt == nil:
			return false, false
		}
		return at.Before(*bt), at.Equal(*bt)
	default:
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
	}
}

func (repo *proposalRepository) ListProposals(_ context.Context, filter proposal.Filter) ([]proposal.Proposal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	found := make([]*proposal.Proposal, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		if matches(p, filter) {
			found = append(found, p)
		}
	}

	ordering := filter.Ordering
	if len(ordering) == 0 {
		ordering = proposal.DefaultOrdering
	}
	sort.SliceStable(found, func(i, j int) bool {
		for _, ord := range ordering {
			lt, eq := less(found[i], found[j], ord.Field)
			if eq {
				continue
			}
			if ord.Ascending {
				return lt
			}
			return !lt
		}
		return found[i].ID < found[j].ID
	})

	out := make([]proposal.Proposal, 0, len(found))
	for _, p := range found {
		out = append(out, copyProposal(*p))
	}
	return out, nil
}

func (repo *proposalRepository) UpdateProposal(_ context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[p.ID]; !ok {
		return proposal.Proposal{}, proposal.ErrNotFound
	}
	p.AssignIDs(newID)
	stored := copyProposal(p)
	repo.db.table[p.ID] = &stored
	return copyProposal(stored), nil
}

func (repo *proposalRepository) DeleteProposal(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return proposal.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
