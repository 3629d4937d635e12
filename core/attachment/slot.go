package attachment

import (
	"github.com/samber/lo"
)

// Slot is a place where one attachment of a kind may go for an owner.
// Slots are built per stepper render and never persisted.
type Slot struct {
	Owner      Owner       `json:"owner"`
	Kind       Kind        `json:"kind"`
	Attachment *Attachment `json:"attachment"`
	Group      *Group      `json:"-"`
	// Force overrides the kind's default desiredness; ignored for grouped slots.
	Force Desiredness `json:"-"`
	// Order disambiguates slots sharing kind and owner; 0 when the kind is unique.
	Order int `json:"order,omitempty"`

	pool *Pool
}

// NewSlot returns an unmatched slot. It panics on kinds missing from the catalog.
func NewSlot(pool *Pool, owner Owner, kind Kind, force ...Desiredness) *Slot {
	MustLookup(kind)
	s := &Slot{Owner: owner, Kind: kind, pool: pool}
	if len(force) > 0 {
		s.Force = force[0]
	}
	return s
}

func (s *Slot) Info() KindInfo {
	return MustLookup(s.Kind)
}

func (s *Slot) Filled() bool {
	return s.Attachment != nil
}

// Match returns the first attachment of the slot's owner and kind whose id is not in exclude.
func (s *Slot) Match(exclude map[string]bool) (Attachment, bool) {
	for _, a := range s.pool.ForOwner(s.Owner, s.Kind) {
		if !exclude[a.ID] {
			return a, true
		}
	}
	return Attachment{}, false
}

// MatchAndSet binds the matched attachment and adds it to exclude.
func (s *Slot) MatchAndSet(exclude map[string]bool) bool {
	a, ok := s.Match(exclude)
	if !ok {
		return false
	}
	s.Attachment = &a
	s.Kind = a.Kind
	exclude[a.ID] = true
	return true
}

// Desiredness resolves, highest priority first: the optionality group, the forced
// value, the kind's default.
func (s *Slot) Desiredness() Desiredness {
	if s.Group != nil {
		return s.Group.Desiredness()
	}
	if s.Force != "" {
		return s.Force
	}
	return s.Info().Desiredness
}

// Missing reports whether the slot is required but unfilled.
func (s *Slot) Missing() bool {
	return s.Desiredness() == Required && !s.Filled()
}

// IsNew reports whether the matched attachment was not carried over unchanged from
// the parent proposal.
func (s *Slot) IsNew() bool {
	if s.Attachment == nil {
		return false
	}
	ancestors := s.pool.Ancestors()
	if len(ancestors) == 0 {
		return true
	}
	return !s.Attachment.IsAttachedTo(ancestors...)
}

// Comparable reports whether the matched attachment replaced one attached to the
// parent proposal, so both versions can be compared.
func (s *Slot) Comparable() bool {
	if s.Attachment == nil || s.Attachment.ParentID == "" {
		return false
	}
	ancestors := s.pool.Ancestors()
	if len(ancestors) == 0 {
		return false
	}
	parent, ok := s.pool.Get(s.Attachment.ParentID)
	if !ok {
		return false
	}
	return parent.IsAttachedTo(ancestors...)
}

// Group is a set of slots of which one filled member satisfies the rest.
type Group struct {
	Members []*Slot `json:"members"`
}

// NewGroup binds slots to a new group.
func NewGroup(slots ...*Slot) *Group {
	g := &Group{Members: slots}
	for _, s := range slots {
		s.Group = g
	}
	return g
}

func (g *Group) Filled() bool {
	return lo.SomeBy(g.Members, func(s *Slot) bool { return s.Filled() })
}

// Desiredness is Required until any member is filled, Optional after.
func (g *Group) Desiredness() Desiredness {
	if g.Filled() {
		return Optional
	}
	return Required
}

// Entry is either a bare slot or a group of at least two slots.
type Entry struct {
	Slot  *Slot  `json:"slot,omitempty"`
	Group *Group `json:"group,omitempty"`
}

// MergeGroups collapses grouped slots into one entry at the position of the group's
// first member. Groups with a single member in slots degrade to a bare slot.
func MergeGroups(slots []*Slot) []Entry {
	members := make(map[*Group][]*Slot)
	for _, s := range slots {
		if s.Group != nil {
			members[s.Group] = append(members[s.Group], s)
		}
	}

	var out []Entry
	seen := make(map[*Group]bool)
	for _, s := range slots {
		if s.Group == nil || len(members[s.Group]) < 2 {
			out = append(out, Entry{Slot: s})
			continue
		}
		if seen[s.Group] {
			continue
		}
		seen[s.Group] = true
		out = append(out, Entry{Group: s.Group})
	}
	return out
}

// MatchAll matches slots in order, so no attachment fills more than one slot.
// It returns the set of claimed attachment ids.
func MatchAll(slots []*Slot) map[string]bool {
	claimed := make(map[string]bool)
	for _, s := range slots {
		s.MatchAndSet(claimed)
	}
	return claimed
}

// ExtraSlots returns filled slots for the owner's attachments not in claimed,
// followed by one empty slot of the owner's catch-all kind.
func ExtraSlots(pool *Pool, owner Owner, claimed map[string]bool) []*Slot {
	var out []*Slot
	for _, a := range pool.OfOwner(owner) {
		if claimed[a.ID] {
			continue
		}
		if _, ok := Lookup(a.Kind); !ok {
			continue
		}
		a := a
		claimed[a.ID] = true
		out = append(out, &Slot{Owner: owner, Kind: a.Kind, Attachment: &a, Force: Extra, pool: pool})
	}
	return append(out, NewSlot(pool, owner, OtherKind(owner.Type), Extra))
}
