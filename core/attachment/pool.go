package attachment

// Pool is a read snapshot of the attachments a stepper build may match against:
// those of the proposal and its studies, those of the parent proposal and its
// studies, and the parents of any of them.
type Pool struct {
	attachments []Attachment
	byID        map[string]int
	ancestors   []Owner
}

// NewPool snapshots atts. ancestors are the parent proposal and its studies; empty
// when the proposal is not a revision.
func NewPool(atts []Attachment, ancestors ...Owner) *Pool {
	cp := make([]Attachment, len(atts))
	copy(cp, atts)
	SortAttachments(cp)

	p := &Pool{attachments: cp, byID: make(map[string]int, len(cp)), ancestors: ancestors}
	for i, a := range cp {
		p.byID[a.ID] = i
	}
	return p
}

func (p *Pool) Get(id string) (Attachment, bool) {
	i, ok := p.byID[id]
	if !ok {
		return Attachment{}, false
	}
	return p.attachments[i], true
}

// ForOwner returns the owner's attachments of the given kind, oldest first.
func (p *Pool) ForOwner(owner Owner, kind Kind) []Attachment {
	var out []Attachment
	for _, a := range p.attachments {
		if a.Kind == kind && a.IsAttachedTo(owner) {
			out = append(out, a)
		}
	}
	return out
}

// OfOwner returns all attachments of the owner, oldest first.
func (p *Pool) OfOwner(owner Owner) []Attachment {
	var out []Attachment
	for _, a := range p.attachments {
		if a.IsAttachedTo(owner) {
			out = append(out, a)
		}
	}
	return out
}

// Ancestors returns the parent proposal owner and its studies.
func (p *Pool) Ancestors() []Owner {
	return p.ancestors
}
