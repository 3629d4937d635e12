package attachment

import (
	"github.com/samber/lo"
)

// EnumerateSlots numbers, per owner, the slots whose kind occurs more than once for
// that owner, in declaration order starting at 1. Other slots get Order 0.
func EnumerateSlots(slots []*Slot) {
	byOwner := lo.GroupBy(slots, func(s *Slot) Owner { return s.Owner })
	for _, owned := range byOwner {
		counts := lo.CountValuesBy(owned, func(s *Slot) Kind { return s.Kind })
		seen := make(map[Kind]int, len(counts))
		for _, s := range owned {
			if counts[s.Kind] < 2 {
				s.Order = 0
				continue
			}
			seen[s.Kind]++
			s.Order = seen[s.Kind]
		}
	}
}
