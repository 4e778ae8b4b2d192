package buffer

// FixMode is a bitwise combination of the four flags a caller supplies
// when fixing a page: ReadOnly, Write, Allocate, Discardable.
type FixMode uint8

const (
	// ReadOnly fixes the page for reading only; writes through the
	// returned Memory are not observed by Unfix's dirty tracking.
	ReadOnly FixMode = 1 << iota
	// Write fixes the page for mutation.
	Write
	// Allocate fixes a brand-new page (no prior content to read).
	Allocate
	// Discardable marks the fix such that its modifications may be
	// rolled back without flushing. The header page is never
	// Discardable.
	Discardable
)

// Has reports whether all bits of mask are set in m.
func (m FixMode) Has(mask FixMode) bool { return m&mask == mask }

// IsWritable reports whether the mode permits mutation.
func (m FixMode) IsWritable() bool { return m.Has(Write) || m.Has(Allocate) }

func (m FixMode) String() string {
	if m == 0 {
		return "None"
	}
	s := ""
	add := func(flag FixMode, name string) {
		if m.Has(flag) {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	add(ReadOnly, "ReadOnly")
	add(Write, "Write")
	add(Allocate, "Allocate")
	add(Discardable, "Discardable")
	return s
}

// ReplacementPriority influences the order in which unreferenced pages
// are chosen for eviction. Low-priority pages are evicted before Middle.
type ReplacementPriority uint8

const (
	Low ReplacementPriority = iota
	Middle
)
