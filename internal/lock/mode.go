// Package lock implements the lock & hold matrix: a
// 16-value mode lattice, a 5-duration scheme, a pure adequacy function
// mapping (operation, category, isolation) to (mode, duration), and the
// hold table that grants/converts/releases named locks.
package lock

// Mode is one of the 16 lattice values. The V-prefixed modes are
// version-aware: a transaction holding one is reading an immutable
// snapshot. The purely versioned modes (VIS, VS, VSVIX) are compatible
// with every mode, X included; a mode that mixes a versioned and a live
// component conflicts as its live component does.
//
// The compatibility, least-upper-bound and isPossible tables derive
// from classical multi-granularity locking semantics extended with
// the versioned modes: each mode reduces to the conflict class it
// would have with its versioned component stripped away.
type Mode int

const (
	N Mode = iota
	VIS
	VS
	IS
	VSIS
	IX
	S
	VSIX
	VIX
	VSVIX
	SIX
	U
	SVIX
	X
	VIXX
	VX

	modeCount
)

func (m Mode) String() string {
	names := [...]string{"N", "VIS", "VS", "IS", "VSIS", "IX", "S", "VSIX", "VIX", "VSVIX", "SIX", "U", "SVIX", "X", "VIXX", "VX"}
	if int(m) < 0 || int(m) >= len(names) {
		return "Mode(?)"
	}
	return names[m]
}

// liveKind is the non-versioned conflict class a mode reduces to for
// compatibility purposes. A mode with no live component (pure VER
// reads) is always compatible with everything, since it only observes
// an immutable snapshot.
type liveKind int

const (
	liveNone liveKind = iota
	liveIS
	liveIX
	liveS
	liveSIX
	liveX
	liveU       // update: conflicts with itself, unlike S
	liveAlways  // always compatible: pure versioned read, no live component
)

var liveKindOf = [modeCount]liveKind{
	N:     liveNone,
	VIS:   liveAlways,
	VS:    liveAlways,
	IS:    liveIS,
	VSIS:  liveIS,
	IX:    liveIX,
	S:     liveS,
	VSIX:  liveIX,
	VIX:   liveIX,
	VSVIX: liveAlways,
	SIX:   liveSIX,
	U:     liveU,
	SVIX:  liveS,
	X:     liveX,
	VIXX:  liveIX,
	VX:    liveX,
}

// classicCompat is the standard multi-granularity-locking compatibility
// matrix over {N, IS, IX, S, SIX, X}.
var classicCompat = map[[2]liveKind]bool{
	{liveNone, liveNone}: true, {liveNone, liveIS}: true, {liveNone, liveIX}: true, {liveNone, liveS}: true, {liveNone, liveSIX}: true, {liveNone, liveX}: true,
	{liveIS, liveIS}: true, {liveIS, liveIX}: true, {liveIS, liveS}: true, {liveIS, liveSIX}: true, {liveIS, liveX}: false,
	{liveIX, liveIX}: true, {liveIX, liveS}: false, {liveIX, liveSIX}: false, {liveIX, liveX}: false,
	{liveS, liveS}: true, {liveS, liveSIX}: false, {liveS, liveX}: false,
	{liveSIX, liveSIX}: false, {liveSIX, liveX}: false,
	{liveX, liveX}: false,
}

func classicLookup(a, b liveKind) bool {
	if v, ok := classicCompat[[2]liveKind{a, b}]; ok {
		return v
	}
	if v, ok := classicCompat[[2]liveKind{b, a}]; ok {
		return v
	}
	return false
}

// Compatible reports whether granted and requested may be held
// simultaneously by two different transactions.
func Compatible(granted, requested Mode) bool {
	a, b := liveKindOf[granted], liveKindOf[requested]
	if a == liveNone || b == liveNone || a == liveAlways || b == liveAlways {
		return true
	}
	if a == liveU || b == liveU {
		other := b
		if a == liveU {
			other = b
		} else {
			other = a
		}
		if a == liveU && b == liveU {
			return false
		}
		return other == liveIS || other == liveS
	}
	return classicLookup(a, b)
}

// joinTable is the lattice join (least upper bound) over the six
// classic live kinds; liveAlways joins to whatever the other side is
// (a versioned-only read adds no real strength), and liveU joins
// conservatively to X (an update lock escalating alongside another
// real lock is treated as needing full exclusivity).
var joinTable = map[[2]liveKind]liveKind{
	{liveNone, liveNone}: liveNone,
	{liveIS, liveIS}:     liveIS,
	{liveIS, liveIX}:     liveIX,
	{liveIS, liveS}:      liveS,
	{liveIS, liveSIX}:    liveSIX,
	{liveIS, liveX}:      liveX,
	{liveIX, liveIX}:     liveIX,
	{liveIX, liveS}:      liveSIX,
	{liveIX, liveSIX}:    liveSIX,
	{liveIX, liveX}:      liveX,
	{liveS, liveS}:        liveS,
	{liveS, liveSIX}:      liveSIX,
	{liveS, liveX}:        liveX,
	{liveSIX, liveSIX}:    liveSIX,
	{liveSIX, liveX}:      liveX,
	{liveX, liveX}:        liveX,
}

func joinLookup(a, b liveKind) liveKind {
	if a == liveNone {
		return b
	}
	if b == liveNone {
		return a
	}
	if a == liveAlways {
		return b
	}
	if b == liveAlways {
		return a
	}
	if a == liveU || b == liveU {
		return liveX
	}
	if v, ok := joinTable[[2]liveKind{a, b}]; ok {
		return v
	}
	if v, ok := joinTable[[2]liveKind{b, a}]; ok {
		return v
	}
	return liveX
}

var liveKindToMode = map[liveKind]Mode{
	liveNone: N, liveIS: IS, liveIX: IX, liveS: S, liveSIX: SIX, liveX: X,
	liveU: U,
}

// GetLeastUpperBound returns the weakest mode that is at least as
// strong as both granted and requested, the mode a convert() ends up
// holding.
func GetLeastUpperBound(granted, requested Mode) Mode {
	if granted == requested {
		return granted
	}
	a, b := liveKindOf[granted], liveKindOf[requested]
	j := joinLookup(a, b)
	return liveKindToMode[j]
}

// Possibility is isPossible's tri-state result.
type Possibility int

const (
	Impossible Possibility = iota
	Possible
	Unnecessary
)

func (p Possibility) String() string {
	switch p {
	case Impossible:
		return "Impossible"
	case Possible:
		return "Possible"
	case Unnecessary:
		return "Unnecessary"
	default:
		return "Possibility(?)"
	}
}

// IsPossible reports whether a child-granularity lock is needed, not
// needed, or outright impossible given a lock already held at the
// parent granularity, per the multi-granularity intention protocol: an
// IX-family parent lock permits any child lock, an IS-family parent
// permits only child reads, and an S/SIX/X parent already covers child
// reads without a further acquisition. An X parent also covers child
// writes; under a SIX parent a child write still takes its own lock.
func IsPossible(parent, child Mode) Possibility {
	pk, ck := liveKindOf[parent], liveKindOf[child]
	readLike := ck == liveNone || ck == liveIS || ck == liveS || ck == liveAlways

	switch pk {
	case liveX:
		return Unnecessary
	case liveNone, liveAlways:
		return Possible
	case liveIS:
		if readLike {
			return Possible
		}
		return Impossible
	case liveIX:
		return Possible
	case liveS, liveU:
		if readLike {
			return Unnecessary
		}
		return Impossible
	case liveSIX:
		if readLike {
			return Unnecessary
		}
		return Possible
	default:
		return Impossible
	}
}
