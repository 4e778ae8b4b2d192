package lock

// Duration is the span a granted lock is held for before it becomes
// a release candidate. The named aliases read: Pulse
// is the instant a single latch-protected operation needs, Cursor
// tracks an open scan, Inside spans a whole transaction, and User
// spans however long the session keeps an explicit hold open.
type Duration int

const (
	// Instant (Pulse) locks are released the moment the operation that
	// took them returns.
	Instant Duration = iota
	// Short (Cursor) locks live as long as an open cursor/scan.
	Short
	// Statement locks live for one SQL statement; LogicalLog locks
	// are always held at Statement duration regardless of the
	// requesting operation.
	Statement
	// Middle (Inside) locks live for the enclosing transaction.
	Middle
	// Long (User) locks persist across transaction boundaries until
	// the session explicitly releases them.
	Long
)

func (d Duration) String() string {
	switch d {
	case Instant:
		return "Instant"
	case Short:
		return "Short"
	case Statement:
		return "Statement"
	case Middle:
		return "Middle"
	case Long:
		return "Long"
	default:
		return "Duration(?)"
	}
}

// Releasable reports whether a hold of this duration may be released
// by an explicit release() call. Only Cursor(Short)- and
// User(Long)-duration holds are releasable that way; Instant locks are
// gone before anyone could call release, and Statement/Middle holds
// are dropped in bulk at statement/transaction end instead.
func (d Duration) Releasable() bool {
	return d == Short || d == Long
}
