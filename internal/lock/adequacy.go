package lock

// Operation is one of the six lock-requesting operations.
type Operation int

const (
	Drop Operation = iota
	MoveDatabase
	ReadForWrite
	ReadForImport
	ReadOnly
	ReadWrite
)

func (o Operation) String() string {
	switch o {
	case Drop:
		return "Drop"
	case MoveDatabase:
		return "MoveDatabase"
	case ReadForWrite:
		return "ReadForWrite"
	case ReadForImport:
		return "ReadForImport"
	case ReadOnly:
		return "ReadOnly"
	case ReadWrite:
		return "ReadWrite"
	default:
		return "Operation(?)"
	}
}

// IsolationLevel is one of the four SQL isolation levels the
// adequacy function is parameterized over.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

func (i IsolationLevel) String() string {
	switch i {
	case ReadUncommitted:
		return "ReadUncommitted"
	case ReadCommitted:
		return "ReadCommitted"
	case RepeatableRead:
		return "RepeatableRead"
	case Serializable:
		return "Serializable"
	default:
		return "IsolationLevel(?)"
	}
}

// versioned reports whether reads at this isolation level are served
// from a version (snapshot) rather than the current content — true for
// every level below Serializable, mirroring MVCC engines where only
// Serializable forces readers onto the live, lockable content.
func (i IsolationLevel) versioned() bool {
	return i != Serializable
}

// category hierarchy, narrowest to widest, excluding the orthogonal
// LogicalLog category.
func parentCategory(c Category) (Category, bool) {
	switch c {
	case Table:
		return Database, true
	case Tuple:
		return Table, true
	default:
		return Unknown, false
	}
}

func isAncestorOf(locked, manipulating Category) bool {
	c := manipulating
	for {
		p, ok := parentCategory(c)
		if !ok {
			return false
		}
		if p == locked {
			return true
		}
		c = p
	}
}

// GetAdequateLock is the pure lock-adequacy function: given
// the operation being performed, the category of the object it
// manipulates, the requesting transaction's isolation level, and the
// category actually being locked (which may be an ancestor of the
// manipulated object, for an intent lock), it returns the mode and
// duration to request.
//
// rollingBack forces every request down to (N, Instant)
// regardless of the other parameters — a transaction unwinding never
// needs to newly acquire anything.
func GetAdequateLock(op Operation, manipulating Category, iso IsolationLevel, locked Category, rollingBack bool) (Mode, Duration) {
	if rollingBack {
		return N, Instant
	}
	if locked == Unknown || manipulating == Unknown {
		return N, Instant
	}
	if locked == LogicalLog {
		return logicalLogMode(op), Statement
	}

	atTarget := locked == manipulating
	ancestor := isAncestorOf(locked, manipulating)
	if !atTarget && !ancestor {
		return N, Instant
	}

	switch op {
	case Drop, MoveDatabase:
		if atTarget {
			return X, Middle
		}
		return IX, Middle

	case ReadForWrite:
		if atTarget {
			return U, Middle
		}
		return IX, Middle

	case ReadForImport:
		if atTarget {
			if iso == ReadUncommitted {
				return IS, Middle
			}
			return S, Middle
		}
		return IS, Middle

	case ReadOnly:
		if iso.versioned() {
			if atTarget {
				return VS, Middle
			}
			return VIS, Middle
		}
		if atTarget {
			return S, Middle
		}
		return IS, Middle

	case ReadWrite:
		if atTarget {
			if iso == Serializable {
				return X, Middle
			}
			return SIX, Middle
		}
		return IX, Middle

	default:
		return N, Instant
	}
}

// logicalLogMode picks the mode for the orthogonal LogicalLog
// category, always held at Statement duration regardless of op:
// readers
// of the log take S, every write-shaped operation takes X so that log
// records are appended without interleaving.
func logicalLogMode(op Operation) Mode {
	switch op {
	case ReadOnly, ReadForImport:
		return S
	default:
		return X
	}
}
