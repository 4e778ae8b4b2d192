package lock

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Category is one of the five locked-object granularities, ordered
// from coarsest to finest except LogicalLog, which sits outside the
// Database/Table/Tuple containment chain.
type Category int

const (
	Unknown Category = iota
	Database
	Table
	Tuple
	LogicalLog

	categoryCount
)

func (c Category) String() string {
	switch c {
	case Unknown:
		return "Unknown"
	case Database:
		return "Database"
	case Table:
		return "Table"
	case Tuple:
		return "Tuple"
	case LogicalLog:
		return "LogicalLog"
	default:
		return "Category(?)"
	}
}

// Name identifies a lockable object as a 4-tuple: its category plus up
// to three numeric path components (database, table/segment, row/part)
// narrowing within that category. Unused trailing components are left
// zero.
type Name struct {
	Category Category
	Part1    uint64
	Part2    uint64
	Part3    uint64
}

// Parent returns the Name one granularity up the containment chain
// (Database for a Table, Table for a Tuple), used to walk the
// ancestor chain when acquiring intent locks. LogicalLog and Database
// have no parent; ok is false for them.
func (n Name) Parent() (Name, bool) {
	switch n.Category {
	case Table:
		return Name{Category: Database, Part1: n.Part1}, true
	case Tuple:
		return Name{Category: Table, Part1: n.Part1, Part2: n.Part2}, true
	default:
		return Name{}, false
	}
}

func (n Name) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", n.Category, n.Part1, n.Part2, n.Part3)
}

// Hash projects the 4-tuple into a lock-table bucket index. The
// xxhash over the tuple's fixed binary encoding gives a fast,
// well-distributed projection.
func (n Name) Hash() uint64 {
	var buf [4 + 8*3]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n.Category))
	binary.LittleEndian.PutUint64(buf[4:12], n.Part1)
	binary.LittleEndian.PutUint64(buf[12:20], n.Part2)
	binary.LittleEndian.PutUint64(buf[20:28], n.Part3)
	return xxhash.Sum64(buf[:])
}
