// Package schema implements the catalog snapshot registry: a
// process-singleton map from transaction to the schema view it is
// bound to, with reorganize-driven invalidation, name/path
// reservation for DDL preparation, and an object-cache pressure
// counter. The registry follows a map-of-maps registration pattern;
// visibility follows snapshot semantics: a session sees the catalog
// as of the snapshot its transaction was bound to.
package schema

import "time"

// Category is the kind of a reservable, cacheable schema object.
type Category int

const (
	CategoryDatabase Category = iota
	CategoryTable
	CategoryIndex
	CategoryColumn
)

func (c Category) String() string {
	switch c {
	case CategoryDatabase:
		return "Database"
	case CategoryTable:
		return "Table"
	case CategoryIndex:
		return "Index"
	case CategoryColumn:
		return "Column"
	default:
		return "Category(?)"
	}
}

// Database is a catalog entry for a database object.
type Database struct {
	ID        string
	Name      string
	Path      string
	ReadOnly  bool
	Offline   bool
	CreatedAt time.Time
	Tables    map[string]*Table
}

// Table is a catalog entry for a table object, keyed under its
// owning Database.
type Table struct {
	ID        string
	Name      string
	DatabaseID string
	Columns   []Column
	Indexes   map[string]*Index
	CreatedAt time.Time
}

// Column describes one column of a Table.
type Column struct {
	Name     string
	Position int
	DataType string
	Nullable bool
}

// Index is a catalog entry for a secondary structure over a Table,
// naming the internal/index kind backing it (e.g. "btree", "bitmap").
type Index struct {
	ID      string
	Name    string
	TableID string
	Kind    string
	Columns []string
}
