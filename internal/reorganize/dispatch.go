// Package reorganize implements the DDL dispatch table: a row per
// statement kind recording where it runs and what it needs, the
// dispatch-time checks, and redo/undo replay of logged DDL during
// recovery.
package reorganize

import (
	"fmt"

	"github.com/doquedb/sydcore/internal/schema"
)

// StatementType is the kind of SQL statement a dispatch Entry governs.
// The set here covers DDL (this package's concern); DML/query kinds
// would extend it but carry no redo/undo logic of their own.
type StatementType int

const (
	CreateDatabase StatementType = iota
	DropDatabase
	MoveDatabase
	CreateTable
	DropTable
	AlterTable
	CreateIndex
	DropIndex
	CreateArea
	DropArea
	AlterArea
)

func (t StatementType) String() string {
	names := [...]string{
		"CreateDatabase", "DropDatabase", "MoveDatabase",
		"CreateTable", "DropTable", "AlterTable",
		"CreateIndex", "DropIndex",
		"CreateArea", "DropArea", "AlterArea",
	}
	if int(t) < 0 || int(t) >= len(names) {
		return "StatementType(?)"
	}
	return names[t]
}

// Module is the subsystem a statement is routed to. This package only
// ever sees Schema-module rows; Optimizer-module rows (DML/query) are
// out of scope but the field is kept so the table shape matches the
// original's.
type Module int

const (
	ModuleSchema Module = iota
	ModuleOptimizer
	ModuleAdmin
)

// Permission is how a statement's transaction envelope is decided.
type Permission int

const (
	// Any: runs inside whatever transaction envelope the caller
	// already has open.
	Any Permission = iota
	// Implicitly: if no transaction is open, one is implicitly
	// started and committed around the statement.
	Implicitly
	// Explicitly: the caller must have an explicit transaction open.
	Explicitly
	// Never: the statement may not run inside any transaction.
	Never
)

func (p Permission) String() string {
	switch p {
	case Any:
		return "Any"
	case Implicitly:
		return "Implicitly"
	case Explicitly:
		return "Explicitly"
	case Never:
		return "Never"
	default:
		return "Permission(?)"
	}
}

// PrivilegeCategory groups the bits Entry.PrivilegeBits is checked
// against.
type PrivilegeCategory int

const (
	PrivilegeReference PrivilegeCategory = iota
	PrivilegeData
	PrivilegeDatabase
)

// Entry is one row of the dispatch table:
// { type, module, permission, ok_in_read_only_tx, ok_on_read_only_db,
//   ok_on_offline_db, ok_in_slave, logged_in_db_log,
//   logged_in_system_log, privilege_category, privilege_bits }.
type Entry struct {
	Type      StatementType
	Module    Module
	Permission Permission

	OkInReadOnlyTx  bool
	OkOnReadOnlyDB  bool
	OkOnOfflineDB   bool
	OkInSlave       bool
	LoggedInDBLog   bool
	LoggedInSystemLog bool

	PrivilegeCategory PrivilegeCategory
	PrivilegeBits     uint32
}

// Table is keyed by StatementType; DefaultTable below is the
// built-in instance.
type Table map[StatementType]Entry

// DefaultTable is the module's built-in dispatch table, one row per
// StatementType this package knows how to redo/undo. Every
// schema-modifying DDL kind carries the same booleans (Implicitly
// permission, not ok in a read-only transaction or database, logged
// in the database log, not the system log); database-level DDL logs
// to the system log instead.
var DefaultTable = Table{
	CreateDatabase: {Type: CreateDatabase, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: true, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: false, LoggedInSystemLog: true,
		PrivilegeCategory: PrivilegeDatabase, PrivilegeBits: 1},
	DropDatabase: {Type: DropDatabase, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: true, OkOnOfflineDB: true, OkInSlave: false,
		LoggedInDBLog: false, LoggedInSystemLog: true,
		PrivilegeCategory: PrivilegeDatabase, PrivilegeBits: 2},
	MoveDatabase: {Type: MoveDatabase, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: true, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: false, LoggedInSystemLog: true,
		PrivilegeCategory: PrivilegeDatabase, PrivilegeBits: 4},
	CreateTable: {Type: CreateTable, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: false, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: true, LoggedInSystemLog: false,
		PrivilegeCategory: PrivilegeDatabase, PrivilegeBits: 8},
	DropTable: {Type: DropTable, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: false, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: true, LoggedInSystemLog: false,
		PrivilegeCategory: PrivilegeDatabase, PrivilegeBits: 16},
	AlterTable: {Type: AlterTable, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: false, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: true, LoggedInSystemLog: false,
		PrivilegeCategory: PrivilegeDatabase, PrivilegeBits: 32},
	CreateIndex: {Type: CreateIndex, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: false, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: true, LoggedInSystemLog: false,
		PrivilegeCategory: PrivilegeData, PrivilegeBits: 64},
	DropIndex: {Type: DropIndex, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: false, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: true, LoggedInSystemLog: false,
		PrivilegeCategory: PrivilegeData, PrivilegeBits: 128},
	CreateArea: {Type: CreateArea, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: false, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: true, LoggedInSystemLog: false,
		PrivilegeCategory: PrivilegeDatabase, PrivilegeBits: 256},
	DropArea: {Type: DropArea, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: false, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: true, LoggedInSystemLog: false,
		PrivilegeCategory: PrivilegeDatabase, PrivilegeBits: 512},
	AlterArea: {Type: AlterArea, Module: ModuleSchema, Permission: Implicitly,
		OkInReadOnlyTx: false, OkOnReadOnlyDB: false, OkOnOfflineDB: false, OkInSlave: false,
		LoggedInDBLog: true, LoggedInSystemLog: false,
		PrivilegeCategory: PrivilegeDatabase, PrivilegeBits: 1024},
}

// TxEnvelope describes the caller's transaction context at dispatch
// time.
type TxEnvelope struct {
	ReadOnly    bool
	DBReadOnly  bool
	DBOffline   bool
	Slave       bool
	Open        bool // an explicit transaction is currently open
	Grants      map[PrivilegeCategory]uint32
}

// ErrNotPermitted is returned by Dispatch's permission/privilege
// checks.
var ErrNotPermitted = fmt.Errorf("reorganize: not permitted")

// Plan is Dispatch's successful result: the envelope decision and
// logging destinations the caller must honor.
type Plan struct {
	Entry          Entry
	NeedsXA        bool
	StartImplicit  bool
	LogToDB        bool
	LogToSystem    bool
}

// Dispatch runs the dispatch-time checks up through deciding the
// transaction envelope; the final step (writing the log entry) is the
// caller's job once the DDL itself has actually executed, since
// Dispatch only plans, it never mutates the catalog.
func Dispatch(tbl Table, stmt StatementType, env TxEnvelope) (Plan, error) {
	entry, ok := tbl[stmt]
	if !ok {
		return Plan{}, fmt.Errorf("reorganize: unknown statement type %s", stmt)
	}

	if !entry.OkInReadOnlyTx && env.ReadOnly {
		return Plan{}, fmt.Errorf("%w: %s not allowed in a read-only transaction", ErrNotPermitted, stmt)
	}
	if !entry.OkOnReadOnlyDB && env.DBReadOnly {
		return Plan{}, fmt.Errorf("%w: %s not allowed on a read-only database", ErrNotPermitted, stmt)
	}
	if !entry.OkOnOfflineDB && env.DBOffline {
		return Plan{}, fmt.Errorf("%w: %s not allowed on an offline database", ErrNotPermitted, stmt)
	}
	if !entry.OkInSlave && env.Slave {
		return Plan{}, fmt.Errorf("%w: %s not allowed on a slave database", ErrNotPermitted, stmt)
	}

	granted := env.Grants[entry.PrivilegeCategory]
	if granted&entry.PrivilegeBits != entry.PrivilegeBits {
		return Plan{}, fmt.Errorf("%w: %s requires privilege bits %#x in category %d, session has %#x",
			ErrNotPermitted, stmt, entry.PrivilegeBits, entry.PrivilegeCategory, granted)
	}

	needsXA := isXATransactionNeeded(entry, env)
	startImplicit := entry.Permission == Implicitly && !env.Open

	return Plan{
		Entry:         entry,
		NeedsXA:       needsXA,
		StartImplicit: startImplicit,
		LogToDB:       entry.LoggedInDBLog,
		LogToSystem:   entry.LoggedInSystemLog,
	}, nil
}

// isXATransactionNeeded is true for the subset of statements that
// both modify data (they log to the database log) and cannot run in
// a read-only transaction, and only when no transaction is open yet.
func isXATransactionNeeded(entry Entry, env TxEnvelope) bool {
	return entry.LoggedInDBLog && !entry.OkInReadOnlyTx && !env.Open
}

// schemaCategory maps a catalog Category onto the dispatch table's
// narrower privilege grouping, used by callers building TxEnvelope.Grants.
func schemaCategory(c schema.Category) PrivilegeCategory {
	switch c {
	case schema.CategoryDatabase:
		return PrivilegeDatabase
	default:
		return PrivilegeData
	}
}
