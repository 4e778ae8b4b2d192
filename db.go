// Database is the process-wide handle tying this module's subsystems
// together behind the single boundary every outer collaborator (SQL
// parser, optimizer/execution engine, scheduler, RPC boundary, CLI)
// drives it through: "given a transaction handle and
// operation descriptor, drive the core through its documented
// operations." Nothing upstream of Execute is implemented here; it
// only plans and dispatches, following internal/reorganize.Dispatch's
// own plan-don't-mutate contract.
package sydcore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/lock"
	"github.com/doquedb/sydcore/internal/reorganize"
	"github.com/doquedb/sydcore/internal/schema"
)

// Database is the top-level handle a collaborator opens once per
// process and drives through Execute thereafter.
type Database struct {
	locks    *lock.Manager
	registry *schema.Registry
	dispatch reorganize.Table
	log      *zap.Logger
}

// Config configures a new Database. ObjectCacheSize bounds the schema
// registry's snapshot cache.
type Config struct {
	ObjectCacheSize int64
	Logger          *zap.Logger
}

// Open constructs a Database with the default DDL dispatch table.
func Open(cfg Config) *Database {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{
		locks:    lock.NewManager(),
		registry: schema.NewRegistry(cfg.ObjectCacheSize),
		dispatch: reorganize.DefaultTable,
		log:      logger,
	}
}

// Descriptor is the opaque operation a collaborator asks Execute to
// drive: which kind of statement, under what transaction envelope.
// The collaborator (a parser/optimizer this module does not
// implement) is responsible for resolving raw SQL text into one of
// these before calling Execute; this module never parses SQL itself.
type Descriptor struct {
	Statement reorganize.StatementType
	Envelope  reorganize.TxEnvelope
}

// Execute plans stmt under env via the DDL dispatch table and reports
// whether it is permitted and what logging/XA obligations it carries.
// It does not itself perform the DDL: that is still the collaborator's
// job, using the other subsystems (internal/schema, internal/lock,
// internal/vfile and the index kinds) this plan authorizes it to use.
func (db *Database) Execute(d Descriptor) (reorganize.Plan, error) {
	plan, err := reorganize.Dispatch(db.dispatch, d.Statement, d.Envelope)
	if err != nil {
		return reorganize.Plan{}, fmt.Errorf("sydcore: execute: %w", err)
	}
	db.log.Debug("dispatched statement",
		zap.String("statement", d.Statement.String()),
		zap.Bool("needs_xa", plan.NeedsXA),
		zap.Bool("start_implicit", plan.StartImplicit))
	return plan, nil
}

// Begin selects the schema snapshot a session's transaction observes.
func (db *Database) Begin(session schema.SessionID, txID schema.TransactionID, versioned bool) *schema.Snapshot {
	return db.registry.Select(session, txID, versioned)
}

// Locks exposes the lock table a collaborator acquires holds on
// before driving a plan Execute authorized.
func (db *Database) Locks() *lock.Manager { return db.locks }

// Registry exposes the schema catalog snapshot registry.
func (db *Database) Registry() *schema.Registry { return db.registry }
