package sydcore

import (
	"testing"

	"github.com/doquedb/sydcore/internal/reorganize"
	"github.com/doquedb/sydcore/internal/schema"
)

func TestDatabase_ExecuteDispatchesKnownStatement(t *testing.T) {
	db := Open(Config{ObjectCacheSize: 1 << 20})
	plan, err := db.Execute(Descriptor{
		Statement: reorganize.CreateTable,
		Envelope:  reorganize.TxEnvelope{Grants: map[reorganize.PrivilegeCategory]uint32{reorganize.PrivilegeDatabase: 8}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !plan.LogToDB {
		t.Fatalf("expected CreateTable to log to the database log")
	}
}

func TestDatabase_ExecuteRejectsReadOnlyTxDDL(t *testing.T) {
	db := Open(Config{})
	_, err := db.Execute(Descriptor{
		Statement: reorganize.CreateTable,
		Envelope:  reorganize.TxEnvelope{ReadOnly: true},
	})
	if err == nil {
		t.Fatalf("expected a read-only transaction to reject CreateTable")
	}
}

func TestDatabase_BeginSelectsSnapshot(t *testing.T) {
	db := Open(Config{})
	snap := db.Begin(schema.NewSessionID(), 1, false)
	if snap == nil {
		t.Fatalf("expected a non-nil snapshot")
	}
}
