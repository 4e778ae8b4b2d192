package reorganize

import (
	"testing"

	"github.com/doquedb/sydcore/internal/schema"
)

func TestRedo_CreateTableThenCreateIndex(t *testing.T) {
	reg := schema.NewRegistry(0)
	logs := []LogData{
		{Type: CreateDatabase, DatabaseID: "db1", Post: map[string]string{"name": "db1", "path": "/data/db1"}},
		{Type: CreateTable, DatabaseID: "db1", Post: map[string]string{"tableID": "t1", "name": "orders"}},
		{Type: CreateIndex, DatabaseID: "db1", Post: map[string]string{"tableID": "t1", "indexID": "i1", "name": "orders_pk", "kind": "btree"}},
	}
	seq := schema.TransactionID(0)
	if err := Redo(logs, reg, func(LogData) schema.TransactionID { seq++; return seq }); err != nil {
		t.Fatalf("redo: %v", err)
	}

	snap := reg.Select(schema.NewSessionID(), seq+1, true)
	table, ok := snap.Table("db1", "t1")
	if !ok {
		t.Fatal("expected table t1 to exist after redo")
	}
	if table.Name != "orders" {
		t.Fatalf("table name = %q, want orders", table.Name)
	}
	if _, ok := table.Indexes["i1"]; !ok {
		t.Fatal("expected index i1 to exist after redo")
	}
}

func TestUndo_ReversesCreateIndexThenCreateTable(t *testing.T) {
	reg := schema.NewRegistry(0)
	logs := []LogData{
		{Type: CreateDatabase, DatabaseID: "db1", Post: map[string]string{"name": "db1", "path": "/data/db1"}},
		{Type: CreateTable, DatabaseID: "db1", Post: map[string]string{"tableID": "t1", "name": "orders"}},
		{Type: CreateIndex, DatabaseID: "db1", Post: map[string]string{"tableID": "t1", "indexID": "i1", "name": "orders_pk", "kind": "btree"}},
	}
	seq := schema.TransactionID(0)
	at := func(LogData) schema.TransactionID { seq++; return seq }
	if err := Redo(logs, reg, at); err != nil {
		t.Fatalf("redo: %v", err)
	}

	if err := Undo(logs, reg, at); err != nil {
		t.Fatalf("undo: %v", err)
	}

	snap := reg.Select(schema.NewSessionID(), seq+1, true)
	if _, ok := snap.Database("db1"); ok {
		t.Fatal("expected database db1 to be gone after full undo")
	}
}
