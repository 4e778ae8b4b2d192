package main

import (
	"testing"

	"github.com/doquedb/sydcore/internal/reorganize"
)

func TestClassify(t *testing.T) {
	cases := map[string]reorganize.StatementType{
		"create table t1 (a int)": reorganize.CreateTable,
		"DROP INDEX idx1":         reorganize.DropIndex,
		"alter table t1 add b":    reorganize.AlterTable,
		"move database d1":        reorganize.MoveDatabase,
	}
	for text, want := range cases {
		got, err := classify(text)
		if err != nil {
			t.Fatalf("classify(%q): %v", text, err)
		}
		if got != want {
			t.Fatalf("classify(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestClassify_UnknownStatementErrors(t *testing.T) {
	if _, err := classify("select * from t1"); err == nil {
		t.Fatalf("expected select to be unclassifiable")
	}
}
