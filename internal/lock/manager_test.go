package lock

import (
	"testing"
	"time"
)

func TestTable_HoldCompatibleGrantsImmediately(t *testing.T) {
	tbl := NewManager()
	name := Name{Category: Table, Part1: 1}
	if err := tbl.Hold(1, name, IS, Middle); err != nil {
		t.Fatalf("hold 1: %v", err)
	}
	if err := tbl.Hold(2, name, IS, Middle); err != nil {
		t.Fatalf("hold 2: %v", err)
	}
	if got := tbl.Mode(1, name); got != IS {
		t.Fatalf("owner 1 mode = %s, want IS", got)
	}
}

func TestTable_HoldBlocksUntilReleased(t *testing.T) {
	tbl := NewManager()
	name := Name{Category: Table, Part1: 1}
	if err := tbl.Hold(1, name, X, Short); err != nil {
		t.Fatalf("hold 1: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- tbl.Hold(2, name, S, Short)
	}()

	select {
	case <-done:
		t.Fatal("second hold granted while X still held")
	case <-time.After(30 * time.Millisecond):
	}

	if err := tbl.Release(1, name); err != nil {
		t.Fatalf("release 1: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("hold 2: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second hold never granted after release")
	}
}

func TestTable_ReleaseRejectsNonReleasableDuration(t *testing.T) {
	tbl := NewManager()
	name := Name{Category: Table, Part1: 1}
	if err := tbl.Hold(1, name, X, Middle); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := tbl.Release(1, name); err == nil {
		t.Fatal("expected error releasing a Middle-duration hold")
	}
}

func TestTable_ConvertUpgradesToLeastUpperBound(t *testing.T) {
	tbl := NewManager()
	name := Name{Category: Table, Part1: 1}
	if err := tbl.Hold(1, name, IS, Middle); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := tbl.Convert(1, name, IX); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got := tbl.Mode(1, name); got != IX {
		t.Fatalf("mode after convert = %s, want IX", got)
	}
}

func TestTable_ConvertBlockedByIncompatibleHolder(t *testing.T) {
	tbl := NewManager()
	name := Name{Category: Table, Part1: 1}
	if err := tbl.Hold(1, name, IS, Middle); err != nil {
		t.Fatalf("hold 1: %v", err)
	}
	if err := tbl.Hold(2, name, IS, Middle); err != nil {
		t.Fatalf("hold 2: %v", err)
	}
	if err := tbl.Convert(1, name, X); err == nil {
		t.Fatal("expected convert to X to be blocked by owner 2's IS")
	}
}

func TestTable_ReleaseAllDropsEveryDuration(t *testing.T) {
	tbl := NewManager()
	name := Name{Category: Table, Part1: 1}
	if err := tbl.Hold(1, name, X, Middle); err != nil {
		t.Fatalf("hold: %v", err)
	}
	tbl.ReleaseAll(1)
	if got := tbl.Mode(1, name); got != N {
		t.Fatalf("mode after ReleaseAll = %s, want N", got)
	}
}
