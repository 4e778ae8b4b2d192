package record

import (
	"errors"
	"testing"
)

func TestNullData_RejectsMutation(t *testing.T) {
	if err := Null.Assign("x"); !errors.Is(err, ErrBadNullArgument) {
		t.Fatalf("Assign: err = %v, want ErrBadNullArgument", err)
	}
	if err := Null.SetNull(false); !errors.Is(err, ErrBadNullArgument) {
		t.Fatalf("SetNull(false): err = %v, want ErrBadNullArgument", err)
	}
	if err := Null.SetNull(true); err != nil {
		t.Fatalf("SetNull(true): err = %v", err)
	}
}

func TestDumpValue_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		v    any
	}{
		{"int", int64(42)},
		{"float", 3.5},
		{"string", "hello"},
		{"bool", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SetDumpedValue(DumpValue(tc.v))
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.v {
				t.Fatalf("round trip = %#v, want %#v", got, tc.v)
			}
		})
	}
}

func TestDumpValue_NullRestoresSingleton(t *testing.T) {
	for _, v := range []any{Null, nil} {
		got, err := SetDumpedValue(DumpValue(v))
		if err != nil {
			t.Fatal(err)
		}
		if got != any(Null) {
			t.Fatalf("dumped null restored as %#v, want the Null singleton", got)
		}
	}
}
