package record

import (
	"errors"
	"fmt"
)

// NullData is the SQL NULL value. The sole instance is Null; a
// NullData is immutable, so assigning to it or un-nulling it are
// both rejected.
type NullData struct{}

// Null is the process-wide NullData instance. Every dumped null
// restores to exactly this pointer.
var Null = &NullData{}

// ErrBadNullArgument rejects mutation of the null singleton.
var ErrBadNullArgument = errors.New("record: null data cannot be assigned")

// Assign always fails: NULL takes no value.
func (*NullData) Assign(any) error { return ErrBadNullArgument }

// SetNull accepts only true; NULL cannot be made non-null in place.
func (*NullData) SetNull(v bool) error {
	if !v {
		return ErrBadNullArgument
	}
	return nil
}

func (*NullData) String() string { return "(null)" }

// DumpValue encodes a single scalar in the tuple wire format. Null
// (or a nil value) dumps as the null tag.
func DumpValue(v any) []byte {
	if _, ok := v.(*NullData); ok {
		v = nil
	}
	return Marshal(Tuple{v})
}

// SetDumpedValue decodes a value dumped by DumpValue. A dumped null
// restores as the Null singleton.
func SetDumpedValue(data []byte) (any, error) {
	t, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if len(t) != 1 {
		return nil, fmt.Errorf("record: dumped value holds %d columns, want 1", len(t))
	}
	if t[0] == nil {
		return Null, nil
	}
	return t[0], nil
}
