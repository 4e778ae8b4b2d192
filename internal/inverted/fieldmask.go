package inverted

import "github.com/bits-and-blooms/bitset"

// FieldType is one of the optional output fields a search can be
// asked to return alongside a document ID. Only the subset
// Index.Search can actually produce is carried.
type FieldType uint

const (
	FieldRowid FieldType = iota
	FieldScore
	FieldTf
	FieldLanguage
	FieldSection
)

// FieldMask tracks which optional fields a query wants returned,
// backed by a fixed-size bitset rather than a bool per field.
type FieldMask struct {
	bits *bitset.BitSet
}

// NewFieldMask builds the default mask: Rowid is always present,
// Language and Score are added when requested.
func NewFieldMask(lang, score bool) *FieldMask {
	fm := &FieldMask{bits: bitset.New(8)}
	fm.bits.Set(uint(FieldRowid))
	if lang {
		fm.bits.Set(uint(FieldLanguage))
	}
	if score {
		fm.bits.Set(uint(FieldScore))
	}
	return fm
}

// Add widens the set of fields a result row carries.
func (fm *FieldMask) Add(t FieldType) { fm.bits.Set(uint(t)) }

// Has reports whether t is part of the mask.
func (fm *FieldMask) Has(t FieldType) bool { return fm.bits != nil && fm.bits.Test(uint(t)) }
