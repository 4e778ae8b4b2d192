package inverted

import (
	"encoding/binary"
	"fmt"
)

// encodePostingList serializes a term's postings for overflow-chain
// storage: count, then per-posting DocumentID/TermFrequency/location
// count/locations.
func encodePostingList(pl *PostingList) []byte {
	var out []byte
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(pl.Postings)))
	out = append(out, hdr[:]...)
	for _, p := range pl.Postings {
		var fixed [12]byte
		binary.LittleEndian.PutUint32(fixed[0:], p.DocumentID)
		binary.LittleEndian.PutUint32(fixed[4:], p.TermFrequency)
		binary.LittleEndian.PutUint32(fixed[8:], uint32(len(p.Locations)))
		out = append(out, fixed[:]...)
		for _, loc := range p.Locations {
			var l [4]byte
			binary.LittleEndian.PutUint32(l[:], loc)
			out = append(out, l[:]...)
		}
	}
	return out
}

func decodePostingList(term string, data []byte) (*PostingList, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("inverted: posting list header truncated for %q", term)
	}
	n := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]
	pl := &PostingList{Term: term, Postings: make([]Posting, 0, n)}
	for i := uint32(0); i < n; i++ {
		if len(data) < 12 {
			return nil, fmt.Errorf("inverted: posting %d truncated for %q", i, term)
		}
		p := Posting{
			DocumentID:    binary.LittleEndian.Uint32(data[0:]),
			TermFrequency: binary.LittleEndian.Uint32(data[4:]),
		}
		locCount := binary.LittleEndian.Uint32(data[8:])
		data = data[12:]
		if uint32(len(data)) < locCount*4 {
			return nil, fmt.Errorf("inverted: posting %d locations truncated for %q", i, term)
		}
		p.Locations = make([]uint32, locCount)
		for j := uint32(0); j < locCount; j++ {
			p.Locations[j] = binary.LittleEndian.Uint32(data[j*4:])
		}
		data = data[locCount*4:]
		pl.Postings = append(pl.Postings, p)
	}
	return pl, nil
}

// mergePostings combines a persisted list with staged postings,
// staged entries winning on a shared document ID.
func mergePostings(base *PostingList, staged *PostingList) *PostingList {
	merged := &PostingList{Term: base.Term}
	merged.Postings = append(merged.Postings, base.Postings...)
	for _, p := range staged.Postings {
		merged.Insert(p)
	}
	return merged
}
