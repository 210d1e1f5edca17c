package symtab

import (
	"fmt"
	"sort"
)

// SortKey selects which of the two canonical orders Sort produces.
type SortKey int

const (
	// ByName orders the sequence non-decreasing by (name, address).
	ByName SortKey = iota
	// ByAddress orders the sequence non-decreasing by (address, insertion order).
	ByAddress
)

const (
	minPrintable = 32
	maxPrintable = 127
	alphabetSize = maxPrintable - minPrintable + 1
)

// Store is the ordered-sequence-and-index hybrid described in spec.md §3:
// an insertion-ordered sequence of records, a hashed name-multiplicity
// index maintained incrementally on Append, and a first-character
// alphabet index built on demand from a name-sorted sequence.
type Store struct {
	seq        []Record
	names      *nameIndex
	alphabet   [alphabetSize]int // earliest seq position for first-byte c, -1 if none
	alphaBuilt bool
}

// New returns an empty store.
func New() *Store {
	s := &Store{names: newNameIndex()}
	s.resetAlphabet()
	return s
}

func (s *Store) resetAlphabet() {
	for i := range s.alphabet {
		s.alphabet[i] = -1
	}
	s.alphaBuilt = false
}

// Len returns the number of records currently held.
func (s *Store) Len() int { return len(s.seq) }

// Append creates an immutable record and appends it to the sequence tail,
// incrementing the name's multiplicity. Appending invalidates any
// previously built alphabet index (the sequence order changed).
func (s *Store) Append(name string, address uint64, typ byte) Record {
	r := Record{Name: name, Address: address, Type: typ}
	s.seq = append(s.seq, r)
	s.names.Incr(name)
	s.alphaBuilt = false
	return r
}

// Multiplicity returns how many records currently share name; O(1) average.
func (s *Store) Multiplicity(name string) int {
	return s.names.Count(name)
}

// BuildAlphabetIndex performs one linear pass recording, for each
// first-byte seen (printable ASCII 32-127), the earliest sequence position
// whose name starts with it. Must be called only when the sequence is
// name-sorted; it is the starting point InsertAfter uses to avoid an O(n)
// scan from the head on every anchored insertion.
func (s *Store) BuildAlphabetIndex() {
	s.resetAlphabet()
	for i, r := range s.seq {
		if len(r.Name) == 0 {
			continue
		}
		c := r.Name[0]
		if c < minPrintable || c > maxPrintable {
			continue
		}
		idx := int(c) - minPrintable
		if s.alphabet[idx] == -1 {
			s.alphabet[idx] = i
		}
	}
	s.alphaBuilt = true
}

// InsertAfter searches, starting from the alphabet-index entry for name's
// first byte (or the sequence head if no such entry or the index was never
// built), for the first record whose address equals anchorAddress, and
// inserts a new record immediately after it. Reports false iff no such
// anchor is found.
func (s *Store) InsertAfter(anchorAddress uint64, name string, address uint64, typ byte) bool {
	start := 0
	if s.alphaBuilt && len(name) > 0 {
		c := name[0]
		if c >= minPrintable && c <= maxPrintable {
			if p := s.alphabet[int(c)-minPrintable]; p >= 0 {
				start = p
			}
		}
	}

	for i := start; i < len(s.seq); i++ {
		if s.seq[i].Address == anchorAddress {
			r := Record{Name: name, Address: address, Type: typ}
			s.seq = append(s.seq, Record{})
			copy(s.seq[i+2:], s.seq[i+1:])
			s.seq[i+1] = r
			s.names.Incr(name)
			// Deliberately NOT invalidating the alphabet index here: an
			// insertion only ever shifts later positions further right,
			// so every previously recorded earliest-position remains a
			// safe (if sometimes conservative) scan start for the rest
			// of this pass.
			return true
		}
	}
	return false
}

// Sort performs a stable sort of the sequence by the given key. Go's
// sort.SliceStable already guarantees the tie-preserving behaviour spec.md
// §4.1 asks of a "stable merge sort"; hand-rolling merge sort on top of it
// would only reimplement what the standard library already provides
// correctly.
func (s *Store) Sort(key SortKey) {
	switch key {
	case ByName:
		sort.SliceStable(s.seq, func(i, j int) bool {
			if s.seq[i].Name != s.seq[j].Name {
				return s.seq[i].Name < s.seq[j].Name
			}
			return s.seq[i].Address < s.seq[j].Address
		})
	case ByAddress:
		sort.SliceStable(s.seq, func(i, j int) bool {
			return s.seq[i].Address < s.seq[j].Address
		})
	default:
		panic(fmt.Sprintf("symtab: unknown sort key %d", key))
	}
	s.alphaBuilt = false
}

// Iterate returns the sequence in its current order. The returned slice
// aliases the store's internal storage and must not be mutated by callers.
func (s *Store) Iterate() []Record {
	return s.seq
}

// Teardown releases every record and index entry, returning the store to
// an empty, reusable state.
func (s *Store) Teardown() {
	s.seq = nil
	s.names.Reset()
	s.resetAlphabet()
}
