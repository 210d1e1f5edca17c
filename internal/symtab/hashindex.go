package symtab

import "hash/fnv"

// minBuckets is the smallest bucket count the multiplicity index will use;
// spec.md §4.1 recommends at least 16384 buckets for a realistic (>=100k
// symbol) kernel image so that chains stay short and lookups stay O(1)
// average.
const minBuckets = 16384

// nameIndex is a hashed name -> count index with chained buckets. It exists
// instead of a bare `map[string]int` because spec.md §4.1 specifies the
// multiplicity index as an explicit engineering component (fingerprint,
// bucket count, chaining) rather than an opaque built-in; the fingerprint
// itself is produced by hash/fnv (stdlib), which already implements the
// "32-bit finalized mixing hash" the spec recommends, so there is no need
// to hand-roll a murmur/xxhash-style mixer on top of it.
type nameIndex struct {
	buckets []nameBucket
	mask    uint32
}

type nameBucket struct {
	entries []nameCount
}

type nameCount struct {
	name  string
	count int
}

func newNameIndex() *nameIndex {
	n := nextPow2(minBuckets)
	return &nameIndex{
		buckets: make([]nameBucket, n),
		mask:    uint32(n - 1),
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func fingerprint(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}

func (idx *nameIndex) bucketFor(name string) *nameBucket {
	b := fingerprint(name) & idx.mask
	return &idx.buckets[b]
}

// Incr increments the stored count for name and returns the new count.
func (idx *nameIndex) Incr(name string) int {
	b := idx.bucketFor(name)
	for i := range b.entries {
		if b.entries[i].name == name {
			b.entries[i].count++
			return b.entries[i].count
		}
	}
	b.entries = append(b.entries, nameCount{name: name, count: 1})
	return 1
}

// Count returns the current multiplicity of name, or 0 if never seen.
func (idx *nameIndex) Count(name string) int {
	b := idx.bucketFor(name)
	for i := range b.entries {
		if b.entries[i].name == name {
			return b.entries[i].count
		}
	}
	return 0
}

// Reset clears every bucket, releasing all entries.
func (idx *nameIndex) Reset() {
	for i := range idx.buckets {
		idx.buckets[i].entries = nil
	}
}
