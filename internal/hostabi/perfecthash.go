package hostabi

// The associated-values table and hash formula below implement a
// gperf-style perfect hash over the fixed host symbol set: min word
// length 4, max word length 22, max hash value 45, keyed on str[0],
// str[1], and (len>=16) str[15]. assocValues was computed offline for the
// fixed 29-name set this package installs; it is not derived at runtime.
const (
	minWordLength = 4
	maxWordLength = 22
	maxHashValue  = 45
)

var assocValues = [256]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 7,
	0, 23, 0, 5, 0, 17, 10, 3, 30, 10, 0, 20, 5, 16, 21, 13,
	1, 0, 5, 27, 1, 6, 0, 7, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// hostHash returns the perfect-hash bucket for name. Callers must still
// compare the stored slot's name for equality: the hash may index anywhere
// in [0, max_hash_value] for input outside the fixed set.
func hostHash(name string) (uint32, bool) {
	if len(name) == 0 {
		return 0, false
	}
	h := uint32(len(name)) + uint32(assocValues[name[0]])
	if len(name) >= 2 {
		h += uint32(assocValues[name[1]])
	}
	if len(name) >= 16 {
		h += uint32(assocValues[name[15]])
	}
	return h, h <= maxHashValue
}

type slot struct {
	name string
	addr uintptr
}

// table is the fixed-size perfect-hash table: one slot per hash value in
// [0, max_hash_value], each either empty or holding the one name that hashes
// there.
type table struct {
	slots [maxHashValue + 1]*slot
}

func newTable() *table { return &table{} }

// insert binds name to addr. Called only from this package's own init with
// the fixed 29-name set; a collision here is a programming error in the
// table construction, not a runtime condition.
func (t *table) insert(name string, addr uintptr) {
	h, ok := hostHash(name)
	if !ok {
		panic("hostabi: " + name + " hashes outside [0, max_hash_value]")
	}
	if t.slots[h] != nil && t.slots[h].name != name {
		panic("hostabi: hash collision between " + t.slots[h].name + " and " + name)
	}
	t.slots[h] = &slot{name: name, addr: addr}
}

// lookup resolves name to its installed host function pointer.
func (t *table) lookup(name string) (uintptr, bool) {
	h, ok := hostHash(name)
	if !ok {
		return 0, false
	}
	s := t.slots[h]
	if s == nil || s.name != name {
		return 0, false
	}
	return s.addr, true
}
