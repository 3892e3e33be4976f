package tabwire

import "strconv"

// minStringRefLen is the escaped length a string must exceed before it is
// given a back-reference id. Shorter strings are cheaper to repeat.
const minStringRefLen = 4

// refIndex assigns dense ids in first-seen order on the encode side.
type refIndex[K comparable] struct {
	ids map[K]int
}

// register returns the id of k if it was seen before. Otherwise k gets the
// next id and register reports false, meaning the full value must be written.
func (r *refIndex[K]) register(k K) (int, bool) {
	if r.ids == nil {
		r.ids = make(map[K]int)
	}
	if id, ok := r.ids[k]; ok {
		return id, true
	}
	r.ids[k] = len(r.ids)
	return 0, false
}

func (r *refIndex[K]) len() int {
	return len(r.ids)
}

func (r *refIndex[K]) reset() {
	clear(r.ids)
}

// refList is the decode-side mirror of refIndex: the i-th added value has id i.
type refList[V any] struct {
	items []V
}

// add appends v and returns its id.
func (r *refList[V]) add(v V) int {
	r.items = append(r.items, v)
	return len(r.items) - 1
}

// resolve returns the value registered under id.
func (r *refList[V]) resolve(id int64, offset int) (V, error) {
	if id < 0 || id >= int64(len(r.items)) {
		var zero V
		return zero, formatErr(ReasonRefOutOfBounds, offset,
			strconv.FormatInt(id, 10)+" >= "+strconv.Itoa(len(r.items)))
	}
	return r.items[id], nil
}

func (r *refList[V]) len() int {
	return len(r.items)
}

func (r *refList[V]) reset() {
	clear(r.items)
	r.items = r.items[:0]
}

// stringRefEligible reports whether a string with the given escaped length
// takes part in back-referencing. Encoder and decoder must agree on this.
func stringRefEligible(escapedLength int) bool {
	return escapedLength > minStringRefLen
}
