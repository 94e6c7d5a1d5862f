package maps

import "slices"

// Rotation is an ordered list of storage keys with a cursor. The cursor is
// always inside the list when the list is not empty.
type Rotation struct {
	keys   []string
	cursor int
}

func NewRotation(keys []string) *Rotation {
	return &Rotation{keys: slices.Clone(keys)}
}

func (r *Rotation) Len() int {
	return len(r.keys)
}

func (r *Rotation) Keys() []string {
	return slices.Clone(r.keys)
}

func (r *Rotation) Index() int {
	return r.cursor
}

func (r *Rotation) Current() (string, bool) {
	if len(r.keys) == 0 {
		return "", false
	}
	return r.keys[r.cursor], true
}

// Advance moves to the next key. When the cursor wraps back to the start of a
// multi-entry rotation it returns the first key along with
// ErrRotationExhausted. A single entry rotation repeats forever.
func (r *Rotation) Advance() (string, error) {
	switch len(r.keys) {
	case 0:
		return "", ErrRotationEmpty
	case 1:
		return r.keys[0], nil
	}

	r.cursor = (r.cursor + 1) % len(r.keys)
	if r.cursor == 0 {
		return r.keys[0], ErrRotationExhausted
	}
	return r.keys[r.cursor], nil
}

// SetCurrent points the cursor at key. False if key is not in the rotation.
func (r *Rotation) SetCurrent(key string) bool {
	i := slices.Index(r.keys, key)
	if i < 0 {
		return false
	}
	r.cursor = i
	return true
}

// Add appends key unless it is already present.
func (r *Rotation) Add(key string) bool {
	if slices.Contains(r.keys, key) {
		return false
	}
	r.keys = append(r.keys, key)
	return true
}

// Remove drops key, keeping the cursor on the same entry where possible.
func (r *Rotation) Remove(key string) bool {
	i := slices.Index(r.keys, key)
	if i < 0 {
		return false
	}
	r.keys = slices.Delete(r.keys, i, i+1)
	if i < r.cursor {
		r.cursor--
	}
	r.clamp()
	return true
}

// RemoveUnavailable keeps only keys for which available returns true. The
// cursor stays on the same entry when that entry survives.
func (r *Rotation) RemoveUnavailable(available func(string) bool) []string {
	var removed []string
	kept := make([]string, 0, len(r.keys))
	before := 0
	for i, k := range r.keys {
		if available(k) {
			kept = append(kept, k)
			continue
		}
		removed = append(removed, k)
		if i < r.cursor {
			before++
		}
	}
	r.keys = kept
	r.cursor -= before
	r.clamp()
	return removed
}

func (r *Rotation) clamp() {
	switch {
	case len(r.keys) == 0:
		r.cursor = 0
	case r.cursor >= len(r.keys):
		r.cursor = len(r.keys) - 1
	case r.cursor < 0:
		r.cursor = 0
	}
}
