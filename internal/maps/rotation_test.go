package maps

import (
	"errors"
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestRotation_SingleEntryNeverExhausts(t *testing.T) {
	r := NewRotation([]string{"only"})

	for i := 0; i < 50; i++ {
		key, err := r.Advance()
		if err != nil {
			t.Fatalf("advance %d: unexpected error %v", i, err)
		}
		testutil.AssertEqual(t, "key", key, "only")
	}
}

func TestRotation_ExhaustsOncePerLap(t *testing.T) {
	tests := map[string]struct {
		keys []string
	}{
		"two":  {keys: []string{"a", "b"}},
		"five": {keys: []string{"a", "b", "c", "d", "e"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := NewRotation(tt.keys)
			n := len(tt.keys)

			exhausted := 0
			for i := 1; i <= n*4; i++ {
				key, err := r.Advance()
				if errors.Is(err, ErrRotationExhausted) {
					exhausted++
					if i%n != 0 {
						t.Errorf("exhausted on call %d", i)
					}
					testutil.AssertEqual(t, "wrapped key", key, tt.keys[0])
					continue
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				testutil.AssertEqual(t, "key", key, tt.keys[i%n])
			}
			testutil.AssertEqual(t, "exhausted count", exhausted, 4)
		})
	}
}

func TestRotation_Empty(t *testing.T) {
	r := NewRotation(nil)

	_, ok := r.Current()
	testutil.AssertEqual(t, "current", ok, false)

	_, err := r.Advance()
	if !errors.Is(err, ErrRotationEmpty) {
		t.Errorf("expected ErrRotationEmpty, got %v", err)
	}
}

func TestRotation_SetCurrent(t *testing.T) {
	r := NewRotation([]string{"a", "b", "c"})

	testutil.AssertEqual(t, "set b", r.SetCurrent("b"), true)
	cur, _ := r.Current()
	testutil.AssertEqual(t, "current", cur, "b")
	testutil.AssertEqual(t, "set missing", r.SetCurrent("z"), false)
	cur, _ = r.Current()
	testutil.AssertEqual(t, "unchanged", cur, "b")
}

func TestRotation_RemoveUnavailable(t *testing.T) {
	tests := map[string]struct {
		keys       []string
		start      string
		available  string
		expKeys    string
		expCurrent string
	}{
		"cursor entry kept": {
			keys:       []string{"a", "b", "c", "d"},
			start:      "c",
			available:  "b,c",
			expKeys:    "b,c",
			expCurrent: "c",
		},
		"cursor entry removed": {
			keys:       []string{"a", "b", "c"},
			start:      "c",
			available:  "a,b",
			expKeys:    "a,b",
			expCurrent: "b",
		},
		"every entry before the cursor removed": {
			keys:       []string{"a", "b", "c", "d", "e"},
			start:      "d",
			available:  "d,e",
			expKeys:    "d,e",
			expCurrent: "d",
		},
		"removed on both sides": {
			keys:       []string{"a", "b", "c", "d", "e"},
			start:      "c",
			available:  "b,c,e",
			expKeys:    "b,c,e",
			expCurrent: "c",
		},
		"everything removed": {
			keys:      []string{"a", "b"},
			start:     "b",
			available: "",
			expKeys:   "",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := NewRotation(tt.keys)
			r.SetCurrent(tt.start)

			r.RemoveUnavailable(func(k string) bool {
				return strings.Contains(","+tt.available+",", ","+k+",")
			})

			testutil.AssertEqual(t, "keys", strings.Join(r.Keys(), ","), tt.expKeys)
			cur, _ := r.Current()
			testutil.AssertEqual(t, "current", cur, tt.expCurrent)
			if r.Len() > 0 && (r.Index() < 0 || r.Index() >= r.Len()) {
				t.Errorf("cursor %d out of range", r.Index())
			}
		})
	}
}

func TestRotation_AddRemove(t *testing.T) {
	r := NewRotation([]string{"a", "b", "c"})
	r.SetCurrent("c")

	testutil.AssertEqual(t, "add dup", r.Add("a"), false)
	testutil.AssertEqual(t, "add new", r.Add("d"), true)
	testutil.AssertEqual(t, "remove a", r.Remove("a"), true)

	cur, _ := r.Current()
	testutil.AssertEqual(t, "current follows entry", cur, "c")
	testutil.AssertEqual(t, "remove missing", r.Remove("zz"), false)
}
