package match

import (
	"strings"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestSession_Roster(t *testing.T) {
	s := newSession("s", "map1", epoch, time.Minute, []string{"a", "b", "a", "c"})

	testutil.AssertEqual(t, "deduplicated", strings.Join(s.Participants(), ","), "a,b,c")
	testutil.AssertEqual(t, "remove", s.remove("b"), true)
	testutil.AssertEqual(t, "remove again", s.remove("b"), false)
	testutil.AssertEqual(t, "size", s.Size(), 2)
}

func TestSession_Remaining(t *testing.T) {
	s := newSession("s", "map1", epoch, time.Minute, nil)

	testutil.AssertEqual(t, "midway", s.Remaining(epoch.Add(20*time.Second)), 40*time.Second)
	testutil.AssertEqual(t, "overdue", s.Remaining(epoch.Add(2*time.Minute)), time.Duration(0))

	s.EndedAt = epoch.Add(30 * time.Second)
	testutil.AssertEqual(t, "frozen", s.Remaining(epoch.Add(50*time.Second)), 30*time.Second)
	testutil.AssertEqual(t, "ended", s.Ended(), true)
}

func TestLedger_Leaders(t *testing.T) {
	l := NewLedger()
	l.entry("amy").Points = 3
	l.entry("bob").Points = 5
	l.entry("cat").Points = 3
	l.entry("cat").Kills = 2

	var names []string
	for _, e := range l.Leaders(0) {
		names = append(names, e.Participant)
	}
	testutil.AssertEqual(t, "order", strings.Join(names, ","), "bob,cat,amy")
	testutil.AssertEqual(t, "limited", len(l.Leaders(2)), 2)
	testutil.AssertEqual(t, "unknown", l.Get("zed"), Stats{})

	l.Reset()
	testutil.AssertEqual(t, "reset", len(l.Leaders(0)), 0)
}
