package alerts

import (
	"fmt"
	"testing"
	"time"

	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("a%d", n)
	}
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: t0}
	return NewStore(WithClock(clock.Now), WithIDGenerator(sequentialIDs())), clock
}

func lowStock(msg string) domain.Alert {
	return domain.Alert{Type: domain.AlertLowStock, Title: "Low Stock Alert", Message: msg, Severity: domain.SeverityMedium}
}

func TestReconcile_AssignsIDsAndPrepends(t *testing.T) {
	s, clock := newTestStore()

	added := s.Reconcile([]domain.Alert{lowStock("first")})
	require.Len(t, added, 1)
	assert.Equal(t, "a1", added[0].ID)
	assert.Equal(t, t0, added[0].Timestamp)

	clock.Advance(time.Minute)
	added = s.Reconcile([]domain.Alert{lowStock("second"), lowStock("third")})
	assert.Equal(t, []string{"second", "third"}, messages(added))

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"third", "second", "first"}, messages(list), "each new alert goes to the front")
}

func TestReconcile_DuplicateKeyDiscardedWithoutTimestampBump(t *testing.T) {
	s, clock := newTestStore()
	s.Reconcile([]domain.Alert{lowStock("Steel (S235) inventory is running low (5 mm remaining)")})

	clock.Advance(time.Hour)
	added := s.Reconcile([]domain.Alert{lowStock("Steel (S235) inventory is running low (5 mm remaining)")})

	assert.Empty(t, added)
	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, t0, list[0].Timestamp)
}

func TestReconcile_SameMessageDifferentTypeIsDistinct(t *testing.T) {
	s, _ := newTestStore()
	critical := lowStock("same")
	critical.Type = domain.AlertCriticalStock

	added := s.Reconcile([]domain.Alert{lowStock("same"), critical})
	assert.Len(t, added, 2)
}

func TestReconcile_DuplicatesWithinBatch(t *testing.T) {
	s, _ := newTestStore()
	added := s.Reconcile([]domain.Alert{lowStock("x"), lowStock("x")})
	assert.Len(t, added, 1)
	assert.Len(t, s.List(), 1)
}

func TestReconcile_KeyUniqueAcrossManyRounds(t *testing.T) {
	s, _ := newTestStore()
	for round := 0; round < 20; round++ {
		var batch []domain.Alert
		for i := 0; i <= round%5; i++ {
			batch = append(batch, lowStock(fmt.Sprintf("m%d", i)))
		}
		s.Reconcile(batch)
	}

	seen := map[domain.AlertKey]bool{}
	for _, a := range s.List() {
		k := a.Key()
		assert.False(t, seen[k], "duplicate key %v", k)
		seen[k] = true
	}
	assert.Len(t, seen, 5)
}

func TestDismiss_AllowsConditionToAlertAgain(t *testing.T) {
	s, _ := newTestStore()
	added := s.Reconcile([]domain.Alert{lowStock("x")})

	require.True(t, s.Dismiss(added[0].ID))
	assert.False(t, s.Dismiss(added[0].ID))
	assert.Empty(t, s.List())

	again := s.Reconcile([]domain.Alert{lowStock("x")})
	require.Len(t, again, 1)
	assert.NotEqual(t, added[0].ID, again[0].ID)
}

func TestMarkReadAndUnread(t *testing.T) {
	s, _ := newTestStore()
	added := s.Reconcile([]domain.Alert{lowStock("x"), lowStock("y")})

	assert.True(t, s.MarkRead(added[0].ID))
	assert.False(t, s.MarkRead(added[0].ID), "already read")
	assert.False(t, s.MarkRead("missing"))

	unread := s.Unread()
	require.Len(t, unread, 1)
	assert.Equal(t, "y", unread[0].Message)
}

func TestClear(t *testing.T) {
	s, _ := newTestStore()
	s.Reconcile([]domain.Alert{lowStock("x")})
	s.Clear()
	assert.Empty(t, s.List())
	assert.Len(t, s.Reconcile([]domain.Alert{lowStock("x")}), 1)
}

func TestSubscribe_NotifiedOnlyOnChange(t *testing.T) {
	s, _ := newTestStore()
	var feeds [][]domain.Alert
	unsubscribe := s.Subscribe(func(feed []domain.Alert) { feeds = append(feeds, feed) })

	s.Reconcile([]domain.Alert{lowStock("x")})
	s.Reconcile([]domain.Alert{lowStock("x")})
	s.MarkRead("a1")
	require.Len(t, feeds, 2)
	assert.True(t, feeds[1][0].Read)

	unsubscribe()
	s.Clear()
	assert.Len(t, feeds, 2)
}

func messages(list []domain.Alert) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Message
	}
	return out
}
