package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgate/internal/models"
)

func userTurn(content string) models.Turn {
	return models.Turn{Role: models.RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

func assistantTurn(content string) models.Turn {
	return models.Turn{Role: models.RoleAssistant, Content: content, CreatedAt: time.Now().UTC()}
}

func TestListMaterializesActiveAndMarksExactlyOneCurrent(t *testing.T) {
	s := New()

	infos, activeID := s.List("alice", "")
	require.Len(t, infos, 1)
	assert.NotEmpty(t, activeID)
	assert.True(t, infos[0].IsCurrent)
	assert.Equal(t, models.DefaultSessionTitle, infos[0].Title)

	s.Create("alice")
	s.Create("alice")
	infos, _ = s.List("alice", activeID)
	require.Len(t, infos, 3)

	current := 0
	for _, info := range infos {
		if info.IsCurrent {
			current++
			assert.Equal(t, activeID, info.ID)
		}
	}
	assert.Equal(t, 1, current)
}

func TestListReusesSuppliedActiveID(t *testing.T) {
	s := New()
	infos, activeID := s.List("alice", "cookie-id")
	require.Len(t, infos, 1)
	assert.Equal(t, "cookie-id", activeID)
	assert.Equal(t, "cookie-id", infos[0].ID)
}

func TestListSortsNewestFirst(t *testing.T) {
	s := New()
	s.Create("alice")
	second := s.Create("alice")
	infos, _ := s.List("alice", second.ID)
	require.GreaterOrEqual(t, len(infos), 2)
	for i := 1; i < len(infos); i++ {
		assert.False(t, infos[i].CreatedAt.After(infos[i-1].CreatedAt),
			"sessions must be sorted created_at descending")
	}
}

func TestSwitchUnknownSession(t *testing.T) {
	s := New()
	s.Create("alice")
	_, err := s.Switch("alice", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSwitchNeverCrossesUsers(t *testing.T) {
	s := New()
	se := s.Create("alice")
	_, err := s.Switch("bob", se.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteActiveCreatesReplacement(t *testing.T) {
	s := New()
	se := s.Create("alice")

	newID, replaced, err := s.Delete("alice", se.ID, se.ID)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.NotEmpty(t, newID)
	assert.NotEqual(t, se.ID, newID)

	_, err = s.History("alice", se.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.History("alice", newID)
	assert.NoError(t, err)
}

func TestDeleteNonActiveKeepsActivePointer(t *testing.T) {
	s := New()
	active := s.Create("alice")
	other := s.Create("alice")

	newID, replaced, err := s.Delete("alice", other.ID, active.ID)
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Empty(t, newID)

	infos, activeID := s.List("alice", active.ID)
	assert.Equal(t, active.ID, activeID)
	require.Len(t, infos, 1)
}

func TestDeleteUnknownSession(t *testing.T) {
	s := New()
	_, _, err := s.Delete("alice", "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTitleDerivedOnceAtSecondMessage(t *testing.T) {
	s := New()
	se := s.Create("alice")

	require.NoError(t, s.AppendExchange("alice", se.ID, userTurn("hello there"), assistantTurn("hi")))
	infos, _ := s.List("alice", se.ID)
	assert.Equal(t, "hello there", infos[0].Title)

	// Later exchanges never touch the title again.
	require.NoError(t, s.AppendExchange("alice", se.ID, userTurn("second message"), assistantTurn("ok")))
	infos, _ = s.List("alice", se.ID)
	assert.Equal(t, "hello there", infos[0].Title)

	turns, err := s.History("alice", se.ID)
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

func TestTitleTruncatedAtTwentyRunes(t *testing.T) {
	s := New()
	se := s.Create("alice")

	long := strings.Repeat("a", 25)
	require.NoError(t, s.AppendExchange("alice", se.ID, userTurn(long), assistantTurn("ok")))
	infos, _ := s.List("alice", se.ID)
	assert.Equal(t, strings.Repeat("a", 20)+"...", infos[0].Title)
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := New()
	se := s.Create("alice")
	require.NoError(t, s.AppendExchange("alice", se.ID, userTurn("one"), assistantTurn("two")))

	turns, err := s.History("alice", se.ID)
	require.NoError(t, err)
	turns[0].Content = "mutated"

	again, err := s.History("alice", se.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", again[0].Content)
}

func TestConcurrentCreatesProduceUniqueIDs(t *testing.T) {
	s := New()
	const n = 50

	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- s.Create("alice").ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, n)
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = struct{}{}
	}
}
