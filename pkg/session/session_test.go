package session_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/irfanghat/spark-connect-go/pkg/session"
	"github.com/irfanghat/spark-connect-go/pkg/wire"
)

func TestOperationIDsMonotonicAndUnique(t *testing.T) {
	s := session.New(wire.UserContext{UserID: "u1"})

	const n = 1000
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, s.NextOperationID())
	}

	seen := map[string]bool{}
	for _, id := range ids {
		require.False(t, seen[id], "operation id %s handed out twice", id)
		seen[id] = true
	}
	require.True(t, sort.StringsAreSorted(ids), "operation ids must be monotonically increasing")
}

func TestPlanIDsUniqueUnderConcurrency(t *testing.T) {
	s := session.New(wire.UserContext{})

	const (
		goroutines = 8
		perG       = 500
	)
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []int64
	)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perG)
			for i := 0; i < perG; i++ {
				local = append(local, s.NextPlanID())
			}
			mu.Lock()
			defer mu.Unlock()
			all = append(all, local...)
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, id := range all {
		require.False(t, seen[id], "plan id %d handed out twice", id)
		seen[id] = true
	}
	require.Len(t, seen, goroutines*perG)
}

func TestConfigLastWriteWins(t *testing.T) {
	s := session.New(wire.UserContext{})

	s.SetConfig("spark.sql.shuffle.partitions", "200")
	s.SetConfig("spark.sql.shuffle.partitions", "8")

	v, ok := s.ConfigValue("spark.sql.shuffle.partitions")
	require.True(t, ok)
	require.Equal(t, "8", v)

	_, ok = s.ConfigValue("missing")
	require.False(t, ok)
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := session.New(wire.UserContext{UserID: "u1", UserName: "ada"})
	s.SetConfig("k", "v1")
	require.NoError(t, s.AddTag("etl"))

	snap := s.Snapshot()

	// Later session mutation must not leak into the snapshot.
	s.SetConfig("k", "v2")
	require.NoError(t, s.AddTag("adhoc"))

	require.Equal(t, s.ID(), snap.SessionID)
	require.Equal(t, "v1", snap.Config["k"])
	require.Equal(t, []string{"etl"}, snap.Tags)

	// Nor mutation of the snapshot into the session.
	snap.Config["k"] = "hacked"
	v, _ := s.ConfigValue("k")
	require.Equal(t, "v2", v)
}

func TestTagValidation(t *testing.T) {
	s := session.New(wire.UserContext{})

	require.Error(t, s.AddTag(""))
	require.Error(t, s.AddTag("a,b"))

	require.NoError(t, s.AddTag("etl"))
	require.NoError(t, s.AddTag("etl")) // Duplicate add is a no-op.
	require.Equal(t, []string{"etl"}, s.Snapshot().Tags)

	require.NoError(t, s.RemoveTag("etl"))
	require.NoError(t, s.RemoveTag("etl")) // Removing an absent tag too.
	require.Empty(t, s.Snapshot().Tags)

	require.NoError(t, s.AddTag("a"))
	require.NoError(t, s.AddTag("b"))
	s.ClearTags()
	require.Empty(t, s.Snapshot().Tags)
}

func TestCloseIdempotent(t *testing.T) {
	s := session.New(wire.UserContext{})
	require.False(t, s.Closed())
	s.Close()
	s.Close()
	require.True(t, s.Closed())
}

func TestSessionsAreIndependent(t *testing.T) {
	a := session.New(wire.UserContext{UserID: "a"})
	b := session.New(wire.UserContext{UserID: "b"})

	require.NotEqual(t, a.ID(), b.ID())
	a.SetConfig("k", "v")
	_, ok := b.ConfigValue("k")
	require.False(t, ok)
}
