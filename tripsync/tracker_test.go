package tripsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeletionTrackerExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := NewDeletionTracker(5 * time.Second)
	tr.now = func() time.Time { return now }

	tr.MarkDeleting("abc123")
	require.True(t, tr.IsDeleting("abc123"))
	require.False(t, tr.IsDeleting("other"))

	now = now.Add(4 * time.Second)
	require.True(t, tr.IsDeleting("abc123"), "still inside the ttl")

	now = now.Add(2 * time.Second)
	require.False(t, tr.IsDeleting("abc123"), "expired entries stop matching")
	require.Equal(t, 0, tr.Len(), "expired entries are purged")
}

func TestDeletionTrackerClear(t *testing.T) {
	tr := NewDeletionTracker(5 * time.Second)
	tr.MarkDeleting("abc123")
	tr.Clear("abc123")
	require.False(t, tr.IsDeleting("abc123"))
}

func TestDeletionTrackerRemarkRefreshesTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := NewDeletionTracker(5 * time.Second)
	tr.now = func() time.Time { return now }

	tr.MarkDeleting("abc123")
	now = now.Add(4 * time.Second)
	tr.MarkDeleting("abc123")
	now = now.Add(4 * time.Second)
	require.True(t, tr.IsDeleting("abc123"))
}
