package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, ok := GetUserID(ctx)
	require.False(t, ok)

	ctx = SetUserID(ctx, "user-1")
	uid, ok := GetUserID(ctx)
	require.True(t, ok)
	require.Equal(t, "user-1", uid)
}

func TestDeviceIDRoundTrip(t *testing.T) {
	ctx := SetDeviceID(context.Background(), "device-a")
	did, ok := GetDeviceID(ctx)
	require.True(t, ok)
	require.Equal(t, "device-a", did)
}
