package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySeenAndDevices(t *testing.T) {
	r := NewRegistry(time.Hour, 0)
	defer r.Close()

	r.Seen("device-b")
	r.Seen("device-a")
	r.Seen("device-a")

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"device-a", "device-b"}, r.Devices())
}

func TestRegistryRegisterKeepsInfo(t *testing.T) {
	r := NewRegistry(time.Hour, 0)
	defer r.Close()

	r.Register("device-a", "laptop")
	r.Seen("device-a") // plain activity must not wipe the info

	v, ok := r.devices.Load("device-a")
	require.True(t, ok)
	entry := v.(*DeviceEntry)
	assert.Equal(t, "laptop", entry.Info)
	assert.False(t, entry.LastSeen.Before(entry.FirstSeen))
}

func TestRegistryExpiresIdleDevices(t *testing.T) {
	r := NewRegistry(50*time.Millisecond, 0)
	defer r.Close()

	r.Seen("device-a")
	require.Equal(t, 1, r.Count())

	assert.Eventually(t, func() bool {
		return r.Count() == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRegistryAllowPush(t *testing.T) {
	r := NewRegistry(time.Hour, 2)
	defer r.Close()

	// Devices the registry has never seen are not limited.
	assert.True(t, r.AllowPush("ghost"))

	r.Seen("device-a")
	assert.True(t, r.AllowPush("device-a"))
	assert.True(t, r.AllowPush("device-a"))
	assert.False(t, r.AllowPush("device-a"))

	unlimited := NewRegistry(time.Hour, 0)
	defer unlimited.Close()
	unlimited.Seen("device-a")
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.AllowPush("device-a"))
	}
}
