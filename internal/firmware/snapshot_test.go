package firmware_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otafleet/otafleet/internal/firmware"
)

func TestSnapshot_Latest(t *testing.T) {
	now := time.Now()
	items := []*firmware.Firmware{
		{ID: "fw_a", Version: "1.0.0", HardwareIDs: []string{"hw_gw"}, CreatedAt: now},
		{ID: "fw_b", Version: "1.10.0", HardwareIDs: []string{"hw_gw"}, CreatedAt: now},
		{ID: "fw_c", Version: "2.0.0", HardwareIDs: []string{"hw_other"}, CreatedAt: now},
		{ID: "fw_d", Version: "1.2.0", HardwareIDs: []string{"hw_gw", "hw_other"}, CreatedAt: now},
	}
	snap := firmware.NewSnapshot(items)

	latest, ok := snap.Latest("hw_gw")
	require.True(t, ok)
	assert.Equal(t, "fw_b", latest.ID)

	latest, ok = snap.Latest("hw_other")
	require.True(t, ok)
	assert.Equal(t, "fw_c", latest.ID)

	_, ok = snap.Latest("hw_unknown")
	assert.False(t, ok)

	_, ok = snap.Latest("")
	assert.False(t, ok, "unconfigured hardware never matches")

	assert.Equal(t, 4, snap.Len())
}

func TestSnapshot_LatestPrefersNewestOnEqualVersion(t *testing.T) {
	now := time.Now()
	snap := firmware.NewSnapshot([]*firmware.Firmware{
		{ID: "fw_old", Version: "1.0.0", HardwareIDs: []string{"hw"}, CreatedAt: now},
		{ID: "fw_new", Version: "1.0.0", HardwareIDs: []string{"hw"}, CreatedAt: now.Add(time.Second)},
	})

	latest, ok := snap.Latest("hw")
	require.True(t, ok)
	assert.Equal(t, "fw_new", latest.ID)
}

func TestSnapshot_Get(t *testing.T) {
	snap := firmware.NewSnapshot([]*firmware.Firmware{{ID: "fw_a", Version: "1.0.0"}})

	f, ok := snap.Get("fw_a")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", f.Version)

	_, ok = snap.Get("fw_missing")
	assert.False(t, ok)
}
