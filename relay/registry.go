package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache"
	"golang.org/x/time/rate"
)

// DeviceEntry is what the registry remembers about one device. Soft state:
// nothing about relay correctness depends on it.
type DeviceEntry struct {
	DeviceID  string    `json:"device_id"`
	Info      string    `json:"device_info,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	limiter *rate.Limiter
}

// Registry tracks the device ids seen via push/pull/register, expiring
// idle entries after the configured TTL so churn of ephemeral device ids
// cannot grow memory without bound. The ttlcache drives expiry; a sync.Map
// mirror provides enumeration for metrics, kept consistent through the
// cache's expiration callback.
type Registry struct {
	ttl     time.Duration
	pushPer float64 // per-device push batches per second, 0 disables limiting

	cache   *ttlcache.Cache
	devices sync.Map // device_id -> *DeviceEntry
	mu      sync.Mutex
}

// NewRegistry creates a registry whose entries expire ttl after last
// activity.
func NewRegistry(ttl time.Duration, pushRatePerSec float64) *Registry {
	c := ttlcache.NewCache()
	c.SetTTL(ttl)

	r := &Registry{
		ttl:     ttl,
		pushPer: pushRatePerSec,
		cache:   c,
	}
	c.SetExpirationCallback(func(key string, _ interface{}) {
		r.devices.Delete(key)
	})
	return r
}

// Seen records activity for a device, creating the entry on first contact
// and refreshing its expiry otherwise.
func (r *Registry) Seen(deviceID string) {
	r.touch(deviceID, "")
}

// Register records a device with optional descriptive info. Always
// succeeds; re-registration refreshes the entry.
func (r *Registry) Register(deviceID, info string) {
	r.touch(deviceID, info)
}

func (r *Registry) touch(deviceID, info string) {
	now := time.Now()

	r.mu.Lock()
	if v, ok := r.devices.Load(deviceID); ok {
		entry := v.(*DeviceEntry)
		entry.LastSeen = now
		if info != "" {
			entry.Info = info
		}
	} else {
		entry := &DeviceEntry{
			DeviceID:  deviceID,
			Info:      info,
			FirstSeen: now,
			LastSeen:  now,
		}
		if r.pushPer > 0 {
			burst := int(r.pushPer)
			if burst < 1 {
				burst = 1
			}
			entry.limiter = rate.NewLimiter(rate.Limit(r.pushPer), burst)
		}
		r.devices.Store(deviceID, entry)
	}
	r.mu.Unlock()

	// Refresh the expiry clock.
	r.cache.Set(deviceID, now)
}

// AllowPush reports whether a push from the device passes the per-device
// rate limit. Unknown devices and a disabled limit always pass.
func (r *Registry) AllowPush(deviceID string) bool {
	if r.pushPer <= 0 || deviceID == "" {
		return true
	}
	v, ok := r.devices.Load(deviceID)
	if !ok {
		return true
	}
	entry := v.(*DeviceEntry)
	if entry.limiter == nil {
		return true
	}
	return entry.limiter.Allow()
}

// Devices returns the known device ids, sorted.
func (r *Registry) Devices() []string {
	var ids []string
	r.devices.Range(func(key, _ interface{}) bool {
		ids = append(ids, key.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

// Count returns the number of live entries.
func (r *Registry) Count() int {
	n := 0
	r.devices.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Close releases the expiry cache's background resources.
func (r *Registry) Close() {
	r.cache.Close()
}
