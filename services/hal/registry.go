// services/hal/registry.go
package hal

import "sync"

var (
	regMu    sync.RWMutex
	builders = map[string]Builder{}
)

// RegisterBuilder installs a builder for a given device type string.
// It panics on duplicate registration to catch mistakes at start-up.
func RegisterBuilder(deviceType string, b Builder) {
	regMu.Lock()
	defer regMu.Unlock()
	if deviceType == "" {
		panic("hal: empty device type for builder")
	}
	if _, exists := builders[deviceType]; exists {
		panic("hal: builder already registered for type " + deviceType)
	}
	builders[deviceType] = b
}

func lookupBuilder(deviceType string) (Builder, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := builders[deviceType]
	return b, ok
}
