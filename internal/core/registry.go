package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Target)
	registryMu sync.RWMutex
)

// Register adds a target to the registry.
// Panics if the target is invalid or a target with the same key is already
// registered.
func Register(t Target) {
	if err := ValidateTarget(t); err != nil {
		panic(err.Error())
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Key]; exists {
		panic(fmt.Sprintf("target already registered: %s", t.Key))
	}

	registry[t.Key] = t
}

// Replace adds or overwrites a target. Used when loading targets from a file
// that may redefine a built-in one.
func Replace(t Target) error {
	if err := ValidateTarget(t); err != nil {
		return err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	registry[t.Key] = t
	return nil
}

// Get returns a target by key.
// Returns false if not found.
func Get(key string) (Target, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[key]
	return t, ok
}

// All returns all registered targets sorted by key.
func All() []Target {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Target, 0, len(registry))
	for _, t := range registry {
		result = append(result, t)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// TargetCount returns the number of registered targets.
func TargetCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered targets.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Target)
}
