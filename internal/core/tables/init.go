// Package tables registers the built-in import targets with the core registry.
// Import this package to ensure all targets are registered.
package tables

import (
	_ "embed"

	"github.com/JonMunkholm/csvimport/internal/core"
)

//go:embed targets.yaml
var builtin []byte

func init() {
	core.RegisterTargets(builtin)
}

// Definitions returns the raw YAML the built-in targets were loaded from.
func Definitions() []byte {
	out := make([]byte, len(builtin))
	copy(out, builtin)
	return out
}
