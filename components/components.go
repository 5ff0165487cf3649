// Package components defines ECS components for creature records.
package components

import "github.com/pthm-cable/natsel/traits"

// Traits holds the heritable traits fixed at spawn.
type Traits = traits.Set
