// Package adapter reads live battery and solar state from the
// smart-home bridge and shields the decision engine from its failures.
package adapter

import (
	"context"

	"github.com/wattwise/controller/pkg/types"
)

// Adapter is the only place in the core that talks to the smart-home
// bridge.
type Adapter interface {
	Snapshot(ctx context.Context) (types.SystemState, error)
}
