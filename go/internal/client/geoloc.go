package client

import (
	"context"
	"time"

	"github.com/zonewars/liveclient/go/internal/geometry"
)

// LocateTimeout bounds position acquisition; a fix that takes longer is
// treated as unavailable.
const LocateTimeout = 10 * time.Second

// Locator yields the device position as a [lat, lng] pair, or fails with a
// permission/unavailable/timeout error.
type Locator interface {
	Locate(ctx context.Context) (geometry.Point, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (geometry.Point, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context) (geometry.Point, error) {
	return f(ctx)
}
