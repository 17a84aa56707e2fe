package health

import "context"

// CachePinger checks that the artifact cache is writable.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// SlotCounter reports transport pool occupancy.
type SlotCounter interface {
	PoolSize() int
	BusySlots() int
}
