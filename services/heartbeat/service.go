// Package heartbeat emits a retained uptime event on a fixed interval so
// an operator watching the bus can tell a quiet run from a hung one.
package heartbeat

import (
	"context"
	"time"

	"powermon-go/bus"
	"powermon-go/types"
)

// Topic carries the retained heartbeat; payload is uptime in seconds.
const Topic = "heartbeat/uptime"

type Service struct {
	clock    types.Clock
	pub      bus.Publisher
	interval time.Duration
}

func New(clock types.Clock, pub bus.Publisher, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Second
	}
	return &Service{clock: clock, pub: pub, interval: interval}
}

// Start launches the beat loop; it stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Service) loop(ctx context.Context) {
	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			now := s.clock.NowMs()
			s.pub.Emit(bus.Event{
				Topic:    Topic,
				Payload:  now / 1000,
				TS:       now,
				Retained: true,
			})
		}
	}
}
