package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/mmpa/pkg/events"
)

// eventMsg carries an engine event into the bubbletea loop.
type eventMsg events.Event

// startBridge forwards engine events to the program until the returned
// cancel func is called or ctx ends.
func startBridge(ctx context.Context, p *tea.Program, bus *events.Bus) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	sub := bus.Subscribe(128)

	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub.C:
				if !ok {
					return
				}
				p.Send(eventMsg(e))
			}
		}
	}()

	return cancel
}
