// Package mainloop implements component I: a single blocking call that
// runs the event subscriber(s) and the writer goroutine until a
// shutdown signal arrives, then drains the writer before returning.
package mainloop

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"context"

	logging "github.com/ipfs/go-log"

	"github.com/wcgcyx/xayagame/controller"
	"github.com/wcgcyx/xayagame/eventsub"
	"github.com/wcgcyx/xayagame/xerr"
)

var log = logging.Logger("mainloop")

// Run starts every sub (typically one for the attach topic and one for
// the detach topic), feeds every decoded event to c on the calling
// goroutine (the single writer thread of §5), and blocks until ctx is
// cancelled, every subscriber has stopped, or handling an event
// returns a fatal error; in each of these cases it calls c.Stop() and
// returns.
//
// Run owns every sub's lifecycle: it starts sub.Run() on its own
// goroutine and closes it before returning.
func Run(ctx context.Context, c *controller.Controller, subs ...*eventsub.Subscriber) error {
	if err := c.Bootstrap(); err != nil {
		return err
	}

	subDone := make(chan struct{})
	var running int
	for _, sub := range subs {
		running++
		go func(sub *eventsub.Subscriber) {
			sub.Run()
			subDone <- struct{}{}
		}(sub)
	}
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()

	events, stalled := fanIn(subs)

	for {
		select {
		case <-ctx.Done():
			log.Infof("mainloop: context cancelled, stopping")
			return c.Stop()
		case <-subDone:
			running--
			if running == 0 {
				log.Warnf("mainloop: all subscribers stopped unexpectedly")
				c.Stop()
				return xerr.New(xerr.KindTransport, "event subscribers stopped")
			}
		case <-stalled:
			log.Warnf("mainloop: subscriber stalled, disconnecting")
			if err := c.Disconnect(); err != nil {
				return err
			}
		case ev := <-events:
			if err := c.HandleEvent(ev); err != nil {
				if kind, isXerr := xerr.KindOf(err); isXerr && kind.Fatal() {
					log.Errorf("mainloop: fatal error handling event: %v", err)
					c.Stop()
					return err
				}
				log.Warnf("mainloop: recovered error handling event: %v", err)
			}
		}
	}
}

// fanIn merges every subscriber's Events and Stalled channels into a
// pair of shared channels, since the writer thread reads from exactly
// one of each regardless of how many subscriptions feed it.
func fanIn(subs []*eventsub.Subscriber) (<-chan eventsub.Event, <-chan struct{}) {
	events := make(chan eventsub.Event)
	stalled := make(chan struct{})
	for _, sub := range subs {
		go func(sub *eventsub.Subscriber) {
			for ev := range sub.Events() {
				events <- ev
			}
		}(sub)
		go func(sub *eventsub.Subscriber) {
			for range sub.Stalled() {
				stalled <- struct{}{}
			}
		}(sub)
	}
	return events, stalled
}
