package eventsub

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
	"sync"
	"time"

	logging "github.com/ipfs/go-log"
)

var log = logging.Logger("eventsub")

const maxBackoff = 30 * time.Second

// Dialer opens a fresh Transport on demand, used by the Subscriber to
// reconnect after a stall.
type Dialer func() (Transport, error)

// Subscriber owns the event thread described in the concurrency model:
// it only decodes frames and forwards Events, never touching storage
// or the rule object. It runs entirely on its own goroutine, started
// by Run and stopped by Close.
type Subscriber struct {
	dial      Dialer
	topic     string
	timeout   time.Duration
	events    chan Event
	stalled   chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Subscriber that will dial via dial and subscribe to
// topic, declaring the stream stalled if no frame (data or heartbeat)
// arrives within timeout.
func New(dial Dialer, topic string, timeout time.Duration) *Subscriber {
	return &Subscriber{
		dial:    dial,
		topic:   topic,
		timeout: timeout,
		events:  make(chan Event, 256),
		stalled: make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// Events returns the channel the writer thread reads decoded events
// from.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Stalled signals once per stall detection; the controller reads from
// it to transition to DISCONNECTED.
func (s *Subscriber) Stalled() <-chan struct{} {
	return s.stalled
}

// Run drives the connect/read/reconnect loop until Close is called. It
// is meant to be launched with `go sub.Run()`.
func (s *Subscriber) Run() {
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		transport, err := s.dial()
		if err != nil {
			log.Warnf("eventsub: dial failed, retrying in %s: %v", backoff, err)
			if !s.sleep(backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = 50 * time.Millisecond

		if !s.runConnection(transport) {
			return
		}
	}
}

// runConnection services a single connection until it stalls or
// Close is called. Returns false if the subscriber was closed.
func (s *Subscriber) runConnection(transport Transport) bool {
	defer transport.Close()

	frames, err := transport.Subscribe(s.topic)
	if err != nil {
		log.Warnf("eventsub: subscribe failed: %v", err)
		return true
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		select {
		case <-s.closed:
			return false
		case raw, ok := <-frames:
			if !ok {
				s.signalStall()
				return true
			}
			timer.Reset(s.timeout)
			ev, err := Decode(raw)
			if err != nil {
				log.Warnf("eventsub: dropping malformed event: %v", err)
				continue
			}
			select {
			case s.events <- ev:
			case <-s.closed:
				return false
			}
		case <-timer.C:
			log.Warnf("eventsub: no frame within %s, declaring stream stalled", s.timeout)
			s.signalStall()
			return true
		}
	}
}

func (s *Subscriber) signalStall() {
	select {
	case s.stalled <- struct{}{}:
	default:
	}
}

func (s *Subscriber) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-s.closed:
		return false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// Close stops the event thread. Safe to call more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}
