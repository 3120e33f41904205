package eventsub_test

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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcgcyx/xayagame/eventsub"
)

// fakeTransport hands a fixed set of frames to whoever subscribes,
// then leaves the channel open until closed.
type fakeTransport struct {
	frames chan []byte
	closed chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeTransport) Subscribe(topic string) (<-chan []byte, error) {
	return f.frames, nil
}

func (f *fakeTransport) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func TestSubscriberDecodesAndForwardsEvents(t *testing.T) {
	ft := newFakeTransport()
	dial := func() (eventsub.Transport, error) { return ft, nil }

	sub := eventsub.New(dial, "game-block-attach g", time.Second)
	go sub.Run()
	defer sub.Close()

	ft.frames <- []byte(`{"type":"attach","block":{"hash":"000000000000000000000000000000000000000000000000000000000000000b","height":11},"moves":[]}`)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, eventsub.KindAttach, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded event")
	}
}

func TestSubscriberDropsMalformedFramesButKeepsRunning(t *testing.T) {
	ft := newFakeTransport()
	dial := func() (eventsub.Transport, error) { return ft, nil }

	sub := eventsub.New(dial, "topic", time.Second)
	go sub.Run()
	defer sub.Close()

	ft.frames <- []byte(`not json`)
	ft.frames <- []byte(`{"type":"detach","block":{"hash":"000000000000000000000000000000000000000000000000000000000000000b"}}`)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, eventsub.KindDetach, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded event after malformed frame")
	}
}

func TestSubscriberSignalsStallOnTimeout(t *testing.T) {
	ft := newFakeTransport()
	dial := func() (eventsub.Transport, error) { return ft, nil }

	sub := eventsub.New(dial, "topic", 20*time.Millisecond)
	go sub.Run()
	defer sub.Close()

	select {
	case <-sub.Stalled():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stall signal")
	}
}

func TestSubscriberCloseStopsRunLoop(t *testing.T) {
	attempts := make(chan struct{}, 4)
	dial := func() (eventsub.Transport, error) {
		attempts <- struct{}{}
		return nil, assert.AnError
	}

	sub := eventsub.New(dial, "topic", time.Second)
	done := make(chan struct{})
	go func() {
		sub.Run()
		close(done)
	}()

	require.Eventually(t, func() bool {
		select {
		case <-attempts:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	sub.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
