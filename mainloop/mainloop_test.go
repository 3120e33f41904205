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
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcgcyx/xayagame/controller"
	"github.com/wcgcyx/xayagame/eventsub"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/internal/chatgame"
	"github.com/wcgcyx/xayagame/storage"
)

func testHash(n uint64) hash.BlockHash {
	var raw [hash.Size]byte
	binary.BigEndian.PutUint64(raw[hash.Size-8:], n)
	h, err := hash.FromBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return h
}

// fakeTransport delivers a fixed set of frames once, then blocks until
// closed, so the subscriber never declares a stall during the test.
type fakeTransport struct {
	frames chan []byte
	closed chan struct{}
}

func newFakeTransport(frames ...[]byte) *fakeTransport {
	ch := make(chan []byte, len(frames))
	for _, f := range frames {
		ch <- f
	}
	return &fakeTransport{frames: ch, closed: make(chan struct{})}
}

func (t *fakeTransport) Subscribe(topic string) (<-chan []byte, error) {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			select {
			case f, ok := <-t.frames:
				if !ok {
					return
				}
				out <- f
			case <-t.closed:
				return
			}
		}
	}()
	return out, nil
}

func (t *fakeTransport) Close() error {
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	return nil
}

func TestRunAppliesAttachEventsUntilCancelled(t *testing.T) {
	g := chatgame.New(10, testHash(10), chatgame.State{"domob": "hello world"})
	store := storage.NewMemoryStorage()
	c := controller.New(hash.ChainTest, g, store, nil)

	frame := []byte(`{"type":"attach","block":{"parent":"` + testHash(10).Hex() + `","hash":"` + testHash(11).Hex() + `","height":11},"moves":[{"name":"domob","move":["new"]}]}`)
	transport := newFakeTransport(frame)
	sub := eventsub.New(func() (eventsub.Transport, error) { return transport, nil }, "game-block game1", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- Run(ctx, c, sub) }()

	require.Eventually(t, func() bool {
		tip, err := store.GetCurrentBlockHash()
		return err == nil && tip == testHash(11)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
