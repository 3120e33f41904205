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

	"go.uber.org/mock/gomock"

	"github.com/wcgcyx/xayagame/eventsub"
)

func TestSubscriberSubscribesExactTopicAndClosesTransportOnClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := NewMockTransport(ctrl)

	frames := make(chan []byte)
	tr.EXPECT().Subscribe("game-block-detach g").Return((<-chan []byte)(frames), nil).Times(1)
	tr.EXPECT().Close().Return(nil).Times(1)

	dial := func() (eventsub.Transport, error) { return tr, nil }
	sub := eventsub.New(dial, "game-block-detach g", time.Second)

	done := make(chan struct{})
	go func() {
		sub.Run()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	sub.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
