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
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log"
)

var wsLog = logging.Logger("eventsub/ws")

// WebsocketTransport is a Transport backed by a single gorilla/websocket
// connection. Messages are framed one-per-websocket-frame; the topic
// is sent once as the first text frame after dial, and the server side
// is expected to filter the stream accordingly (the push mechanism the
// original ZMQ-based design assumed is not available here, so a
// topic-subscribe text frame substitutes for a ZMQ SUB filter).
type WebsocketTransport struct {
	endpoint string
	conn     *websocket.Conn
}

// DialWebsocketTransport connects to endpoint (a ws:// or wss:// URL).
func DialWebsocketTransport(endpoint string) (*WebsocketTransport, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("eventsub: invalid websocket endpoint %q: %w", endpoint, err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("eventsub: dial %q: %w", endpoint, err)
	}
	return &WebsocketTransport{endpoint: endpoint, conn: conn}, nil
}

// Subscribe sends the topic as a subscribe frame and returns a channel
// fed by a background goroutine reading subsequent frames. The channel
// is closed when the connection errors or is closed.
func (t *WebsocketTransport) Subscribe(topic string) (<-chan []byte, error) {
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte("SUBSCRIBE "+topic)); err != nil {
		return nil, fmt.Errorf("eventsub: send subscribe frame: %w", err)
	}
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for {
			_, msg, err := t.conn.ReadMessage()
			if err != nil {
				wsLog.Warnf("websocket read on %s ended: %v", t.endpoint, err)
				return
			}
			out <- msg
		}
	}()
	return out, nil
}

// Close closes the underlying websocket connection.
func (t *WebsocketTransport) Close() error {
	return t.conn.Close()
}
