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

// Transport is the collaborator the subscriber decodes messages from.
// The subscriber makes no assumption about the wire protocol beyond
// "framed byte messages per topic", so any push mechanism can stand
// behind this interface.
type Transport interface {
	// Subscribe opens a channel of raw framed messages for topic. The
	// channel is closed when the underlying connection drops.
	Subscribe(topic string) (<-chan []byte, error)
	// Close releases the transport's resources.
	Close() error
}
