package changefeed

// Subscriber is any consumer registered with the Hub (e.g., a WebSocket connection).
type Subscriber interface {
	// ID returns a key unique among live subscribers.
	ID() string
	// Filter returns the events this subscriber wants.
	Filter() Filter
	// SendChannel returns the channel the Hub delivers events to.
	SendChannel() chan<- Event
	// Close releases the subscriber. The Hub calls it exactly once, after removal.
	Close()
}

// ChannelSubscriber is a Subscriber backed by a plain buffered channel.
type ChannelSubscriber struct {
	id     string
	filter Filter
	ch     chan Event
}

func NewChannelSubscriber(id string, filter Filter, buffer int) *ChannelSubscriber {
	return &ChannelSubscriber{id: id, filter: filter, ch: make(chan Event, buffer)}
}

func (s *ChannelSubscriber) ID() string                { return s.id }
func (s *ChannelSubscriber) Filter() Filter            { return s.filter }
func (s *ChannelSubscriber) SendChannel() chan<- Event { return s.ch }
func (s *ChannelSubscriber) Close()                    { close(s.ch) }

// Events returns the receive side. It is closed when the Hub drops the subscriber.
func (s *ChannelSubscriber) Events() <-chan Event { return s.ch }
