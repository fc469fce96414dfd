package changefeed_test

import (
	"complaintdesk/backend/internal/changefeed"
	"sync"
)

type MockSubscriber struct {
	id          string
	filter      changefeed.Filter
	RecvChannel chan changefeed.Event

	mu     sync.Mutex
	closed int
}

func newMockSubscriber(id string, filter changefeed.Filter, buffer int) *MockSubscriber {
	return &MockSubscriber{
		id:          id,
		filter:      filter,
		RecvChannel: make(chan changefeed.Event, buffer),
	}
}

func (s *MockSubscriber) ID() string                           { return s.id }
func (s *MockSubscriber) Filter() changefeed.Filter            { return s.filter }
func (s *MockSubscriber) SendChannel() chan<- changefeed.Event { return s.RecvChannel }

func (s *MockSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *MockSubscriber) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
