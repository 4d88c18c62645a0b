package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// ChanSession is a Session backed by a bounded queue. A single consumer
// drains Messages, so every session sees events in the order they were sent.
type ChanSession struct {
	id     string
	userID uint
	out    chan Message
	done   chan struct{}
	once   sync.Once
}

func NewChanSession(userID uint, buffer int) *ChanSession {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChanSession{
		id:     uuid.New().String(),
		userID: userID,
		out:    make(chan Message, buffer),
		done:   make(chan struct{}),
	}
}

func (s *ChanSession) ID() string { return s.id }

func (s *ChanSession) UserID() uint { return s.userID }

// Send enqueues msg without blocking. It returns false when the queue is
// full or the session is closed.
func (s *ChanSession) Send(msg Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

func (s *ChanSession) Messages() <-chan Message { return s.out }

func (s *ChanSession) Done() <-chan struct{} { return s.done }

// Close marks the session closed. It is safe to call more than once.
func (s *ChanSession) Close() {
	s.once.Do(func() { close(s.done) })
}
