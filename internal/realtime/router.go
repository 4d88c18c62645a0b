// Package realtime fans committed task mutations out to every session that
// joined the project's room. Delivery is best effort: a session that is not
// joined when an event is broadcast never sees it.
package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/huangang/uptask/pkg/logger"
	"github.com/rs/zerolog"
)

const (
	EventTaskAdded     = "task-added"
	EventTaskRemoved   = "task-removed"
	EventTaskEdited    = "task-edited"
	EventTaskCompleted = "task-completed"

	// control frames sent only to the requesting session
	EventJoined = "joined"
	EventLeft   = "left"
	EventError  = "error"
)

// Message is what a session receives.
type Message struct {
	Event   string          `json:"event"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is one connected client. Send must not block; it reports false
// when the message was dropped.
type Session interface {
	ID() string
	Send(Message) bool
}

// Publisher carries broadcasts to every instance, including this one.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// RoomFor returns the room name for a project.
func RoomFor(projectID uint) string {
	return strconv.FormatUint(uint64(projectID), 10)
}

// Router tracks room membership.
type Router struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]Session
	sessions map[string]map[string]struct{}
	attached map[string]struct{}

	publisher Publisher
	log       zerolog.Logger
}

func NewRouter() *Router {
	return &Router{
		rooms:    make(map[string]map[string]Session),
		sessions: make(map[string]map[string]struct{}),
		attached: make(map[string]struct{}),
		log:      logger.Named("realtime"),
	}
}

// SetPublisher routes Broadcast through p. The publisher is expected to
// hand received messages back to Deliver.
func (r *Router) SetPublisher(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publisher = p
}

// Attach registers a connected session before it joins any room.
func (r *Router) Attach(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached[s.ID()] = struct{}{}
}

// Join adds s to room, attaching it if needed. Joining twice is a no-op.
func (r *Router) Join(s Session, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached[s.ID()] = struct{}{}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Session)
		r.rooms[room] = members
	}
	members[s.ID()] = s

	joined, ok := r.sessions[s.ID()]
	if !ok {
		joined = make(map[string]struct{})
		r.sessions[s.ID()] = joined
	}
	joined[room] = struct{}{}
}

// Leave removes s from room.
func (r *Router) Leave(s Session, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(s.ID(), room)
}

// Drop removes s from every room it joined. Called when the connection closes.
func (r *Router) Drop(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.sessions[s.ID()] {
		r.leaveLocked(s.ID(), room)
	}
	delete(r.sessions, s.ID())
	delete(r.attached, s.ID())
}

func (r *Router) leaveLocked(sessionID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if joined, ok := r.sessions[sessionID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.sessions, sessionID)
		}
	}
}

// Broadcast sends event with payload to every session in room. With a
// publisher set, the message goes through it and local delivery happens
// when it comes back; a publish failure falls back to local delivery.
func (r *Router) Broadcast(ctx context.Context, room, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := Message{Event: event, Room: room, Payload: data}

	r.mu.RLock()
	publisher := r.publisher
	r.mu.RUnlock()

	if publisher != nil {
		if err := publisher.Publish(ctx, msg); err != nil {
			r.log.Warn().Err(err).Str("room", room).Str("event", event).Msg("publish failed, delivering locally")
		} else {
			return nil
		}
	}

	r.Deliver(msg)
	return nil
}

// Deliver hands msg to the local sessions in msg.Room and returns how many
// accepted it.
func (r *Router) Deliver(msg Message) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for id, s := range r.rooms[msg.Room] {
		if s.Send(msg) {
			delivered++
			continue
		}
		r.log.Debug().Str("session", id).Str("room", msg.Room).Str("event", msg.Event).Msg("session buffer full, event dropped")
	}
	return delivered
}

// RoomSize returns the number of local sessions joined to room.
func (r *Router) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// SessionCount returns the number of attached local sessions, whether or
// not they joined a room.
func (r *Router) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attached)
}

// RoomCount returns the number of rooms with at least one local session.
func (r *Router) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
