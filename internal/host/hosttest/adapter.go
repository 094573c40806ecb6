// Package hosttest provides an in-memory host.Adapter for tests.
package hosttest

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/glizzus/voicebridge/internal/host"
)

// Sink records the frames sent to one static audio channel.
type Sink struct {
	mu       sync.Mutex
	Category string
	frames   [][]byte
	closed   bool
}

func (s *Sink) Send(opus []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, opus)
	return nil
}

func (s *Sink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sink) SetCategory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Category = id
	return nil
}

// MarkClosed simulates the host tearing the sink down.
func (s *Sink) MarkClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// FrameCount reports how many frames arrived.
func (s *Sink) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

var _ host.Sink = (*Sink)(nil)

type connection struct {
	player host.PlayerID
}

func (c *connection) Player() host.PlayerID { return c.player }

// Adapter is an in-memory host with scriptable players. Chat messages are
// recorded flattened for assertions.
type Adapter struct {
	mu         sync.Mutex
	names      map[host.PlayerID]string
	conns      map[host.PlayerID]host.Connection
	sinks      map[host.PlayerID][]*Sink
	messages   map[host.PlayerID][]string
	categories map[string]string

	// CreateSinkErr, when set, fails every sink creation.
	CreateSinkErr error
}

func NewAdapter() *Adapter {
	return &Adapter{
		names:      make(map[host.PlayerID]string),
		conns:      make(map[host.PlayerID]host.Connection),
		sinks:      make(map[host.PlayerID][]*Sink),
		messages:   make(map[host.PlayerID][]string),
		categories: make(map[string]string),
	}
}

// AddPlayer registers a connected player and returns its id and connection.
func (a *Adapter) AddPlayer(name string) (host.PlayerID, host.Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := uuid.New()
	conn := &connection{player: id}
	a.names[id] = name
	a.conns[id] = conn
	return id, conn
}

// DropConnection simulates the player's voice connection going away.
func (a *Adapter) DropConnection(player host.PlayerID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, player)
}

func (a *Adapter) ConnectionOf(player host.PlayerID) (host.Connection, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	conn, ok := a.conns[player]
	return conn, ok
}

func (a *Adapter) CreateStaticAudioChannel(channel uuid.UUID, conn host.Connection) (host.Sink, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.CreateSinkErr != nil {
		return nil, a.CreateSinkErr
	}
	sink := &Sink{}
	a.sinks[conn.Player()] = append(a.sinks[conn.Player()], sink)
	return sink, nil
}

func (a *Adapter) RegisterVolumeCategory(id, name, description string, icon []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.categories[id] = name
	return nil
}

func (a *Adapter) UnregisterVolumeCategory(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.categories[id]; !ok {
		return fmt.Errorf("no such category %q", id)
	}
	delete(a.categories, id)
	return nil
}

func (a *Adapter) SendMessage(player host.PlayerID, parts ...host.Component) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages[player] = append(a.messages[player], host.Plain(parts...))
}

func (a *Adapter) SendActionBar(player host.PlayerID, parts ...host.Component) {
	a.SendMessage(player, parts...)
}

func (a *Adapter) PlayerName(player host.PlayerID) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name, ok := a.names[player]; ok {
		return name
	}
	return player.String()
}

func (a *Adapter) PlayerPosition(player host.PlayerID) (host.Position, bool) {
	return host.Position{}, false
}

var _ host.Adapter = (*Adapter)(nil)

// Messages returns the flattened chat lines sent to a player.
func (a *Adapter) Messages(player host.PlayerID) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages[player]...)
}

// Sinks returns every sink created for a player, in creation order.
func (a *Adapter) Sinks(player host.PlayerID) []*Sink {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Sink(nil), a.sinks[player]...)
}

// Categories snapshots the registered volume categories by id.
func (a *Adapter) Categories() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	categories := make(map[string]string, len(a.categories))
	for id, name := range a.categories {
		categories[id] = name
	}
	return categories
}
