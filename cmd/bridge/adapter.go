package main

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/glizzus/voicebridge/internal/host"
)

// devAdapter is a stand-in for the game-host glue so the bridge can be
// exercised from a terminal: chat components print to stdout and audio
// sinks count frames instead of playing them.
type devAdapter struct {
	mu      sync.Mutex
	players map[host.PlayerID]string
	conns   map[host.PlayerID]*devConnection
}

func newDevAdapter() *devAdapter {
	return &devAdapter{
		players: make(map[host.PlayerID]string),
		conns:   make(map[host.PlayerID]*devConnection),
	}
}

func (a *devAdapter) addPlayer(name string) (host.PlayerID, host.Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := uuid.New()
	conn := &devConnection{player: id}
	a.players[id] = name
	a.conns[id] = conn
	return id, conn
}

func (a *devAdapter) findPlayer(name string) (host.PlayerID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, n := range a.players {
		if n == name {
			return id, true
		}
	}
	return host.PlayerID{}, false
}

func (a *devAdapter) ConnectionOf(player host.PlayerID) (host.Connection, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	conn, ok := a.conns[player]
	return conn, ok
}

func (a *devAdapter) CreateStaticAudioChannel(channel uuid.UUID, conn host.Connection) (host.Sink, error) {
	fmt.Printf("[host] sink %s created for %s\n", channel, a.PlayerName(conn.Player()))
	return &devSink{}, nil
}

func (a *devAdapter) RegisterVolumeCategory(id, name, description string, icon []byte) error {
	fmt.Printf("[host] volume category %q (%s) registered\n", name, id)
	return nil
}

func (a *devAdapter) UnregisterVolumeCategory(id string) error {
	fmt.Printf("[host] volume category %s unregistered\n", id)
	return nil
}

func (a *devAdapter) SendMessage(player host.PlayerID, parts ...host.Component) {
	fmt.Printf("[chat -> %s] %s\n", a.PlayerName(player), host.Plain(parts...))
}

func (a *devAdapter) SendActionBar(player host.PlayerID, parts ...host.Component) {
	fmt.Printf("[bar -> %s] %s\n", a.PlayerName(player), host.Plain(parts...))
}

func (a *devAdapter) PlayerName(player host.PlayerID) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name, ok := a.players[player]; ok {
		return name
	}
	return player.String()
}

func (a *devAdapter) PlayerPosition(player host.PlayerID) (host.Position, bool) {
	return host.Position{}, false
}

var _ host.Adapter = (*devAdapter)(nil)

type devConnection struct {
	player host.PlayerID
}

func (c *devConnection) Player() host.PlayerID { return c.player }

type devSink struct {
	frames atomic.Uint64
	closed atomic.Bool
}

func (s *devSink) Send(opus []byte) error {
	s.frames.Add(1)
	return nil
}

func (s *devSink) IsClosed() bool { return s.closed.Load() }

func (s *devSink) SetCategory(id string) error { return nil }
