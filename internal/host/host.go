// Package host defines the contract between the bridge core and the game
// server's voice-chat subsystem. The core never talks to the game directly;
// everything goes through an Adapter implementation supplied by the
// per-platform glue.
package host

import (
	"github.com/google/uuid"
)

// GroupID identifies a voice-chat group. Minted by the host.
type GroupID = uuid.UUID

// PlayerID identifies a player. Minted by the host.
type PlayerID = uuid.UUID

// Position is a player's location in the game world.
type Position struct {
	X, Y, Z    float64
	Yaw, Pitch float64
	World      string
}

// MicrophonePacket is one microphone frame from a player, already in the
// static-channel shape: raw Opus plus the sender's sequence number.
type MicrophonePacket struct {
	Opus []byte
	Seq  uint64
}

// Connection is an opaque handle to a player's voice connection. Handles are
// borrowed from the host and may go stale at any time; callers must be
// prepared for any Adapter call taking one to fail.
type Connection interface {
	Player() PlayerID
}

// Sink is a per-user static audio channel in the host. One sink exists per
// (player, remote user) pair so per-user volume controls work game-side.
type Sink interface {
	// Send enqueues one 20 ms Opus frame. It must not block.
	Send(opus []byte) error
	IsClosed() bool
	SetCategory(id string) error
}

// MaxCategoryNameLen is the host's limit on volume category names.
const MaxCategoryNameLen = 16

// Adapter is the capability set the core requires from its host.
type Adapter interface {
	// ConnectionOf returns the live connection for a player, if any.
	ConnectionOf(player PlayerID) (Connection, bool)

	// CreateStaticAudioChannel creates a sink for conn identified by
	// channel. The id must be unique per sink.
	CreateStaticAudioChannel(channel uuid.UUID, conn Connection) (Sink, error)

	RegisterVolumeCategory(id, name, description string, icon []byte) error
	UnregisterVolumeCategory(id string) error

	SendMessage(player PlayerID, parts ...Component)
	SendActionBar(player PlayerID, parts ...Component)

	PlayerName(player PlayerID) string
	PlayerPosition(player PlayerID) (Position, bool)
}

// Events is the callback set the core registers with the host on startup.
// Callbacks must return quickly; the core does all remote I/O elsewhere.
type Events interface {
	OnGroupCreated(group GroupID, name string, creator PlayerID, hasPassword bool)
	OnGroupRemoved(group GroupID)
	OnJoinGroup(group GroupID, player PlayerID, conn Connection)
	OnLeaveGroup(group GroupID, player PlayerID)
	OnPlayerDisconnect(player PlayerID)
	OnMicrophonePacket(conn Connection, packet MicrophonePacket)
}
