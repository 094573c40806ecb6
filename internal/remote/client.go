// Package remote abstracts the chat platform's voice and text surface. The
// bridge core only ever sees the Client interface; the Discord driver in
// this package is one conforming implementation.
package remote

import (
	"context"
	"fmt"
)

// ChannelID identifies a voice channel on the remote platform.
type ChannelID uint64

// UserID identifies a remote user.
type UserID uint64

// MessageID identifies a text message, for later edits.
type MessageID string

// VoiceFrame is one received 20 ms Opus frame attributed to a speaker.
type VoiceFrame struct {
	User UserID
	Seq  uint64
	Opus []byte
}

// VoiceState reports a user joining or leaving a voice channel. A switch
// between channels arrives as Joined=true with the new channel; leaving all
// voice arrives as Joined=false with Channel 0.
type VoiceState struct {
	User     UserID
	Username string
	Channel  ChannelID
	Joined   bool
}

// Attachment is a file attached to a text message.
type Attachment struct {
	Filename string
	URL      string
}

// TextMessage is a message posted in a channel the client can see.
type TextMessage struct {
	Author      string
	AuthorID    UserID
	Content     string
	Channel     ChannelID
	Attachments []Attachment
}

// Client is the capability set the bridge needs from the remote platform.
// One Client instance maps to one bot credential. All methods except
// SendVoiceFrame may block; the frame streams are lazy and end when the
// client closes.
type Client interface {
	Login(ctx context.Context) error

	CreateVoiceChannel(ctx context.Context, name string) (ChannelID, error)
	DeleteVoiceChannel(ctx context.Context) error
	RenameVoiceChannel(ctx context.Context, name string) error

	JoinVoice(ctx context.Context, channel ChannelID) (joinedName string, err error)
	LeaveVoice(ctx context.Context) error

	// SendVoiceFrame enqueues one 20 ms Opus frame for the uplink. It never
	// blocks; frames are dropped if the transport is not keeping up.
	SendVoiceFrame(opus []byte)
	// VoiceFrames returns the stream of frames received from speakers.
	VoiceFrames() <-chan VoiceFrame

	SendText(ctx context.Context, content string) (MessageID, error)
	AppendText(ctx context.Context, id MessageID, line string) error

	VoiceStates() <-chan VoiceState
	TextMessages() <-chan TextMessage

	// BotUser returns the bot's own user id, valid after Login.
	BotUser() UserID

	Close() error
}

// AuthError is a non-retryable authentication failure. A session receiving
// one during login transitions back to idle and releases its credential.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("remote auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

var _ error = (*AuthError)(nil)

// TransientError is a retryable remote failure. The retry wrapper absorbs
// these up to its attempt budget.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("remote transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

var _ error = (*TransientError)(nil)
