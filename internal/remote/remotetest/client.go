// Package remotetest provides an in-memory remote.Client for tests.
package remotetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glizzus/voicebridge/internal/remote"
)

// Message is one text message the fake has accepted, including appended
// lines.
type Message struct {
	ID    remote.MessageID
	Lines []string
}

// Client is a scriptable remote.Client. Zero value is usable; error and
// delay fields inject failures before the client is handed to the code
// under test.
type Client struct {
	mu sync.Mutex

	// LoginErrs are consumed one per Login call; nil entries succeed.
	// When exhausted, Login succeeds.
	LoginErrs []error

	CreateErr   error
	CreateDelay time.Duration
	JoinErr     error
	JoinDelay   time.Duration
	SendTextErr error
	AppendErr   error

	BotUserID remote.UserID

	nextChannel remote.ChannelID
	nextMessage int

	logins      int
	created     []string
	deleted     int
	renames     []string
	joined      []remote.ChannelID
	left        int
	closed      int
	sentFrames  [][]byte
	messages    []*Message
	frames      chan remote.VoiceFrame
	states      chan remote.VoiceState
	texts       chan remote.TextMessage
	initialized bool
}

func (c *Client) init() {
	if !c.initialized {
		c.frames = make(chan remote.VoiceFrame, 256)
		c.states = make(chan remote.VoiceState, 64)
		c.texts = make(chan remote.TextMessage, 64)
		c.initialized = true
	}
}

func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	c.init()
	c.logins++
	var err error
	if len(c.LoginErrs) > 0 {
		err = c.LoginErrs[0]
		c.LoginErrs = c.LoginErrs[1:]
	}
	c.mu.Unlock()
	return err
}

func (c *Client) CreateVoiceChannel(ctx context.Context, name string) (remote.ChannelID, error) {
	c.mu.Lock()
	delay := c.CreateDelay
	c.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CreateErr != nil {
		return 0, c.CreateErr
	}
	c.nextChannel++
	c.created = append(c.created, name)
	return c.nextChannel, nil
}

func (c *Client) DeleteVoiceChannel(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted++
	return nil
}

func (c *Client) RenameVoiceChannel(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renames = append(c.renames, name)
	return nil
}

func (c *Client) JoinVoice(ctx context.Context, channel remote.ChannelID) (string, error) {
	c.mu.Lock()
	delay := c.JoinDelay
	c.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.JoinErr != nil {
		return "", c.JoinErr
	}
	c.joined = append(c.joined, channel)
	return fmt.Sprintf("channel-%d", channel), nil
}

func (c *Client) LeaveVoice(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.left++
	return nil
}

func (c *Client) SendVoiceFrame(opus []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentFrames = append(c.sentFrames, opus)
}

func (c *Client) VoiceFrames() <-chan remote.VoiceFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	return c.frames
}

func (c *Client) SendText(ctx context.Context, content string) (remote.MessageID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendTextErr != nil {
		return "", c.SendTextErr
	}
	c.nextMessage++
	id := remote.MessageID(fmt.Sprintf("m%d", c.nextMessage))
	c.messages = append(c.messages, &Message{ID: id, Lines: []string{content}})
	return id, nil
}

func (c *Client) AppendText(ctx context.Context, id remote.MessageID, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AppendErr != nil {
		return c.AppendErr
	}
	for _, m := range c.messages {
		if m.ID == id {
			m.Lines = append(m.Lines, line)
			return nil
		}
	}
	return fmt.Errorf("no such message %q", id)
}

func (c *Client) VoiceStates() <-chan remote.VoiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	return c.states
}

func (c *Client) TextMessages() <-chan remote.TextMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	return c.texts
}

func (c *Client) BotUser() remote.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BotUserID
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

var _ remote.Client = (*Client)(nil)

// SetJoinDelay changes the JoinVoice delay while the client is in use.
func (c *Client) SetJoinDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.JoinDelay = d
}

// PushFrame injects a received voice frame.
func (c *Client) PushFrame(user remote.UserID, seq uint64, opus []byte) {
	c.mu.Lock()
	c.init()
	frames := c.frames
	c.mu.Unlock()
	frames <- remote.VoiceFrame{User: user, Seq: seq, Opus: opus}
}

// PushVoiceState injects a voice-state event.
func (c *Client) PushVoiceState(vs remote.VoiceState) {
	c.mu.Lock()
	c.init()
	states := c.states
	c.mu.Unlock()
	states <- vs
}

// PushText injects a text message event.
func (c *Client) PushText(msg remote.TextMessage) {
	c.mu.Lock()
	c.init()
	texts := c.texts
	c.mu.Unlock()
	texts <- msg
}

// Accessors below snapshot call records under the lock.

func (c *Client) Logins() int { c.mu.Lock(); defer c.mu.Unlock(); return c.logins }

func (c *Client) Created() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.created...)
}

func (c *Client) Deleted() int { c.mu.Lock(); defer c.mu.Unlock(); return c.deleted }

func (c *Client) Renames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.renames...)
}

func (c *Client) JoinedChannels() []remote.ChannelID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]remote.ChannelID(nil), c.joined...)
}

func (c *Client) Left() int   { c.mu.Lock(); defer c.mu.Unlock(); return c.left }
func (c *Client) Closed() int { c.mu.Lock(); defer c.mu.Unlock(); return c.closed }

func (c *Client) SentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sentFrames...)
}

// Messages returns deep copies of every message sent through the client.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]Message, len(c.messages))
	for i, m := range c.messages {
		messages[i] = Message{ID: m.ID, Lines: append([]string(nil), m.Lines...)}
	}
	return messages
}
