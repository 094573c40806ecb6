package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	// Stream buffer sizes. Receive overruns are dropped; the jitter buffers
	// downstream absorb the loss.
	voiceFrameBuffer = 128
	eventBuffer      = 64

	readyTimeout = 30 * time.Second
)

// DiscordClient implements Client on top of a discordgo gateway session plus
// its voice transport. One DiscordClient wraps one bot token.
type DiscordClient struct {
	token    string
	guildID  string
	category string

	mu        sync.Mutex
	session   *discordgo.Session
	voice     *discordgo.VoiceConnection
	channelID ChannelID
	botUser   UserID
	readyCh   chan struct{}
	readyOnce sync.Once

	// ssrcUsers maps RTP sources to users; seqHigh extends the 16-bit RTP
	// sequence into the monotonic 64-bit space the jitter buffers expect.
	ssrcUsers map[uint32]UserID
	seqHigh   map[uint32]uint64
	seqLast   map[uint32]uint16

	// lastText caches sent message content so AppendText can edit without a
	// read-back round trip.
	lastText map[MessageID]string

	frames chan VoiceFrame
	states chan VoiceState
	texts  chan TextMessage

	recvStop chan struct{}
	closed   bool
}

var _ Client = (*DiscordClient)(nil)

// NewDiscordClient returns an unconnected client for one bot token. The
// category is the snowflake of the channel category new voice channels are
// created under.
func NewDiscordClient(token, guildID, category string) *DiscordClient {
	return &DiscordClient{
		token:     token,
		guildID:   guildID,
		category:  category,
		readyCh:   make(chan struct{}),
		ssrcUsers: make(map[uint32]UserID),
		seqHigh:   make(map[uint32]uint64),
		seqLast:   make(map[uint32]uint16),
		lastText:  make(map[MessageID]string),
		frames:    make(chan VoiceFrame, voiceFrameBuffer),
		states:    make(chan VoiceState, eventBuffer),
		texts:     make(chan TextMessage, eventBuffer),
	}
}

func (c *DiscordClient) Login(ctx context.Context) error {
	session, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return &AuthError{Err: err}
	}
	session.Identify.Intents = discordgo.IntentGuildVoiceStates |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent

	session.AddHandler(c.onReady)
	session.AddHandler(c.onVoiceStateUpdate)
	session.AddHandler(c.onMessageCreate)

	if err := session.Open(); err != nil {
		return &AuthError{Err: fmt.Errorf("failed to open gateway: %w", err)}
	}

	select {
	case <-c.readyCh:
	case <-time.After(readyTimeout):
		_ = session.Close()
		return &TransientError{Op: "login", Err: fmt.Errorf("gateway ready not received within %s", readyTimeout)}
	case <-ctx.Done():
		_ = session.Close()
		return ctx.Err()
	}

	c.mu.Lock()
	c.session = session
	c.botUser = UserID(parseSnowflake(session.State.User.ID))
	c.mu.Unlock()
	return nil
}

func (c *DiscordClient) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	slog.Info("discord gateway ready", "username", r.User.Username, "userID", r.User.ID)
	c.readyOnce.Do(func() { close(c.readyCh) })
}

func (c *DiscordClient) CreateVoiceChannel(ctx context.Context, name string) (ChannelID, error) {
	s := c.gateway()
	if s == nil {
		return 0, &TransientError{Op: "createVoiceChannel", Err: fmt.Errorf("not logged in")}
	}
	channel, err := s.GuildChannelCreateComplex(c.guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildVoice,
		ParentID: c.category,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, &TransientError{Op: "createVoiceChannel", Err: err}
	}
	id := parseSnowflake(channel.ID)
	c.mu.Lock()
	c.channelID = ChannelID(id)
	c.mu.Unlock()
	return ChannelID(id), nil
}

func (c *DiscordClient) DeleteVoiceChannel(ctx context.Context) error {
	s := c.gateway()
	channel := c.channel()
	if s == nil || channel == 0 {
		return &TransientError{Op: "deleteVoiceChannel", Err: fmt.Errorf("no channel to delete")}
	}
	if _, err := s.ChannelDelete(formatSnowflake(uint64(channel)), discordgo.WithContext(ctx)); err != nil {
		return &TransientError{Op: "deleteVoiceChannel", Err: err}
	}
	c.mu.Lock()
	c.channelID = 0
	c.mu.Unlock()
	return nil
}

func (c *DiscordClient) RenameVoiceChannel(ctx context.Context, name string) error {
	s := c.gateway()
	channel := c.channel()
	if s == nil || channel == 0 {
		return &TransientError{Op: "renameVoiceChannel", Err: fmt.Errorf("no channel to rename")}
	}
	_, err := s.ChannelEdit(formatSnowflake(uint64(channel)), &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	if err != nil {
		return &TransientError{Op: "renameVoiceChannel", Err: err}
	}
	return nil
}

func (c *DiscordClient) JoinVoice(ctx context.Context, channel ChannelID) (string, error) {
	s := c.gateway()
	if s == nil {
		return "", &TransientError{Op: "joinVoice", Err: fmt.Errorf("not logged in")}
	}
	vc, err := s.ChannelVoiceJoin(c.guildID, formatSnowflake(uint64(channel)), false, false)
	if err != nil {
		return "", &TransientError{Op: "joinVoice", Err: err}
	}

	vc.AddHandler(c.onSpeakingUpdate)
	if err := vc.Speaking(true); err != nil {
		slog.Warn("failed to set speaking state", "error", err)
	}

	stop := make(chan struct{})
	c.mu.Lock()
	c.voice = vc
	c.channelID = channel
	c.recvStop = stop
	c.mu.Unlock()
	go c.receiveLoop(vc, stop)

	ch, err := s.Channel(formatSnowflake(uint64(channel)), discordgo.WithContext(ctx))
	if err != nil {
		return "", nil
	}
	return ch.Name, nil
}

func (c *DiscordClient) LeaveVoice(ctx context.Context) error {
	c.mu.Lock()
	vc := c.voice
	stop := c.recvStop
	c.voice = nil
	c.recvStop = nil
	c.mu.Unlock()
	if vc == nil {
		return nil
	}
	if stop != nil {
		close(stop)
	}
	if err := vc.Speaking(false); err != nil {
		slog.Debug("failed to clear speaking state", "error", err)
	}
	if err := vc.Disconnect(); err != nil {
		return &TransientError{Op: "leaveVoice", Err: err}
	}
	return nil
}

func (c *DiscordClient) SendVoiceFrame(opus []byte) {
	c.mu.Lock()
	vc := c.voice
	c.mu.Unlock()
	if vc == nil {
		return
	}
	select {
	case vc.OpusSend <- opus:
	default:
		// Transport not keeping up. Dropping here is cheaper than blocking
		// the uplink tick.
	}
}

func (c *DiscordClient) VoiceFrames() <-chan VoiceFrame { return c.frames }

func (c *DiscordClient) onSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	c.mu.Lock()
	c.ssrcUsers[uint32(vs.SSRC)] = UserID(parseSnowflake(vs.UserID))
	c.mu.Unlock()
}

func (c *DiscordClient) receiveLoop(vc *discordgo.VoiceConnection, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case packet, ok := <-vc.OpusRecv:
			if !ok {
				return
			}
			if packet == nil || len(packet.Opus) == 0 {
				continue
			}
			c.mu.Lock()
			user, known := c.ssrcUsers[packet.SSRC]
			seq := c.extendSeqLocked(packet.SSRC, packet.Sequence)
			c.mu.Unlock()
			if !known {
				// No speaking update for this SSRC yet; the first few
				// frames of an utterance can land here. Drop them.
				continue
			}
			select {
			case c.frames <- VoiceFrame{User: user, Seq: seq, Opus: packet.Opus}:
			default:
			}
		}
	}
}

// extendSeqLocked unwraps the 16-bit RTP sequence into 64 bits per source.
func (c *DiscordClient) extendSeqLocked(ssrc uint32, seq uint16) uint64 {
	last, seen := c.seqLast[ssrc]
	if seen && seq < last && last-seq > 0x8000 {
		c.seqHigh[ssrc]++
	}
	c.seqLast[ssrc] = seq
	return c.seqHigh[ssrc]<<16 | uint64(seq)
}

func (c *DiscordClient) SendText(ctx context.Context, content string) (MessageID, error) {
	s := c.gateway()
	channel := c.channel()
	if s == nil || channel == 0 {
		return "", &TransientError{Op: "sendText", Err: fmt.Errorf("no channel")}
	}
	msg, err := s.ChannelMessageSend(formatSnowflake(uint64(channel)), content, discordgo.WithContext(ctx))
	if err != nil {
		return "", &TransientError{Op: "sendText", Err: err}
	}
	id := MessageID(msg.ID)
	c.mu.Lock()
	c.lastText[id] = content
	c.mu.Unlock()
	return id, nil
}

func (c *DiscordClient) AppendText(ctx context.Context, id MessageID, line string) error {
	s := c.gateway()
	channel := c.channel()
	if s == nil || channel == 0 {
		return &TransientError{Op: "appendText", Err: fmt.Errorf("no channel")}
	}
	c.mu.Lock()
	content, ok := c.lastText[id]
	c.mu.Unlock()
	if !ok {
		return &TransientError{Op: "appendText", Err: fmt.Errorf("unknown message %s", id)}
	}
	content = content + "\n" + line
	_, err := s.ChannelMessageEdit(formatSnowflake(uint64(channel)), string(id), content, discordgo.WithContext(ctx))
	if err != nil {
		return &TransientError{Op: "appendText", Err: err}
	}
	c.mu.Lock()
	c.lastText[id] = content
	c.mu.Unlock()
	return nil
}

func (c *DiscordClient) onVoiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	username := "<unknown>"
	if vs.Member != nil {
		switch {
		case vs.Member.Nick != "":
			username = vs.Member.Nick
		case vs.Member.User != nil && vs.Member.User.GlobalName != "":
			username = vs.Member.User.GlobalName
		case vs.Member.User != nil:
			username = vs.Member.User.Username
		}
	}

	state := VoiceState{
		User:     UserID(parseSnowflake(vs.UserID)),
		Username: username,
	}
	if vs.ChannelID != "" {
		state.Channel = ChannelID(parseSnowflake(vs.ChannelID))
		state.Joined = true
	}
	select {
	case c.states <- state:
	default:
		slog.Warn("voice state stream full, dropping event", "user", state.User)
	}
}

func (c *DiscordClient) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	channel := c.channel()
	if channel == 0 || parseSnowflake(m.ChannelID) != uint64(channel) {
		return
	}
	author := m.Author.Username
	if m.Author.GlobalName != "" {
		author = m.Author.GlobalName
	}
	if m.Member != nil && m.Member.Nick != "" {
		author = m.Member.Nick
	}
	msg := TextMessage{
		Author:   author,
		AuthorID: UserID(parseSnowflake(m.Author.ID)),
		Content:  m.Content,
		Channel:  ChannelID(parseSnowflake(m.ChannelID)),
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, Attachment{Filename: a.Filename, URL: a.URL})
	}
	select {
	case c.texts <- msg:
	default:
		slog.Warn("text stream full, dropping message", "author", msg.Author)
	}
}

func (c *DiscordClient) VoiceStates() <-chan VoiceState { return c.states }

func (c *DiscordClient) TextMessages() <-chan TextMessage { return c.texts }

func (c *DiscordClient) BotUser() UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botUser
}

func (c *DiscordClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	session := c.session
	vc := c.voice
	stop := c.recvStop
	c.session = nil
	c.voice = nil
	c.recvStop = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if vc != nil {
		if err := vc.Disconnect(); err != nil {
			slog.Debug("voice disconnect on close", "error", err)
		}
	}
	if session != nil {
		return session.Close()
	}
	return nil
}

func (c *DiscordClient) gateway() *discordgo.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *DiscordClient) channel() ChannelID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func parseSnowflake(s string) uint64 {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func formatSnowflake(id uint64) string {
	return strconv.FormatUint(id, 10)
}
