// Package relay fans presence and text traffic out between the two sides of
// a bridge: remote voice-state changes become colored notices and per-user
// sinks on the game side, remote text is forwarded into group chat, and
// game-side joins and leaves become consolidated messages in the remote
// channel.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/glizzus/voicebridge/internal/host"
	"github.com/glizzus/voicebridge/internal/remote"
	"github.com/glizzus/voicebridge/internal/util"
)

// maxNoticeLines bounds how many join/leave lines share one remote message:
// one send plus eight appends. The next notice starts a new message.
const maxNoticeLines = 9

// noticePrefix tags game-side notices about remote users.
const noticePrefix = "[Discord] "

var emotePattern = regexp.MustCompile(`<a?:([A-Za-z0-9_~]+):[0-9]+>`)

// playerListCommands are recognized case-insensitively in remote text.
var playerListCommands = map[string]struct{}{
	"!pl":         {},
	"!plist":      {},
	"!playerlist": {},
}

// Roster is the relay's view of the group it serves. Implemented by the
// bridge session.
type Roster interface {
	Players() []host.PlayerID
	Connection(player host.PlayerID) (host.Connection, bool)
}

// Relay carries presence and text for one session. Remote I/O goes through
// the session's client with the standard retry policy.
type Relay struct {
	adapter  host.Adapter
	client   remote.Client
	roster   Roster
	group    host.GroupID
	botUsers map[remote.UserID]struct{}
	limiter  *util.ErrorLimiter

	mu    sync.Mutex
	users map[remote.UserID]string
	sinks map[host.PlayerID]map[remote.UserID]host.Sink

	// Join/leave consolidation state. Any user-originated text on either
	// side breaks the chain.
	lastNotice  remote.MessageID
	noticeLines int
}

func New(adapter host.Adapter, client remote.Client, roster Roster, group host.GroupID, botUsers []uint64, limiter *util.ErrorLimiter) *Relay {
	users := make(map[remote.UserID]struct{}, len(botUsers))
	for _, id := range botUsers {
		users[remote.UserID(id)] = struct{}{}
	}
	return &Relay{
		adapter:  adapter,
		client:   client,
		roster:   roster,
		group:    group,
		botUsers: users,
		limiter:  limiter,
		users:    make(map[remote.UserID]string),
		sinks:    make(map[host.PlayerID]map[remote.UserID]host.Sink),
	}
}

// UserJoined handles a remote user arriving in the tracked channel:
// register their volume category, create a sink per player, and notify the
// group.
func (r *Relay) UserJoined(user remote.UserID, username string) {
	r.mu.Lock()
	if _, present := r.users[user]; present {
		r.mu.Unlock()
		return
	}
	r.users[user] = username
	players := r.roster.Players()
	r.mu.Unlock()

	if err := r.adapter.RegisterVolumeCategory(categoryID(user), categoryName(username), "Discord user "+username, nil); err != nil {
		slog.Warn("failed to register volume category", "user", user, "error", err)
	}
	for _, player := range players {
		r.createSink(player, user)
	}
	r.notifyPlayers(players,
		host.Text(host.Blue, noticePrefix),
		host.Text(host.White, username+" joined"),
	)
}

// UserLeft tears down the user's sinks and category and notifies the group.
// A switch to an untracked channel is reported here as a plain leave.
func (r *Relay) UserLeft(user remote.UserID) {
	r.mu.Lock()
	username, present := r.users[user]
	if !present {
		r.mu.Unlock()
		return
	}
	delete(r.users, user)
	for _, perUser := range r.sinks {
		delete(perUser, user)
	}
	players := r.roster.Players()
	r.mu.Unlock()

	if err := r.adapter.UnregisterVolumeCategory(categoryID(user)); err != nil {
		slog.Warn("failed to unregister volume category", "user", user, "error", err)
	}
	r.notifyPlayers(players,
		host.Text(host.Blue, noticePrefix),
		host.Text(host.Red, username+" left"),
	)
}

// Users returns the remote users currently tracked in the channel.
func (r *Relay) Users() map[remote.UserID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make(map[remote.UserID]string, len(r.users))
	for id, name := range r.users {
		users[id] = name
	}
	return users
}

// EnsureSinksFor creates sinks for a player joining the group while remote
// users are already present.
func (r *Relay) EnsureSinksFor(player host.PlayerID) {
	r.mu.Lock()
	users := make([]remote.UserID, 0, len(r.users))
	for user := range r.users {
		users = append(users, user)
	}
	r.mu.Unlock()
	for _, user := range users {
		r.createSink(player, user)
	}
}

// RemovePlayer drops a player's sinks when they leave the group.
func (r *Relay) RemovePlayer(player host.PlayerID) {
	r.mu.Lock()
	delete(r.sinks, player)
	r.mu.Unlock()
}

// Clear tears down every sink and category. Called on session teardown.
func (r *Relay) Clear() {
	r.mu.Lock()
	users := make([]remote.UserID, 0, len(r.users))
	for user := range r.users {
		users = append(users, user)
	}
	r.users = make(map[remote.UserID]string)
	r.sinks = make(map[host.PlayerID]map[remote.UserID]host.Sink)
	r.lastNotice = ""
	r.noticeLines = 0
	r.mu.Unlock()

	for _, user := range users {
		if err := r.adapter.UnregisterVolumeCategory(categoryID(user)); err != nil {
			slog.Debug("failed to unregister volume category on teardown", "user", user, "error", err)
		}
	}
}

// createSink makes one per-(player, remote user) static audio channel.
// Failures are logged and leave the session running; a later send attempt
// retries creation.
func (r *Relay) createSink(player host.PlayerID, user remote.UserID) {
	conn, ok := r.roster.Connection(player)
	if !ok {
		if r.limiter.Allow("sink-connection") {
			slog.Warn("host call failed: no connection for player", "player", player)
		}
		return
	}
	sink, err := r.adapter.CreateStaticAudioChannel(uuid.New(), conn)
	if err != nil {
		if r.limiter.Allow("sink-create") {
			slog.Warn("host call failed: failed to create sink", "player", player, "user", user, "error", err)
		}
		return
	}
	if err := sink.SetCategory(categoryID(user)); err != nil {
		slog.Debug("failed to set sink category", "player", player, "user", user, "error", err)
	}
	r.mu.Lock()
	perUser, ok := r.sinks[player]
	if !ok {
		perUser = make(map[remote.UserID]host.Sink)
		r.sinks[player] = perUser
	}
	perUser[user] = sink
	r.mu.Unlock()
}

// SendToSinks fans one downlink frame out to every player's sink for the
// speaker. Closed sinks are recreated on the fly; failed frames are dropped.
func (r *Relay) SendToSinks(user remote.UserID, opus []byte) {
	r.mu.Lock()
	type target struct {
		player host.PlayerID
		sink   host.Sink
	}
	targets := make([]target, 0, len(r.sinks))
	var missing []host.PlayerID
	for player, perUser := range r.sinks {
		sink, ok := perUser[user]
		if !ok || sink.IsClosed() {
			missing = append(missing, player)
			continue
		}
		targets = append(targets, target{player: player, sink: sink})
	}
	r.mu.Unlock()

	for _, player := range missing {
		r.createSink(player, user)
	}
	for _, t := range targets {
		if err := t.sink.Send(opus); err != nil {
			if r.limiter.Allow("sink-send") {
				slog.Warn("host call failed: sink send", "player", t.player, "user", user, "error", err)
			}
		}
	}
}

// AnnouncePlayerJoin posts a consolidated join notice to the remote channel.
func (r *Relay) AnnouncePlayerJoin(ctx context.Context, playerName string) {
	r.postNotice(ctx, fmt.Sprintf("**%s** joined the group", playerName))
}

// AnnouncePlayerLeave posts a consolidated leave notice.
func (r *Relay) AnnouncePlayerLeave(ctx context.Context, playerName string) {
	r.postNotice(ctx, fmt.Sprintf("**%s** left the group", playerName))
}

// postNotice appends to the running join/leave message while it has fewer
// than maxNoticeLines lines and no user text has intervened; otherwise it
// starts a new message.
func (r *Relay) postNotice(ctx context.Context, line string) {
	r.mu.Lock()
	last := r.lastNotice
	lines := r.noticeLines
	r.mu.Unlock()

	if last != "" && lines < maxNoticeLines {
		err := remote.Retry(ctx, func() error {
			return r.client.AppendText(ctx, last, line)
		})
		if err == nil {
			r.mu.Lock()
			r.noticeLines++
			r.mu.Unlock()
			return
		}
		slog.Warn("failed to append join/leave notice, sending new message", "error", err)
	}

	var id remote.MessageID
	err := remote.Retry(ctx, func() error {
		var sendErr error
		id, sendErr = r.client.SendText(ctx, line)
		return sendErr
	})
	if err != nil {
		if r.limiter.Allow("notice-send") {
			slog.Warn("failed to send join/leave notice", "error", err)
		}
		return
	}
	r.mu.Lock()
	r.lastNotice = id
	r.noticeLines = 1
	r.mu.Unlock()
}

// BreakChain resets join/leave consolidation. Called whenever user text
// flows in either direction.
func (r *Relay) BreakChain() {
	r.mu.Lock()
	r.lastNotice = ""
	r.noticeLines = 0
	r.mu.Unlock()
}

// HandleText processes a message from the tracked remote channel: commands
// get replies, everything else is forwarded to group chat.
func (r *Relay) HandleText(ctx context.Context, msg remote.TextMessage) {
	if _, isBot := r.botUsers[msg.AuthorID]; isBot || msg.AuthorID == r.client.BotUser() {
		return
	}
	r.BreakChain()

	if _, isCommand := playerListCommands[strings.ToLower(strings.TrimSpace(msg.Content))]; isCommand {
		reply := r.formatPlayerList()
		err := remote.Retry(ctx, func() error {
			_, sendErr := r.client.SendText(ctx, reply)
			return sendErr
		})
		if err != nil {
			slog.Warn("failed to reply to player list command", "error", err)
		}
		return
	}

	parts := []host.Component{
		host.Text(host.Blue, noticePrefix),
		host.Text(host.Gray, msg.Author),
		host.Text(host.White, ": "+FormatEmotes(msg.Content)),
	}
	for _, a := range msg.Attachments {
		parts = append(parts,
			host.Text(host.White, " "),
			host.Link(host.Aqua, "["+a.Filename+"]", a.URL),
		)
	}
	r.notifyPlayers(r.roster.Players(), parts...)
}

// BroadcastMessage relays a game player's message command: post to the
// remote channel and echo to every group member.
func (r *Relay) BroadcastMessage(ctx context.Context, playerName, text string) {
	r.BreakChain()
	err := remote.Retry(ctx, func() error {
		_, sendErr := r.client.SendText(ctx, fmt.Sprintf("**%s:** %s", playerName, text))
		return sendErr
	})
	if err != nil {
		slog.Warn("failed to send message to remote channel", "error", err)
	}
	r.notifyPlayers(r.roster.Players(),
		host.Text(host.Green, "[Group] "),
		host.Text(host.Gray, playerName),
		host.Text(host.White, ": "+text),
	)
}

func (r *Relay) formatPlayerList() string {
	players := r.roster.Players()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d player%s online:", len(players), plural(len(players)))
	for _, player := range players {
		sb.WriteString("\n- ")
		sb.WriteString(r.adapter.PlayerName(player))
	}
	return sb.String()
}

func (r *Relay) notifyPlayers(players []host.PlayerID, parts ...host.Component) {
	for _, player := range players {
		r.adapter.SendMessage(player, parts...)
	}
}

// FormatEmotes rewrites remote emote tokens <a?:name:id> as :name:.
func FormatEmotes(content string) string {
	return emotePattern.ReplaceAllString(content, ":$1:")
}

func categoryID(user remote.UserID) string {
	return "discord-" + strconv.FormatUint(uint64(user), 10)
}

// categoryName truncates to the host's category name limit. Truncation is
// per rune so a multi-byte name never yields invalid UTF-8.
func categoryName(username string) string {
	if utf8.RuneCountInString(username) <= host.MaxCategoryNameLen {
		return username
	}
	return string([]rune(username)[:host.MaxCategoryNameLen])
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
