package relay_test

import (
	"context"
	"fmt"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/glizzus/voicebridge/internal/host"
	"github.com/glizzus/voicebridge/internal/host/hosttest"
	"github.com/glizzus/voicebridge/internal/relay"
	"github.com/glizzus/voicebridge/internal/remote"
	"github.com/glizzus/voicebridge/internal/remote/remotetest"
	"github.com/glizzus/voicebridge/internal/util"
)

type fixedRoster struct {
	adapter *hosttest.Adapter
	players []host.PlayerID
}

func (r *fixedRoster) Players() []host.PlayerID {
	return append([]host.PlayerID(nil), r.players...)
}

func (r *fixedRoster) Connection(player host.PlayerID) (host.Connection, bool) {
	return r.adapter.ConnectionOf(player)
}

type fixture struct {
	adapter *hosttest.Adapter
	client  *remotetest.Client
	roster  *fixedRoster
	relay   *relay.Relay
}

func newFixture(t *testing.T, playerNames ...string) *fixture {
	t.Helper()
	adapter := hosttest.NewAdapter()
	roster := &fixedRoster{adapter: adapter}
	for _, name := range playerNames {
		id, _ := adapter.AddPlayer(name)
		roster.players = append(roster.players, id)
	}
	client := &remotetest.Client{BotUserID: 99}
	r := relay.New(adapter, client, roster, uuid.New(), []uint64{99}, util.NewErrorLimiter(30*time.Second))
	return &fixture{adapter: adapter, client: client, roster: roster, relay: r}
}

func TestUserJoinedRegistersCategoryAndSinks(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.relay.UserJoined(1000, "Eve")

	categories := f.adapter.Categories()
	if got := categories["discord-1000"]; got != "Eve" {
		t.Errorf("category discord-1000 = %q, want %q", got, "Eve")
	}
	for i, player := range f.roster.players {
		sinks := f.adapter.Sinks(player)
		if len(sinks) != 1 {
			t.Fatalf("player %d has %d sinks, want 1", i, len(sinks))
		}
		if sinks[0].Category != "discord-1000" {
			t.Errorf("sink category = %q, want discord-1000", sinks[0].Category)
		}
		want := []string{"[Discord] Eve joined"}
		if diff := cmp.Diff(want, f.adapter.Messages(player)); diff != "" {
			t.Errorf("player %d messages mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestUserJoinedTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, "alice")
	f.relay.UserJoined(1000, "Eve")
	f.relay.UserJoined(1000, "Eve")

	if sinks := f.adapter.Sinks(f.roster.players[0]); len(sinks) != 1 {
		t.Errorf("got %d sinks, want 1", len(sinks))
	}
	if msgs := f.adapter.Messages(f.roster.players[0]); len(msgs) != 1 {
		t.Errorf("got %d messages, want 1", len(msgs))
	}
}

func TestUserLeftUnregistersAndNotifies(t *testing.T) {
	f := newFixture(t, "alice")
	f.relay.UserJoined(1000, "Eve")
	f.relay.UserLeft(1000)

	if categories := f.adapter.Categories(); len(categories) != 0 {
		t.Errorf("categories still registered: %v", categories)
	}
	want := []string{"[Discord] Eve joined", "[Discord] Eve left"}
	if diff := cmp.Diff(want, f.adapter.Messages(f.roster.players[0])); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestUserLeftUnknownUserIsNoop(t *testing.T) {
	f := newFixture(t, "alice")
	f.relay.UserLeft(4242)
	if msgs := f.adapter.Messages(f.roster.players[0]); len(msgs) != 0 {
		t.Errorf("unexpected messages: %v", msgs)
	}
}

func TestCategoryNameTruncated(t *testing.T) {
	tests := []struct {
		name     string
		user     remote.UserID
		username string
		want     string
	}{
		{
			name:     "long ascii name",
			user:     7,
			username: "a-very-long-discord-username",
			want:     "a-very-long-disc",
		},
		{
			name:     "multi-byte name keeps whole runes",
			user:     8,
			username: "日本語テストの長い名前がここにある",
			want:     "日本語テストの長い名前がここにあ",
		},
		{
			name:     "short name unchanged",
			user:     9,
			username: "bob",
			want:     "bob",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.relay.UserJoined(tt.user, tt.username)

			got := f.adapter.Categories()[fmt.Sprintf("discord-%d", tt.user)]
			if got != tt.want {
				t.Errorf("category name = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("category name %q is not valid UTF-8", got)
			}
			if n := utf8.RuneCountInString(got); n > host.MaxCategoryNameLen {
				t.Errorf("category name has %d runes, want at most %d", n, host.MaxCategoryNameLen)
			}
		})
	}
}

func TestNoticeConsolidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Nine notices share one message: one send plus eight appends.
	for i := 0; i < 9; i++ {
		if i%2 == 0 {
			f.relay.AnnouncePlayerJoin(ctx, "alice")
		} else {
			f.relay.AnnouncePlayerLeave(ctx, "alice")
		}
	}
	messages := f.client.Messages()
	if len(messages) != 1 {
		t.Fatalf("got %d remote messages, want 1", len(messages))
	}
	if len(messages[0].Lines) != 9 {
		t.Errorf("message has %d lines, want 9", len(messages[0].Lines))
	}

	// The tenth starts a new message.
	f.relay.AnnouncePlayerJoin(ctx, "bob")
	messages = f.client.Messages()
	if len(messages) != 2 {
		t.Fatalf("got %d remote messages after tenth notice, want 2", len(messages))
	}
	want := []string{"**bob** joined the group"}
	if diff := cmp.Diff(want, messages[1].Lines); diff != "" {
		t.Errorf("second message mismatch (-want +got):\n%s", diff)
	}
}

func TestUserTextBreaksConsolidation(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	f.relay.AnnouncePlayerJoin(ctx, "alice")
	f.relay.HandleText(ctx, remote.TextMessage{Author: "Eve", AuthorID: 1000, Content: "hello"})
	f.relay.AnnouncePlayerLeave(ctx, "alice")

	messages := f.client.Messages()
	if len(messages) != 2 {
		t.Fatalf("got %d remote messages, want 2 (chain broken by user text)", len(messages))
	}
	for _, m := range messages {
		if len(m.Lines) != 1 {
			t.Errorf("message %s has %d lines, want 1", m.ID, len(m.Lines))
		}
	}
}

func TestFailedAppendFallsBackToNewMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.relay.AnnouncePlayerJoin(ctx, "alice")
	// AuthError aborts the retry loop immediately, keeping the test fast.
	f.client.AppendErr = &remote.AuthError{Err: context.DeadlineExceeded}
	f.relay.AnnouncePlayerJoin(ctx, "bob")

	messages := f.client.Messages()
	if len(messages) != 2 {
		t.Fatalf("got %d remote messages, want 2", len(messages))
	}
}

func TestBotAuthoredTextIgnored(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	f.relay.AnnouncePlayerJoin(ctx, "alice")
	// Both the pool's other bots and this session's own bot are ignored,
	// and neither breaks the consolidation chain.
	f.relay.HandleText(ctx, remote.TextMessage{Author: "otherbot", AuthorID: 99, Content: "**x** joined"})
	f.relay.AnnouncePlayerJoin(ctx, "bob")

	if msgs := f.adapter.Messages(f.roster.players[0]); len(msgs) != 0 {
		t.Errorf("bot text forwarded to players: %v", msgs)
	}
	if messages := f.client.Messages(); len(messages) != 1 {
		t.Errorf("got %d remote messages, want 1 (chain unbroken)", len(messages))
	}
}

func TestPlayerListCommand(t *testing.T) {
	tests := []struct {
		name    string
		players []string
		command string
		want    string
	}{
		{
			name:    "two players",
			players: []string{"alice", "bob"},
			command: "!pl",
			want:    "2 players online:\n- alice\n- bob",
		},
		{
			name:    "one player, uppercase alias",
			players: []string{"alice"},
			command: "!PLAYERLIST",
			want:    "1 player online:\n- alice",
		},
		{
			name:    "empty group",
			players: nil,
			command: "!plist",
			want:    "0 players online:",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.players...)
			f.relay.HandleText(context.Background(), remote.TextMessage{Author: "Eve", AuthorID: 1000, Content: tt.command})

			messages := f.client.Messages()
			if len(messages) != 1 {
				t.Fatalf("got %d remote messages, want 1", len(messages))
			}
			if diff := cmp.Diff([]string{tt.want}, messages[0].Lines); diff != "" {
				t.Errorf("player list mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandleTextForwardsToPlayers(t *testing.T) {
	f := newFixture(t, "alice")
	msg := remote.TextMessage{
		Author:   "Eve",
		AuthorID: 1000,
		Content:  "hi <a:wave:123456>",
		Attachments: []remote.Attachment{
			{Filename: "cat.png", URL: "https://cdn.example/cat.png"},
		},
	}
	f.relay.HandleText(context.Background(), msg)

	want := []string{"[Discord] Eve: hi :wave: [cat.png]"}
	if diff := cmp.Diff(want, f.adapter.Messages(f.roster.players[0])); diff != "" {
		t.Errorf("forwarded text mismatch (-want +got):\n%s", diff)
	}
}

func TestBroadcastMessage(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.relay.BroadcastMessage(context.Background(), "alice", "hello there")

	messages := f.client.Messages()
	if len(messages) != 1 {
		t.Fatalf("got %d remote messages, want 1", len(messages))
	}
	if diff := cmp.Diff([]string{"**alice:** hello there"}, messages[0].Lines); diff != "" {
		t.Errorf("remote message mismatch (-want +got):\n%s", diff)
	}
	for _, player := range f.roster.players {
		want := []string{"[Group] alice: hello there"}
		if diff := cmp.Diff(want, f.adapter.Messages(player)); diff != "" {
			t.Errorf("group echo mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestSendToSinksRecreatesClosedSink(t *testing.T) {
	f := newFixture(t, "alice")
	player := f.roster.players[0]
	f.relay.UserJoined(1000, "Eve")

	f.relay.SendToSinks(1000, []byte("frame-1"))
	first := f.adapter.Sinks(player)
	if len(first) != 1 || first[0].FrameCount() != 1 {
		t.Fatalf("expected one sink with one frame, got %d sinks", len(first))
	}

	first[0].MarkClosed()
	// Closed sink is replaced; the frame that found it closed is dropped.
	f.relay.SendToSinks(1000, []byte("frame-2"))
	f.relay.SendToSinks(1000, []byte("frame-3"))

	sinks := f.adapter.Sinks(player)
	if len(sinks) != 2 {
		t.Fatalf("got %d sinks, want 2 after recreation", len(sinks))
	}
	if sinks[1].FrameCount() != 1 {
		t.Errorf("replacement sink saw %d frames, want 1", sinks[1].FrameCount())
	}
}

func TestFormatEmotes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "static emote", input: "hi <:wave:123>", want: "hi :wave:"},
		{name: "animated emote", input: "<a:party_blob:99999>!", want: ":party_blob:!"},
		{name: "multiple", input: "<:a:1> and <a:b~c:2>", want: ":a: and :b~c:"},
		{name: "plain text untouched", input: "no emotes here <notone>", want: "no emotes here <notone>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relay.FormatEmotes(tt.input); got != tt.want {
				t.Errorf("FormatEmotes(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
