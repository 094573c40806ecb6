// Package bridge implements the per-group session: a state machine that
// logs a bot in, provisions a remote voice channel, joins it, and runs the
// bidirectional audio pipeline until told to stop. One session owns one
// credential, one channel, one uplink task, and one downlink task.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glizzus/voicebridge/internal/host"
	"github.com/glizzus/voicebridge/internal/jitter"
	"github.com/glizzus/voicebridge/internal/mix"
	"github.com/glizzus/voicebridge/internal/relay"
	"github.com/glizzus/voicebridge/internal/remote"
	"github.com/glizzus/voicebridge/internal/util"
)

const (
	// FrameDuration is the audio cadence on both directions.
	FrameDuration = 20 * time.Millisecond

	// mailboxCapacity bounds the per-session control event queue.
	mailboxCapacity = 256

	// uplinkRingCapacity bounds the per-player microphone ring. Frames past
	// this are dropped under backpressure.
	uplinkRingCapacity = 64

	// stopDeleteTimeout bounds how long a stop waits for channel deletion
	// before transitioning anyway and logging the leak.
	stopDeleteTimeout = 8 * time.Second

	leaveVoiceTimeout = 5 * time.Second

	errorLogInterval = 30 * time.Second
)

// Hooks let the registry react to lifecycle edges without the session
// holding a registry back-reference.
type Hooks struct {
	// OnRunning fires on the run loop right after the session enters
	// RUNNING, before any queued event is processed. The registry drains
	// pending joins here.
	OnRunning func()
	// OnStopped fires once the session has fully wound down to IDLE and
	// its credential can go back to the pool.
	OnStopped func()
}

type eventKind int

const (
	evAssign eventKind = iota
	evLoginDone
	evChannelCreated
	evVoiceJoined
	evStop
	evRestart
	evPlayerJoin
	evPlayerLeave
	evVoiceState
	evText
	evRename
	evBroadcast
	evTerminate
)

func (k eventKind) String() string {
	switch k {
	case evAssign:
		return "assign"
	case evLoginDone:
		return "loginDone"
	case evChannelCreated:
		return "channelCreated"
	case evVoiceJoined:
		return "voiceJoined"
	case evStop:
		return "stop"
	case evRestart:
		return "restart"
	case evPlayerJoin:
		return "playerJoin"
	case evPlayerLeave:
		return "playerLeave"
	case evVoiceState:
		return "voiceState"
	case evText:
		return "text"
	case evRename:
		return "rename"
	case evBroadcast:
		return "broadcast"
	case evTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

type event struct {
	kind          eventKind
	err           error
	channel       remote.ChannelID
	player        host.PlayerID
	conn          host.Connection
	vs            remote.VoiceState
	msg           remote.TextMessage
	name          string
	text          string
	deleteChannel bool
	done          chan error
}

type playerInput struct {
	ring chan []byte
}

// Session bridges one group to one remote voice channel.
type Session struct {
	client  remote.Client
	adapter host.Adapter
	hooks   Hooks
	group   host.GroupID
	name    string
	relay   *relay.Relay
	mixer   *mix.Mixer
	limiter *util.ErrorLimiter

	mailbox chan event
	state   atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	// Run-loop-only fields below; no locking needed.
	removedRequested bool
	channelID        remote.ChannelID
	stopWaiters      []chan error
	deferredJoins    []event

	rosterMu sync.Mutex
	players  map[host.PlayerID]*playerInput

	speakerMu sync.Mutex
	speakers  map[remote.UserID]*jitter.Buffer

	taskStop chan struct{}
	taskWG   sync.WaitGroup

	pumpOnce sync.Once

	backpressureDrops atomic.Uint64
}

// NewSession wires a session over an already-constructed remote client. The
// session is IDLE until Assign.
func NewSession(client remote.Client, adapter host.Adapter, group host.GroupID, groupName string, botUsers []uint64, hooks Hooks) (*Session, error) {
	mixer, err := mix.NewMixer()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		client:   client,
		adapter:  adapter,
		hooks:    hooks,
		group:    group,
		name:     groupName,
		mixer:    mixer,
		limiter:  util.NewErrorLimiter(errorLogInterval),
		mailbox:  make(chan event, mailboxCapacity),
		ctx:      ctx,
		cancel:   cancel,
		players:  make(map[host.PlayerID]*playerInput),
		speakers: make(map[remote.UserID]*jitter.Buffer),
	}
	s.relay = relay.New(adapter, client, s, group, botUsers, s.limiter)
	go s.run()
	return s, nil
}

// GroupID returns the group this session bridges.
func (s *Session) GroupID() host.GroupID { return s.group }

// GroupName returns the group's display name.
func (s *Session) GroupName() string { return s.name }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// BackpressureDrops reports uplink frames dropped on full rings.
func (s *Session) BackpressureDrops() uint64 { return s.backpressureDrops.Load() }

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		slog.Debug("session state transition", "group", s.group, "from", prev, "to", next)
	}
}

// Assign starts the session's lifecycle: allocate the credential's client
// into this group and begin logging in. Valid only in IDLE.
func (s *Session) Assign() error {
	if st := s.State(); st != StateIdle {
		err := &WrongStateError{Op: "assign", State: st}
		slog.Warn("rejected session operation", "group", s.group, "error", err)
		return err
	}
	s.post(event{kind: evAssign})
	return nil
}

// Stop winds the session down to IDLE and blocks until it gets there.
// Idempotent; concurrent and repeated calls all return once the session is
// IDLE. deleteChannel controls whether the remote channel is removed.
func (s *Session) Stop(deleteChannel bool) error {
	if st := s.State(); st == StateIdle || st == StateTerminated {
		return nil
	}
	done := make(chan error, 1)
	s.postBlocking(event{kind: evStop, deleteChannel: deleteChannel, done: done})
	return <-done
}

// Restart leaves and rejoins voice without deleting the channel. Returns
// after the rejoin is scheduled.
func (s *Session) Restart() error {
	if st := s.State(); st != StateRunning {
		err := &WrongStateError{Op: "restart", State: st}
		slog.Warn("rejected session operation", "group", s.group, "error", err)
		return err
	}
	done := make(chan error, 1)
	s.postBlocking(event{kind: evRestart, done: done})
	return <-done
}

// Terminate releases the session entirely. The run loop exits; the session
// must not be used afterwards.
func (s *Session) Terminate() {
	if s.State() == StateTerminated {
		return
	}
	s.postBlocking(event{kind: evTerminate})
}

// AddPlayer registers a group member with the running session.
func (s *Session) AddPlayer(player host.PlayerID, conn host.Connection) {
	s.post(event{kind: evPlayerJoin, player: player, conn: conn, name: s.adapter.PlayerName(player)})
}

// RemovePlayer removes a group member.
func (s *Session) RemovePlayer(player host.PlayerID) {
	s.post(event{kind: evPlayerLeave, player: player, name: s.adapter.PlayerName(player)})
}

// Rename schedules a remote channel rename.
func (s *Session) Rename(name string) {
	s.post(event{kind: evRename, name: name})
}

// Broadcast relays a player's message command to both sides.
func (s *Session) Broadcast(playerName, text string) {
	s.post(event{kind: evBroadcast, name: playerName, text: text})
}

// IngestGameFrame enqueues one microphone frame onto the player's uplink
// ring. O(1); drops under backpressure.
func (s *Session) IngestGameFrame(player host.PlayerID, packet host.MicrophonePacket) {
	s.rosterMu.Lock()
	input, ok := s.players[player]
	s.rosterMu.Unlock()
	if !ok {
		return
	}
	select {
	case input.ring <- packet.Opus:
	default:
		s.backpressureDrops.Add(1)
		if s.limiter.Allow("uplink-backpressure") {
			slog.Warn("uplink ring full, dropping frames", "group", s.group, "player", player, "dropped", s.backpressureDrops.Load())
		}
	}
}

// Players implements relay.Roster.
func (s *Session) Players() []host.PlayerID {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	players := make([]host.PlayerID, 0, len(s.players))
	for player := range s.players {
		players = append(players, player)
	}
	return players
}

// Connection implements relay.Roster. Host handles are borrowed, so this
// revalidates through the adapter on every call instead of caching.
func (s *Session) Connection(player host.PlayerID) (host.Connection, bool) {
	return s.adapter.ConnectionOf(player)
}

// PlayerCount reports current membership, for the rename ticker.
func (s *Session) PlayerCount() int {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	return len(s.players)
}

// post enqueues an external event; drops with a log line if the mailbox is
// full rather than blocking a host callback.
func (s *Session) post(ev event) {
	select {
	case s.mailbox <- ev:
	default:
		slog.Error("session mailbox full, dropping event", "group", s.group, "kind", ev.kind)
	}
}

// postBlocking is for events that must not be lost: lifecycle completions
// and stop requests. The run loop always drains, so this cannot deadlock.
func (s *Session) postBlocking(ev event) {
	select {
	case s.mailbox <- ev:
	case <-s.ctx.Done():
		if ev.done != nil {
			ev.done <- nil
		}
	}
}

func (s *Session) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.mailbox:
			if s.handle(ev) {
				return
			}
		}
	}
}

// handle applies one event. Returns true when the session terminates.
func (s *Session) handle(ev event) bool {
	switch ev.kind {
	case evAssign:
		s.handleAssign()
	case evLoginDone:
		s.handleLoginDone(ev)
	case evChannelCreated:
		s.handleChannelCreated(ev)
	case evVoiceJoined:
		s.handleVoiceJoined(ev)
	case evStop:
		s.handleStop(ev)
	case evRestart:
		s.handleRestart(ev)
	case evPlayerJoin:
		s.handlePlayerJoin(ev)
	case evPlayerLeave:
		s.handlePlayerLeave(ev)
	case evVoiceState:
		s.handleVoiceState(ev.vs)
	case evText:
		if s.State() == StateRunning {
			s.relay.HandleText(s.ctx, ev.msg)
		}
	case evRename:
		s.handleRename(ev.name)
	case evBroadcast:
		if s.State() == StateRunning {
			s.relay.BroadcastMessage(s.ctx, ev.name, ev.text)
		}
	case evTerminate:
		if st := s.State(); st != StateIdle {
			s.teardown(false)
		}
		s.setState(StateTerminated)
		s.cancel()
		return true
	}
	return false
}

func (s *Session) handleAssign() {
	if st := s.State(); st != StateIdle {
		slog.Warn("ignoring assign", "group", s.group, "state", st)
		return
	}
	s.setState(StateLoggingIn)
	go func() {
		err := remote.RetryLogin(s.ctx, func() error {
			return s.client.Login(s.ctx)
		})
		s.postBlocking(event{kind: evLoginDone, err: err})
	}()
}

func (s *Session) handleLoginDone(ev event) {
	if st := s.State(); st != StateLoggingIn {
		slog.Warn("ignoring login completion", "group", s.group, "state", st)
		return
	}
	if ev.err != nil {
		slog.Error("remote auth failed, releasing session", "group", s.group, "error", ev.err)
		s.toIdle()
		return
	}
	if s.removedRequested {
		slog.Info("group removed during login, winding down", "group", s.group)
		s.teardown(false)
		return
	}
	s.startPumps()
	s.setState(StateProvisioningChannel)
	go func() {
		var id remote.ChannelID
		err := remote.Retry(s.ctx, func() error {
			var createErr error
			id, createErr = s.client.CreateVoiceChannel(s.ctx, s.name)
			return createErr
		})
		s.postBlocking(event{kind: evChannelCreated, channel: id, err: err})
	}()
}

func (s *Session) handleChannelCreated(ev event) {
	if st := s.State(); st != StateProvisioningChannel {
		slog.Warn("ignoring channel creation", "group", s.group, "state", st)
		return
	}
	if ev.err != nil {
		slog.Error("failed to provision remote channel", "group", s.group, "error", ev.err)
		s.teardown(false)
		return
	}
	s.channelID = ev.channel

	// The group may have been removed while the channel was still being
	// provisioned. Delete what we just created and never enter RUNNING.
	if s.removedRequested {
		slog.Info("group removed during provisioning, deleting channel", "group", s.group, "channel", ev.channel)
		s.teardown(true)
		return
	}

	s.setState(StateStartingVoice)
	go func() {
		var name string
		err := remote.Retry(s.ctx, func() error {
			var joinErr error
			name, joinErr = s.client.JoinVoice(s.ctx, ev.channel)
			return joinErr
		})
		s.postBlocking(event{kind: evVoiceJoined, name: name, err: err})
	}()
}

func (s *Session) handleVoiceJoined(ev event) {
	if st := s.State(); st != StateStartingVoice {
		slog.Warn("ignoring voice join", "group", s.group, "state", st)
		return
	}
	if ev.err != nil {
		slog.Error("failed to join voice", "group", s.group, "error", ev.err)
		s.teardown(true)
		return
	}
	if s.removedRequested {
		slog.Info("group removed during voice start, winding down", "group", s.group)
		s.teardown(true)
		return
	}

	slog.Info("session running", "group", s.group, "channel", s.channelID, "voiceChannel", ev.name)
	s.startTasks()
	s.setState(StateRunning)

	// Joins that arrived during a restart's rejoin were held; admit them now.
	deferred := s.deferredJoins
	s.deferredJoins = nil
	for _, join := range deferred {
		s.handlePlayerJoin(join)
	}

	if s.hooks.OnRunning != nil {
		s.hooks.OnRunning()
	}
}

func (s *Session) handleStop(ev event) {
	switch s.State() {
	case StateIdle, StateTerminated:
		ev.done <- nil
	case StateRunning:
		s.teardown(ev.deleteChannel)
		ev.done <- nil
	default:
		// Mid-provisioning. Mark removal; the pending completion event
		// finishes the wind-down and releases the waiters.
		s.removedRequested = true
		s.stopWaiters = append(s.stopWaiters, ev.done)
	}
}

func (s *Session) handleRestart(ev event) {
	if st := s.State(); st != StateRunning {
		ev.done <- &WrongStateError{Op: "restart", State: st}
		return
	}
	slog.Info("restarting session voice", "group", s.group)
	s.stopTasks()
	s.clearSpeakers()
	if err := s.mixer.Reset(); err != nil {
		slog.Warn("failed to reset mixer", "group", s.group, "error", err)
	}
	leaveCtx, cancel := context.WithTimeout(s.ctx, leaveVoiceTimeout)
	if err := s.client.LeaveVoice(leaveCtx); err != nil {
		slog.Warn("failed to leave voice on restart", "group", s.group, "error", err)
	}
	cancel()

	s.setState(StateStartingVoice)
	channel := s.channelID
	go func() {
		var name string
		err := remote.Retry(s.ctx, func() error {
			var joinErr error
			name, joinErr = s.client.JoinVoice(s.ctx, channel)
			return joinErr
		})
		s.postBlocking(event{kind: evVoiceJoined, name: name, err: err})
	}()
	ev.done <- nil
}

func (s *Session) handlePlayerJoin(ev event) {
	switch st := s.State(); st {
	case StateRunning:
	case StateStartingVoice:
		// Mid-rejoin after a restart. Hold the join until the voice
		// connection is back so the player is not silently dropped.
		for _, deferred := range s.deferredJoins {
			if deferred.player == ev.player {
				return
			}
		}
		s.deferredJoins = append(s.deferredJoins, ev)
		return
	default:
		slog.Warn("ignoring player join", "group", s.group, "state", st)
		return
	}
	s.rosterMu.Lock()
	_, exists := s.players[ev.player]
	if !exists {
		s.players[ev.player] = &playerInput{ring: make(chan []byte, uplinkRingCapacity)}
	}
	s.rosterMu.Unlock()
	if exists {
		return
	}
	s.relay.EnsureSinksFor(ev.player)
	s.relay.AnnouncePlayerJoin(s.ctx, ev.name)
}

func (s *Session) handlePlayerLeave(ev event) {
	switch st := s.State(); st {
	case StateRunning:
	case StateStartingVoice:
		for i, deferred := range s.deferredJoins {
			if deferred.player == ev.player {
				s.deferredJoins = append(s.deferredJoins[:i], s.deferredJoins[i+1:]...)
				return
			}
		}
		return
	default:
		slog.Warn("ignoring player leave", "group", s.group, "state", st)
		return
	}
	s.rosterMu.Lock()
	_, exists := s.players[ev.player]
	delete(s.players, ev.player)
	s.rosterMu.Unlock()
	if !exists {
		return
	}
	s.relay.RemovePlayer(ev.player)
	s.relay.AnnouncePlayerLeave(s.ctx, ev.name)
}

// handleVoiceState reacts to remote users entering or leaving the tracked
// channel. Events for sessions that are not RUNNING are discarded; current
// occupants are rediscovered from speaking packets after the session is up.
func (s *Session) handleVoiceState(vs remote.VoiceState) {
	if s.State() != StateRunning {
		return
	}
	inOurChannel := vs.Joined && vs.Channel == s.channelID
	if inOurChannel {
		if vs.User == s.client.BotUser() {
			return
		}
		s.speakerMu.Lock()
		if _, ok := s.speakers[vs.User]; !ok {
			s.speakers[vs.User] = jitter.New()
		}
		s.speakerMu.Unlock()
		s.relay.UserJoined(vs.User, vs.Username)
		return
	}

	// Left, or switched to a channel that is not ours; either way the user
	// is gone from this session's perspective.
	s.speakerMu.Lock()
	_, known := s.speakers[vs.User]
	delete(s.speakers, vs.User)
	s.speakerMu.Unlock()
	if known {
		s.relay.UserLeft(vs.User)
	}
}

func (s *Session) handleRename(name string) {
	if s.State() != StateRunning {
		return
	}
	go func() {
		err := remote.Retry(s.ctx, func() error {
			return s.client.RenameVoiceChannel(s.ctx, name)
		})
		if err != nil {
			if s.limiter.Allow("rename") {
				slog.Warn("failed to rename remote channel", "group", s.group, "error", err)
			}
		}
	}()
}

// toIdle finishes a wind-down that never produced remote resources.
func (s *Session) toIdle() {
	if err := s.client.Close(); err != nil {
		slog.Debug("failed to close remote client", "group", s.group, "error", err)
	}
	s.setState(StateIdle)
	s.removedRequested = false
	s.notifyStopped()
}

// teardown drives any active state down to IDLE: stop the audio tasks,
// clear relay state, leave voice, optionally delete the channel (bounded),
// and close the client so the credential can be reused fresh.
func (s *Session) teardown(deleteChannel bool) {
	s.setState(StateStopping)
	s.stopTasks()
	s.clearSpeakers()
	s.relay.Clear()

	leaveCtx, cancelLeave := context.WithTimeout(context.Background(), leaveVoiceTimeout)
	if err := s.client.LeaveVoice(leaveCtx); err != nil {
		slog.Debug("failed to leave voice on teardown", "group", s.group, "error", err)
	}
	cancelLeave()

	if deleteChannel && s.channelID != 0 {
		deleteCtx, cancelDelete := context.WithTimeout(context.Background(), stopDeleteTimeout)
		err := remote.Retry(deleteCtx, func() error {
			return s.client.DeleteVoiceChannel(deleteCtx)
		})
		cancelDelete()
		if err != nil {
			slog.Error("failed to delete remote channel, leaking it", "group", s.group, "channel", s.channelID, "error", err)
		}
	}
	s.channelID = 0

	if err := s.mixer.Reset(); err != nil {
		slog.Warn("failed to reset mixer", "group", s.group, "error", err)
	}
	s.rosterMu.Lock()
	s.players = make(map[host.PlayerID]*playerInput)
	s.rosterMu.Unlock()
	s.deferredJoins = nil

	if err := s.client.Close(); err != nil {
		slog.Debug("failed to close remote client", "group", s.group, "error", err)
	}

	s.setState(StateIdle)
	s.removedRequested = false
	s.notifyStopped()
}

func (s *Session) notifyStopped() {
	if s.hooks.OnStopped != nil {
		s.hooks.OnStopped()
	}
	for _, waiter := range s.stopWaiters {
		waiter <- nil
	}
	s.stopWaiters = nil
}

func (s *Session) clearSpeakers() {
	s.speakerMu.Lock()
	s.speakers = make(map[remote.UserID]*jitter.Buffer)
	s.speakerMu.Unlock()
}

// startPumps forwards the client's event streams into the mailbox and its
// voice frames into the per-speaker jitter buffers. Started once, after
// login; stopped at terminate.
func (s *Session) startPumps() {
	s.pumpOnce.Do(func() {
		go s.pumpVoiceStates()
		go s.pumpTexts()
		go s.pumpFrames()
	})
}

func (s *Session) pumpVoiceStates() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case vs, ok := <-s.client.VoiceStates():
			if !ok {
				return
			}
			s.post(event{kind: evVoiceState, vs: vs})
		}
	}
}

func (s *Session) pumpTexts() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.client.TextMessages():
			if !ok {
				return
			}
			s.post(event{kind: evText, msg: msg})
		}
	}
}

// pumpFrames is the single ingest path into the jitter buffers, preserving
// per-speaker ordering. Buffers are created lazily on first packet for
// speakers whose voice-state event has not arrived yet.
func (s *Session) pumpFrames() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-s.client.VoiceFrames():
			if !ok {
				return
			}
			if s.State() != StateRunning {
				continue
			}
			s.speakerMu.Lock()
			buf, ok := s.speakers[frame.User]
			if !ok {
				buf = jitter.New()
				s.speakers[frame.User] = buf
			}
			s.speakerMu.Unlock()
			buf.Push(frame.Seq, frame.Opus)
		}
	}
}

// startTasks launches the uplink and downlink loops for one RUNNING period.
func (s *Session) startTasks() {
	s.taskStop = make(chan struct{})
	s.taskWG.Add(2)
	go s.uplinkLoop(s.taskStop)
	go s.downlinkLoop(s.taskStop)
}

func (s *Session) stopTasks() {
	if s.taskStop == nil {
		return
	}
	close(s.taskStop)
	s.taskWG.Wait()
	s.taskStop = nil
}

// uplinkLoop pulls at most one frame per player per tick, mixes, and sends.
func (s *Session) uplinkLoop(stop <-chan struct{}) {
	defer s.taskWG.Done()
	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	frames := make(map[host.PlayerID][]byte)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		clear(frames)
		s.rosterMu.Lock()
		for player, input := range s.players {
			select {
			case opus := <-input.ring:
				frames[player] = opus
			default:
			}
		}
		s.rosterMu.Unlock()

		mixed, err := s.mixer.Mix(frames, time.Now())
		if err != nil {
			if s.limiter.Allow("uplink-mix") {
				slog.Warn("failed to mix uplink frame", "group", s.group, "error", err)
			}
			continue
		}
		if mixed != nil {
			s.client.SendVoiceFrame(mixed)
		}
	}
}

// downlinkLoop runs the 20 ms playout tick. Pacing sleeps to the next
// multiple of FrameDuration from the loop's start epoch rather than a fixed
// delay, so drift does not accumulate.
func (s *Session) downlinkLoop(stop <-chan struct{}) {
	defer s.taskWG.Done()
	epoch := time.Now()
	tick := 0
	for {
		tick++
		next := epoch.Add(time.Duration(tick) * FrameDuration)
		wait := time.Until(next)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}

		s.speakerMu.Lock()
		speakers := make(map[remote.UserID]*jitter.Buffer, len(s.speakers))
		for user, buf := range s.speakers {
			speakers[user] = buf
		}
		s.speakerMu.Unlock()

		for user, buf := range speakers {
			result, frame := buf.Pop()
			switch result {
			case jitter.Frame:
				s.relay.SendToSinks(user, frame)
			case jitter.Conceal:
				// The game client's own decoder conceals the missing
				// frame; nothing is forwarded for this tick.
			case jitter.Silence:
			}
		}
	}
}
