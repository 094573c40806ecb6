// Package registry maps groups to their bridge sessions and keeps the
// group membership bookkeeping a session cannot do for itself: pending
// joins while a session is still provisioning, the player-to-group map,
// and credential checkout against the bot pool.
package registry

import (
	"log/slog"
	"sync"

	"github.com/glizzus/voicebridge/internal/bridge"
	"github.com/glizzus/voicebridge/internal/host"
	"github.com/glizzus/voicebridge/internal/pool"
	"github.com/glizzus/voicebridge/internal/remote"
)

// ClientFactory builds a remote client for one credential. Injected so the
// registry does not depend on any concrete remote driver.
type ClientFactory func(cred pool.Credential) remote.Client

type pendingJoin struct {
	player host.PlayerID
	conn   host.Connection
}

type entry struct {
	session *bridge.Session
	handle  pool.Handle
	creator host.PlayerID
	running bool
	pending []pendingJoin
}

// Registry is the source of truth for group-to-session and player-to-group
// mappings. Its mutex guards the maps only; sessions do their own long
// work on their own tasks, never under this lock.
type Registry struct {
	adapter  host.Adapter
	pool     *pool.BotPool
	factory  ClientFactory
	botUsers []uint64

	// allowedCreators gates which players may provision remote channels.
	// Empty means unrestricted.
	allowedCreators map[host.PlayerID]struct{}

	mu          sync.Mutex
	entries     map[host.GroupID]*entry
	playerGroup map[host.PlayerID]host.GroupID
}

func New(adapter host.Adapter, botPool *pool.BotPool, factory ClientFactory, botUsers []uint64, allowedCreators []host.PlayerID) *Registry {
	allowed := make(map[host.PlayerID]struct{}, len(allowedCreators))
	for _, creator := range allowedCreators {
		allowed[creator] = struct{}{}
	}
	return &Registry{
		adapter:         adapter,
		pool:            botPool,
		factory:         factory,
		botUsers:        botUsers,
		allowedCreators: allowed,
		entries:         make(map[host.GroupID]*entry),
		playerGroup:     make(map[host.PlayerID]host.GroupID),
	}
}

// creatorAllowed reports whether the given player may provision channels.
func (r *Registry) creatorAllowed(creator host.PlayerID) bool {
	if len(r.allowedCreators) == 0 {
		return true
	}
	_, ok := r.allowedCreators[creator]
	return ok
}

// OnGroupCreated decides whether the new group gets bridged and, if so,
// checks a credential out of the pool and starts a session. Never blocks:
// all remote I/O happens on the session's own tasks.
func (r *Registry) OnGroupCreated(group host.GroupID, name string, creator host.PlayerID, hasPassword bool) {
	if hasPassword {
		slog.Debug("ignoring password-protected group", "group", group)
		return
	}
	if !r.creatorAllowed(creator) {
		slog.Debug("ignoring group from non-allowed creator", "group", group, "creator", creator)
		return
	}

	r.mu.Lock()
	if _, exists := r.entries[group]; exists {
		r.mu.Unlock()
		slog.Warn("group already has a session", "group", group)
		return
	}
	cred, handle, err := r.pool.Acquire()
	if err != nil {
		r.mu.Unlock()
		slog.Warn("no free bot credential for group", "group", group, "error", err)
		return
	}

	client := r.factory(cred)
	session, err := bridge.NewSession(client, r.adapter, group, name, r.botUsers, bridge.Hooks{
		OnRunning: func() { r.drainPending(group) },
		OnStopped: func() { r.onSessionStopped(group) },
	})
	if err != nil {
		r.pool.Release(handle)
		r.mu.Unlock()
		slog.Error("failed to construct session", "group", group, "error", err)
		return
	}
	r.entries[group] = &entry{session: session, handle: handle, creator: creator}
	r.mu.Unlock()

	slog.Info("bridging group", "group", group, "name", name)
	if err := session.Assign(); err != nil {
		slog.Error("failed to assign session", "group", group, "error", err)
	}
}

// OnGroupRemoved winds the group's session down and deletes its remote
// channel. A session still mid-provisioning is stopped the same way; the
// stop completes once the in-flight remote call does. The blocking wait
// happens off the caller's goroutine.
func (r *Registry) OnGroupRemoved(group host.GroupID) {
	r.mu.Lock()
	e, ok := r.entries[group]
	r.mu.Unlock()
	if !ok {
		return
	}
	slog.Info("group removed, stopping session", "group", group)
	go func() {
		if err := e.session.Stop(true); err != nil {
			slog.Error("failed to stop session", "group", group, "error", err)
		}
	}()
}

// OnJoinGroup records membership and attaches the player to the group's
// session. A player can be in at most one group; joining a second group
// implies leaving the first. Joins for a session that is not yet RUNNING
// are queued and drained in order once it is.
func (r *Registry) OnJoinGroup(group host.GroupID, player host.PlayerID, conn host.Connection) {
	r.leaveCurrent(player)

	r.mu.Lock()
	e, ok := r.entries[group]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.playerGroup[player] = group
	if !e.running {
		e.pending = append(e.pending, pendingJoin{player: player, conn: conn})
		r.mu.Unlock()
		slog.Debug("queued join for pending session", "group", group, "player", player)
		return
	}
	session := e.session
	r.mu.Unlock()
	session.AddPlayer(player, conn)
}

// OnLeaveGroup removes the player from the group's session, if tracked.
func (r *Registry) OnLeaveGroup(group host.GroupID, player host.PlayerID) {
	r.mu.Lock()
	if current, ok := r.playerGroup[player]; !ok || current != group {
		r.mu.Unlock()
		return
	}
	delete(r.playerGroup, player)
	e, ok := r.entries[group]
	if !ok {
		r.mu.Unlock()
		return
	}
	if !e.running {
		e.pending = removePending(e.pending, player)
		r.mu.Unlock()
		return
	}
	session := e.session
	r.mu.Unlock()
	session.RemovePlayer(player)
}

// OnPlayerDisconnect removes a disconnected player from whichever group
// holds them.
func (r *Registry) OnPlayerDisconnect(player host.PlayerID) {
	r.leaveCurrent(player)
}

// OnMicrophonePacket routes one game-side voice frame to the owning
// session. Hot path: one map lookup under the mutex, then an O(1) ring
// enqueue on the session.
func (r *Registry) OnMicrophonePacket(conn host.Connection, packet host.MicrophonePacket) {
	player := conn.Player()
	r.mu.Lock()
	group, ok := r.playerGroup[player]
	var session *bridge.Session
	if ok {
		if e, tracked := r.entries[group]; tracked && e.running {
			session = e.session
		}
	}
	r.mu.Unlock()
	if session != nil {
		session.IngestGameFrame(player, packet)
	}
}

func (r *Registry) leaveCurrent(player host.PlayerID) {
	r.mu.Lock()
	group, ok := r.playerGroup[player]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.playerGroup, player)
	e, tracked := r.entries[group]
	if !tracked {
		r.mu.Unlock()
		return
	}
	if !e.running {
		e.pending = removePending(e.pending, player)
		r.mu.Unlock()
		return
	}
	session := e.session
	r.mu.Unlock()
	session.RemovePlayer(player)
}

// drainPending runs on the session's loop right after it enters RUNNING,
// replaying joins that arrived during provisioning in insertion order.
func (r *Registry) drainPending(group host.GroupID) {
	r.mu.Lock()
	e, ok := r.entries[group]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.running = true
	pending := e.pending
	e.pending = nil
	session := e.session
	r.mu.Unlock()

	for _, join := range pending {
		session.AddPlayer(join.player, join.conn)
	}
}

// onSessionStopped runs on the session's loop once it has wound down to
// IDLE. The credential goes back to the pool and the group is evicted; a
// re-created group gets a fresh session.
func (r *Registry) onSessionStopped(group host.GroupID) {
	r.mu.Lock()
	e, ok := r.entries[group]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, group)
	for player, g := range r.playerGroup {
		if g == group {
			delete(r.playerGroup, player)
		}
	}
	r.mu.Unlock()

	r.pool.Release(e.handle)
	// Terminate must not run on the session's own loop.
	go e.session.Terminate()
	slog.Info("session released", "group", group)
}

// SessionFor returns the live session for a group.
func (r *Registry) SessionFor(group host.GroupID) (*bridge.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[group]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// CreatorOf returns the player who created the bridged group. Commands
// gated on group ownership check against this.
func (r *Registry) CreatorOf(group host.GroupID) (host.PlayerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[group]
	if !ok {
		return host.PlayerID{}, false
	}
	return e.creator, true
}

// GroupOf returns the group currently holding the player.
func (r *Registry) GroupOf(player host.PlayerID) (host.GroupID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.playerGroup[player]
	return group, ok
}

// Sessions snapshots all live sessions.
func (r *Registry) Sessions() []*bridge.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*bridge.Session, 0, len(r.entries))
	for _, e := range r.entries {
		sessions = append(sessions, e.session)
	}
	return sessions
}

// StopAll synchronously stops every session, deleting remote channels.
// Used for config reload and shutdown.
func (r *Registry) StopAll() {
	sessions := r.Sessions()
	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(s *bridge.Session) {
			defer wg.Done()
			if err := s.Stop(true); err != nil {
				slog.Error("failed to stop session", "group", s.GroupID(), "error", err)
			}
		}(session)
	}
	wg.Wait()
}

func removePending(pending []pendingJoin, player host.PlayerID) []pendingJoin {
	for i, join := range pending {
		if join.player == player {
			return append(pending[:i], pending[i+1:]...)
		}
	}
	return pending
}
