// Package supervisor is the bridge's top-level component: it loads the
// configuration, builds the bot pool and group registry, forwards host
// events, handles operator commands, and runs the periodic channel rename
// ticker.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glizzus/voicebridge/internal/bridge"
	"github.com/glizzus/voicebridge/internal/config"
	"github.com/glizzus/voicebridge/internal/host"
	"github.com/glizzus/voicebridge/internal/pool"
	"github.com/glizzus/voicebridge/internal/registry"
	"github.com/glizzus/voicebridge/internal/remote"
)

// renameInterval is the cadence of the channel rename ticker.
const renameInterval = 310 * time.Second

// Supervisor owns the registry and the bot pool and is the single object
// the host glue talks to. It implements host.Events.
type Supervisor struct {
	adapter host.Adapter

	mu       sync.RWMutex
	cfg      *config.Config
	pool     *pool.BotPool
	registry *registry.Registry

	// lastCounts feeds the rename ticker: group id to the player count it
	// last announced. Accessed only from the ticker goroutine.
	lastCounts map[host.GroupID]int

	startOnce  sync.Once
	started    atomic.Bool
	stopTicker chan struct{}
	tickerDone chan struct{}
}

// New loads the configuration and builds a ready supervisor. The caller
// registers it with the host and calls Start.
func New(ctx context.Context, adapter host.Adapter) (*Supervisor, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyDebugLevel(cfg.DebugLevel)

	s := &Supervisor{
		adapter:    adapter,
		lastCounts: make(map[host.GroupID]int),
		stopTicker: make(chan struct{}),
		tickerDone: make(chan struct{}),
	}
	s.rebuild(cfg)
	return s, nil
}

// rebuild swaps in a fresh pool and registry for the given config. Any
// previous sessions must already be stopped.
func (s *Supervisor) rebuild(cfg *config.Config) {
	credentials := make([]pool.Credential, len(cfg.BotTokens))
	for i, token := range cfg.BotTokens {
		cred := pool.Credential{Token: token, Category: string(cfg.CategoryID)}
		if i < len(cfg.BotUserIDs) {
			cred.UserID = cfg.BotUserIDs[i]
		}
		credentials[i] = cred
	}
	botPool := pool.New(credentials)

	guildID := cfg.GuildID
	category := string(cfg.CategoryID)
	factory := func(cred pool.Credential) remote.Client {
		return remote.NewDiscordClient(cred.Token, guildID, category)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.pool = botPool
	s.registry = registry.New(s.adapter, botPool, factory, cfg.BotUserIDs, cfg.AllowedCreators)
	s.mu.Unlock()

	slog.Info("bridge configured", "bots", len(credentials), "allowedCreators", len(cfg.AllowedCreators))
}

func (s *Supervisor) currentRegistry() *registry.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Start launches the rename ticker. Safe to call more than once.
func (s *Supervisor) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.renameLoop()
	})
}

// Shutdown stops the ticker, if running, and winds every session down.
// Idempotent, and safe without a prior Start.
func (s *Supervisor) Shutdown() {
	if s.started.Swap(false) {
		close(s.stopTicker)
		<-s.tickerDone
	}
	s.currentRegistry().StopAll()
	slog.Info("bridge shut down")
}

// Reload synchronously stops all sessions, re-reads the config, and
// rebuilds the pool and registry. Existing groups are not reattached.
func (s *Supervisor) Reload(ctx context.Context) error {
	slog.Info("reloading config, stopping all sessions")
	s.currentRegistry().StopAll()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	applyDebugLevel(cfg.DebugLevel)
	s.rebuild(cfg)
	return nil
}

// host.Events delegation. Callbacks stay quick; the registry and sessions
// do the real work on their own goroutines.

func (s *Supervisor) OnGroupCreated(group host.GroupID, name string, creator host.PlayerID, hasPassword bool) {
	s.currentRegistry().OnGroupCreated(group, name, creator, hasPassword)
}

func (s *Supervisor) OnGroupRemoved(group host.GroupID) {
	s.currentRegistry().OnGroupRemoved(group)
}

func (s *Supervisor) OnJoinGroup(group host.GroupID, player host.PlayerID, conn host.Connection) {
	s.currentRegistry().OnJoinGroup(group, player, conn)
}

func (s *Supervisor) OnLeaveGroup(group host.GroupID, player host.PlayerID) {
	s.currentRegistry().OnLeaveGroup(group, player)
}

func (s *Supervisor) OnPlayerDisconnect(player host.PlayerID) {
	s.currentRegistry().OnPlayerDisconnect(player)
}

func (s *Supervisor) OnMicrophonePacket(conn host.Connection, packet host.MicrophonePacket) {
	s.currentRegistry().OnMicrophonePacket(conn, packet)
}

var _ host.Events = (*Supervisor)(nil)

// Command dispatches a slash-style command from the host. It returns after
// scheduling the work; outcomes are reported to the caller through chat
// components.
func (s *Supervisor) Command(caller host.PlayerID, isOp bool, command, args string) {
	switch strings.ToLower(command) {
	case "reloadconfig":
		s.cmdReloadConfig(caller, isOp)
	case "stop":
		s.cmdStop(caller, isOp)
	case "restart":
		s.cmdRestart(caller, isOp)
	case "message":
		s.cmdMessage(caller, args)
	default:
		s.adapter.SendMessage(caller, host.Text(host.Red, "Unknown command: "+command))
	}
}

func (s *Supervisor) cmdReloadConfig(caller host.PlayerID, isOp bool) {
	if !isOp {
		s.adapter.SendMessage(caller, host.Text(host.Red, "You do not have permission to reload the config."))
		return
	}
	go func() {
		if err := s.Reload(context.Background()); err != nil {
			slog.Error("config reload failed", "error", err)
			s.adapter.SendMessage(caller, host.Text(host.Red, "Config reload failed: "+err.Error()))
			return
		}
		s.adapter.SendMessage(caller, host.Text(host.Green, "Config reloaded."))
	}()
}

func (s *Supervisor) cmdStop(caller host.PlayerID, isOp bool) {
	session, ok := s.ownedSession(caller, isOp)
	if !ok {
		return
	}
	s.adapter.SendMessage(caller, host.Text(host.Yellow, "Stopping the bridge..."))
	s.notifyMembers(session, "The bridge for this group is being stopped.")
	go func() {
		if err := session.Stop(true); err != nil {
			s.adapter.SendMessage(caller, host.Text(host.Red, "Failed to stop the bridge: "+err.Error()))
			return
		}
		s.adapter.SendMessage(caller, host.Text(host.Green, "Bridge stopped."))
	}()
}

func (s *Supervisor) cmdRestart(caller host.PlayerID, isOp bool) {
	session, ok := s.ownedSession(caller, isOp)
	if !ok {
		return
	}
	s.adapter.SendMessage(caller, host.Text(host.Yellow, "Restarting the bridge..."))
	s.notifyMembers(session, "The bridge for this group is restarting.")
	go func() {
		if err := session.Restart(); err != nil {
			s.adapter.SendMessage(caller, host.Text(host.Red, "Failed to restart the bridge: "+err.Error()))
			return
		}
		s.adapter.SendMessage(caller, host.Text(host.Green, "Bridge restarting."))
	}()
}

// notifyMembers sends a bridge status notice to every player in the session's
// group.
func (s *Supervisor) notifyMembers(session *bridge.Session, text string) {
	for _, player := range session.Players() {
		s.adapter.SendMessage(player,
			host.Text(host.Blue, "[Discord] "),
			host.Text(host.White, text),
		)
	}
}

func (s *Supervisor) cmdMessage(caller host.PlayerID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		s.adapter.SendMessage(caller, host.Text(host.Red, "Usage: message <text>"))
		return
	}
	reg := s.currentRegistry()
	group, ok := reg.GroupOf(caller)
	if !ok {
		s.adapter.SendMessage(caller, host.Text(host.Red, "You are not in a bridged group."))
		return
	}
	session, ok := reg.SessionFor(group)
	if !ok {
		s.adapter.SendMessage(caller, host.Text(host.Red, "You are not in a bridged group."))
		return
	}
	session.Broadcast(s.adapter.PlayerName(caller), text)
}

// ownedSession resolves the caller's session and enforces the owner-or-op
// gate shared by stop and restart.
func (s *Supervisor) ownedSession(caller host.PlayerID, isOp bool) (*bridge.Session, bool) {
	reg := s.currentRegistry()
	group, ok := reg.GroupOf(caller)
	if !ok {
		s.adapter.SendMessage(caller, host.Text(host.Red, "You are not in a bridged group."))
		return nil, false
	}
	session, ok := reg.SessionFor(group)
	if !ok {
		s.adapter.SendMessage(caller, host.Text(host.Red, "You are not in a bridged group."))
		return nil, false
	}
	if !isOp {
		creator, known := reg.CreatorOf(group)
		if !known || creator != caller {
			s.adapter.SendMessage(caller, host.Text(host.Red, "Only the group owner or an operator can do that."))
			return nil, false
		}
	}
	return session, true
}

// renameLoop keeps remote channel names in sync with group membership.
// Only RUNNING sessions with at least one player and a changed count since
// the previous tick are renamed.
func (s *Supervisor) renameLoop() {
	defer close(s.tickerDone)
	ticker := time.NewTicker(renameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopTicker:
			return
		case <-ticker.C:
		}

		live := make(map[host.GroupID]bool)
		for _, session := range s.currentRegistry().Sessions() {
			group := session.GroupID()
			live[group] = true
			if session.State() != bridge.StateRunning {
				continue
			}
			count := session.PlayerCount()
			if count < 1 || count == s.lastCounts[group] {
				continue
			}
			s.lastCounts[group] = count
			session.Rename(fmt.Sprintf("%s (%d players)", session.GroupName(), count))
		}
		for group := range s.lastCounts {
			if !live[group] {
				delete(s.lastCounts, group)
			}
		}
	}
}

func applyDebugLevel(level int) {
	if level >= 1 {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		slog.SetLogLoggerLevel(slog.LevelInfo)
	}
}
