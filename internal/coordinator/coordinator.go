// Package coordinator keeps one client's player aligned with a party session.
//
// A Coordinator is an actor guarding its state with a single mutex. Timer
// ticks, store notifications and API calls all enter through methods that
// take the lock; store calls are always made with the lock released, since a
// store may deliver notifications synchronously on the calling goroutine.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"party-sync-service/internal/drift"
	"party-sync-service/internal/party"
	"party-sync-service/internal/replication"
)

var log = logging.Logger("coordinator")

var (
	// ErrNoSession is returned when an operation needs a session ID.
	ErrNoSession = errors.New("coordinator: no session")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("coordinator: closed")
)

// Archive receives every play recorded through the coordinator.
type Archive interface {
	Append(ctx context.Context, sessionID string, e party.HistoryEntry) error
}

type participantEntry struct {
	status drift.Status
	seenAt time.Time
}

type Coordinator struct {
	cfg     Config
	player  LocalPlayer
	store   replication.Adapter
	archive Archive

	mu           sync.Mutex
	role         role
	conn         Connection
	sessionID    string
	lastSyncedAt time.Time
	suspended    bool
	closed       bool
	sub          replication.Subscription
	cancelLoop   context.CancelFunc
	participants map[string]participantEntry
	watchers     map[chan Status]struct{}

	queue   *party.Queue
	history *party.History

	loops sync.WaitGroup
}

// New creates a disconnected coordinator.
func New(cfg Config, player LocalPlayer, store replication.Adapter) *Coordinator {
	cfg = cfg.withDefaults()
	c := &Coordinator{
		cfg:          cfg,
		player:       player,
		store:        store,
		participants: make(map[string]participantEntry),
		watchers:     make(map[chan Status]struct{}),
		queue:        party.NewQueue(),
		history:      party.NewHistory(cfg.HistoryLimit),
	}
	c.queue.SetShuffler(cfg.Shuffle)
	c.history.SetClock(cfg.Now)
	return c
}

// SetArchive installs a sink for recorded plays. Passing nil removes it.
func (c *Coordinator) SetArchive(a Archive) {
	c.mu.Lock()
	c.archive = a
	c.mu.Unlock()
}

func (c *Coordinator) now() time.Time { return c.cfg.Now() }

// BecomeHost makes this client the authoritative writer for sessionID and
// starts the heartbeat loop. Calling it on a participant promotes it.
func (c *Coordinator) BecomeHost(sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	return c.switchRole(sessionID, &hostRole{}, Connection{State: Connected})
}

// JoinSession follows sessionID as a participant. The subscription is opened
// by the correction loop; the status stays Connecting until the first read.
func (c *Coordinator) JoinSession(sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	return c.switchRole(sessionID, &participantRole{}, Connection{State: Connecting})
}

func (c *Coordinator) switchRole(sessionID string, r role, conn Connection) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.stopLoopLocked()
	old := c.sub
	c.sub = nil
	if c.sessionID != sessionID {
		c.participants = make(map[string]participantEntry)
	}
	c.role = r
	c.sessionID = sessionID
	c.suspended = false
	c.conn = conn
	c.startLoopLocked(r, true)
	c.notifyLocked()
	c.mu.Unlock()

	log.Infow("role changed", "session", sessionID, "role", r.kind())
	c.closeSubscription(old)
	return nil
}

// Disconnect stops both loops, drops the subscription and resets the
// coordinator. It never blocks on the store and is safe to call repeatedly.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	if c.role == nil && c.conn.State == Disconnected && c.sub == nil {
		c.mu.Unlock()
		return
	}
	c.stopLoopLocked()
	sub := c.sub
	c.sub = nil
	c.role = nil
	c.sessionID = ""
	c.suspended = false
	c.conn = Connection{State: Disconnected}
	c.participants = make(map[string]participantEntry)
	c.notifyLocked()
	c.mu.Unlock()

	log.Infow("disconnected")
	c.closeSubscription(sub)
}

// Close disconnects and waits for the loop goroutines to exit. The
// coordinator cannot be reused afterwards.
func (c *Coordinator) Close() {
	c.Disconnect()
	c.mu.Lock()
	c.closed = true
	for ch := range c.watchers {
		delete(c.watchers, ch)
		close(ch)
	}
	c.mu.Unlock()
	c.loops.Wait()
}

// Suspend pauses the loops while the client is backgrounded. Notifications
// keep being recorded but no correction happens until Resume.
func (c *Coordinator) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role == nil || c.suspended {
		return
	}
	c.stopLoopLocked()
	c.suspended = true
	c.notifyLocked()
	log.Infow("suspended", "session", c.sessionID)
}

// Resume restarts the loops and reconciles at once instead of waiting for
// the next tick.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role == nil {
		return ErrNoSession
	}
	if !c.suspended {
		return nil
	}
	c.suspended = false
	c.role.resume(c)
	c.notifyLocked()
	log.Infow("resumed", "session", c.sessionID)
	return nil
}

// OnReplicatedStateChanged applies a playback snapshot. Hosts ignore it.
func (c *Coordinator) OnReplicatedStateChanged(st party.PlaybackState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role == nil {
		return
	}
	c.role.onPlayback(c, st)
}

// RemoveParticipant forgets a participant that left the roster.
func (c *Coordinator) RemoveParticipant(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.participants[id]; !ok {
		return
	}
	delete(c.participants, id)
	c.notifyLocked()
}

// Status returns a copy of the observable state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Coordinator) statusLocked() Status {
	st := Status{
		Role:         RoleNone,
		Connection:   c.conn,
		SessionID:    c.sessionID,
		Suspended:    c.suspended,
		Participants: make(map[string]drift.Status, len(c.participants)),
	}
	if c.role != nil {
		st.Role = c.role.kind()
	}
	if !c.lastSyncedAt.IsZero() {
		t := c.lastSyncedAt
		st.LastSyncedAt = &t
	}
	for id, p := range c.participants {
		st.Participants[id] = p.status
	}
	return st
}

// Watch returns a channel receiving a Status after every observable change.
// Slow readers miss intermediate values. The returned func stops the feed.
func (c *Coordinator) Watch() (<-chan Status, func()) {
	ch := make(chan Status, 16)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.watchers[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			if _, ok := c.watchers[ch]; ok {
				delete(c.watchers, ch)
				close(ch)
			}
			c.mu.Unlock()
		})
	}
}

func (c *Coordinator) notifyLocked() {
	if len(c.watchers) == 0 {
		return
	}
	st := c.statusLocked()
	for ch := range c.watchers {
		select {
		case ch <- st:
		default:
		}
	}
}

func (c *Coordinator) setConnLocked(conn Connection) {
	if c.conn == conn {
		return
	}
	prev := c.conn
	c.conn = conn
	if conn.State == Error {
		log.Warnw("connection error", "session", c.sessionID, "reason", conn.Reason)
	} else if prev.State == Error {
		log.Infow("connection recovered", "session", c.sessionID, "state", conn.State)
	}
	c.notifyLocked()
}

func (c *Coordinator) fail(reason string) {
	c.setConnLocked(Connection{State: Error, Reason: reason})
}

// startLoopLocked runs r's periodic task until the returned context is
// cancelled by stopLoopLocked.
func (c *Coordinator) startLoopLocked(r role, immediate bool) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelLoop = cancel
	interval := r.interval(c.cfg)

	c.loops.Add(1)
	go func() {
		defer c.loops.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		if immediate {
			r.tick(ctx, c)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.tick(ctx, c)
			}
		}
	}()
}

func (c *Coordinator) stopLoopLocked() {
	if c.cancelLoop != nil {
		c.cancelLoop()
		c.cancelLoop = nil
	}
}

// active reports whether r is still the current role and its loop has not
// been cancelled. Callers hold c.mu.
func (c *Coordinator) active(ctx context.Context, r role) bool {
	return ctx.Err() == nil && c.role == r
}

// ensureSubscribed opens the session subscription for r if none is open.
// It returns false when subscribing failed.
func (c *Coordinator) ensureSubscribed(ctx context.Context, r role) bool {
	c.mu.Lock()
	if !c.active(ctx, r) {
		c.mu.Unlock()
		return false
	}
	if c.sub != nil {
		c.mu.Unlock()
		return true
	}
	sid := c.sessionID
	c.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	sub, err := c.store.Subscribe(sctx, sid, c.handlers(r))
	cancel()

	c.mu.Lock()
	if err != nil {
		if c.active(ctx, r) {
			r.subscribeFailed(c, err)
		}
		c.mu.Unlock()
		log.Warnw("subscribe failed", "session", sid, "err", err)
		return false
	}
	if !c.active(ctx, r) || c.sub != nil {
		c.mu.Unlock()
		c.closeSubscription(sub)
		return false
	}
	c.sub = sub
	r.subscribed(c)
	c.mu.Unlock()
	return true
}

// resubscribe drops the current subscription so the next ensureSubscribed
// opens a new one.
func (c *Coordinator) resubscribe(ctx context.Context, r role) {
	c.mu.Lock()
	if !c.active(ctx, r) {
		c.mu.Unlock()
		return
	}
	old := c.sub
	c.sub = nil
	c.mu.Unlock()

	c.closeSubscription(old)
	c.ensureSubscribed(ctx, r)
}

func (c *Coordinator) closeSubscription(sub replication.Subscription) {
	if sub == nil {
		return
	}
	if err := c.store.Unsubscribe(sub); err != nil {
		log.Debugw("unsubscribe", "err", err)
	}
}

// handlers routes store notifications for r. Deliveries for a role that is
// no longer current are dropped.
func (c *Coordinator) handlers(r role) replication.Handlers {
	return replication.Handlers{
		OnPlayback: func(st party.PlaybackState) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.role == r {
				r.onPlayback(c, st)
			}
		},
		OnQueue: func(q party.Queue) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.role == r {
				c.applyQueueLocked(q)
			}
		},
		OnHistory: func(entries []party.HistoryEntry) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.role == r {
				c.history.Replace(entries)
			}
		},
		OnReport: func(rep party.ParticipantReport) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.role == r {
				c.applyReportLocked(rep)
			}
		},
	}
}

func (c *Coordinator) applyReportLocked(rep party.ParticipantReport) {
	if rep.ParticipantID == "" {
		return
	}
	prev, ok := c.participants[rep.ParticipantID]
	c.participants[rep.ParticipantID] = participantEntry{status: rep.Status, seenAt: c.now()}
	if !ok || prev.status != rep.Status {
		c.notifyLocked()
	}
}

// expireReportsLocked marks participants that stopped reporting as
// disconnected.
func (c *Coordinator) expireReportsLocked() {
	now := c.now()
	changed := false
	for id, p := range c.participants {
		if id == c.cfg.ParticipantID {
			continue
		}
		if p.status != drift.Disconnected && now.Sub(p.seenAt) > c.cfg.ReportStaleAfter {
			p.status = drift.Disconnected
			c.participants[id] = p
			changed = true
		}
	}
	if changed {
		c.notifyLocked()
	}
}

func (c *Coordinator) writeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
}
