package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"party-sync-service/internal/party"
)

// MemoryStore is an in-process session store. It backs single-node runs and
// reproduces the store's weak guarantees in tests: deliveries can be held
// back and released later, writes can fail or vanish silently.
//
// Handlers are called synchronously on the writer's goroutine (or on the
// goroutine calling Flush when deliveries are deferred), never while the
// store's own lock is held.
type MemoryStore struct {
	mu   sync.Mutex
	now  func() time.Time
	docs map[string]*memDoc
	subs map[string]map[*memSubscription]struct{}

	deferred    bool
	pending     []delivery
	failWrites  int
	failErr     error
	dropWrites  bool
	lastWritten map[string]time.Time
	writes      int
}

type memDoc struct {
	fields  map[Kind][]byte
	reports map[string][]byte
}

type delivery struct {
	sub     *memSubscription
	kind    Kind
	payload []byte
}

// NewMemoryStore returns an empty store using time.Now as its clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		docs:        make(map[string]*memDoc),
		subs:        make(map[string]map[*memSubscription]struct{}),
		lastWritten: make(map[string]time.Time),
	}
}

// SetClock replaces the store's clock.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// DeferDelivery holds notifications until Flush when on is true.
func (m *MemoryStore) DeferDelivery(on bool) {
	m.mu.Lock()
	m.deferred = on
	m.mu.Unlock()
}

// FailNextWrites makes the next n writes return err.
func (m *MemoryStore) FailNextWrites(n int, err error) {
	m.mu.Lock()
	m.failWrites = n
	m.failErr = err
	m.mu.Unlock()
}

// DropWrites makes writes report success without storing or notifying.
func (m *MemoryStore) DropWrites(on bool) {
	m.mu.Lock()
	m.dropWrites = on
	m.mu.Unlock()
}

// Writes returns how many writes were accepted.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Flush delivers every held notification in acceptance order.
func (m *MemoryStore) Flush() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, d := range pending {
		d.sub.deliver(d.kind, d.payload)
	}
}

// Inject pushes a raw notification payload to every subscriber of a session
// without touching the document.
func (m *MemoryStore) Inject(sessionID string, kind Kind, payload []byte) {
	m.mu.Lock()
	out := m.fanOutLocked(sessionID, kind, payload)
	m.mu.Unlock()
	for _, d := range out {
		d.sub.deliver(d.kind, d.payload)
	}
}

func (m *MemoryStore) ServerTime(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now(), nil
}

func (m *MemoryStore) WritePlaybackState(ctx context.Context, sessionID string, st party.PlaybackState) (party.PlaybackState, error) {
	m.mu.Lock()
	now := m.now()
	if last := m.lastWritten[sessionID]; now.Before(last) {
		now = last
	}
	m.mu.Unlock()

	st.WrittenAt = now
	data, err := json.Marshal(st)
	if err != nil {
		return st, fmt.Errorf("encode playback: %w", err)
	}
	accepted, err := m.write(ctx, sessionID, KindPlayback, "", data)
	if err != nil {
		return st, err
	}
	if accepted {
		m.mu.Lock()
		m.lastWritten[sessionID] = now
		m.mu.Unlock()
	}
	return st, nil
}

func (m *MemoryStore) WriteQueue(ctx context.Context, sessionID string, q *party.Queue) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	_, err = m.write(ctx, sessionID, KindQueue, "", data)
	return err
}

func (m *MemoryStore) WriteHistory(ctx context.Context, sessionID string, entries []party.HistoryEntry) error {
	if entries == nil {
		entries = []party.HistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = m.write(ctx, sessionID, KindHistory, "", data)
	return err
}

func (m *MemoryStore) WriteParticipantReport(ctx context.Context, sessionID string, r party.ParticipantReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = m.write(ctx, sessionID, KindReport, r.ParticipantID, data)
	return err
}

func (m *MemoryStore) write(ctx context.Context, sessionID string, kind Kind, reportID string, data []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	if m.failWrites > 0 {
		m.failWrites--
		err := m.failErr
		m.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("write %s %s: injected failure", kind, sessionID)
		}
		return false, err
	}
	if m.dropWrites {
		m.mu.Unlock()
		return false, nil
	}

	doc := m.docLocked(sessionID)
	if kind == KindReport {
		doc.reports[reportID] = data
	} else {
		doc.fields[kind] = data
	}
	m.writes++

	var out []delivery
	if m.deferred {
		m.pending = append(m.pending, m.fanOutLocked(sessionID, kind, data)...)
	} else {
		out = m.fanOutLocked(sessionID, kind, data)
	}
	m.mu.Unlock()

	for _, d := range out {
		d.sub.deliver(d.kind, d.payload)
	}
	return true, nil
}

func (m *MemoryStore) docLocked(sessionID string) *memDoc {
	doc, ok := m.docs[sessionID]
	if !ok {
		doc = &memDoc{fields: map[Kind][]byte{}, reports: map[string][]byte{}}
		m.docs[sessionID] = doc
	}
	return doc
}

func (m *MemoryStore) fanOutLocked(sessionID string, kind Kind, payload []byte) []delivery {
	subs := m.subs[sessionID]
	out := make([]delivery, 0, len(subs))
	for sub := range subs {
		out = append(out, delivery{sub: sub, kind: kind, payload: payload})
	}
	return out
}

// ReadDocument returns a decoded copy of the session document.
func (m *MemoryStore) ReadDocument(ctx context.Context, sessionID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	fields, reports := m.rawLocked(sessionID)
	m.mu.Unlock()
	return decodeDocument(sessionID, fields, reports), nil
}

func (m *MemoryStore) rawLocked(sessionID string) (map[string]string, map[string]string) {
	fields := map[string]string{}
	reports := map[string]string{}
	if doc, ok := m.docs[sessionID]; ok {
		for k, v := range doc.fields {
			fields[string(k)] = string(v)
		}
		for k, v := range doc.reports {
			reports[k] = string(v)
		}
	}
	return fields, reports
}

func (m *MemoryStore) Subscribe(ctx context.Context, sessionID string, h Handlers) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", sessionID, err)
	}
	sub := &memSubscription{store: m, sessionID: sessionID, h: h}

	m.mu.Lock()
	if m.subs[sessionID] == nil {
		m.subs[sessionID] = make(map[*memSubscription]struct{})
	}
	m.subs[sessionID][sub] = struct{}{}
	fields, reports := m.rawLocked(sessionID)
	m.mu.Unlock()

	decodeDocument(sessionID, fields, reports).deliver(h)
	return sub, nil
}

func (m *MemoryStore) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Close()
}

// Subscribers returns the number of open subscriptions for a session.
func (m *MemoryStore) Subscribers(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[sessionID])
}

type memSubscription struct {
	store     *MemoryStore
	sessionID string
	h         Handlers

	mu     sync.Mutex
	closed bool
}

func (s *memSubscription) deliver(kind Kind, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err := dispatch(s.h, kind, payload); err != nil {
		log.Warnw("dropping malformed notification", "session", s.sessionID, "err", err)
	}
}

func (s *memSubscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.store.mu.Lock()
	delete(s.store.subs[s.sessionID], s)
	s.store.mu.Unlock()
	return nil
}
