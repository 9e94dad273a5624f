package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"party-sync-service/internal/party"
)

// DefaultSessionTTL bounds how long an abandoned session document lives.
const DefaultSessionTTL = 24 * time.Hour

// RedisStore keeps each session document in a Redis hash and pushes changes
// over a pub/sub channel. A field write and its notification are sent in one
// MULTI/EXEC so subscribers never see a change before it is readable.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration

	mu          sync.Mutex
	lastWritten map[string]time.Time
}

// NewRedisStore wraps an existing client. A zero ttl uses DefaultSessionTTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{
		rdb:         rdb,
		ttl:         ttl,
		lastWritten: make(map[string]time.Time),
	}
}

func docKey(sessionID string) string     { return "party:session:" + sessionID }
func reportsKey(sessionID string) string { return "party:session:" + sessionID + ":reports" }
func channelName(sessionID string) string {
	return "party:session:" + sessionID + ":changes"
}

// ServerTime returns the Redis server clock.
func (s *RedisStore) ServerTime(ctx context.Context) (time.Time, error) {
	t, err := s.rdb.Time(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("server time: %w", err)
	}
	return t.UTC(), nil
}

// stamp returns the acceptance time for a playback write, never earlier than
// the previous stamp for the session.
func (s *RedisStore) stamp(sessionID string, server time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last := s.lastWritten[sessionID]; server.Before(last) {
		server = last
	}
	s.lastWritten[sessionID] = server
	return server
}

func (s *RedisStore) WritePlaybackState(ctx context.Context, sessionID string, st party.PlaybackState) (party.PlaybackState, error) {
	now, err := s.ServerTime(ctx)
	if err != nil {
		return st, err
	}
	st.WrittenAt = s.stamp(sessionID, now)
	data, err := json.Marshal(st)
	if err != nil {
		return st, fmt.Errorf("encode playback: %w", err)
	}
	if err := s.writeField(ctx, sessionID, KindPlayback, data); err != nil {
		return st, err
	}
	return st, nil
}

func (s *RedisStore) WriteQueue(ctx context.Context, sessionID string, q *party.Queue) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	return s.writeField(ctx, sessionID, KindQueue, data)
}

func (s *RedisStore) WriteHistory(ctx context.Context, sessionID string, entries []party.HistoryEntry) error {
	if entries == nil {
		entries = []party.HistoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.writeField(ctx, sessionID, KindHistory, data)
}

func (s *RedisStore) WriteParticipantReport(ctx context.Context, sessionID string, r party.ParticipantReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	msg, err := encodeEnvelope(KindReport, data)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, reportsKey(sessionID), r.ParticipantID, data)
		pipe.Expire(ctx, reportsKey(sessionID), s.ttl)
		pipe.Publish(ctx, channelName(sessionID), msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write report %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) writeField(ctx context.Context, sessionID string, kind Kind, data []byte) error {
	msg, err := encodeEnvelope(kind, data)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, docKey(sessionID), string(kind), data)
		pipe.Expire(ctx, docKey(sessionID), s.ttl)
		pipe.Publish(ctx, channelName(sessionID), msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s %s: %w", kind, sessionID, err)
	}
	return nil
}

// ReadDocument loads and decodes the whole session document.
func (s *RedisStore) ReadDocument(ctx context.Context, sessionID string) (Document, error) {
	fields, err := s.rdb.HGetAll(ctx, docKey(sessionID)).Result()
	if err != nil {
		return Document{}, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	reports, err := s.rdb.HGetAll(ctx, reportsKey(sessionID)).Result()
	if err != nil {
		return Document{}, fmt.Errorf("read reports %s: %w", sessionID, err)
	}
	return decodeDocument(sessionID, fields, reports), nil
}

// Subscribe confirms the pub/sub subscription before reading the document,
// so a change racing with the initial read is delivered at least once.
func (s *RedisStore) Subscribe(ctx context.Context, sessionID string, h Handlers) (Subscription, error) {
	ps := s.rdb.Subscribe(ctx, channelName(sessionID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", sessionID, err)
	}

	doc, err := s.ReadDocument(ctx, sessionID)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	doc.deliver(h)

	sub := &redisSubscription{ps: ps}
	go sub.run(sessionID, h)
	return sub, nil
}

func (s *RedisStore) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Close()
}

type redisSubscription struct {
	ps   *redis.PubSub
	once sync.Once
}

func (r *redisSubscription) run(sessionID string, h Handlers) {
	for msg := range r.ps.Channel() {
		if err := dispatchEnvelope(h, []byte(msg.Payload)); err != nil {
			log.Warnw("dropping malformed notification", "session", sessionID, "err", err)
		}
	}
}

func (r *redisSubscription) Close() error {
	var err error
	r.once.Do(func() { err = r.ps.Close() })
	return err
}
