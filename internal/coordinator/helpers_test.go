package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"party-sync-service/internal/party"
	"party-sync-service/internal/replication"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock { return &testClock{t: t0} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// mockPlayer records every control call.
type mockPlayer struct {
	mock.Mock
}

func (m *mockPlayer) CurrentPositionSeconds() float64 {
	return m.Called().Get(0).(float64)
}

func (m *mockPlayer) IsPlaying() bool {
	return m.Called().Bool(0)
}

func (m *mockPlayer) CurrentTrack() *party.Track {
	args := m.Called()
	if t, ok := args.Get(0).(*party.Track); ok {
		return t
	}
	return nil
}

func (m *mockPlayer) Seek(to float64) { m.Called(to) }
func (m *mockPlayer) Play()           { m.Called() }
func (m *mockPlayer) Pause()          { m.Called() }

// newMockPlayer returns a player reporting track at position pos.
func newMockPlayer(track *party.Track, pos float64, playing bool) *mockPlayer {
	p := &mockPlayer{}
	p.On("CurrentTrack").Return(track).Maybe()
	p.On("CurrentPositionSeconds").Return(pos).Maybe()
	p.On("IsPlaying").Return(playing).Maybe()
	return p
}

func trackA() *party.Track {
	return &party.Track{ID: "A", Title: "Alpha", Artist: "Band", DurationSeconds: 240}
}

// quietConfig keeps loops from ticking on their own during a test.
func quietConfig(id string, clk *testClock) Config {
	return Config{
		ParticipantID:      id,
		DisplayName:        "user-" + id,
		HeartbeatInterval:  time.Hour,
		CorrectionInterval: time.Hour,
		Now:                clk.Now,
	}
}

func newParticipant(t *testing.T, cfg Config, p LocalPlayer, store replication.Adapter, session string) *Coordinator {
	t.Helper()
	c := New(cfg, p, store)
	t.Cleanup(c.Close)
	require.NoError(t, c.JoinSession(session))
	waitState(t, c, Connected)
	return c
}

func waitState(t *testing.T, c *Coordinator, want ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status().Connection.State == want
	}, 2*time.Second, 5*time.Millisecond, "waiting for %s", want)
}

// playback builds a snapshot as a host would have written it.
func playback(track *party.Track, pos float64, playing bool, at time.Time) party.PlaybackState {
	return party.PlaybackState{CurrentTrack: track, PositionSeconds: pos, IsPlaying: playing, WrittenAt: at, HostID: "host"}
}
