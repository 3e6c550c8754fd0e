package heartbeat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type beatServer struct {
	mu    sync.Mutex
	beats []beat
	auth  []string
}

func (bs *beatServer) handler(w http.ResponseWriter, r *http.Request) {
	var b beat
	json.NewDecoder(r.Body).Decode(&b)
	bs.mu.Lock()
	bs.beats = append(bs.beats, b)
	bs.auth = append(bs.auth, r.Header.Get("Authorization"))
	bs.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (bs *beatServer) count() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return len(bs.beats)
}

func newTestEmitter(url string, interval time.Duration) *Emitter {
	return NewEmitter(&Options{
		Endpoint: url,
		Token:    "test-token",
		CourseID: "html",
		LessonID: "html-01",
		Interval: interval,
	})
}

func TestEmitterSendsImmediatelyAndOnTicks(t *testing.T) {
	bs := &beatServer{}
	srv := httptest.NewServer(http.HandlerFunc(bs.handler))
	defer srv.Close()

	e := newTestEmitter(srv.URL, 25*time.Millisecond)
	e.Start()
	time.Sleep(90 * time.Millisecond)
	e.Suspend()

	count := bs.count()
	assert.GreaterOrEqual(t, count, 3, "one immediate beat plus ticks")

	bs.mu.Lock()
	first := bs.beats[0]
	authHeader := bs.auth[0]
	bs.mu.Unlock()
	assert.Equal(t, "html", first.CourseID)
	assert.Equal(t, "html-01", first.LessonID)
	assert.Equal(t, "Bearer test-token", authHeader)
}

func TestEmitterSuspendSkipsTicks(t *testing.T) {
	bs := &beatServer{}
	srv := httptest.NewServer(http.HandlerFunc(bs.handler))
	defer srv.Close()

	e := newTestEmitter(srv.URL, 20*time.Millisecond)
	e.Start()
	e.Suspend()
	before := bs.count()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, before, bs.count(), "suspended ticks are skipped, not queued")

	// resume sends an out-of-band beat right away
	e.Resume()
	assert.GreaterOrEqual(t, bs.count(), before+1)
}

func TestEmitterSetLessonSwitchesAttribution(t *testing.T) {
	bs := &beatServer{}
	srv := httptest.NewServer(http.HandlerFunc(bs.handler))
	defer srv.Close()

	e := newTestEmitter(srv.URL, time.Hour)
	e.Start()
	e.SetLesson("html-02")
	e.Resume() // no-op, not suspended
	require.Equal(t, 1, bs.count())

	e.Suspend()
	e.Resume()
	require.Equal(t, 2, bs.count())
	bs.mu.Lock()
	second := bs.beats[1]
	bs.mu.Unlock()
	assert.Equal(t, "html-02", second.LessonID)
}

func TestEmitterCloseDeduplicatesFinalBeat(t *testing.T) {
	bs := &beatServer{}
	srv := httptest.NewServer(http.HandlerFunc(bs.handler))
	defer srv.Close()

	e := newTestEmitter(srv.URL, time.Hour)
	e.Start()
	require.Equal(t, 1, bs.count())

	// a beat just went out, teardown must not double-send
	e.Close()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, bs.count())
}

func TestEmitterWithoutTokenStaysSilent(t *testing.T) {
	bs := &beatServer{}
	srv := httptest.NewServer(http.HandlerFunc(bs.handler))
	defer srv.Close()

	e := NewEmitter(&Options{
		Endpoint: srv.URL,
		CourseID: "html",
		LessonID: "html-01",
		Interval: 20 * time.Millisecond,
	})
	e.Start()
	time.Sleep(60 * time.Millisecond)
	e.Close()
	assert.Equal(t, 0, bs.count())
}
