// Package heartbeat provides a best-effort study time reporter. It posts
// periodic "still viewing lesson X" signals to the tracking endpoint; the
// server does all the accounting, so a dropped beat costs at most one
// clamped interval.
package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval expected cadence between heartbeats
const DefaultInterval = 15 * time.Second

// flushWindow skip the teardown beat when one was sent this recently
const flushWindow = 2 * time.Second

// Options configure an Emitter
type Options struct {
	Endpoint string // track-heartbeat URL
	Token    string // bearer token, emission is suppressed when empty
	CourseID string
	LessonID string
	Interval time.Duration
	Client   *http.Client
	Logger   *zap.Logger
}

type beat struct {
	CourseID string `json:"courseId"`
	LessonID string `json:"lessonId"`
}

// Emitter periodic heartbeat sender.
//
// Beats are skipped while suspended, never queued. Send failures are logged
// and dropped, the next tick is the retry.
type Emitter struct {
	endpoint string
	token    string
	courseID string
	interval time.Duration
	client   *http.Client
	logger   *zap.Logger

	mu        sync.Mutex
	lessonID  string
	suspended bool
	lastSent  time.Time
	started   bool
	closed    bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewEmitter create an emitter, call Start to begin emission
func NewEmitter(opts *Options) *Emitter {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		endpoint: opts.Endpoint,
		token:    opts.Token,
		courseID: opts.CourseID,
		lessonID: opts.LessonID,
		interval: interval,
		client:   client,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start send one heartbeat immediately, then tick at the configured interval
func (e *Emitter) Start() {
	e.mu.Lock()
	if e.started || e.closed {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.send()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.send()
			case <-e.done:
				return
			}
		}
	}()
}

// Suspend stop emission, ticks during suspension are skipped, not queued
func (e *Emitter) Suspend() {
	e.mu.Lock()
	e.suspended = true
	e.mu.Unlock()
}

// Resume re-enable emission and send an out-of-band heartbeat right away to
// minimize undercounting
func (e *Emitter) Resume() {
	e.mu.Lock()
	resumed := e.suspended
	e.suspended = false
	e.mu.Unlock()
	if resumed {
		e.send()
	}
}

// SetLesson switch the lesson the heartbeats are attributed to. The first
// beat on the new lesson primes the server clock and banks no time.
func (e *Emitter) SetLesson(lessonID string) {
	e.mu.Lock()
	e.lessonID = lessonID
	e.mu.Unlock()
}

// Close stop the ticker and send one final fire-and-forget heartbeat, unless
// a beat already went out within the flush window
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	flush := time.Since(e.lastSent) >= flushWindow
	e.mu.Unlock()

	close(e.done)
	e.wg.Wait()
	if flush {
		// does not block teardown
		go e.send()
	}
}

func (e *Emitter) send() {
	e.mu.Lock()
	if e.suspended || e.token == "" {
		e.mu.Unlock()
		return
	}
	lessonID := e.lessonID
	e.lastSent = time.Now()
	e.mu.Unlock()

	body, err := json.Marshal(&beat{CourseID: e.courseID, LessonID: lessonID})
	if err != nil {
		e.logger.Warn("Failed to encode heartbeat", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.interval)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("Failed to build heartbeat request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := e.client.Do(req)
	if err != nil {
		// best effort, the next tick recovers
		e.logger.Warn("Failed to send heartbeat", zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("Heartbeat rejected", zap.Int("http.response.status_code", resp.StatusCode))
	}
}
