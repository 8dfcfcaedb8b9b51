// Package channelsync owns the client side of a team/date channel: one live
// session per channel, ordered message delivery, reconnection backoff and
// ephemeral typing state.
package channelsync

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/team-channel/internal/channel"
	"github.com/example/team-channel/internal/metrics"
)

var (
	// ErrNoChannel is returned when the engine is built without a channel key.
	ErrNoChannel = errors.New("channelsync: channel key not set")
	// ErrNotConnected is returned when an operation requires a connected session.
	ErrNotConnected = errors.New("channelsync: not connected")
	// ErrEmptyContent is returned when a message is empty after trimming.
	ErrEmptyContent = errors.New("channelsync: empty content")
)

// DefaultPollInterval is the steady-state fetch cadence.
const DefaultPollInterval = 30 * time.Second

// Config carries the engine's dependencies. Store and Key are required;
// everything else has working defaults.
type Config struct {
	Store        Store
	Key          channel.Key
	PollInterval time.Duration
	Backoff      BackoffPolicy
	TypingTTL    time.Duration
	Clock        func() time.Time
	Scheduler    TimerScheduler
	Metrics      *metrics.Engine
	Logger       *slog.Logger
}

// Engine maintains one live session against a channel. All mutation of the
// ordered buffer, the watermark and the session status happens under a single
// mutex, so poll merges and send appends can never lose each other's updates.
type Engine struct {
	store        Store
	key          channel.Key
	pollInterval time.Duration
	backoff      BackoffPolicy
	clock        func() time.Time
	scheduler    TimerScheduler
	metrics      *metrics.Engine
	logger       *slog.Logger
	typing       *TypingAggregator

	mu            sync.Mutex
	status        Status
	messages      []channel.Message
	index         map[int64]int
	lastMessageID int64
	retryCount    int
	lastErr       error
	// generation identifies the current session handle. Disconnect rotates
	// it; results carrying a stale generation are discarded.
	generation uuid.UUID
	ctx        context.Context
	cancel     context.CancelFunc

	pollTimer    Timer
	backoffTimer Timer
	sweepTimer   Timer
}

// NewEngine builds a disconnected engine for the configured channel.
func NewEngine(cfg Config) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Backoff == (BackoffPolicy{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = realScheduler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		store:        cfg.Store,
		key:          cfg.Key,
		pollInterval: cfg.PollInterval,
		backoff:      cfg.Backoff,
		clock:        cfg.Clock,
		scheduler:    cfg.Scheduler,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With("channel", cfg.Key.String()),
		typing:       NewTypingAggregator(cfg.TypingTTL, cfg.Clock),
		status:       StatusDisconnected,
		index:        make(map[int64]int),
	}
}

// Connect starts a session: a full fetch of the channel's messages, sorted by
// (sentAt, id). Concurrent calls while a connect attempt or session is live
// coalesce into it; only one attempt is ever in flight.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.key.IsZero() {
		e.mu.Unlock()
		return ErrNoChannel
	}
	switch e.status {
	case StatusConnecting, StatusConnected, StatusReconnecting:
		e.mu.Unlock()
		return nil
	}

	e.status, _ = transition(e.status, eventConnect)
	e.retryCount = 0
	e.lastErr = nil
	gen := uuid.New()
	e.generation = gen
	cctx, cancel := context.WithCancel(ctx)
	e.ctx, e.cancel = cctx, cancel
	e.mu.Unlock()

	go e.attempt(cctx, gen)
	return nil
}

// Retry resets the retry budget after the session failed and re-enters
// connecting. A no-op while a session is live.
func (e *Engine) Retry(ctx context.Context) error {
	return e.Connect(ctx)
}

// Disconnect tears the session down: every owned timer is cancelled together
// so no callback leaks into a dead session, and the generation is rotated so
// late-arriving responses are discarded. Idempotent.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == StatusDisconnected {
		return
	}
	e.status, _ = transition(e.status, eventDisconnect)
	e.generation = uuid.New()
	e.stopTimersLocked()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.retryCount = 0
	e.typing.Clear()
}

// SendMessage submits a message and appends the server's authoritative copy.
// There is no optimistic local echo, so local ids can never diverge from the
// store's. On failure the error is recorded on the session and returned; the
// caller keeps its draft.
func (e *Engine) SendMessage(ctx context.Context, input SendInput) (channel.Message, error) {
	e.mu.Lock()
	if e.status != StatusConnected {
		e.mu.Unlock()
		return channel.Message{}, ErrNotConnected
	}
	if strings.TrimSpace(input.Content) == "" {
		e.mu.Unlock()
		return channel.Message{}, ErrEmptyContent
	}
	gen := e.generation
	key := e.key
	e.mu.Unlock()

	msg, err := e.store.PostMessage(ctx, key, input)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if e.metrics != nil {
			e.metrics.SendFailures.Inc()
		}
		if gen == e.generation {
			e.lastErr = err
		}
		return channel.Message{}, err
	}
	if gen == e.generation {
		e.mergeLocked([]channel.Message{msg})
		e.lastErr = nil
	}
	return msg, nil
}

// Approve resolves a pending schedule request through the store and merges
// the response message into the local view.
func (e *Engine) Approve(ctx context.Context, messageID int64) (ApproveResult, error) {
	gen, err := e.requireConnected()
	if err != nil {
		return ApproveResult{}, err
	}

	result, err := e.store.ApproveRequest(ctx, messageID)
	e.afterStoreCall(gen, err, result.ResponseMessage)
	if err != nil {
		return ApproveResult{}, err
	}
	return result, nil
}

// Reject declines a pending schedule request through the store and merges the
// response message into the local view.
func (e *Engine) Reject(ctx context.Context, messageID int64) (channel.Message, error) {
	gen, err := e.requireConnected()
	if err != nil {
		return channel.Message{}, err
	}

	response, err := e.store.RejectRequest(ctx, messageID)
	e.afterStoreCall(gen, err, response)
	if err != nil {
		return channel.Message{}, err
	}
	return response, nil
}

// Acknowledge marks a negotiation response as read. Acknowledging twice is a
// no-op server side; the refreshed copy replaces the local entry either way.
func (e *Engine) Acknowledge(ctx context.Context, messageID int64) (channel.Message, error) {
	gen, err := e.requireConnected()
	if err != nil {
		return channel.Message{}, err
	}

	acked, err := e.store.AcknowledgeResponse(ctx, messageID)
	e.afterStoreCall(gen, err, acked)
	if err != nil {
		return channel.Message{}, err
	}
	return acked, nil
}

// CheckConflict asks the store whether the interval would overlap the user's
// confirmed schedules. Advisory; the binding check runs inside the approval
// transaction.
func (e *Engine) CheckConflict(ctx context.Context, userID string, start, end time.Time, excludeScheduleID int64) (bool, error) {
	return e.store.CheckConflict(ctx, userID, start, end, excludeScheduleID)
}

// SignalTyping records a typing state change for a channel member.
func (e *Engine) SignalTyping(userID string, isTyping bool) {
	e.typing.Signal(userID, isTyping)
}

// TypingUsers returns the users currently typing, sorted by id.
func (e *Engine) TypingUsers() []string {
	return e.typing.TypingUsers()
}

// ClearError drops the stored session error.
func (e *Engine) ClearError() {
	e.mu.Lock()
	e.lastErr = nil
	e.mu.Unlock()
}

// Err returns the most recent session error, or nil.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Status returns the session's connection state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastMessageID returns the sync watermark.
func (e *Engine) LastMessageID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastMessageID
}

// RetryCount returns the number of automatic retries consumed since the last
// successful connect.
func (e *Engine) RetryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retryCount
}

// Messages returns a copy of the ordered local view.
func (e *Engine) Messages() []channel.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]channel.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// PendingRequests returns the open negotiation requests in the local view,
// keeping only the newest pending request per (schedule, requester). The
// store accepts older duplicates, but the newest is authoritative for the UI.
func (e *Engine) PendingRequests() []channel.NegotiationRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	type dedupKey struct {
		scheduleID int64
		requester  string
	}
	newest := make(map[dedupKey]channel.NegotiationRequest)
	for _, msg := range e.messages {
		request, ok := channel.RequestFromMessage(msg)
		if !ok || request.Status != channel.NegotiationPending {
			continue
		}
		// Messages are ordered; a later entry supersedes an earlier one.
		newest[dedupKey{request.ScheduleID, request.RequesterID}] = request
	}
	if len(newest) == 0 {
		return nil
	}

	requests := make([]channel.NegotiationRequest, 0, len(newest))
	for _, request := range newest {
		requests = append(requests, request)
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].MessageID < requests[j].MessageID
	})
	return requests
}

// attempt runs one connect attempt: full fetch, then either connected or the
// failure path.
func (e *Engine) attempt(ctx context.Context, gen uuid.UUID) {
	msgs, err := e.store.FetchMessages(ctx, e.key, 0)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	if err != nil {
		e.failLocked(err)
		return
	}

	e.mergeLocked(msgs)
	e.status, _ = transition(e.status, eventConnectOK)
	e.retryCount = 0
	e.lastErr = nil
	e.schedulePollLocked()
	e.scheduleSweepLocked()
	e.logger.Debug("session connected", "last_message_id", e.lastMessageID)
}

// failLocked records the error and decides between another automatic retry
// and terminal failure.
func (e *Engine) failLocked(err error) {
	e.lastErr = err
	e.status, _ = transition(e.status, eventFailure)
	if e.pollTimer != nil {
		e.pollTimer.Stop()
		e.pollTimer = nil
	}

	if e.retryCount < e.backoff.MaxRetries {
		e.retryCount++
		e.status, _ = transition(e.status, eventRetry)
		if e.metrics != nil {
			e.metrics.ReconnectsTotal.Inc()
		}
		delay := e.backoff.Delay(e.retryCount)
		gen := e.generation
		e.backoffTimer = e.scheduler.AfterFunc(delay, func() { e.onBackoffFired(gen) })
		e.logger.Warn("connection failed, retrying", "error", err, "attempt", e.retryCount, "delay", delay)
		return
	}

	e.status, _ = transition(e.status, eventExhausted)
	if e.metrics != nil {
		e.metrics.ConnectionsFailed.Inc()
	}
	e.logger.Error("connection failed, retries exhausted", "error", err)
}

func (e *Engine) onBackoffFired(gen uuid.UUID) {
	e.mu.Lock()
	if gen != e.generation || e.status != StatusReconnecting {
		e.mu.Unlock()
		return
	}
	e.status, _ = transition(e.status, eventRetryTimer)
	ctx := e.ctx
	e.mu.Unlock()

	go e.attempt(ctx, gen)
}

func (e *Engine) schedulePollLocked() {
	if e.pollTimer != nil {
		e.pollTimer.Stop()
	}
	gen := e.generation
	e.pollTimer = e.scheduler.AfterFunc(e.pollInterval, func() { e.onPollTick(gen) })
}

// onPollTick issues an incremental fetch. The next tick is armed immediately:
// a fetch that outlives the cadence is superseded, not cancelled, and its
// result still merges by id when it lands.
func (e *Engine) onPollTick(gen uuid.UUID) {
	e.mu.Lock()
	if gen != e.generation || e.status != StatusConnected {
		e.mu.Unlock()
		return
	}
	afterID := e.lastMessageID
	ctx := e.ctx
	e.schedulePollLocked()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.PollsTotal.Inc()
	}

	go func() {
		msgs, err := e.store.FetchMessages(ctx, e.key, afterID)

		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.generation {
			return
		}
		if err != nil {
			if e.status == StatusConnected {
				e.failLocked(err)
			}
			return
		}
		e.mergeLocked(msgs)
		e.lastErr = nil
	}()
}

func (e *Engine) scheduleSweepLocked() {
	if e.sweepTimer != nil {
		e.sweepTimer.Stop()
	}
	gen := e.generation
	e.sweepTimer = e.scheduler.AfterFunc(e.typing.ttl, func() { e.onSweepFired(gen) })
}

func (e *Engine) onSweepFired(gen uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	e.typing.Sweep()
	e.scheduleSweepLocked()
}

// mergeLocked folds fetched or returned messages into the ordered view:
// dedup by id (a redelivered copy replaces its entry, refreshing ack and
// negotiation state), then a stable sort by (sentAt, id). Appending alone is
// not enough — a late batch may carry messages older than the tail.
func (e *Engine) mergeLocked(msgs []channel.Message) {
	if len(msgs) == 0 {
		return
	}

	added := 0
	for _, msg := range msgs {
		if i, ok := e.index[msg.ID]; ok {
			e.messages[i] = msg
			continue
		}
		e.messages = append(e.messages, msg)
		e.index[msg.ID] = len(e.messages) - 1
		added++
		if msg.ID > e.lastMessageID {
			e.lastMessageID = msg.ID
		}
	}

	sort.SliceStable(e.messages, func(i, j int) bool {
		return channel.Less(e.messages[i], e.messages[j])
	})
	for i, msg := range e.messages {
		e.index[msg.ID] = i
	}

	if added > 0 && e.metrics != nil {
		e.metrics.MessagesMerged.Add(float64(added))
	}
}

func (e *Engine) requireConnected() (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusConnected {
		return uuid.UUID{}, ErrNotConnected
	}
	return e.generation, nil
}

// afterStoreCall records errors and merges successful response messages under
// the session lock, discarding results from a rotated generation.
func (e *Engine) afterStoreCall(gen uuid.UUID, err error, response channel.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	if err != nil {
		e.lastErr = err
		return
	}
	if response.ID != 0 {
		e.mergeLocked([]channel.Message{response})
	}
	e.lastErr = nil
}

func (e *Engine) stopTimersLocked() {
	if e.pollTimer != nil {
		e.pollTimer.Stop()
		e.pollTimer = nil
	}
	if e.backoffTimer != nil {
		e.backoffTimer.Stop()
		e.backoffTimer = nil
	}
	if e.sweepTimer != nil {
		e.sweepTimer.Stop()
		e.sweepTimer = nil
	}
}
