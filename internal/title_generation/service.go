package title_generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eternisai/session-titler/internal/config"
	"github.com/eternisai/session-titler/internal/conversation"
	"github.com/eternisai/session-titler/internal/logger"
	"github.com/eternisai/session-titler/internal/metrics"
	"github.com/eternisai/session-titler/internal/notifications"
	"github.com/eternisai/session-titler/internal/routing"
)

// ErrNoTurns is returned by Regenerate for sessions without user messages.
var ErrNoTurns = errors.New("session has no conversation turns")

// Options contain the limits and worker settings of the service.
type Options struct {
	MaxTurns           int
	MaxCharsPerMessage int
	UpdateThreshold    int
	NoticeDuration     time.Duration

	WorkerPoolSize int
	BufferSize     int

	// Timeout bounds a single pipeline run.
	Timeout time.Duration
}

// OptionsFromConfig collects service options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxTurns:           cfg.TitleGeneration.MaxTurns,
		MaxCharsPerMessage: cfg.TitleGeneration.MaxCharsPerMessage,
		UpdateThreshold:    cfg.TitleGeneration.UpdateThreshold,
		NoticeDuration:     cfg.TitleGeneration.NoticeDuration,
		WorkerPoolSize:     cfg.TitleWorkerPoolSize,
		BufferSize:         cfg.TitleBufferSize,
		Timeout:            cfg.TitleTimeout(),
	}
}

// Service updates session titles on idle notifications.
//
// Idle events are queued and handled by a worker pool, so OnIdle never waits for a
// pipeline run. Every session has a counter of idle events; a title update runs when
// the counter reaches a multiple of the update threshold. Counters live for the
// lifetime of the process.
//
// Events of one session are serialized by a per-session lock: the counter increment
// and the pipeline run happen under it, so overlapping notifications keep the modulo
// trigger exact and titles are applied in event order.
//
// Nothing escapes a run. Failures at any stage are logged, counted and end the run
// without changing the title.
type Service struct {
	logger    *logger.Logger
	store     Store
	notifier  Notifier
	generator *Generator
	options   Options

	idleChan   chan idleEvent
	workerPool sync.WaitGroup
	shutdown   chan struct{}
	closed     atomic.Bool

	mu           sync.Mutex
	counters     map[string]uint64
	sessionLocks map[string]*sync.Mutex
}

// NewService creates the service and starts its workers. The notifier may be nil.
func NewService(logger *logger.Logger, store Store, notifier Notifier, generator *Generator, options Options) *Service {
	if options.UpdateThreshold <= 0 {
		options.UpdateThreshold = config.DefaultUpdateThreshold
	}
	if options.MaxTurns <= 0 {
		options.MaxTurns = config.DefaultMaxTurns
	}
	if options.MaxCharsPerMessage <= 0 {
		options.MaxCharsPerMessage = config.DefaultMaxCharsPerMessage
	}
	if options.NoticeDuration <= 0 {
		options.NoticeDuration = config.DefaultNoticeDuration
	}
	if options.WorkerPoolSize <= 0 {
		options.WorkerPoolSize = 1
	}
	if options.BufferSize < 0 {
		options.BufferSize = 0
	}

	s := &Service{
		logger:       logger.WithComponent("title-generation"),
		store:        store,
		notifier:     notifier,
		generator:    generator,
		options:      options,
		idleChan:     make(chan idleEvent, options.BufferSize),
		shutdown:     make(chan struct{}),
		counters:     make(map[string]uint64),
		sessionLocks: make(map[string]*sync.Mutex),
	}

	for i := 0; i < options.WorkerPoolSize; i++ {
		s.workerPool.Add(1)
		go s.worker()
	}

	s.logger.Info("title generation service started",
		slog.Int("worker_pool_size", options.WorkerPoolSize),
		slog.Int("buffer_size", options.BufferSize),
		slog.Int("update_threshold", options.UpdateThreshold))

	return s
}

// worker processes idle events.
func (s *Service) worker() {
	defer s.workerPool.Done()

	for {
		select {
		case event := <-s.idleChan:
			s.handleIdle(event)
		case <-s.shutdown:
			// Drain remaining events
			for {
				select {
				case event := <-s.idleChan:
					s.handleIdle(event)
				default:
					return
				}
			}
		}
	}
}

// OnIdle queues an idle notification for the session. It never blocks: when the
// queue is full or the service is shutting down the event is dropped.
func (s *Service) OnIdle(ctx context.Context, sessionID string) {
	log := s.logger.WithContext(ctx)

	if sessionID == "" {
		log.Warn("ignoring idle notification without session id")
		return
	}

	metrics.IdleEvents.Inc()

	if s.closed.Load() {
		metrics.TitleUpdates.WithLabelValues(metrics.ResultDropped).Inc()
		log.Warn("service is shutting down, dropping idle notification",
			slog.String("session_id", sessionID))
		return
	}

	// Reuse the caller's run ID when there is one.
	runID, _ := ctx.Value(logger.ContextKeyRunID).(string)
	if runID == "" {
		runID = logger.GenerateRunID()
	}

	event := idleEvent{
		SessionID: sessionID,
		RunID:     runID,
	}

	select {
	case s.idleChan <- event:
		log.Debug("idle notification queued",
			slog.String("session_id", sessionID),
			slog.String("run_id", event.RunID))
	default:
		metrics.TitleUpdates.WithLabelValues(metrics.ResultDropped).Inc()
		log.Warn("idle queue full, dropping notification",
			slog.String("session_id", sessionID))
	}
}

// handleIdle processes a single idle event.
func (s *Service) handleIdle(event idleEvent) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.options.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	ctx = logger.WithRunID(ctx, event.RunID)
	ctx = logger.WithSessionID(ctx, event.SessionID)
	log := s.logger.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			metrics.TitleUpdates.WithLabelValues(metrics.ResultFailed).Inc()
			log.Error("panic in title pipeline",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	unlock := s.lockSession(event.SessionID)
	defer unlock()

	isSubSession, err := s.store.HasParent(ctx, event.SessionID)
	if err != nil {
		log.Warn("parent lookup failed, treating as top-level session",
			slog.String("error", err.Error()))
	}

	if isSubSession {
		metrics.TitleUpdates.WithLabelValues(metrics.ResultSubSession).Inc()
		log.Debug("skipping sub-session")
		return
	}

	count := s.increment(event.SessionID)
	if count%uint64(s.options.UpdateThreshold) != 0 {
		metrics.TitleUpdates.WithLabelValues(metrics.ResultBelowThresh).Inc()
		log.Debug("idle count below update threshold",
			slog.Uint64("count", count),
			slog.Int("threshold", s.options.UpdateThreshold))
		return
	}

	start := time.Now()

	result, err := s.run(ctx, event.SessionID)
	if err != nil {
		metrics.TitleUpdates.WithLabelValues(resultLabel(err)).Inc()
		log.Warn("title update skipped", slog.String("error", err.Error()))
		return
	}

	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	metrics.TitleUpdates.WithLabelValues(metrics.ResultUpdated).Inc()

	log.Info("session title updated",
		slog.String("title", result.Title),
		slog.String("model", result.Model.String()),
		slog.String("source", string(result.Source)),
		slog.Duration("duration", time.Since(start)))
}

// Regenerate runs the pipeline for the session right away, ignoring the idle counter
// and threshold. Sub-sessions are not excluded.
func (s *Service) Regenerate(ctx context.Context, sessionID string) (*Result, error) {
	ctx = logger.WithSessionID(ctx, sessionID)
	if _, ok := ctx.Value(logger.ContextKeyRunID).(string); !ok {
		ctx = logger.WithRunID(ctx, logger.GenerateRunID())
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	var result *Result

	err := s.logger.LogOperation(ctx, "regenerate_title", func() error {
		var err error
		result, err = s.run(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Counter returns the number of idle events seen for a top-level session.
func (s *Service) Counter(sessionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[sessionID]
}

// run executes the pipeline: messages, turns, context, selection and generation,
// sanitization and title update, followed by the best-effort notice.
func (s *Service) run(ctx context.Context, sessionID string) (*Result, error) {
	log := s.logger.WithContext(ctx)

	messages, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, &stageError{result: metrics.ResultFailed, err: fmt.Errorf("failed to list messages: %w", err)}
	}

	turns := conversation.ExtractTurns(messages)
	if len(turns) == 0 {
		return nil, &stageError{result: metrics.ResultNoTurns, err: ErrNoTurns}
	}

	formatted := conversation.FormatTurns(turns, s.options.MaxTurns, s.options.MaxCharsPerMessage)

	generation, err := s.generator.Generate(ctx, formatted)
	if err != nil {
		if errors.Is(err, routing.ErrNoUsableModel) {
			return nil, &stageError{result: metrics.ResultNoModel, err: err}
		}
		return nil, &stageError{result: metrics.ResultFailed, err: err}
	}

	selection := generation.Selection

	if err := s.store.UpdateTitle(ctx, sessionID, generation.Title); err != nil {
		return nil, &stageError{result: metrics.ResultApplyFailed, err: fmt.Errorf("failed to update title: %w", err)}
	}

	result := &Result{
		SessionID:   sessionID,
		Title:       generation.Title,
		Model:       selection.Ref,
		Source:      selection.Source,
		Reason:      selection.Reason,
		FailedModel: selection.FailedModel,
	}

	if selection.FailedModel != nil {
		s.notifyFallback(ctx, result)
	}

	log.Debug("pipeline finished",
		slog.Int("messages", len(messages)),
		slog.Int("turns", len(turns)),
		slog.String("raw", generation.Raw))

	return result, nil
}

// notifyFallback tells the user that the configured model was replaced. Failures are
// logged and otherwise ignored.
func (s *Service) notifyFallback(ctx context.Context, result *Result) {
	if s.notifier == nil {
		return
	}

	notice := notifications.Notice{
		SessionID: result.SessionID,
		Title:     "Title model unavailable",
		Message: fmt.Sprintf("Configured title model %s could not be used; titled with %s instead.",
			result.FailedModel, result.Model),
		Severity: notifications.SeverityInfo,
		Duration: s.options.NoticeDuration,
	}

	if err := s.notifier.Notify(ctx, notice); err != nil {
		metrics.TitleUpdates.WithLabelValues(metrics.ResultNoticeFailed).Inc()
		s.logger.WithContext(ctx).Warn("failed to send fallback notice", slog.String("error", err.Error()))
	}
}

// increment bumps the session counter and returns the new value.
func (s *Service) increment(sessionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[sessionID]++
	return s.counters[sessionID]
}

// lockSession acquires the lock of the session and returns its release function.
func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessionLocks[sessionID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Shutdown stops accepting events, handles the queued ones and waits for the workers.
func (s *Service) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.logger.Info("shutting down title generation service")
	close(s.shutdown)
	s.workerPool.Wait()
	s.logger.Info("title generation service shutdown complete")
}

// stageError labels a pipeline failure with its metrics result.
type stageError struct {
	result string
	err    error
}

func (e *stageError) Error() string {
	return e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

func resultLabel(err error) string {
	var stageErr *stageError
	if errors.As(err, &stageErr) {
		return stageErr.result
	}
	return metrics.ResultFailed
}
