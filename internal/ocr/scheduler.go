package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/NomadCrew/nomad-crew-ocr/types"
	"go.uber.org/zap"
)

// SchedulerConfig sizes the pool and sets the engine profile.
type SchedulerConfig struct {
	WorkerCount    int
	Languages      []string
	DPI            int
	CharWhitelist  string
	JobTimeout     time.Duration
	ProgressBuffer int
}

// DefaultSchedulerConfig returns the profile used when nothing is configured.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		WorkerCount:    4,
		Languages:      []string{"fra", "eng", "deu"},
		DPI:            300,
		CharWhitelist:  DefaultWhitelist,
		JobTimeout:     60 * time.Second,
		ProgressBuffer: 256,
	}
}

// Stage names a step of a job's life in the pool.
type Stage string

const (
	StageQueued    Stage = "queued"
	StageStarted   Stage = "started"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// ProgressEvent is published for every stage change. WorkerID is -1 while
// the job is queued.
type ProgressEvent struct {
	JobID    string
	WorkerID int
	Stage    Stage
	Progress float64
	At       time.Time
}

// SchedulerStatus is a point-in-time view of the pool.
type SchedulerStatus struct {
	Initialized   bool
	WorkerCount   int
	QueueDepth    int
	ActiveWorkers int
	Replacements  int64
}

// Observer receives pool gauges. internal/metrics.Collector satisfies it.
type Observer interface {
	SetQueueDepth(n int)
	SetActiveWorkers(n int)
	RecordWorkerReplacement()
}

type SchedulerOption func(*Scheduler)

func WithObserver(o Observer) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = o
	}
}

type jobResult struct {
	rec *types.RecognitionResult
	err error
}

type job struct {
	ctx    context.Context
	data   []byte
	opts   RecognizeOptions
	result chan jobResult
}

type worker struct {
	id int
	// engine is nil after a failure until the worker's next job recreates it.
	engine Engine
}

// Scheduler owns a fixed pool of workers fed from an unbounded FIFO queue.
// Each worker runs one job at a time on its own engine.
type Scheduler struct {
	cfg      SchedulerConfig
	factory  EngineFactory
	observer Observer
	log      *zap.SugaredLogger
	progress chan ProgressEvent

	initMu sync.Mutex

	mu           sync.Mutex
	cond         *sync.Cond
	queue        []*job
	workers      []*worker
	initialized  bool
	closing      bool
	active       int
	replacements int64
	wg           sync.WaitGroup
}

func NewScheduler(cfg SchedulerConfig, factory EngineFactory, opts ...SchedulerOption) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = defaults.Languages
	}
	if cfg.DPI <= 0 {
		cfg.DPI = defaults.DPI
	}
	if cfg.CharWhitelist == "" {
		cfg.CharWhitelist = defaults.CharWhitelist
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaults.JobTimeout
	}
	if cfg.ProgressBuffer <= 0 {
		cfg.ProgressBuffer = defaults.ProgressBuffer
	}

	s := &Scheduler{
		cfg:      cfg,
		factory:  factory,
		log:      logger.GetLogger().Named("ocr-scheduler"),
		progress: make(chan ProgressEvent, cfg.ProgressBuffer),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) engineConfig() EngineConfig {
	return EngineConfig{
		Languages:     s.cfg.Languages,
		DPI:           s.cfg.DPI,
		CharWhitelist: s.cfg.CharWhitelist,
	}
}

// Progress returns the event stream. Events are dropped when the consumer
// falls behind; the channel is never closed.
func (s *Scheduler) Progress() <-chan ProgressEvent {
	return s.progress
}

// Initialize loads one engine per worker and starts the pool. Calling it
// again after success is a no-op. Any engine that fails to load aborts
// startup with a StartupFailure.
func (s *Scheduler) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	initialized, closing := s.initialized, s.closing
	s.mu.Unlock()
	if initialized {
		return nil
	}
	if closing {
		return apperrors.StartupFailure("recognition pool has been shut down", nil)
	}

	s.log.Infow("Starting recognition pool",
		"workers", s.cfg.WorkerCount,
		"languages", s.cfg.Languages,
		"dpi", s.cfg.DPI,
		"jobTimeout", s.cfg.JobTimeout)

	workers := make([]*worker, 0, s.cfg.WorkerCount)
	for i := 0; i < s.cfg.WorkerCount; i++ {
		if err := ctx.Err(); err != nil {
			closeWorkers(workers)
			return apperrors.StartupFailure("recognition pool startup cancelled", err)
		}
		engine, err := s.factory(s.engineConfig())
		if err != nil {
			closeWorkers(workers)
			return apperrors.StartupFailure(fmt.Sprintf("recognition worker %d failed to load", i), err)
		}
		workers = append(workers, &worker{id: i, engine: engine})
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		closeWorkers(workers)
		return apperrors.StartupFailure("recognition pool shut down during startup", nil)
	}
	s.workers = workers
	s.initialized = true
	s.wg.Add(len(workers))
	s.mu.Unlock()

	for _, w := range workers {
		go s.run(w)
	}
	return nil
}

func closeWorkers(workers []*worker) {
	for _, w := range workers {
		if w.engine != nil {
			_ = w.engine.Close()
		}
	}
}

// Recognize queues data and waits for a worker to recognize it. Empty input
// and every engine problem are reported as RecognitionFailure; a pool that is
// not running answers with StartupFailure.
func (s *Scheduler) Recognize(ctx context.Context, data []byte, opts RecognizeOptions) (*types.RecognitionResult, error) {
	if len(data) == 0 {
		return nil, apperrors.RecognitionFailure("document is empty", nil)
	}

	j := &job{ctx: ctx, data: data, opts: opts, result: make(chan jobResult, 1)}

	s.mu.Lock()
	if !s.initialized || s.closing {
		s.mu.Unlock()
		return nil, apperrors.StartupFailure("recognition pool is not running", nil)
	}
	s.queue = append(s.queue, j)
	s.observeLocked()
	s.publish(opts.JobID, -1, StageQueued, 0)
	s.cond.Signal()
	s.mu.Unlock()

	select {
	case res := <-j.result:
		return res.rec, res.err
	case <-ctx.Done():
		return nil, apperrors.RecognitionFailure("recognition cancelled", ctx.Err())
	}
}

// next blocks until a job is available. It returns nil once the pool is
// closing and the queue is drained.
func (s *Scheduler) next() *job {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 && !s.closing {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return nil
	}
	j := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.active++
	s.observeLocked()
	return j
}

func (s *Scheduler) done() {
	s.mu.Lock()
	s.active--
	s.observeLocked()
	s.mu.Unlock()
}

func (s *Scheduler) run(w *worker) {
	defer s.wg.Done()
	s.log.Debugw("Recognition worker started", "workerId", w.id)

	for {
		j := s.next()
		if j == nil {
			if w.engine != nil {
				if err := w.engine.Close(); err != nil {
					s.log.Warnw("Failed to close recognition engine", "workerId", w.id, "error", err)
				}
				w.engine = nil
			}
			s.log.Debugw("Recognition worker stopped", "workerId", w.id)
			return
		}
		j.result <- s.execute(w, j)
		s.done()
	}
}

func (s *Scheduler) execute(w *worker, j *job) jobResult {
	if err := j.ctx.Err(); err != nil {
		return jobResult{err: apperrors.RecognitionFailure("recognition cancelled before start", err)}
	}

	if w.engine == nil {
		engine, err := s.factory(s.engineConfig())
		if err != nil {
			s.log.Errorw("Failed to replace recognition engine", "workerId", w.id, "error", err)
			s.publish(j.opts.JobID, w.id, StageFailed, 1)
			return jobResult{err: apperrors.RecognitionFailure("recognition worker unavailable", err)}
		}
		w.engine = engine
		s.mu.Lock()
		s.replacements++
		s.mu.Unlock()
		if s.observer != nil {
			s.observer.RecordWorkerReplacement()
		}
		s.log.Infow("Replaced recognition engine", "workerId", w.id)
	}

	s.publish(j.opts.JobID, w.id, StageStarted, 0.1)
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(j.ctx, s.cfg.JobTimeout)
	defer cancel()

	engine := w.engine
	finished := make(chan jobResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				finished <- jobResult{err: fmt.Errorf("engine panic: %v", r)}
			}
		}()
		rec, err := engine.Recognize(jobCtx, j.data, j.opts)
		if err == nil && rec == nil {
			err = errors.New("engine returned no result")
		}
		finished <- jobResult{rec: rec, err: err}
	}()

	select {
	case res := <-finished:
		if res.err != nil {
			s.log.Warnw("Recognition failed, engine will be replaced",
				"jobId", j.opts.JobID, "workerId", w.id, "error", res.err)
			s.discardEngine(w)
			s.publish(j.opts.JobID, w.id, StageFailed, 1)
			return jobResult{err: apperrors.RecognitionFailure("recognition failed", res.err)}
		}
		res.rec.RawText = Normalize(res.rec.RawText)
		s.log.Debugw("Recognition completed",
			"jobId", j.opts.JobID, "workerId", w.id, "duration", time.Since(start))
		s.publish(j.opts.JobID, w.id, StageCompleted, 1)
		return res

	case <-jobCtx.Done():
		// The engine may still be running; it is closed once it returns and
		// never reused.
		w.engine = nil
		go func() {
			<-finished
			_ = engine.Close()
		}()
		s.publish(j.opts.JobID, w.id, StageFailed, 1)

		if j.ctx.Err() != nil {
			return jobResult{err: apperrors.RecognitionFailure("recognition cancelled", j.ctx.Err())}
		}
		s.log.Warnw("Recognition timed out, engine will be replaced",
			"jobId", j.opts.JobID, "workerId", w.id, "timeout", s.cfg.JobTimeout)
		return jobResult{err: apperrors.RecognitionFailure(
			fmt.Sprintf("recognition timed out after %s", s.cfg.JobTimeout), jobCtx.Err())}
	}
}

func (s *Scheduler) discardEngine(w *worker) {
	if w.engine == nil {
		return
	}
	if err := w.engine.Close(); err != nil {
		s.log.Warnw("Failed to close broken recognition engine", "workerId", w.id, "error", err)
	}
	w.engine = nil
}

func (s *Scheduler) publish(jobID string, workerID int, stage Stage, progress float64) {
	select {
	case s.progress <- ProgressEvent{JobID: jobID, WorkerID: workerID, Stage: stage, Progress: progress, At: time.Now()}:
	default:
	}
}

func (s *Scheduler) observeLocked() {
	if s.observer == nil {
		return
	}
	s.observer.SetQueueDepth(len(s.queue))
	s.observer.SetActiveWorkers(s.active)
}

// Shutdown stops intake, lets workers finish queued and running jobs, then
// closes every engine. It is safe to call before Initialize and more than
// once. ctx bounds the wait.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closing {
		s.closing = true
		s.log.Infow("Shutting down recognition pool", "queued", len(s.queue), "active", s.active)
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("Recognition pool shutdown timed out with jobs still running")
		return ctx.Err()
	}
}

// Status has no side effects.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Initialized:   s.initialized && !s.closing,
		WorkerCount:   len(s.workers),
		QueueDepth:    len(s.queue),
		ActiveWorkers: s.active,
		Replacements:  s.replacements,
	}
}

// Languages returns the languages every engine was loaded with.
func (s *Scheduler) Languages() []string {
	return append([]string(nil), s.cfg.Languages...)
}
