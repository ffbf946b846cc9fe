package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/orchestrator"
)

const (
	DefaultWorkers      = 4
	DefaultReplyTimeout = 120 * time.Second
)

var (
	// ErrReplyTimeout is returned by Submit when the run outlives the reply
	// timeout. The run keeps going and its result is still committed.
	ErrReplyTimeout = errors.New("timed out waiting for the assistant reply")

	// ErrStopped is returned by Submit once the bridge is stopped.
	ErrStopped = errors.New("session bridge stopped")
)

// Runner runs one prompt against a conversation. *orchestrator.Orchestrator
// implements it.
type Runner interface {
	Run(ctx context.Context, conv *domain.Conversation, env orchestrator.Env, prompt string) *orchestrator.Result
}

// Reply is what a submitter receives for a finished run.
type Reply struct {
	Text      string              `json:"text"`
	Status    orchestrator.Status `json:"status"`
	Rounds    int                 `json:"rounds"`
	ToolCalls int                 `json:"tool_calls"`
	// Discarded is set when the session was reset after the prompt was
	// submitted. A prompt still queued at reset is never run.
	Discarded bool  `json:"discarded,omitempty"`
	Err       error `json:"-"`
}

type job struct {
	session *Session
	prompt  string
	gen     uint64 // session generation at submit
	queued  time.Time
	done    chan *Reply
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithWorkers sets the pool size. Values below 1 are ignored.
func WithWorkers(n int) BridgeOption {
	return func(b *Bridge) {
		if n >= 1 {
			b.workers = n
		}
	}
}

// WithReplyTimeout bounds how long Submit waits. Zero waits forever.
func WithReplyTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.replyTimeout = d }
}

// WithBridgeLogger sets the logger.
func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = l }
}

// Bridge hands whole runs to a fixed pool of workers so callers block only on
// the final reply.
type Bridge struct {
	runner       Runner
	workers      int
	replyTimeout time.Duration
	logger       *slog.Logger

	jobs chan *job
	quit chan struct{}

	// ctx outlives any single Submit; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewBridge creates a stopped bridge; call Start before Submit.
func NewBridge(runner Runner, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		runner:       runner,
		workers:      DefaultWorkers,
		replyTimeout: DefaultReplyTimeout,
		logger:       slog.Default(),
		jobs:         make(chan *job),
		quit:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b
}

// Start launches the workers.
func (b *Bridge) Start() {
	b.startOnce.Do(func() {
		for i := 0; i < b.workers; i++ {
			b.wg.Add(1)
			go b.worker(i)
		}
		b.logger.Info("session bridge started", slog.Int("workers", b.workers))
	})
}

// Stop cancels in-flight runs and waits for the workers to exit.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.quit)
		b.cancel()
		b.wg.Wait()
		b.logger.Info("session bridge stopped")
	})
}

// Submit runs prompt for s and waits for the reply. Submissions for the same
// session are served one at a time in arrival order of slot acquisition.
// Cancelling ctx stops the wait but never the run once it is queued.
func (b *Bridge) Submit(ctx context.Context, s *Session, prompt string) (*Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.NewInvalidRequestError("prompt is empty")
	}
	gen := s.Generation()

	var timeout <-chan time.Time
	if b.replyTimeout > 0 {
		timer := time.NewTimer(b.replyTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.slot <- struct{}{}:
	case <-timeout:
		return nil, ErrReplyTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.quit:
		return nil, ErrStopped
	}

	j := &job{session: s, prompt: prompt, gen: gen, queued: time.Now(), done: make(chan *Reply, 1)}
	select {
	case b.jobs <- j:
	case <-timeout:
		<-s.slot
		return nil, ErrReplyTimeout
	case <-ctx.Done():
		<-s.slot
		return nil, ctx.Err()
	case <-b.quit:
		<-s.slot
		return nil, ErrStopped
	}

	select {
	case r := <-j.done:
		return r, nil
	case <-timeout:
		b.logger.Warn("reply timed out, run continues",
			slog.String("session_id", s.ID),
			slog.Duration("timeout", b.replyTimeout),
		)
		return nil, ErrReplyTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bridge) worker(id int) {
	defer b.wg.Done()
	for {
		select {
		case j := <-b.jobs:
			b.run(id, j)
		case <-b.quit:
			return
		}
	}
}

func (b *Bridge) run(worker int, j *job) {
	s := j.session
	reply := &Reply{}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("run panicked: %v", r)
			b.logger.Error("session run panicked",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
			reply = &Reply{Text: "Error: " + err.Error(), Status: orchestrator.StatusFailed, Err: err}
		}
		<-s.slot
		j.done <- reply
	}()

	conv, gen := s.snapshot()
	if gen != j.gen {
		reply.Discarded = true
		b.logger.Info("dropping prompt queued before reset",
			slog.String("session_id", s.ID),
			slog.Int("worker", worker),
		)
		return
	}
	res := b.runner.Run(b.ctx, conv, s.Env(), j.prompt)

	reply.Text = res.Text
	reply.Status = res.Status
	reply.Rounds = res.Rounds
	reply.ToolCalls = res.ToolCalls
	reply.Err = res.Err

	if !s.commit(gen, conv, j.prompt, res) {
		reply.Discarded = true
		b.logger.Info("discarding reply for reset session",
			slog.String("session_id", s.ID),
			slog.Int("worker", worker),
		)
		return
	}
	b.logger.Debug("session run committed",
		slog.String("session_id", s.ID),
		slog.Int("worker", worker),
		slog.Int64("queued_ms", time.Since(j.queued).Milliseconds()),
	)
}
