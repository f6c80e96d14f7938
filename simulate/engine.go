// Package simulate runs deployment sessions without a chain. A scripted list of steps is replayed
// with randomized delays, and the session ends with a result built from synthetic identifiers.
//
// Unlike the deployer.Orchestrator the engine has no failure modes of its own: a simulated
// session always reaches DONE unless the caller cancels it, in which case it ends in FAILED.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"

	"github.com/protobase/launchpad/deployer"
	"github.com/protobase/launchpad/facts"
	"github.com/protobase/launchpad/metrics"
	"github.com/protobase/launchpad/pkg/logger"
	"github.com/protobase/launchpad/progress"
)

const (
	DefaultMinDelay = 500 * time.Millisecond
	DefaultMaxDelay = 2 * time.Second
)

// Sleeper pauses for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

var _ deployer.Runner = (*Engine)(nil)

// Engine replays a Script for every session it runs. It is safe for concurrent use.
type Engine struct {
	script   Script
	minDelay time.Duration
	maxDelay time.Duration
	sleep    Sleeper
	facts    *facts.Bus
	metrics  *metrics.Pipeline
	lggr     logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithScript replaces the default script.
func WithScript(sc Script) Option {
	return func(e *Engine) { e.script = sc }
}

// WithDelays sets the range each step's delay is drawn from.
func WithDelays(minDelay, maxDelay time.Duration) Option {
	return func(e *Engine) {
		e.minDelay = minDelay
		e.maxDelay = maxDelay
	}
}

// WithSeed makes the synthetic identifiers and delays reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithRand sets the random source of identifiers and delays.
func WithRand(src rand.Source) Option {
	return func(e *Engine) { e.rng = rand.New(src) }
}

// WithSleeper replaces the timer based sleeper.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// WithFacts publishes session outcomes on bus.
func WithFacts(bus *facts.Bus) Option {
	return func(e *Engine) { e.facts = bus }
}

// WithMetrics records session and stage metrics.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(lggr logger.Logger) Option {
	return func(e *Engine) { e.lggr = lggr }
}

// New returns an Engine replaying DefaultScript unless configured otherwise.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		script:   DefaultScript(),
		minDelay: DefaultMinDelay,
		maxDelay: DefaultMaxDelay,
		sleep:    sleepCtx,
		lggr:     logger.Nop(),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // synthetic values only
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.minDelay < 0 || e.maxDelay < e.minDelay {
		return nil, fmt.Errorf("invalid delay range [%s, %s]", e.minDelay, e.maxDelay)
	}
	if err := e.script.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// Deploy runs a new simulated session for req. Subscribers receive every progress event in order.
func (e *Engine) Deploy(ctx context.Context, req deployer.Request, subscribers ...func(progress.Event)) (*deployer.Session, error) {
	s := deployer.NewSession(req)
	for _, fn := range subscribers {
		s.Subscribe(fn)
	}

	_, err := e.Run(ctx, s)

	return s, err
}

// Run replays the script on s. Exactly one event is emitted per step, then the session is
// completed with a Result carrying the same identifiers the steps displayed.
func (e *Engine) Run(ctx context.Context, s *deployer.Session) (*deployer.Result, error) {
	if err := s.Begin(); err != nil {
		return nil, err
	}

	req := s.Request()
	r := &run{
		e:   e,
		s:   s,
		ctx: ctx,
		ids: e.identifiers(req.ChainSelector),
		lggr: e.lggr.With(
			"session", s.ID().String(),
			"simulated", true,
		),
	}

	res, err := r.execute()
	e.finish(r, res, err)

	return res, err
}

// identifiers draws the synthetic values of one session.
func (e *Engine) identifiers(chainSelector uint64) Identifiers {
	e.mu.Lock()
	defer e.mu.Unlock()

	return newIdentifiers(e.rng, chainSelector)
}

func (e *Engine) delay() time.Duration {
	if e.maxDelay == e.minDelay {
		return e.minDelay
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.minDelay + time.Duration(e.rng.Int64N(int64(e.maxDelay-e.minDelay)+1))
}

func (e *Engine) finish(r *run, res *deployer.Result, err error) {
	req := r.s.Request()
	e.metrics.SessionEnded(metrics.ModeSimulated, r.s.State().String())

	if err == nil {
		r.lggr.Infow("Simulated deployment succeeded",
			"contract", res.ContractName,
			"address", res.ContractAddress.Hex(),
			"tx", res.TxHash.Hex(),
		)
		e.facts.PublishSucceeded(facts.DeploymentSucceeded{
			SessionID:       r.s.ID(),
			ChainSelector:   res.ChainSelector,
			ContractName:    res.ContractName,
			ContractAddress: res.ContractAddress,
			TxHash:          res.TxHash,
			Simulated:       true,
			At:              time.Now(),
		})

		return
	}

	stage := r.s.State().String()
	reason := err.Error()
	var serr *deployer.StageError
	if errors.As(err, &serr) {
		stage = serr.Stage.String()
		reason = serr.Err.Error()
	}

	r.lggr.Warnw("Simulated deployment stopped", "stage", stage, "error", reason)
	e.facts.PublishFailed(facts.DeploymentFailed{
		SessionID:     r.s.ID(),
		ChainSelector: req.ChainSelector,
		ContractName:  req.ContractName,
		Stage:         stage,
		Reason:        reason,
		Simulated:     true,
		At:            time.Now(),
	})
}

type run struct {
	e    *Engine
	s    *deployer.Session
	ctx  context.Context //nolint:containedctx // a run lives exactly as long as one Run call
	ids  Identifiers
	lggr logger.Logger
}

func (r *run) execute() (*deployer.Result, error) {
	if err := r.walk(deployer.StateCompiling); err != nil {
		return nil, r.terminate(err)
	}

	for i, step := range r.e.script {
		if err := r.e.sleep(r.ctx, r.e.delay()); err != nil {
			return nil, r.terminate(err)
		}
		if err := r.walk(step.Stage); err != nil {
			return nil, r.terminate(err)
		}

		msg, err := step.render(r.ids)
		if err != nil {
			return nil, r.terminate(fmt.Errorf("step %d: %w", i+1, err))
		}
		r.s.Emit(progress.Event{Message: msg, Level: step.Level, Timestamp: time.Now()})
	}

	if err := r.walk(deployer.StateVerifying); err != nil {
		return nil, r.terminate(err)
	}

	req := r.s.Request()
	res := deployer.Result{
		TxHash:          r.ids.TxHash,
		ContractAddress: r.ids.ContractAddress,
		BlockNumber:     r.ids.BlockNumber,
		GasUsed:         r.ids.GasUsed,
		ChainSelector:   req.ChainSelector,
		ContractName:    contractName(req),
		Simulated:       true,
	}

	last := r.lastTransition()
	if err := r.s.Complete(res); err != nil {
		return nil, r.terminate(err)
	}
	r.e.metrics.StageCompleted(last.State.String(), time.Since(last.At))

	return &res, nil
}

// walk advances the session one state at a time until it reaches to. States at or behind the
// current one are a no-op.
func (r *run) walk(to deployer.State) error {
	for next := r.s.State() + 1; next <= to; next++ {
		last := r.lastTransition()
		if err := r.s.Advance(next); err != nil {
			return err
		}
		r.e.metrics.StageCompleted(last.State.String(), time.Since(last.At))
		r.lggr.Debugw("Session state changed", "from", last.State.String(), "to", next.String())
	}

	return nil
}

func (r *run) terminate(err error) error {
	last := r.lastTransition()
	serr := &deployer.StageError{Stage: last.State, Err: err}

	msg := err.Error()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		msg = "Deployment cancelled: " + msg
	}
	r.s.Emit(progress.NewEvent(progress.LevelError, "%s", msg))

	if ferr := r.s.Fail(serr); ferr != nil {
		r.lggr.Errorw("Failed to fail session", "error", ferr)
	}
	r.e.metrics.StageCompleted(last.State.String(), time.Since(last.At))

	return serr
}

func (r *run) lastTransition() deployer.Transition {
	ts := r.s.Transitions()

	return ts[len(ts)-1]
}

var contractDecl = regexp.MustCompile(`(?m)^\s*contract\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// contractName is the requested contract, or else the first contract declared in the source.
func contractName(req deployer.Request) string {
	if req.ContractName != "" {
		return req.ContractName
	}
	if m := contractDecl.FindStringSubmatch(req.Source); m != nil {
		return m[1]
	}

	return "Contract"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
