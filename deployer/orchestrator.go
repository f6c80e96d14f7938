// Package deployer drives a contract deployment through its lifecycle:
//
//	IDLE -> COMPILING -> ESTIMATING -> SUBMITTING -> CONFIRMING -> VERIFYING -> DONE
//
// Any unfinished state may end in FAILED. A session whose transaction was sent but whose
// receipt was never observed, because the caller cancelled, ends in ABANDONED instead.
//
// Every stage runs as an audited operation, and every session reports its progress as an
// ordered event log. Fatal errors never escape a session: they become exactly one error event,
// the FAILED state, and a *StageError returned from Run.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/protobase/launchpad/chain/evm"
	"github.com/protobase/launchpad/compiler"
	"github.com/protobase/launchpad/facts"
	"github.com/protobase/launchpad/metrics"
	"github.com/protobase/launchpad/operations"
	"github.com/protobase/launchpad/pkg/logger"
	"github.com/protobase/launchpad/progress"
	"github.com/protobase/launchpad/verify"
)

// FallbackGasLimit is submitted with when the chain client cannot estimate a deployment.
const FallbackGasLimit uint64 = 3_000_000

// Runner drives a session to a terminal state.
type Runner interface {
	Run(ctx context.Context, s *Session) (*Result, error)
}

var _ Runner = (*Orchestrator)(nil)

// Orchestrator runs deployment sessions against a set of chains.
type Orchestrator struct {
	compiler         Compiler
	clients          map[uint64]evm.DeployClient
	verifiers        map[uint64]verify.Verifier
	locks            *SignerLocks
	facts            *facts.Bus
	metrics          *metrics.Pipeline
	lggr             logger.Logger
	minConfirmations uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClient registers the client of the chain it is connected to.
func WithClient(c evm.DeployClient) Option {
	return func(o *Orchestrator) { o.clients[c.ChainSelector()] = c }
}

// WithVerifier sets the source verifier of a chain. Chains without one skip verification.
func WithVerifier(chainSelector uint64, v verify.Verifier) Option {
	return func(o *Orchestrator) { o.verifiers[chainSelector] = v }
}

// WithSignerLocks shares submission locks with other orchestrators using the same accounts.
func WithSignerLocks(l *SignerLocks) Option {
	return func(o *Orchestrator) { o.locks = l }
}

// WithFacts publishes session outcomes on bus.
func WithFacts(bus *facts.Bus) Option {
	return func(o *Orchestrator) { o.facts = bus }
}

// WithMetrics records session and stage metrics.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(lggr logger.Logger) Option {
	return func(o *Orchestrator) { o.lggr = lggr }
}

// WithMinConfirmations sets the confirmation depth a deployment must reach. The default is 1.
func WithMinConfirmations(n uint64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.minConfirmations = n
		}
	}
}

// New returns an Orchestrator compiling with c.
func New(c Compiler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		compiler:         c,
		clients:          make(map[uint64]evm.DeployClient),
		verifiers:        make(map[uint64]verify.Verifier),
		locks:            NewSignerLocks(),
		lggr:             logger.Nop(),
		minConfirmations: 1,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Deploy runs a new session for req. Subscribers receive every progress event in order. The
// session is returned even when the deployment failed, so that its log can be displayed.
func (o *Orchestrator) Deploy(ctx context.Context, req Request, subscribers ...func(progress.Event)) (*Session, error) {
	s := NewSession(req)
	for _, fn := range subscribers {
		s.Subscribe(fn)
	}

	_, err := o.Run(ctx, s)

	return s, err
}

// Run drives s to a terminal state and returns its result. Cancelling ctx is honoured between
// transitions only: a transaction being signed is never interrupted. Cancellation after the
// transaction was sent and before its receipt was seen abandons the session.
func (o *Orchestrator) Run(ctx context.Context, s *Session) (*Result, error) {
	if err := s.Begin(); err != nil {
		return nil, err
	}

	req := s.Request()
	r := &run{
		o:   o,
		s:   s,
		ctx: ctx,
		lggr: o.lggr.With(
			"session", s.ID().String(),
			"chain", evm.ChainName(req.ChainSelector),
		),
	}

	res, err := r.execute()
	o.finish(r, res, err)

	return res, err
}

func (o *Orchestrator) finish(r *run, res *Result, err error) {
	req := r.s.Request()
	o.metrics.SessionEnded(metrics.ModeLive, r.s.State().String())

	if err == nil {
		r.lggr.Infow("Deployment succeeded",
			"contract", res.ContractName,
			"address", res.ContractAddress.Hex(),
			"tx", res.TxHash.Hex(),
		)
		o.facts.PublishSucceeded(facts.DeploymentSucceeded{
			SessionID:       r.s.ID(),
			ChainSelector:   res.ChainSelector,
			ContractName:    res.ContractName,
			ContractAddress: res.ContractAddress,
			TxHash:          res.TxHash,
			At:              time.Now(),
		})

		return
	}

	var serr *StageError
	stage := r.s.State().String()
	reason := err.Error()
	if errors.As(err, &serr) {
		stage = serr.Stage.String()
		reason = serr.Err.Error()
	}

	r.lggr.Errorw("Deployment failed", "stage", stage, "state", r.s.State(), "error", reason)
	o.facts.PublishFailed(facts.DeploymentFailed{
		SessionID:     r.s.ID(),
		ChainSelector: req.ChainSelector,
		ContractName:  req.ContractName,
		Stage:         stage,
		Reason:        reason,
		Abandoned:     r.s.State() == StateAbandoned,
		At:            time.Now(),
	})
}

// run holds the intermediate values of one session.
type run struct {
	o    *Orchestrator
	s    *Session
	ctx  context.Context //nolint:containedctx // a run lives exactly as long as one Run call
	lggr logger.Logger

	artifact *compiler.Artifact
	client   evm.DeployClient
	signer   common.Address
	gasLimit uint64
	release  func()
	txHash   common.Hash
	txSent   bool
	receipt  *evm.Receipt
	verified bool
}

func (r *run) execute() (*Result, error) {
	for _, step := range []func() error{r.compile, r.estimate, r.submit, r.confirm, r.verify} {
		if err := step(); err != nil {
			return nil, r.terminate(err)
		}
	}

	return r.complete()
}

func (r *run) compile() error {
	if err := r.advance(StateCompiling); err != nil {
		return err
	}
	r.emit(progress.LevelInfo, "Compiling contract...")

	req := r.s.Request()
	report, err := operations.ExecuteOperation(r.bundle(r.ctx), compileOp, r.o.compiler,
		compileInput{Source: req.Source, ContractName: req.ContractName})
	if err != nil {
		return err
	}

	for _, w := range report.Output.Warnings {
		r.emit(progress.LevelWarn, "Compiler warning: %s", w)
	}

	r.artifact = report.Output.Artifact
	code, _ := r.artifact.BytecodeBytes()
	r.emit(progress.LevelSuccess, "Artifacts generated for %s (%d bytes)", r.artifact.ContractName, len(code))

	return nil
}

func (r *run) estimate() error {
	if err := r.advance(StateEstimating); err != nil {
		return err
	}

	req := r.s.Request()
	client, ok := r.o.clients[req.ChainSelector]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNetwork, evm.ChainName(req.ChainSelector))
	}
	r.client = client

	report, err := operations.ExecuteOperation(r.bundle(r.ctx), resolveSignerOp, client, operations.EmptyInput{})
	if err != nil {
		return err
	}
	r.signer = report.Output
	r.emit(progress.LevelInfo, "Deploying from %s to %s", r.signer.Hex(), evm.ChainName(req.ChainSelector))

	r.emit(progress.LevelInfo, "Estimating gas...")
	estimator, ok := client.(evm.GasEstimator)
	if !ok {
		r.gasLimit = FallbackGasLimit
		r.emit(progress.LevelInfo, "Gas estimation unavailable, assuming %d", FallbackGasLimit)

		return nil
	}

	gasReport, err := operations.ExecuteOperation(r.bundle(r.ctx), estimateGasOp, estimator, r.deployInput())
	if err != nil {
		r.lggr.Warnw("Gas estimation failed", "error", err)
		r.gasLimit = FallbackGasLimit
		r.emit(progress.LevelWarn, "Gas estimation failed, assuming %d: %v", FallbackGasLimit, err)

		return nil
	}
	r.gasLimit = gasReport.Output
	r.emit(progress.LevelInfo, "Estimated gas: %d", gasReport.Output)

	return nil
}

func (r *run) submit() error {
	if err := r.ctx.Err(); err != nil {
		return err
	}

	release, err := r.o.locks.Acquire(r.ctx, r.client.ChainSelector(), r.signer)
	if err != nil {
		return err
	}
	r.release = release

	if err = r.advance(StateSubmitting); err != nil {
		return err
	}
	r.emit(progress.LevelInfo, "Submitting transaction, please confirm it in your wallet...")

	// Signing may wait on a person; it is never interrupted halfway.
	report, err := operations.ExecuteOperation(r.bundle(context.WithoutCancel(r.ctx)), submitOp, r.client, r.deployInput())
	if err != nil {
		return err
	}
	r.txHash = report.Output
	r.txSent = true

	if err = r.advance(StateConfirming); err != nil {
		return err
	}
	r.releaseSigner()
	r.emit(progress.LevelSuccess, "Transaction sent: %s", progress.Abbrev(r.txHash.Hex()))

	return nil
}

func (r *run) confirm() error {
	r.emit(progress.LevelInfo, "Waiting for %d confirmation(s)...", r.o.minConfirmations)

	report, err := operations.ExecuteOperation(r.bundle(r.ctx), confirmOp, r.client,
		confirmInput{TxHash: r.txHash, MinConfirmations: r.o.minConfirmations})
	if err != nil {
		return err
	}

	receipt := report.Output
	r.receipt = receipt
	if receipt.ContractAddress == nil {
		return &NoContractAddressError{
			TxHash:       r.txHash,
			BlockNumber:  receipt.BlockNumber,
			Status:       receipt.Status,
			RevertReason: receipt.RevertReason,
		}
	}

	// The receipt is known, so cancellation from here on only skips verification.
	if err = r.enter(StateVerifying); err != nil {
		return err
	}
	r.emit(progress.LevelSuccess, "Contract deployed at %s in block %d (gas used: %d)",
		receipt.ContractAddress.Hex(), receipt.BlockNumber, receipt.GasUsed)

	return nil
}

func (r *run) verify() error {
	req := r.s.Request()
	verifier, ok := r.o.verifiers[req.ChainSelector]

	switch {
	case r.ctx.Err() != nil:
		r.emit(progress.LevelInfo, "Source verification skipped: %v", r.ctx.Err())
	case !ok:
		r.emit(progress.LevelInfo, "Source verification skipped: no block explorer configured for %s",
			evm.ChainName(req.ChainSelector))
	default:
		r.emit(progress.LevelInfo, "Verifying source on block explorer...")
		if err := r.verifySource(verifier); err != nil {
			verr := &VerificationError{Err: err}
			r.lggr.Warnw("Source verification failed", "error", err)
			r.emit(progress.LevelWarn, "%s", verr)

			return nil
		}
		r.verified = true
		r.emit(progress.LevelSuccess, "Source verified on block explorer")
	}

	return nil
}

func (r *run) verifySource(v verify.Verifier) error {
	req := r.s.Request()

	args, err := evm.EncodeConstructorArgs(r.artifact, req.ConstructorArgs)
	if err != nil {
		return err
	}

	_, err = operations.ExecuteOperation(r.bundle(r.ctx), verifyOp, v, verify.Request{
		Address:         *r.receipt.ContractAddress,
		Source:          req.Source,
		ContractName:    r.artifact.ContractName,
		CompilerVersion: r.artifact.CompilerVersion,
		OptimizerRuns:   int(r.artifact.OptimizerRuns), //nolint:gosec // pinned to 200
		EVMVersion:      compiler.EVMVersion,
		ConstructorArgs: args,
	})

	return err
}

func (r *run) complete() (*Result, error) {
	res := Result{
		TxHash:          r.txHash,
		ContractAddress: *r.receipt.ContractAddress,
		BlockNumber:     r.receipt.BlockNumber,
		GasUsed:         r.receipt.GasUsed,
		ChainSelector:   r.client.ChainSelector(),
		ContractName:    r.artifact.ContractName,
		Verified:        r.verified,
	}

	r.emit(progress.LevelSuccess, "Deployment complete")
	last := r.lastTransition()
	if err := r.s.Complete(res); err != nil {
		return nil, r.terminate(err)
	}
	r.o.metrics.StageCompleted(last.State.String(), time.Since(last.At))

	return &res, nil
}

// terminate ends the session with err and returns the session's terminal error.
func (r *run) terminate(err error) error {
	r.releaseSigner()

	last := r.lastTransition()
	serr := &StageError{Stage: last.State, Err: err}

	if r.txSent && r.receipt == nil && r.ctx.Err() != nil {
		serr.Err = fmt.Errorf("%w: transaction %s: %w", ErrAbandoned, r.txHash.Hex(), err)
		r.emit(progress.LevelWarn, "Deployment abandoned after transaction %s was sent, its outcome is unknown: %v",
			r.txHash.Hex(), err)
		if aerr := r.s.Abandon(serr); aerr != nil {
			r.lggr.Errorw("Failed to abandon session", "error", aerr)
		}
	} else {
		r.emit(progress.LevelError, "%s", failureMessage(err))
		if ferr := r.s.Fail(serr); ferr != nil {
			r.lggr.Errorw("Failed to fail session", "error", ferr)
		}
	}
	r.o.metrics.StageCompleted(last.State.String(), time.Since(last.At))

	return serr
}

// advance enters the next state unless the caller has cancelled.
func (r *run) advance(to State) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}

	return r.enter(to)
}

func (r *run) enter(to State) error {
	last := r.lastTransition()
	if err := r.s.Advance(to); err != nil {
		return err
	}
	r.o.metrics.StageCompleted(last.State.String(), time.Since(last.At))
	r.lggr.Infow("Session state changed", "from", last.State.String(), "to", to.String())

	return nil
}

func (r *run) lastTransition() Transition {
	ts := r.s.Transitions()

	return ts[len(ts)-1]
}

func (r *run) releaseSigner() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}

func (r *run) deployInput() deployInput {
	return deployInput{Artifact: r.artifact, Args: r.s.Request().ConstructorArgs, GasLimit: r.gasLimit}
}

func (r *run) bundle(ctx context.Context) operations.Bundle {
	return operations.NewBundle(func() context.Context { return ctx }, r.lggr, r.s.reporter)
}

func (r *run) emit(level progress.Level, format string, args ...any) {
	r.s.Emit(progress.NewEvent(level, format, args...))
}

func failureMessage(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Deployment cancelled: " + err.Error()
	}

	return err.Error()
}
