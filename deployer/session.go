package deployer

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/protobase/launchpad/operations"
	"github.com/protobase/launchpad/progress"
)

// Request describes one deployment attempt. It is never mutated once a session holds it.
type Request struct {
	// Source is the Solidity source text.
	Source string `json:"source"`
	// ContractName selects the contract to deploy when the source defines several.
	ContractName string `json:"contractName,omitempty"`
	// ConstructorArgs are the constructor arguments in declaration order.
	ConstructorArgs []any `json:"constructorArgs,omitempty"`
	// ChainSelector identifies the target network.
	ChainSelector uint64 `json:"chainSelector"`
}

// Result is the outcome of a session that reached DONE.
type Result struct {
	TxHash          common.Hash    `json:"transactionHash"`
	ContractAddress common.Address `json:"contractAddress"`
	BlockNumber     uint64         `json:"blockNumber"`
	GasUsed         uint64         `json:"gasUsed"`
	ChainSelector   uint64         `json:"chainSelector"`
	ContractName    string         `json:"contractName"`
	Verified        bool           `json:"verified"`
	Simulated       bool           `json:"simulated"`
}

// Transition records when a session entered a state.
type Transition struct {
	State State
	At    time.Time
}

// Session is a single-use deployment attempt. It owns the append-only progress log, the current
// state, and either the Result or the terminal error. All methods are safe for concurrent use;
// the state is only ever changed by the driver running the session.
type Session struct {
	id       uuid.UUID
	request  Request
	log      *progress.Log
	reporter *operations.MemoryReporter

	mu          sync.RWMutex
	started     bool
	transitions []Transition
	result      *Result
	err         error
	done        chan struct{}
}

var _ progress.Channel = (*Session)(nil)

// NewSession returns an IDLE session for req.
func NewSession(req Request) *Session {
	req.ConstructorArgs = append([]any(nil), req.ConstructorArgs...)

	return &Session{
		id:          uuid.New(),
		request:     req,
		log:         progress.NewLog(),
		reporter:    operations.NewMemoryReporter(),
		transitions: []Transition{{State: StateIdle, At: time.Now()}},
		done:        make(chan struct{}),
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Request returns the request the session was created for.
func (s *Session) Request() Request { return s.request }

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.transitions[len(s.transitions)-1].State
}

// States returns every state the session has been in, in order, starting with IDLE.
func (s *Session) States() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]State, len(s.transitions))
	for i, t := range s.transitions {
		states[i] = t.State
	}

	return states
}

// Transitions returns every state the session has been in together with when it was entered.
func (s *Session) Transitions() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Transition, len(s.transitions))
	copy(out, s.transitions)

	return out
}

// Result returns the result. It is nil unless the session is DONE.
func (s *Session) Result() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.result == nil {
		return nil
	}
	r := *s.result

	return &r
}

// Err returns the terminal error. It is nil unless the session is FAILED or ABANDONED.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.err
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Emit appends e to the session's progress log and delivers it to the subscribers.
func (s *Session) Emit(e progress.Event) { s.log.Emit(e) }

// Events returns a copy of the progress log.
func (s *Session) Events() []progress.Event { return s.log.Events() }

// Subscribe registers fn for every event emitted from now on.
func (s *Session) Subscribe(fn func(progress.Event)) (unsubscribe func()) {
	return s.log.Subscribe(fn)
}

// Reports returns the audit reports of the stages executed so far.
func (s *Session) Reports() []operations.Report[any, any] {
	reports, _ := s.reporter.GetReports()

	return reports
}

// Begin claims the session for a driver. It fails with ErrSessionUsed on every call but the
// first.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrSessionUsed
	}
	s.started = true

	return nil
}

// Advance moves the session to the next state of the pipeline. DONE, FAILED and ABANDONED are
// reached through Complete, Fail and Abandon.
func (s *Session) Advance(to State) error {
	if to.IsTerminal() {
		return &InvalidTransitionError{From: s.State(), To: to}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transitionLocked(to)
}

// Complete attaches res and moves the session from VERIFYING to DONE.
func (s *Session) Complete(res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(StateDone); err != nil {
		return err
	}
	s.result = &res
	close(s.done)

	return nil
}

// Fail attaches err and moves the session to FAILED.
func (s *Session) Fail(err error) error {
	return s.terminate(StateFailed, err)
}

// Abandon attaches err and moves the session to ABANDONED.
func (s *Session) Abandon(err error) error {
	return s.terminate(StateAbandoned, err)
}

func (s *Session) terminate(to State, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(to); err != nil {
		return err
	}
	s.err = err
	close(s.done)

	return nil
}

func (s *Session) transitionLocked(to State) error {
	from := s.transitions[len(s.transitions)-1].State
	if !s.started || !canTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	s.transitions = append(s.transitions, Transition{State: to, At: time.Now()})

	return nil
}

