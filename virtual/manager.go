// Package virtual is a small virtual actor runtime: actors are activated on
// first use, restore their state from a StateStorage and persist it again
// when they are deactivated.
package virtual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/rickKoch/actorstate/actor"
	"github.com/rickKoch/actorstate/document"
	"github.com/rickKoch/actorstate/logging"
)

// StateStorage is the persistence surface the manager needs; storage.Extension implements it.
type StateStorage interface {
	ReadState(ctx context.Context, ref actor.Ref, state document.State) (bool, error)
	WriteState(ctx context.Context, ref actor.Ref, state document.State) error
	ClearState(ctx context.Context, ref actor.Ref, state document.State) error
}

// Actor is a user implementation. State is read before the first message
// and written on deactivation.
type Actor interface {
	State() document.State
	Receive(ctx context.Context, msg any) (any, error)
}

// Factory creates the in-memory instance of an actor.
type Factory func(ref actor.Ref) Actor

// ErrUnknownInterface is returned when no factory is registered for a reference.
var ErrUnknownInterface = errors.New("actorstate: no actor registered for interface")

// DefaultInactivity is how long an idle actor stays active.
const DefaultInactivity = 2 * time.Second

// Manager activates at most one instance per actor reference.
type Manager struct {
	mu         sync.Mutex
	factories  map[string]Factory
	active     map[string]*activation
	storage    StateStorage
	inactivity time.Duration
	log        logging.Logger
}

type Option func(*Manager)

func WithInactivity(d time.Duration) Option {
	return func(m *Manager) { m.inactivity = d }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a manager persisting through storage.
func NewManager(storage StateStorage, opts ...Option) *Manager {
	m := &Manager{
		factories:  make(map[string]Factory),
		active:     make(map[string]*activation),
		storage:    storage,
		inactivity: DefaultInactivity,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.Default()
	}
	return m
}

// Register adds or replaces the factory for an actor interface.
func (m *Manager) Register(iface string, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[iface] = f
}

// Active reports the number of activated actors.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Call delivers msg to the actor behind ref, activating it when needed, and
// waits for its reply.
func (m *Manager) Call(ctx context.Context, ref actor.Ref, msg any) (any, error) {
	c := call{ctx: ctx, msg: msg, reply: make(chan reply, 1)}
	for {
		a, err := m.activate(ref)
		if err != nil {
			return nil, err
		}
		if a.enqueue(c) {
			break
		}
		// the activation is shutting down; wait until its state is saved
		select {
		case <-a.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	select {
	case r := <-c.reply:
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deactivate persists and drops the activation of ref, if any.
func (m *Manager) Deactivate(ctx context.Context, ref actor.Ref) error {
	m.mu.Lock()
	a, ok := m.active[ref.String()]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return a.stop(ctx, false)
}

// Clear deletes the stored state of ref and drops its activation without
// saving it.
func (m *Manager) Clear(ctx context.Context, ref actor.Ref) error {
	m.mu.Lock()
	a, ok := m.active[ref.String()]
	f := m.factories[ref.Interface]
	m.mu.Unlock()
	if ok {
		return a.stop(ctx, true)
	}
	if f == nil {
		return fmt.Errorf("%w: %q", ErrUnknownInterface, ref.Interface)
	}
	return m.storage.ClearState(ctx, ref, f(ref).State())
}

// Shutdown deactivates every actor, saving their state concurrently. A
// failed save does not stop the others; all failures are reported.
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.each(func(a *activation) error { return a.stop(ctx, false) })
}

// Checkpoint writes the state of every active actor without deactivating it.
func (m *Manager) Checkpoint(ctx context.Context) error {
	return m.each(func(a *activation) error { return a.save(ctx) })
}

func (m *Manager) each(fn func(*activation) error) error {
	m.mu.Lock()
	all := make([]*activation, 0, len(m.active))
	for _, a := range m.active {
		all = append(all, a)
	}
	m.mu.Unlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs *multierror.Error
	)
	for _, a := range all {
		a := a
		g.Go(func() error {
			if err := fn(a); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", a.key, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs.ErrorOrNil()
}

func (m *Manager) activate(ref actor.Ref) (*activation, error) {
	if _, _, err := actor.Resolve(ref); err != nil {
		return nil, err
	}
	key := ref.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.active[key]; ok {
		return a, nil
	}
	f, ok := m.factories[ref.Interface]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterface, ref.Interface)
	}
	a := &activation{
		ref:    ref,
		key:    key,
		actor:  f(ref),
		signal: make(chan struct{}, 1),
		saveCh: make(chan request),
		stopCh: make(chan request),
		done:   make(chan struct{}),
	}
	m.active[key] = a
	go m.run(a)
	m.log.Debug("activated actor", "ref", key)
	return a, nil
}

func (m *Manager) remove(a *activation) {
	m.mu.Lock()
	if m.active[a.key] == a {
		delete(m.active, a.key)
	}
	m.mu.Unlock()
}

type call struct {
	ctx   context.Context
	msg   any
	reply chan reply
}

type reply struct {
	out any
	err error
}

// request asks the actor loop to save, or to stop and save or wipe.
type request struct {
	ctx   context.Context
	wipe  bool
	errCh chan error
}

type activation struct {
	ref    actor.Ref
	key    string
	actor  Actor
	mu     sync.Mutex
	closed bool
	queue  []call
	signal chan struct{}
	saveCh chan request
	stopCh chan request
	done   chan struct{}
}

func (a *activation) enqueue(c call) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.queue = append(a.queue, c)
	select {
	case a.signal <- struct{}{}:
	default:
	}
	return true
}

// take drains the queue; with seal set it also refuses further calls.
func (a *activation) take(seal bool) []call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.queue
	a.queue = nil
	if seal {
		a.closed = true
	}
	return out
}

// save asks the actor loop to write the state; deactivated actors were
// already saved.
func (a *activation) save(ctx context.Context) error {
	req := request{ctx: ctx, errCh: make(chan error, 1)}
	select {
	case a.saveCh <- req:
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *activation) stop(ctx context.Context, wipe bool) error {
	req := request{ctx: ctx, wipe: wipe, errCh: make(chan error, 1)}
	select {
	case a.stopCh <- req:
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(a *activation) {
	defer close(a.done)
	defer m.remove(a)

	if _, err := m.storage.ReadState(context.Background(), a.ref, a.actor.State()); err != nil {
		m.log.Error("actor state could not be restored", "ref", a.key, "error", err)
		for _, c := range a.take(true) {
			c.reply <- reply{err: err}
		}
		return
	}

	timer := time.NewTimer(m.inactivity)
	defer timer.Stop()
	for {
		select {
		case <-a.signal:
			for _, c := range a.take(false) {
				m.deliver(a, c)
			}
			timer.Reset(m.inactivity)
		case <-timer.C:
			pending := a.take(true)
			for _, c := range pending {
				m.deliver(a, c)
			}
			if err := m.storage.WriteState(context.Background(), a.ref, a.actor.State()); err != nil {
				m.log.Error("actor state could not be saved", "ref", a.key, "error", err)
			}
			m.log.Debug("deactivated idle actor", "ref", a.key)
			return
		case req := <-a.saveCh:
			req.errCh <- m.storage.WriteState(req.ctx, a.ref, a.actor.State())
		case req := <-a.stopCh:
			for _, c := range a.take(true) {
				m.deliver(a, c)
			}
			var err error
			if req.wipe {
				err = m.storage.ClearState(req.ctx, a.ref, a.actor.State())
			} else {
				err = m.storage.WriteState(req.ctx, a.ref, a.actor.State())
			}
			req.errCh <- err
			return
		}
	}
}

func (m *Manager) deliver(a *activation, c call) {
	if err := c.ctx.Err(); err != nil {
		c.reply <- reply{err: err}
		return
	}
	out, err := a.actor.Receive(c.ctx, c.msg)
	c.reply <- reply{out: out, err: err}
}
