// Package storage is the actor state storage extension: it resolves where
// an actor's state lives, maps it to a document and performs single
// document reads, writes and deletes against the configured store.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rickKoch/actorstate/actor"
	"github.com/rickKoch/actorstate/document"
	"github.com/rickKoch/actorstate/logging"
	"github.com/rickKoch/actorstate/persistence"
	"github.com/rickKoch/actorstate/tracing"
)

type lifecycle int

const (
	unstarted lifecycle = iota
	started
	stopped
)

func (l lifecycle) String() string {
	switch l {
	case unstarted:
		return "unstarted"
	case started:
		return "started"
	}
	return "stopped"
}

// Option customizes an Extension.
type Option func(*Extension)

// WithConnector replaces the connector chosen from Config.Backend.
func WithConnector(c persistence.Connector) Option {
	return func(e *Extension) { e.connector = c }
}

func WithLogger(l logging.Logger) Option {
	return func(e *Extension) { e.log = l }
}

func WithTracer(t tracing.Tracer) Option {
	return func(e *Extension) { e.tracer = t }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Extension) { e.metrics = m }
}

// WithReferences registers the actor interface types that may appear as
// reference-valued fields. The registry is frozen at Start.
func WithReferences(fn func(*document.RefRegistry)) Option {
	return func(e *Extension) { e.refs = append(e.refs, fn) }
}

// session is everything Start produces; it is immutable until Stop drops it.
type session struct {
	conn   persistence.Conn
	db     persistence.Database
	mapper *document.Mapper
}

// Extension persists actor state. Data operations may run concurrently;
// Stop waits for in-flight operations before closing the connection.
type Extension struct {
	cfg       Config
	connector persistence.Connector
	refs      []func(*document.RefRegistry)
	log       logging.Logger
	tracer    tracing.Tracer
	metrics   *Metrics

	mu    sync.RWMutex
	state lifecycle
	sess  *session
}

// New returns an unstarted extension for cfg.
func New(cfg Config, opts ...Option) *Extension {
	e := &Extension{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.Default()
	}
	e.log = logging.Named(e.log, cfg.Name)
	if e.tracer == nil {
		e.tracer = tracing.NoopTracer{}
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

// Name is the configured logical name of this extension instance.
func (e *Extension) Name() string { return e.cfg.Name }

// Start connects to the store and builds the mapper.
func (e *Extension) Start(ctx context.Context) (err error) {
	ctx, span := e.tracer.Start(ctx, "actorstate.Start")
	defer func(begin time.Time) {
		span.End(err)
		e.metrics.observe(e.cfg.Name, opStart, outcome(err), begin)
	}(time.Now())

	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case started:
		return opError(opStart, nil, ErrAlreadyStarted, nil)
	case stopped:
		return opError(opStart, nil, ErrNotConnected, nil)
	}

	if err := e.cfg.Validate(); err != nil {
		return opError(opStart, nil, ErrConnection, err)
	}
	var endpoints []persistence.Endpoint
	if e.cfg.dialsEndpoints() {
		if endpoints, err = e.cfg.Endpoints(); err != nil {
			return opError(opStart, nil, ErrConnection, err)
		}
	}
	connector := e.connector
	if connector == nil {
		if connector, err = e.cfg.Connector(); err != nil {
			return opError(opStart, nil, ErrConnection, err)
		}
	}
	creds := e.cfg.Credentials()
	if creds == nil && e.cfg.Password != "" {
		e.log.Warn("connecting without credentials: password is set but user is empty")
	}

	conn, err := connector.Connect(ctx, endpoints, creds)
	if err != nil {
		e.log.Error("connect failed", "endpoints", endpoints, "error", err)
		return opError(opStart, nil, ErrConnection, err)
	}

	refs := document.NewRefRegistry()
	for _, fn := range e.refs {
		fn(refs)
	}
	e.sess = &session{
		conn:   conn,
		db:     conn.Database(e.cfg.Database),
		mapper: document.NewMapper(refs),
	}
	e.state = started
	e.log.Info("storage extension started", "database", e.cfg.Database, "endpoints", endpoints)
	return nil
}

// Stop closes the connection. It is terminal: the extension cannot be
// started again and data operations fail with ErrNotConnected.
func (e *Extension) Stop(ctx context.Context) (err error) {
	ctx, span := e.tracer.Start(ctx, "actorstate.Stop")
	defer func(begin time.Time) {
		span.End(err)
		e.metrics.observe(e.cfg.Name, opStop, outcome(err), begin)
	}(time.Now())

	e.mu.Lock()
	sess, prev := e.sess, e.state
	e.sess, e.state = nil, stopped
	e.mu.Unlock()

	if prev != started {
		return nil
	}
	if err := sess.conn.Close(ctx); err != nil {
		return opError(opStop, nil, ErrConnection, err)
	}
	e.log.Info("storage extension stopped")
	return nil
}

// target resolves ref against the live session. Callers hold e.mu for reading.
func (e *Extension) target(op string, ref actor.Ref) (*session, persistence.Collection, string, error) {
	if e.state != started {
		return nil, nil, "", opError(op, &ref, ErrNotConnected, nil)
	}
	collection, id, err := actor.Resolve(ref)
	if err != nil {
		return nil, nil, "", opError(op, &ref, ErrInvalidReference, err)
	}
	return e.sess, e.sess.db.Collection(collection), id, nil
}

// ReadState merges the stored state of ref into state. It reports false,
// leaving state untouched, when nothing is stored.
func (e *Extension) ReadState(ctx context.Context, ref actor.Ref, state document.State) (found bool, err error) {
	ctx, span := e.tracer.Start(ctx, "actorstate.ReadState")
	defer func(begin time.Time) {
		span.End(err)
		res := outcome(err)
		if err == nil && !found {
			res = outcomeNotFound
		}
		e.metrics.observe(e.cfg.Name, opRead, res, begin)
	}(time.Now())

	e.mu.RLock()
	defer e.mu.RUnlock()
	sess, coll, id, err := e.target(opRead, ref)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, opError(opRead, &ref, ErrDeserialization, document.ErrNilState)
	}

	doc, ok, err := coll.FindByID(ctx, id)
	if err != nil {
		return false, opError(opRead, &ref, ErrConnection, err)
	}
	if !ok {
		e.log.Debug("no stored state", "ref", ref.String())
		return false, nil
	}
	if err := sess.mapper.MergeInto(state, doc); err != nil {
		e.log.Error("stored state cannot be merged", "ref", ref.String(), "schema", state.Schema(), "error", err)
		return false, opError(opRead, &ref, ErrDeserialization, err)
	}
	return true, nil
}

// WriteState replaces the stored state of ref with the current fields of state.
func (e *Extension) WriteState(ctx context.Context, ref actor.Ref, state document.State) (err error) {
	ctx, span := e.tracer.Start(ctx, "actorstate.WriteState")
	defer func(begin time.Time) {
		span.End(err)
		e.metrics.observe(e.cfg.Name, opWrite, outcome(err), begin)
	}(time.Now())

	e.mu.RLock()
	defer e.mu.RUnlock()
	sess, coll, id, err := e.target(opWrite, ref)
	if err != nil {
		return err
	}
	doc, err := sess.mapper.ToDocument(state)
	if err != nil {
		return opError(opWrite, &ref, ErrSerialization, err)
	}
	if err := coll.UpsertByID(ctx, id, doc.WithID(id)); err != nil {
		return opError(opWrite, &ref, ErrConnection, err)
	}
	e.log.Debug("state written", "ref", ref.String())
	return nil
}

// ClearState deletes the stored state of ref. Clearing a missing document
// succeeds. state is accepted for symmetry and not consulted.
func (e *Extension) ClearState(ctx context.Context, ref actor.Ref, _ document.State) (err error) {
	ctx, span := e.tracer.Start(ctx, "actorstate.ClearState")
	defer func(begin time.Time) {
		span.End(err)
		e.metrics.observe(e.cfg.Name, opClear, outcome(err), begin)
	}(time.Now())

	e.mu.RLock()
	defer e.mu.RUnlock()
	_, coll, id, err := e.target(opClear, ref)
	if err != nil {
		return err
	}
	if err := coll.RemoveByID(ctx, id); err != nil {
		return opError(opClear, &ref, ErrConnection, err)
	}
	e.log.Debug("state cleared", "ref", ref.String())
	return nil
}

func (e *Extension) StartAsync(ctx context.Context) *Future[struct{}] {
	return Go(func() (struct{}, error) { return struct{}{}, e.Start(ctx) })
}

func (e *Extension) StopAsync(ctx context.Context) *Future[struct{}] {
	return Go(func() (struct{}, error) { return struct{}{}, e.Stop(ctx) })
}

func (e *Extension) ReadStateAsync(ctx context.Context, ref actor.Ref, state document.State) *Future[bool] {
	return Go(func() (bool, error) { return e.ReadState(ctx, ref, state) })
}

func (e *Extension) WriteStateAsync(ctx context.Context, ref actor.Ref, state document.State) *Future[struct{}] {
	return Go(func() (struct{}, error) { return struct{}{}, e.WriteState(ctx, ref, state) })
}

func (e *Extension) ClearStateAsync(ctx context.Context, ref actor.Ref, state document.State) *Future[struct{}] {
	return Go(func() (struct{}, error) { return struct{}{}, e.ClearState(ctx, ref, state) })
}
