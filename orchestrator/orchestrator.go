// Package orchestrator wires a storage extension, a virtual actor manager
// and a checkpoint schedule into one unit with a single lifecycle.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/rickKoch/actorstate/actor"
	"github.com/rickKoch/actorstate/logging"
	"github.com/rickKoch/actorstate/scheduler"
	"github.com/rickKoch/actorstate/storage"
	"github.com/rickKoch/actorstate/tracing"
	"github.com/rickKoch/actorstate/virtual"
)

// CheckpointJobID identifies the periodic checkpoint in the scheduler.
const CheckpointJobID = "checkpoint"

// Config is the full configuration of an Orchestrator.
type Config struct {
	Storage    storage.Config `mapstructure:"storage"`
	Inactivity time.Duration  `mapstructure:"inactivity"`
	// Checkpoint periodically writes every active actor's state.
	Checkpoint scheduler.Job `mapstructure:"checkpoint"`
}

// DefaultConfig returns the defaults applied before decoding.
func DefaultConfig() Config {
	return Config{
		Storage:    storage.DefaultConfig(),
		Inactivity: virtual.DefaultInactivity,
		Checkpoint: scheduler.Job{
			ID:             CheckpointJobID,
			CronExpression: "@every 1m",
			Timeout:        30 * time.Second,
		},
	}
}

// DecodeConfig overlays raw onto DefaultConfig. Durations accept strings
// such as "5s"; unknown keys are an error.
func DecodeConfig(raw map[string]any) (Config, error) {
	cfg := DefaultConfig()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("orchestrator: decode config: %w", err)
	}
	cfg.Checkpoint.ID = CheckpointJobID
	return cfg, nil
}

type Option func(*Orchestrator)

func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithTracer(t tracing.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithStorageOptions passes options through to storage.New.
func WithStorageOptions(opts ...storage.Option) Option {
	return func(o *Orchestrator) { o.storageOpts = append(o.storageOpts, opts...) }
}

// Orchestrator owns the storage extension and the actors persisted through it.
type Orchestrator struct {
	cfg         Config
	log         logging.Logger
	tracer      tracing.Tracer
	storageOpts []storage.Option

	ext   *storage.Extension
	mgr   *virtual.Manager
	sched *scheduler.Scheduler
}

// New builds an unstarted orchestrator.
func New(cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logging.Default()
	}
	if o.tracer == nil {
		o.tracer = tracing.NoopTracer{}
	}

	sopts := append([]storage.Option{
		storage.WithLogger(o.log),
		storage.WithTracer(o.tracer),
	}, o.storageOpts...)
	o.ext = storage.New(cfg.Storage, sopts...)

	var mopts []virtual.Option
	mopts = append(mopts, virtual.WithLogger(logging.Named(o.log, "virtual")))
	if cfg.Inactivity > 0 {
		mopts = append(mopts, virtual.WithInactivity(cfg.Inactivity))
	}
	o.mgr = virtual.NewManager(o.ext, mopts...)

	o.sched = scheduler.NewScheduler(func(ctx context.Context, job scheduler.Job) error {
		return o.mgr.Checkpoint(ctx)
	}, logging.Named(o.log, "scheduler"))
	return o
}

// Storage returns the underlying extension.
func (o *Orchestrator) Storage() *storage.Extension { return o.ext }

// Manager returns the actor manager.
func (o *Orchestrator) Manager() *virtual.Manager { return o.mgr }

// Register adds the factory for an actor interface.
func (o *Orchestrator) Register(iface string, f virtual.Factory) { o.mgr.Register(iface, f) }

// Call delivers msg to the actor at ref, activating it when needed.
func (o *Orchestrator) Call(ctx context.Context, ref actor.Ref, msg any) (out any, err error) {
	ctx, span := o.tracer.Start(ctx, "actorstate.Call")
	defer func() { span.End(err) }()
	return o.mgr.Call(ctx, ref, msg)
}

// Start connects the storage and then starts the checkpoint schedule.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.ext.Start(ctx); err != nil {
		return err
	}
	if err := o.sched.AddOrUpdate(o.cfg.Checkpoint); err != nil {
		_ = o.ext.Stop(ctx)
		return fmt.Errorf("orchestrator: checkpoint schedule: %w", err)
	}
	o.sched.Start()
	o.log.Info("orchestrator started", "name", o.ext.Name(), "checkpoint", o.cfg.Checkpoint.Enabled)
	return nil
}

// Shutdown saves every active actor, stops the schedule and closes the storage.
// It keeps going after a failure and reports all errors.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var errs *multierror.Error
	if err := o.mgr.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("deactivate actors: %w", err))
	}
	if err := o.sched.Stop(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := o.ext.Stop(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	o.log.Info("orchestrator stopped", "name", o.ext.Name())
	return errs.ErrorOrNil()
}
