package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rickKoch/actorstate/actor"
	"github.com/rickKoch/actorstate/document"
	"github.com/rickKoch/actorstate/logging"
	"github.com/rickKoch/actorstate/persistence"
	"github.com/rickKoch/actorstate/storage"
	"github.com/rickKoch/actorstate/virtual"
)

type counterState struct{ Count int }

var counterSchema = func() *document.Schema[counterState] {
	s := document.NewSchema[counterState]("counter")
	document.Field(s, "count", func(c *counterState) *int { return &c.Count }, document.Int())
	return s
}()

type counter struct{ st counterState }

func (c *counter) State() document.State { return counterSchema.Bind(&c.st) }

func (c *counter) Receive(context.Context, any) (any, error) {
	c.st.Count++
	return c.st.Count, nil
}

func newOrchestrator(t *testing.T, cfg Config, mem *persistence.MemoryConnector) *Orchestrator {
	t.Helper()
	o := New(cfg,
		WithLogger(logging.NewNull()),
		WithStorageOptions(storage.WithConnector(mem)),
	)
	o.Register("Counter", func(actor.Ref) virtual.Actor { return &counter{} })
	require.NoError(t, o.Start(context.Background()))
	return o
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Storage.Database = "game"
	cfg.Inactivity = time.Hour
	return cfg
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(map[string]any{
		"storage": map[string]any{
			"backend":  "memory",
			"database": "game",
			"port":     "27018",
		},
		"inactivity": "5s",
		"checkpoint": map[string]any{
			"cron":    "@every 10s",
			"timeout": "3s",
			"enabled": true,
		},
	})
	require.NoError(t, err)
	require.Equal(t, storage.BackendMemory, cfg.Storage.Backend)
	require.Equal(t, 27018, cfg.Storage.Port)
	require.Equal(t, "default", cfg.Storage.Name)
	require.Equal(t, 5*time.Second, cfg.Inactivity)
	require.Equal(t, CheckpointJobID, cfg.Checkpoint.ID)
	require.Equal(t, "@every 10s", cfg.Checkpoint.CronExpression)
	require.Equal(t, 3*time.Second, cfg.Checkpoint.Timeout)
	require.True(t, cfg.Checkpoint.Enabled)

	_, err = DecodeConfig(map[string]any{"storage": map[string]any{"colour": "blue"}})
	require.Error(t, err)
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	mem := persistence.NewMemoryConnector()
	ref := actor.NewRef("Counter", actor.IntKey(7))

	o := newOrchestrator(t, testConfig(), mem)
	for i := 1; i <= 3; i++ {
		out, err := o.Call(ctx, ref, "inc")
		require.NoError(t, err)
		require.Equal(t, i, out)
	}
	require.NoError(t, o.Shutdown(ctx))

	doc, ok, err := mem.Document("game", "Counter", "7")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3, doc["count"])

	o = newOrchestrator(t, testConfig(), mem)
	defer func() { require.NoError(t, o.Shutdown(ctx)) }()
	out, err := o.Call(ctx, ref, "inc")
	require.NoError(t, err)
	require.Equal(t, 4, out)
}

func TestCheckpointSchedule(t *testing.T) {
	ctx := context.Background()
	mem := persistence.NewMemoryConnector()
	cfg := testConfig()
	cfg.Checkpoint.CronExpression = "@every 1s"
	cfg.Checkpoint.Enabled = true

	o := newOrchestrator(t, cfg, mem)
	defer func() { require.NoError(t, o.Shutdown(ctx)) }()

	ref := actor.NewRef("Counter", actor.StringKey("live"))
	_, err := o.Call(ctx, ref, "inc")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok, err := mem.Document("game", "Counter", "live")
		return err == nil && ok
	}, 3*time.Second, 50*time.Millisecond)
	require.Equal(t, 1, o.Manager().Active())
}

func TestStartFailsOnInvalidSchedule(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Checkpoint.CronExpression = "not a cron"
	cfg.Checkpoint.Enabled = true

	o := New(cfg,
		WithLogger(logging.NewNull()),
		WithStorageOptions(storage.WithConnector(persistence.NewMemoryConnector())),
	)
	require.Error(t, o.Start(ctx))

	_, err := o.Storage().ReadState(ctx, actor.NewRef("Counter", actor.StringKey("x")), counterSchema.Bind(&counterState{}))
	require.ErrorIs(t, err, storage.ErrNotConnected)
}

func TestStartFailsWithoutDatabase(t *testing.T) {
	cfg := DefaultConfig()
	o := New(cfg, WithLogger(logging.NewNull()))
	err := o.Start(context.Background())
	require.ErrorIs(t, err, storage.ErrConnection)
}
