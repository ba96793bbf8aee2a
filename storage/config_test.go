package storage

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/rickKoch/actorstate/persistence"
)

func TestDefaultEndpoint(t *testing.T) {
	eps, err := DefaultConfig().Endpoints()
	require.NoError(t, err)
	require.Equal(t, []persistence.Endpoint{{Host: "localhost", Port: 27017}}, eps)
}

func TestHostsOverrideHostAndPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host, cfg.Port = "ignored", 1
	cfg.Hosts = "h1:1000,h2:2000"
	eps, err := cfg.Endpoints()
	require.NoError(t, err)
	require.Equal(t, []persistence.Endpoint{{Host: "h1", Port: 1000}, {Host: "h2", Port: 2000}}, eps)
}

func TestBlankHostsFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hosts = "   "
	cfg.Host, cfg.Port = "db", 3000
	eps, err := cfg.Endpoints()
	require.NoError(t, err)
	require.Equal(t, []persistence.Endpoint{{Host: "db", Port: 3000}}, eps)
}

func TestParseHosts(t *testing.T) {
	eps, err := ParseHosts(" h1:1000 , ,[::1]:2000,")
	require.NoError(t, err)
	require.Equal(t, []persistence.Endpoint{{Host: "h1", Port: 1000}, {Host: "::1", Port: 2000}}, eps)

	for _, bad := range []string{"h1", "h1:", ":1000", "h1:port", "h1:70000", "h1:1000,h2", ","} {
		_, err := ParseHosts(bad)
		require.Error(t, err, bad)
		require.True(t, errors.Is(err, ErrConnection), "%q: %v", bad, err)
	}
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(map[string]any{
		"hosts":    "a:1,b:2",
		"port":     "28017",
		"database": "game",
		"user":     "svc",
		"password": "secret",
		"name":     "players",
	})
	require.NoError(t, err)
	require.Equal(t, "localhost", cfg.Host)
	require.Equal(t, 28017, cfg.Port)
	require.Equal(t, "players", cfg.Name)
	require.Equal(t, BackendMongo, cfg.Backend)
	require.Equal(t, &persistence.Credentials{User: "svc", Password: "secret", Database: "game"}, cfg.Credentials())

	_, err = DecodeConfig(map[string]any{"databse": "typo"})
	require.Error(t, err)
}

func TestCredentialsFollowUser(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database = "game"
	cfg.User = "svc"
	require.Equal(t, &persistence.Credentials{User: "svc", Database: "game"}, cfg.Credentials())
	cfg.User, cfg.Password = "", "secret"
	require.Nil(t, cfg.Credentials())
}

func TestValidateAggregates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = ""
	cfg.Hosts = "nope"
	err := cfg.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 3)

	cfg = DefaultConfig()
	cfg.Backend = BackendPebble
	require.Error(t, cfg.Validate())
	cfg.Path = "/tmp/state"
	require.NoError(t, cfg.Validate())

	cfg.Backend = "cassandra"
	require.Error(t, cfg.Validate())
	_, err = cfg.Connector()
	require.ErrorIs(t, err, ErrConnection)
}

func TestConnectorByBackend(t *testing.T) {
	cfg := DefaultConfig()
	c, err := cfg.Connector()
	require.NoError(t, err)
	require.IsType(t, persistence.MongoConnector{}, c)

	cfg.Backend, cfg.Path = BackendPebble, "/data"
	c, err = cfg.Connector()
	require.NoError(t, err)
	require.Equal(t, persistence.PebbleConnector{Path: "/data"}, c)

	cfg.Backend = BackendMemory
	c, err = cfg.Connector()
	require.NoError(t, err)
	require.IsType(t, &persistence.MemoryConnector{}, c)
}
