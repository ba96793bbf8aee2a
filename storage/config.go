package storage

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/rickKoch/actorstate/persistence"
)

// Backends understood by Config.Connector.
const (
	BackendMongo  = "mongo"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// Config is set before Start and never changes afterwards.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Hosts is a comma separated host:port list; when not blank it
	// overrides Host and Port.
	Hosts         string `mapstructure:"hosts"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	Name          string `mapstructure:"name"`
	AuthMechanism string `mapstructure:"auth_mechanism"`
	Backend       string `mapstructure:"backend"`
	// Path is the data directory of the pebble backend.
	Path string `mapstructure:"path"`
}

// DefaultConfig returns the defaults applied before decoding.
func DefaultConfig() Config {
	return Config{
		Host:    "localhost",
		Port:    27017,
		Name:    "default",
		Backend: BackendMongo,
	}
}

// DecodeConfig overlays raw onto DefaultConfig. Values are weakly typed, so
// port "27017" is accepted; unknown keys are an error.
func DecodeConfig(raw map[string]any) (Config, error) {
	cfg := DefaultConfig()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("actorstate: decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs *multierror.Error
	if strings.TrimSpace(c.Name) == "" {
		errs = multierror.Append(errs, fmt.Errorf("name must not be empty"))
	}
	switch c.Backend {
	case BackendMongo, "":
		if strings.TrimSpace(c.Database) == "" {
			errs = multierror.Append(errs, fmt.Errorf("database must not be empty"))
		}
		if _, err := c.Endpoints(); err != nil {
			errs = multierror.Append(errs, err)
		}
	case BackendPebble:
		if c.Path == "" {
			errs = multierror.Append(errs, fmt.Errorf("path is required for the pebble backend"))
		}
	case BackendMemory:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	return errs.ErrorOrNil()
}

// Endpoints returns the parsed Hosts list, or Host:Port when Hosts is blank.
func (c Config) Endpoints() ([]persistence.Endpoint, error) {
	if strings.TrimSpace(c.Hosts) != "" {
		return ParseHosts(c.Hosts)
	}
	if c.Port < 1 || c.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrConnection, c.Port)
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	return []persistence.Endpoint{{Host: host, Port: c.Port}}, nil
}

// Credentials is nil when no user is set. An empty password is passed on as is.
func (c Config) Credentials() *persistence.Credentials {
	if c.User == "" {
		return nil
	}
	return &persistence.Credentials{
		User:      c.User,
		Password:  c.Password,
		Database:  c.Database,
		Mechanism: c.AuthMechanism,
	}
}

// dialsEndpoints reports whether Backend connects over the network.
func (c Config) dialsEndpoints() bool {
	return c.Backend == BackendMongo || c.Backend == ""
}

// Connector returns the collaborator for Backend.
func (c Config) Connector() (persistence.Connector, error) {
	switch c.Backend {
	case BackendMongo, "":
		return persistence.MongoConnector{}, nil
	case BackendPebble:
		return persistence.PebbleConnector{Path: c.Path}, nil
	case BackendMemory:
		return persistence.NewMemoryConnector(), nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrConnection, c.Backend)
}

// ParseHosts parses "h1:p1,h2:p2". Blank segments are skipped and IPv6
// hosts must be bracketed. Errors match ErrConnection.
func ParseHosts(hosts string) ([]persistence.Endpoint, error) {
	var out []persistence.Endpoint
	for _, part := range strings.Split(hosts, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		host, portStr, err := net.SplitHostPort(part)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed host %q: %v", ErrConnection, part, err)
		}
		if host == "" {
			return nil, fmt.Errorf("%w: malformed host %q: empty host", ErrConnection, part)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: malformed host %q: bad port", ErrConnection, part)
		}
		out = append(out, persistence.Endpoint{Host: host, Port: port})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty host list %q", ErrConnection, hosts)
	}
	return out, nil
}
