/*
Package telemetry ships anonymous usage events to PostHog. It is strictly
opt-in: without consent and an API key every call is a no-op. Events carry
names, counts and latency buckets, never memory content.
*/
package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

// EnvVar overrides the config consent: "1"/"true" enables, any other
// non-empty value disables.
const EnvVar = "MINDWING_TELEMETRY"

// Client is the interface the rest of the code tracks against.
type Client interface {
	// Track enqueues an event asynchronously; it never blocks a request.
	Track(event string, properties map[string]any)

	// Close flushes pending events.
	Close() error
}

// Properties is a type alias for event properties.
type Properties = map[string]any

// enqueuer is the slice of the PostHog client we use; tests swap it.
type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// Config selects the backend and identifies the install.
type Config struct {
	Enabled bool
	APIKey  string
	Host    string

	// DistinctID is the random install id. Never derive it from user data.
	DistinctID string
	Version    string
}

// Enabled reports whether telemetry may run, combining config consent
// with the environment override.
func Enabled(cfgEnabled bool) bool {
	if v := os.Getenv(EnvVar); v != "" {
		b, err := strconv.ParseBool(v)
		return err == nil && b
	}
	return cfgEnabled
}

// New returns a PostHog-backed client when telemetry is consented and an
// API key exists, and a no-op client otherwise.
func New(cfg Config) (Client, error) {
	if !Enabled(cfg.Enabled) || cfg.APIKey == "" {
		return NewNoop(), nil
	}

	phCfg := posthog.Config{
		// Few events per session; flush early instead of batching big.
		BatchSize: 10,
		Interval:  time.Second,
		// Transport noise must never reach the stdio transport.
		Logger: quietLogger{},
	}
	if cfg.Host != "" {
		phCfg.Endpoint = cfg.Host
	}

	ph, err := posthog.NewWithConfig(cfg.APIKey, phCfg)
	if err != nil {
		return nil, err
	}

	distinctID := cfg.DistinctID
	if distinctID == "" {
		distinctID = uuid.NewString()
	}
	return &postHogClient{client: ph, distinctID: distinctID, version: cfg.Version}, nil
}

// postHogClient wraps the PostHog SDK for async dispatch.
type postHogClient struct {
	client     enqueuer
	distinctID string
	version    string
	mu         sync.Mutex
}

// newWithEnqueuer wires a client over a custom enqueuer (for testing).
func newWithEnqueuer(enq enqueuer, distinctID, version string) *postHogClient {
	return &postHogClient{client: enq, distinctID: distinctID, version: version}
}

func (c *postHogClient) Track(event string, properties map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	props.Set("os", runtime.GOOS)
	props.Set("arch", runtime.GOARCH)
	props.Set("version", c.version)
	// No person profiles: events stay anonymous on the PostHog side too.
	props.Set("$process_person_profile", false)

	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      event,
		Properties: props,
	})
}

func (c *postHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.Close()
}

// NoopClient swallows every event.
type NoopClient struct{}

// NewNoop returns a client that does nothing.
func NewNoop() *NoopClient { return &NoopClient{} }

func (*NoopClient) Track(string, map[string]any) {}

func (*NoopClient) Close() error { return nil }

// quietLogger suppresses PostHog transport logs.
type quietLogger struct{}

func (quietLogger) Debugf(string, ...interface{}) {}
func (quietLogger) Logf(string, ...interface{})   {}
func (quietLogger) Warnf(string, ...interface{})  {}
func (quietLogger) Errorf(string, ...interface{}) {}

// InstallID returns the stable anonymous id for this install, creating it
// on first use. The id is a random UUID.
func InstallID(dir string) (string, error) {
	path := filepath.Join(dir, "telemetry_id")

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read install id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("write install id: %w", err)
	}
	return id, nil
}
