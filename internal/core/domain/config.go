package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// BackoffPolicy selects how the transport spaces out retries.
type BackoffPolicy string

// Available backoff policies.
const (
	BackoffExponential BackoffPolicy = "exponential"
	BackoffConstant    BackoffPolicy = "constant"
	BackoffFibonacci   BackoffPolicy = "fibonacci"
)

// IsValid returns true if the backoff policy is recognised.
func (p BackoffPolicy) IsValid() bool {
	switch p {
	case BackoffExponential, BackoffConstant, BackoffFibonacci:
		return true
	default:
		return false
	}
}

// CheckpointBackend selects where the sync checkpoint and local nodes are kept.
type CheckpointBackend string

// Available checkpoint backends.
const (
	BackendSQLite CheckpointBackend = "sqlite"
	BackendBolt   CheckpointBackend = "bolt"
	BackendRedis  CheckpointBackend = "redis"
	BackendMemory CheckpointBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b CheckpointBackend) IsValid() bool {
	switch b {
	case BackendSQLite, BackendBolt, BackendRedis, BackendMemory:
		return true
	default:
		return false
	}
}

// Config is the complete runtime configuration.
// It is built once at startup and handed to component constructors.
type Config struct {
	// Endpoint is the URL of the remote GraphQL API.
	Endpoint string

	// Token is the bearer token sent with every request.
	Token string

	// Concurrency bounds the number of requests in flight.
	Concurrency int

	// FragmentsDir holds user-authored fragment files, one per remote type.
	FragmentsDir string

	// WorkDir holds the effective fragment set written on every plan
	// build. It is emptied first, so it must not overlap FragmentsDir.
	WorkDir string

	// DebugDir receives the compiled documents and interface definitions.
	DebugDir string

	// TypePrefix is prepended to remote type names in local definitions.
	TypePrefix string

	// LooseInterfaces merges fields across all implementors of an interface
	// instead of using only the fields the interface declares.
	LooseInterfaces bool

	// SourcingParams holds extra list query arguments keyed by type or
	// interface name. Values are GraphQL literals.
	SourcingParams map[string]map[string]string

	// EnabledSites scopes list queries to these sites. Empty means the
	// primary site advertised by the remote source.
	EnabledSites []string

	// Retry configures transport retries.
	Retry RetryConfig

	// RequestsPerSecond proactively throttles requests. Zero disables it.
	RequestsPerSecond float64

	// Verbose enables debug logging.
	Verbose bool

	// LogFile, when set, sends log output to a rotating file.
	LogFile string

	// Checkpoint configures the persistence backend.
	Checkpoint CheckpointConfig

	// Webhook configures the inbound webhook receiver.
	Webhook WebhookConfig
}

// RetryConfig controls how failed requests are retried.
type RetryConfig struct {
	// Retries is the number of retries after the first attempt.
	Retries int

	// Backoff is the delay policy between attempts.
	Backoff BackoffPolicy

	// BaseDelay is the initial delay.
	BaseDelay time.Duration

	// MaxDelay caps a single delay.
	MaxDelay time.Duration

	// StatusCodes restricts retries to these HTTP statuses.
	// Empty retries every failure.
	StatusCodes []int
}

// CheckpointConfig selects and configures the persistence backend.
type CheckpointConfig struct {
	Backend   CheckpointBackend
	Path      string
	RedisAddr string
	RedisDB   int
}

// WebhookConfig configures the webhook receiver.
type WebhookConfig struct {
	// Addr is the listen address.
	Addr string

	// Secret, when set, must match the X-Webhook-Secret request header.
	Secret string

	// SyncInterval runs a scheduled sync while serving. Zero disables it.
	SyncInterval time.Duration
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Concurrency:  10,
		FragmentsDir: "fragments",
		WorkDir:      ".cache/fragments",
		DebugDir:     ".cache/documents",
		TypePrefix:   "Craft_",
		Retry: RetryConfig{
			Retries:   3,
			Backoff:   BackoffExponential,
			BaseDelay: 200 * time.Millisecond,
			MaxDelay:  5 * time.Second,
		},
		Checkpoint: CheckpointConfig{
			Backend:   BackendSQLite,
			Path:      ".cache/contentsync",
			RedisAddr: "127.0.0.1:6379",
		},
		Webhook: WebhookConfig{
			Addr: "127.0.0.1:8787",
		},
	}
}

// Validate checks that the configuration can be used to sync.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidInput)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidInput)
	}
	if c.Retry.Retries < 0 {
		return fmt.Errorf("%w: retries must not be negative", ErrInvalidInput)
	}
	if !c.Retry.Backoff.IsValid() {
		return fmt.Errorf("%w: unknown backoff %q", ErrInvalidInput, c.Retry.Backoff)
	}
	if !c.Checkpoint.Backend.IsValid() {
		return fmt.Errorf("%w: unknown checkpoint backend %q", ErrInvalidInput, c.Checkpoint.Backend)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrInvalidInput)
	}
	return c.validateDirs()
}

// validateDirs rejects directory layouts where writing the working set or
// the debug documents would clobber user fragments.
func (c *Config) validateDirs() error {
	if c.FragmentsDir == "" {
		return fmt.Errorf("%w: fragments_dir is required", ErrInvalidInput)
	}
	if c.WorkDir == "" {
		return fmt.Errorf("%w: work_dir is required", ErrInvalidInput)
	}
	if overlaps(c.WorkDir, c.FragmentsDir) {
		return fmt.Errorf("%w: work_dir %q overlaps fragments_dir %q", ErrInvalidInput, c.WorkDir, c.FragmentsDir)
	}
	if c.DebugDir != "" && overlaps(c.DebugDir, c.FragmentsDir) {
		return fmt.Errorf("%w: debug_dir %q overlaps fragments_dir %q", ErrInvalidInput, c.DebugDir, c.FragmentsDir)
	}
	return nil
}

// overlaps reports whether a and b are the same directory or one contains
// the other.
func overlaps(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return within(absA, absB) || within(absB, absA)
}

func within(dir, parent string) bool {
	rel, err := filepath.Rel(parent, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// MultiSite reports whether sites are configured explicitly.
func (c *Config) MultiSite() bool {
	return len(c.EnabledSites) > 0
}

// ParamsFor returns the extra list arguments for a type within an interface.
// Type-level values override interface-level values with the same name.
func (c *Config) ParamsFor(iface, typeName string) map[string]string {
	merged := make(map[string]string)
	for k, v := range c.SourcingParams[iface] {
		merged[k] = v
	}
	for k, v := range c.SourcingParams[typeName] {
		merged[k] = v
	}
	return merged
}
