package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

// Environment overrides.
const (
	EnvURL   = "CONTENTSYNC_URL"
	EnvToken = "CONTENTSYNC_TOKEN"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "contentsync.toml"

// fileConfig mirrors the on-disk layout. Pointers distinguish unset values
// from zero values so defaults survive.
type fileConfig struct {
	Endpoint          *string                      `toml:"endpoint" yaml:"endpoint"`
	Token             *string                      `toml:"token" yaml:"token"`
	Concurrency       *int                         `toml:"concurrency" yaml:"concurrency"`
	FragmentsDir      *string                      `toml:"fragments_dir" yaml:"fragments_dir"`
	WorkDir           *string                      `toml:"work_dir" yaml:"work_dir"`
	DebugDir          *string                      `toml:"debug_dir" yaml:"debug_dir"`
	TypePrefix        *string                      `toml:"type_prefix" yaml:"type_prefix"`
	LooseInterfaces   *bool                        `toml:"loose_interfaces" yaml:"loose_interfaces"`
	SourcingParams    map[string]map[string]string `toml:"sourcing_params" yaml:"sourcing_params"`
	EnabledSites      any                          `toml:"enabled_sites" yaml:"enabled_sites"`
	RequestsPerSecond *float64                     `toml:"requests_per_second" yaml:"requests_per_second"`
	Verbose           *bool                        `toml:"verbose" yaml:"verbose"`
	LogFile           *string                      `toml:"log_file" yaml:"log_file"`

	Retry struct {
		Retries     *int    `toml:"retries" yaml:"retries"`
		Backoff     *string `toml:"backoff" yaml:"backoff"`
		BaseDelay   *string `toml:"base_delay" yaml:"base_delay"`
		MaxDelay    *string `toml:"max_delay" yaml:"max_delay"`
		StatusCodes []int   `toml:"status_codes" yaml:"status_codes"`
	} `toml:"retry" yaml:"retry"`

	Checkpoint struct {
		Backend   *string `toml:"backend" yaml:"backend"`
		Path      *string `toml:"path" yaml:"path"`
		RedisAddr *string `toml:"redis_addr" yaml:"redis_addr"`
		RedisDB   *int    `toml:"redis_db" yaml:"redis_db"`
	} `toml:"checkpoint" yaml:"checkpoint"`

	Webhook struct {
		Addr         *string `toml:"addr" yaml:"addr"`
		Secret       *string `toml:"secret" yaml:"secret"`
		SyncInterval *string `toml:"sync_interval" yaml:"sync_interval"`
	} `toml:"webhook" yaml:"webhook"`
}

// Load reads the configuration at path over the defaults, then applies
// environment overrides. An empty path reads DefaultFile when present.
// The result is not validated.
func Load(path string) (domain.Config, error) {
	cfg := domain.DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := apply(&cfg, path, data); err != nil {
			return cfg, fmt.Errorf("loading %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// no file, defaults only
	default:
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// Parse decodes data as the format named by path's extension over the
// defaults. Environment variables are not consulted.
func Parse(path string, data []byte) (domain.Config, error) {
	cfg := domain.DefaultConfig()
	if err := apply(&cfg, path, data); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func apply(cfg *domain.Config, path string, data []byte) error {
	var fc fileConfig
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	} else {
		if err := toml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}
	return fc.merge(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func (fc *fileConfig) merge(cfg *domain.Config) error {
	setString(&cfg.Endpoint, fc.Endpoint)
	setString(&cfg.Token, fc.Token)
	setString(&cfg.FragmentsDir, fc.FragmentsDir)
	setString(&cfg.WorkDir, fc.WorkDir)
	setString(&cfg.DebugDir, fc.DebugDir)
	setString(&cfg.TypePrefix, fc.TypePrefix)
	setString(&cfg.LogFile, fc.LogFile)
	if fc.Concurrency != nil {
		cfg.Concurrency = *fc.Concurrency
	}
	if fc.LooseInterfaces != nil {
		cfg.LooseInterfaces = *fc.LooseInterfaces
	}
	if fc.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *fc.RequestsPerSecond
	}
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	if fc.SourcingParams != nil {
		cfg.SourcingParams = fc.SourcingParams
	}

	sites, err := siteList(fc.EnabledSites)
	if err != nil {
		return err
	}
	cfg.EnabledSites = sites

	if fc.Retry.Retries != nil {
		cfg.Retry.Retries = *fc.Retry.Retries
	}
	if fc.Retry.Backoff != nil {
		cfg.Retry.Backoff = domain.BackoffPolicy(*fc.Retry.Backoff)
	}
	if err := setDuration(&cfg.Retry.BaseDelay, fc.Retry.BaseDelay, "retry.base_delay"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Retry.MaxDelay, fc.Retry.MaxDelay, "retry.max_delay"); err != nil {
		return err
	}
	if fc.Retry.StatusCodes != nil {
		cfg.Retry.StatusCodes = fc.Retry.StatusCodes
	}

	if fc.Checkpoint.Backend != nil {
		cfg.Checkpoint.Backend = domain.CheckpointBackend(*fc.Checkpoint.Backend)
	}
	setString(&cfg.Checkpoint.Path, fc.Checkpoint.Path)
	setString(&cfg.Checkpoint.RedisAddr, fc.Checkpoint.RedisAddr)
	if fc.Checkpoint.RedisDB != nil {
		cfg.Checkpoint.RedisDB = *fc.Checkpoint.RedisDB
	}

	setString(&cfg.Webhook.Addr, fc.Webhook.Addr)
	setString(&cfg.Webhook.Secret, fc.Webhook.Secret)
	return setDuration(&cfg.Webhook.SyncInterval, fc.Webhook.SyncInterval, "webhook.sync_interval")
}

// siteList accepts a single site id (string or number) or a list of them.
func siteList(v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		if s == "" {
			return nil, nil
		}
		return []string{s}, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			id, err := siteID(item)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
		return out, nil
	default:
		id, err := siteID(v)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}
}

func siteID(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case int, int64, uint64, float64:
		return fmt.Sprint(s), nil
	default:
		return "", fmt.Errorf("%w: enabled_sites entries must be strings, got %T", domain.ErrInvalidInput, v)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, field, err)
	}
	*dst = d
	return nil
}

func applyEnv(cfg *domain.Config) {
	if v := os.Getenv(EnvURL); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}
}
