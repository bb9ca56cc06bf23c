package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chainsafe/ledger-ingest/pkg/aptos"
)

// Supported chains
const (
	ChainAptos = "aptos"
	ChainSui   = "sui"
)

// Position styles, mirrored from the ingest package
const (
	StyleOffset = "offset"
	StyleCursor = "cursor"
)

// Offset advance policies
const (
	AdvanceReturned     = "returned"
	AdvanceStoredPrefix = "stored_prefix"
)

// Largest page each fullnode accepts
const (
	maxAptosPageSize = 100
	maxSuiPageSize   = 50
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Server     ServerConfig     `yaml:"server"`
	Jobs       []JobConfig      `yaml:"jobs" validate:"required,min=1,unique=Name,dive"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432" validate:"min=1,max=65535"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"ledger_ingest" validate:"required"`
	SSLMode  string `yaml:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// MonitoringConfig contains metrics settings. PushgatewayURL is used by
// one-shot runs; serve mode exposes /metrics instead.
type MonitoringConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
	PushJob        string `yaml:"push_job" default:"ledger_ingest"`
}

// ServerConfig contains the ops HTTP server settings used in serve mode
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	RunInterval     time.Duration `yaml:"run_interval" default:"1m" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s" validate:"gt=0"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// JobConfig describes one monitored address
type JobConfig struct {
	Name           string        `yaml:"name" validate:"required"`
	Chain          string        `yaml:"chain" validate:"required,oneof=aptos sui"`
	Address        string        `yaml:"address" validate:"required"`
	Network        string        `yaml:"network" default:"mainnet" validate:"required"`
	PageSize       int           `yaml:"page_size" default:"10" validate:"min=1"`
	PositionStyle  string        `yaml:"position_style" validate:"omitempty,oneof=offset cursor"`
	RPCURL         string        `yaml:"rpc_url" validate:"omitempty,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"30s" validate:"gt=0"`
	AdvancePolicy  string        `yaml:"advance_policy" default:"returned" validate:"oneof=returned stored_prefix"`
	LeaseTTL       time.Duration `yaml:"lease_ttl" default:"5m" validate:"gt=0"`
}

// Load reads the YAML file at path, expands ${ENV} references, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	for i := range cfg.Jobs {
		if err := defaults.Set(&cfg.Jobs[i]); err != nil {
			return nil, fmt.Errorf("failed to apply defaults for job %d: %w", i, err)
		}
		if cfg.Jobs[i].PositionStyle == "" {
			cfg.Jobs[i].PositionStyle = defaultStyle(cfg.Jobs[i].Chain)
		}
	}

	if err := newValidator().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", formatValidationError(err))
	}
	if err := checkSharedCheckpoints(cfg.Jobs); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Job returns the job named name
func (c *Config) Job(name string) (*JobConfig, bool) {
	for i := range c.Jobs {
		if c.Jobs[i].Name == name {
			return &c.Jobs[i], true
		}
	}
	return nil, false
}

// SelectJobs returns the named jobs, or all jobs when names is empty
func (c *Config) SelectJobs(names []string) ([]JobConfig, error) {
	if len(names) == 0 {
		return c.Jobs, nil
	}
	out := make([]JobConfig, 0, len(names))
	for _, name := range names {
		job, ok := c.Job(name)
		if !ok {
			return nil, fmt.Errorf("unknown job %q", name)
		}
		out = append(out, *job)
	}
	return out, nil
}

func defaultStyle(chain string) string {
	switch chain {
	case ChainAptos:
		return StyleOffset
	case ChainSui:
		return StyleCursor
	default:
		return ""
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateJob, JobConfig{})
	return v
}

// validateJob enforces the pairing of chain and position style, which the
// field tags cannot express.
func validateJob(sl validator.StructLevel) {
	job := sl.Current().Interface().(JobConfig)

	switch job.Chain {
	case ChainAptos:
		if job.PositionStyle != StyleOffset {
			sl.ReportError(job.PositionStyle, "position_style", "PositionStyle", "chainstyle", job.Chain)
		}
		if job.PageSize > maxAptosPageSize {
			sl.ReportError(job.PageSize, "page_size", "PageSize", "max", fmt.Sprint(maxAptosPageSize))
		}
	case ChainSui:
		if job.PositionStyle != StyleCursor {
			sl.ReportError(job.PositionStyle, "position_style", "PositionStyle", "chainstyle", job.Chain)
		}
		if job.PageSize > maxSuiPageSize {
			sl.ReportError(job.PageSize, "page_size", "PageSize", "max", fmt.Sprint(maxSuiPageSize))
		}
		if job.AdvancePolicy == AdvanceStoredPrefix {
			sl.ReportError(job.AdvancePolicy, "advance_policy", "AdvancePolicy", "offsetonly", "")
		}
	}
}

// CheckpointKey identifies the checkpoint row a job reads and writes.
// Checkpoints and leases are stored per style and address, so network is
// not part of the key.
func (j JobConfig) CheckpointKey() string {
	addr := strings.ToLower(strings.TrimSpace(j.Address))
	if j.Chain == ChainAptos {
		addr = aptos.NormalizeAddress(addr)
	}
	return j.PositionStyle + "/" + addr
}

func checkSharedCheckpoints(jobs []JobConfig) error {
	owners := make(map[string]string, len(jobs))
	var msgs []string
	for _, job := range jobs {
		key := job.CheckpointKey()
		if other, ok := owners[key]; ok {
			msgs = append(msgs, fmt.Sprintf("jobs %s and %s share checkpoint %s", other, job.Name, key))
			continue
		}
		owners[key] = job.Name
	}
	if len(msgs) > 0 {
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "chainstyle":
			msgs = append(msgs, fmt.Sprintf("%s %q is not valid for chain %s", field, fe.Value(), fe.Param()))
		case "offsetonly":
			msgs = append(msgs, fmt.Sprintf("%s %q requires offset position style", field, fe.Value()))
		default:
			if fe.Param() != "" {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", field, fe.Tag(), fe.Value()))
			}
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
