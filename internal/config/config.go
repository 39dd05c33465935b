// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

// Package config loads levelup-auth configuration from a YAML file and
// command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/levelup/authflow/internal/xdg"
)

// Error codes for configuration failures.
const (
	CodeInvalid  = "CONFIG_INVALID"
	CodeNotFound = "CONFIG_NOT_FOUND"
)

// FileName is the config file looked up in the XDG config directory.
const FileName = "config.yaml"

// Config is the full levelup-auth configuration.
type Config struct {
	Identity IdentityConfig `koanf:"identity" json:"identity,omitempty"`
	Links    LinksConfig    `koanf:"links" json:"links,omitempty"`
	Flow     FlowConfig     `koanf:"flow" json:"flow,omitempty"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
}

// IdentityConfig locates the identity service.
type IdentityConfig struct {
	URL         string        `koanf:"url" json:"url,omitempty" validate:"required,url" jsonschema:"description=Identity service base URL including its mount path"`
	APIKey      string        `koanf:"api_key" json:"api_key,omitempty" validate:"required" jsonschema:"description=Public API key sent with every request"`
	RedirectURL string        `koanf:"redirect_url" json:"redirect_url,omitempty" validate:"omitempty,url" jsonschema:"description=Where emailed links return the user"`
	Timeout     time.Duration `koanf:"timeout" json:"timeout,omitempty" validate:"gte=0s" jsonschema:"description=Per-request timeout"`
	MinVersion  string        `koanf:"min_version" json:"min_version,omitempty" validate:"omitempty,semver_constraint" jsonschema:"description=Version constraint the service must satisfy"`
}

// LinksConfig controls which links are honoured.
type LinksConfig struct {
	AllowedHosts []string `koanf:"allowed_hosts" json:"allowed_hosts,omitempty" validate:"dive,required" jsonschema:"description=Glob patterns for accepted link hosts"`
	RecoveryPath string   `koanf:"recovery_path" json:"recovery_path,omitempty" validate:"omitempty,startswith=/" jsonschema:"description=Route recovery links land on"`
}

// FlowConfig holds the flow's timing policy.
type FlowConfig struct {
	ResendCooldown time.Duration `koanf:"resend_cooldown" json:"resend_cooldown,omitempty" validate:"gte=1s"`
	ResetCooldown  time.Duration `koanf:"reset_cooldown" json:"reset_cooldown,omitempty" validate:"gte=1s"`
	SignOutDelay   time.Duration `koanf:"sign_out_delay" json:"sign_out_delay,omitempty" validate:"gte=0s"`
	LinkValidity   time.Duration `koanf:"link_validity" json:"link_validity,omitempty" validate:"gte=1m"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" validate:"oneof=json text" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the metrics and health endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" validate:"omitempty,hostname_port" jsonschema:"description=Listen address for /metrics and probes; empty disables it"`
}

// Default returns the configuration used for anything not set.
func Default() Config {
	return Config{
		Identity: IdentityConfig{
			Timeout: 10 * time.Second,
		},
		Links: LinksConfig{
			RecoveryPath: "/reset-password",
		},
		Flow: FlowConfig{
			ResendCooldown: 60 * time.Second,
			ResetCooldown:  60 * time.Second,
			SignOutDelay:   3 * time.Second,
			LinkValidity:   time.Hour,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// DefaultPath returns the config file in the XDG config directory.
func DefaultPath() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads path, overlays flags that were set on fs, and validates the
// result. An empty path means DefaultPath, which may be absent; an explicit
// path must exist. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		// Without a home directory there is simply no default file.
		path, _ = DefaultPath()
	}
	if path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return nil, err
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeInvalid).Wrapf(err, "load flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(CodeInvalid).With("path", path).Wrapf(err, "decode config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return oops.Code(CodeNotFound).With("path", path).Wrapf(err, "config file not found")
		}
		return oops.With("path", path).Wrapf(err, "read config file")
	}
	if err := ValidateDocument(data); err != nil {
		return oops.Code(CodeInvalid).With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code(CodeInvalid).With("path", path).Wrapf(err, "parse config file")
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("semver_constraint", func(fl validator.FieldLevel) bool {
		_, err := semver.NewConstraint(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks cfg against its field rules. Failures are reported by
// dotted key.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return oops.Code(CodeInvalid).Wrapf(err, "validate config")
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return oops.Code(CodeInvalid).
		With("problems", problems).
		Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "url":
		return key + " must be an absolute URL"
	case "oneof":
		return key + " must be one of: " + fe.Param()
	case "semver_constraint":
		return key + " must be a version constraint such as \">= 2.150.0\""
	case "hostname_port":
		return key + " must be host:port"
	case "gte":
		return key + " must be at least " + fe.Param()
	default:
		return key + " failed " + fe.Tag()
	}
}
