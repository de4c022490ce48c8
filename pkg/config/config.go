package config

import (
	"context"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	BackupDatabase            bool          `koanf:"backup_database" default:"true"`
	BackupDirectory           string        `koanf:"backup_directory" mod:"trim"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5" validate:"min=1"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" mod:"trim" validate:"required"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5" validate:"min=0"`
	EventBufferSize           int           `koanf:"event_buffer_size" default:"256" validate:"min=0"`
	ImageName                 string        `koanf:"image_name" default:"Frontal" mod:"trim" validate:"required"`
	UpdateAlbums              bool          `koanf:"update_albums" default:"true"`
	UpdateArtists             bool          `koanf:"update_artists" default:"true"`
	UpdateImages              bool          `koanf:"update_images" default:"true"`
	UpdatePlaylistTracklists  bool          `koanf:"update_playlist_tracklists" default:"true"`
	UpdateTrackNumbers        bool          `koanf:"update_track_numbers" default:"true"`
}

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/jellytweak.yaml"
)

// New loads and validates the config.
func New() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads the config from the yaml file named by CONFIG_FILE (if present)
// and then from the environment without validating it, so callers can apply
// command line overrides first. Environment variables take precedence over the
// file.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	known := knownKeys()
	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	return cfg, nil
}

// NewForTest returns a config pointing at an in-memory database with every
// update enabled.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.BackupDatabase = false
	cfg.DatabaseConnectRetryDelay = 10 * time.Millisecond
	return cfg
}

// Validate trims string fields and checks the config for missing or invalid
// values. Missing required fields are reported with both their env var and
// yaml key names.
func (cfg *Config) Validate() error {
	if err := modifiers.New().Struct(context.Background(), cfg); err != nil {
		return errors.WithStack(err)
	}

	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}

	missing := make([]string, 0)
	invalid := make([]string, 0)
	for _, fe := range verrs {
		key := toSnakeCase(fe.StructField())
		if fe.Tag() == "required" {
			missing = append(missing, strings.ToUpper(key)+" (env) / "+key+" (yaml)")
			continue
		}
		invalid = append(invalid, key+" failed "+fe.Tag())
	}

	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return errors.Errorf("invalid config: %s", strings.Join(invalid, ", "))
}

// AnyUpdateEnabled reports whether the run would touch the catalog at all.
func (cfg *Config) AnyUpdateEnabled() bool {
	return cfg.UpdateImages || cfg.UpdateArtists || cfg.UpdateAlbums ||
		cfg.UpdateTrackNumbers || cfg.UpdatePlaylistTracklists
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}

// knownKeys lists the koanf keys of Config so unrelated environment variables
// are not loaded.
func knownKeys() map[string]struct{} {
	t := reflect.TypeOf(Config{})
	m := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("koanf"); key != "" {
			m[key] = struct{}{}
		}
	}
	return m
}
