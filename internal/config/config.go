package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the gateway service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Upstream      UpstreamConfig      `mapstructure:"upstream"`
	Models        ModelsConfig        `mapstructure:"models"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

// AuthConfig holds the single static bearer credential clients must present.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// UpstreamConfig describes the MagicStudio art-generator endpoint and the
// browser-shaped identity the gateway presents to it.
type UpstreamConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	ClientID  string        `mapstructure:"client_id"`
	Origin    string        `mapstructure:"origin"`
	Referer   string        `mapstructure:"referer"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ModelsConfig struct {
	Default string   `mapstructure:"default"`
	Known   []string `mapstructure:"known"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("MS2API_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		// Allow standard lookup locations when no explicit file is provided.
		v.SetConfigName("ms2api")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("MS2API")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and normalizes derived fields.
func (c *Config) Validate() error {
	var missing []string

	if strings.TrimSpace(c.Auth.APIKey) == "" {
		missing = append(missing, "MS2API_AUTH_API_KEY")
	}
	if strings.TrimSpace(c.Upstream.Endpoint) == "" {
		missing = append(missing, "MS2API_UPSTREAM_ENDPOINT")
	}
	if strings.TrimSpace(c.Upstream.ClientID) == "" {
		missing = append(missing, "MS2API_UPSTREAM_CLIENT_ID")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("server.body_limit_mb must be > 0")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0")
	}

	c.Models.Default = strings.TrimSpace(c.Models.Default)
	if c.Models.Default == "" {
		return fmt.Errorf("models.default must be provided")
	}
	c.Models.Known = normalizeStringSlice(c.Models.Known)
	if !containsModel(c.Models.Known, c.Models.Default) {
		c.Models.Known = append([]string{c.Models.Default}, c.Models.Known...)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 10)
	v.SetDefault("server.read_timeout", "120s")
	v.SetDefault("server.idle_timeout", "300s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("auth.api_key", "")

	v.SetDefault("upstream.endpoint", "https://ai-api.magicstudio.com/api/ai-art-generator")
	v.SetDefault("upstream.client_id", "")
	v.SetDefault("upstream.origin", "https://magicstudio.com")
	v.SetDefault("upstream.referer", "https://magicstudio.com/ai-art-generator/")
	v.SetDefault("upstream.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("upstream.timeout", "60s")

	v.SetDefault("models.default", "magicstudio-ai-art")
	v.SetDefault("models.known", []string{"magicstudio-ai-art"})

	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")
}

func containsModel(known []string, name string) bool {
	for _, k := range known {
		if k == name {
			return true
		}
	}
	return false
}

func normalizeStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
