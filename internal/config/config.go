package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Dialect       string            `mapstructure:"dialect"`
	ExpressionKey string            `mapstructure:"expression_key"`
	Values        bool              `mapstructure:"values"`
	Glue          map[string]string `mapstructure:"glue"`
	Log           LogConfig         `mapstructure:"log"`
	Redis         RedisConfig       `mapstructure:"redis"`
	HTTP          HTTPConfig        `mapstructure:"http"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// RedisConfig points at a hash holding render context values.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Key  string `mapstructure:"key"`
}

// HTTPConfig holds settings for the serve command.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// EnvConfig names the variable that points at a config file.
const EnvConfig = "EXPRENDER_CONFIG"

// Load reads configuration from defaults, an optional yaml file and env.
// path takes precedence over EXPRENDER_CONFIG; when neither is set the file
// is looked up as ~/.config/exprender/config.yaml and may be absent. Env var
// overrides use prefix EXPRENDER_.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("dialect", "go")
	v.SetDefault("expression_key", "expression")
	v.SetDefault("values", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.key", "")
	v.SetDefault("http.addr", ":8080")

	v.SetConfigType("yaml")

	explicit := strings.TrimSpace(path)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvConfig))
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "exprender"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("EXPRENDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
