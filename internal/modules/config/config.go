package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	defaultConfigFile = "configs/values_local.yaml"
)

// Config параметры процесса: креды, адреса, координаты KV, дефолты кванта.
// Всё, что можно менять на лету, живёт в документе configstore.
type Config struct {
	HTX struct {
		AccessKey      string
		SecretKey      string
		WSPrivateURL   string
		WSMarketURL    string
		RestURL        string
		PositionsTopic string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	KVNamespace string

	Bark struct {
		Server string
		Key    string
	}
	Telegram struct {
		Token   string
		ChatID  int64
		APIBase string
	}
	NotifyDedupWindow time.Duration

	QuantModeDefault   string
	QuantSymbolDefault string

	DB     string
	Jaeger struct {
		Host string
		Port int
	}
	HealthAddr string

	LogLevel string
	LogFile  string
}

// NewConfig .env -> yaml-файл (если есть) -> переменные окружения.
func NewConfig() (*Config, error) {
	return load(true)
}

// NewToolConfig для утилит оператора: ключи биржи не обязательны.
func NewToolConfig() (*Config, error) {
	return load(false)
}

func load(requireCreds bool) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	file := os.Getenv(configFilePathENV)
	if file == "" {
		file = defaultConfigFile
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) && !isPathErr(err) {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	return fromViper(v, requireCreds)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("htx_ws_private_url", "wss://api.hbdm.com/linear-swap-notification")
	v.SetDefault("htx_ws_market_url", "wss://api.hbdm.com/linear-swap-ws")
	v.SetDefault("htx_rest_url", "https://api.hbdm.com")
	v.SetDefault("htx_positions_topic", "positions_cross.*")
	v.SetDefault("redis_db", 0)
	v.SetDefault("kv_namespace", "monitor")
	v.SetDefault("telegram_api_base", "https://api.telegram.org")
	v.SetDefault("notify_dedup_window", "30s")
	v.SetDefault("quant_mode_default", "paper")
	v.SetDefault("quant_symbol_default", "ETH-USDT")
	v.SetDefault("jaeger_port", 0)
	v.SetDefault("health_addr", ":8080")
	v.SetDefault("log_level", "info")

	// без BindEnv AutomaticEnv не увидит ключи, которых нет в файле и дефолтах
	for _, k := range []string{
		"htx_access_key", "htx_secret_key", "redis_addr", "redis_password",
		"bark_server", "bark_key", "telegram_token", "telegram_chat_id",
		"database_dsn", "jaeger_host", "log_file",
	} {
		_ = v.BindEnv(k)
	}
}

func fromViper(v *viper.Viper, requireCreds bool) (*Config, error) {
	cfg := &Config{}

	cfg.HTX.AccessKey = v.GetString("htx_access_key")
	cfg.HTX.SecretKey = v.GetString("htx_secret_key")
	if requireCreds && (cfg.HTX.AccessKey == "" || cfg.HTX.SecretKey == "") {
		return nil, errors.New("env HTX_ACCESS_KEY and HTX_SECRET_KEY are required")
	}
	cfg.HTX.WSPrivateURL = v.GetString("htx_ws_private_url")
	cfg.HTX.WSMarketURL = v.GetString("htx_ws_market_url")
	cfg.HTX.RestURL = strings.TrimRight(v.GetString("htx_rest_url"), "/")
	cfg.HTX.PositionsTopic = v.GetString("htx_positions_topic")

	cfg.Redis.Addr = v.GetString("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")
	cfg.KVNamespace = v.GetString("kv_namespace")

	cfg.Bark.Server = strings.TrimRight(v.GetString("bark_server"), "/")
	cfg.Bark.Key = v.GetString("bark_key")
	cfg.Telegram.Token = v.GetString("telegram_token")
	cfg.Telegram.ChatID = v.GetInt64("telegram_chat_id")
	cfg.Telegram.APIBase = strings.TrimRight(v.GetString("telegram_api_base"), "/")
	cfg.NotifyDedupWindow = v.GetDuration("notify_dedup_window")

	cfg.QuantModeDefault = strings.ToLower(v.GetString("quant_mode_default"))
	if cfg.QuantModeDefault != "paper" && cfg.QuantModeDefault != "live" {
		return nil, fmt.Errorf("QUANT_MODE_DEFAULT must be paper|live, got %q", cfg.QuantModeDefault)
	}
	cfg.QuantSymbolDefault = strings.ToUpper(v.GetString("quant_symbol_default"))

	cfg.DB = v.GetString("database_dsn")
	cfg.Jaeger.Host = v.GetString("jaeger_host")
	cfg.Jaeger.Port = v.GetInt("jaeger_port")
	cfg.HealthAddr = v.GetString("health_addr")

	cfg.LogLevel = v.GetString("log_level")
	cfg.LogFile = v.GetString("log_file")

	return cfg, nil
}

func isPathErr(err error) bool {
	var pe *os.PathError
	return errors.As(err, &pe)
}
