package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		ExternalAPI struct {
			Port      string `mapstructure:"port"`
			CertFile  string `mapstructure:"certFile"`
			KeyFile   string `mapstructure:"keyFile"`
			EnableTLS bool   `mapstructure:"enableTLS"`
		} `mapstructure:"externalAPI"`
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
		Redis RedisConfig `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Planning PlanningConfig `mapstructure:"planning"`
	Relay    RelayConfig    `mapstructure:"relay"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	JWT      JWTConfig      `mapstructure:"jwt"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LLMConfig selects the completion vendor at startup. API keys are read from
// the environment, never from the config file.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

type PlanningConfig struct {
	DefaultCurrency string        `mapstructure:"defaultCurrency"`
	SessionTTL      time.Duration `mapstructure:"sessionTTL"`
	HistoryLimit    int           `mapstructure:"historyLimit"`
}

type RelayConfig struct {
	QuietPeriod   time.Duration `mapstructure:"quietPeriod"`
	SettleDelay   time.Duration `mapstructure:"settleDelay"`
	SafetyTimeout time.Duration `mapstructure:"safetyTimeout"`
}

type WhatsAppConfig struct {
	AccountSID         string        `mapstructure:"accountSID"`
	AuthToken          string        `mapstructure:"authToken"`
	From               string        `mapstructure:"from"`
	APIBaseURL         string        `mapstructure:"apiBaseURL"`
	WebhookURL         string        `mapstructure:"webhookURL"`
	RateLimitPerMinute int           `mapstructure:"rateLimitPerMinute"`
	OTPTTL             time.Duration `mapstructure:"otpTTL"`
}

type JWTConfig struct {
	SecretKey string `mapstructure:"secretKey"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Env overrides, e.g. JWT_SECRETKEY or REPOSITORIES_REDIS_ADDR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	config.applyDefaults()
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "gemini"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.0-flash"
	}
	if c.Planning.DefaultCurrency == "" {
		c.Planning.DefaultCurrency = "INR"
	}
	if c.Planning.SessionTTL == 0 {
		c.Planning.SessionTTL = 24 * time.Hour
	}
	if c.Planning.HistoryLimit == 0 {
		c.Planning.HistoryLimit = 10
	}
	if c.Relay.QuietPeriod == 0 {
		c.Relay.QuietPeriod = 3 * time.Second
	}
	if c.Relay.SettleDelay == 0 {
		c.Relay.SettleDelay = 500 * time.Millisecond
	}
	if c.Relay.SafetyTimeout == 0 {
		c.Relay.SafetyTimeout = 90 * time.Second
	}
	if c.WhatsApp.RateLimitPerMinute == 0 {
		c.WhatsApp.RateLimitPerMinute = 20
	}
	if c.WhatsApp.AuthToken == "" {
		c.WhatsApp.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if c.WhatsApp.OTPTTL == 0 {
		c.WhatsApp.OTPTTL = 5 * time.Minute
	}
}
