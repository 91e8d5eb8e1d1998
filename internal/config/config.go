package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env               string `mapstructure:"ENV"`
	Port              string `mapstructure:"PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	AdminKey          string `mapstructure:"ADMIN_KEY"`
	CORSAllowed       string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	DefaultBusinessID string `mapstructure:"DEFAULT_BUSINESS_ID"`

	// Semantic judgment collaborator (OpenAI-compatible endpoint).
	AIURL    string `mapstructure:"AI_URL"`
	AIModel  string `mapstructure:"AI_MODEL"`
	AIAPIKey string `mapstructure:"AI_API_KEY"`

	// SMS gateway. Empty SID selects the log-only sender.
	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `mapstructure:"TWILIO_FROM_NUMBER"`

	// Escalation state machine.
	EscalationTimeout time.Duration `mapstructure:"ESCALATION_TIMEOUT"`
	SweepInterval     time.Duration `mapstructure:"SWEEP_INTERVAL"`
	DispatchPolicy    string        `mapstructure:"DISPATCH_POLICY"`

	ReportCron string `mapstructure:"REPORT_CRON"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("DEFAULT_BUSINESS_ID", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("AI_MODEL", "gpt-4-turbo")
	v.SetDefault("ESCALATION_TIMEOUT", "300s")
	v.SetDefault("SWEEP_INTERVAL", "15s")
	v.SetDefault("DISPATCH_POLICY", "single")
	v.SetDefault("REPORT_CRON", "0 6 * * *")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
