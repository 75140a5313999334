package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppCfg struct{ Env, Port, BaseURL string }
type DBCfg struct{ DSN string }
type RedisCfg struct{ Addr string }

type UploadCfg struct {
	Dir     string // local directory documents are written to
	BaseURL string // public prefix the stored URLs are built from
}

type DarajaCfg struct {
	Env            string // sandbox | production
	Shortcode      string
	Passkey        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	WebhookSecret  string // optional; verification is skipped when empty
}

type PaystackCfg struct {
	SecretKey   string
	CallbackURL string
}

type SecurityCfg struct {
	AdminToken      string
	RateLimitPerMin int
}

type Cfg struct {
	App      AppCfg
	DB       DBCfg
	Redis    RedisCfg
	Upload   UploadCfg
	Daraja   DarajaCfg
	Paystack PaystackCfg
	Sec      SecurityCfg
	// Provider selects the payment backend at startup: "daraja" or "paystack".
	Provider string
}

func Load() Cfg {
	// .env is optional; real deployments set process env directly.
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", "sandbox")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("PAYMENT_PROVIDER", "daraja")
	viper.SetDefault("RATE_LIMIT_PER_MIN", 300)
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("DARAJA_ENV", "sandbox")

	cfg := Cfg{
		App: AppCfg{
			Env:     viper.GetString("APP_ENV"),
			Port:    viper.GetString("APP_PORT"),
			BaseURL: viper.GetString("APP_BASE_URL"),
		},
		DB:    DBCfg{DSN: viper.GetString("DB_DSN")},
		Redis: RedisCfg{Addr: viper.GetString("REDIS_ADDR")},
		Upload: UploadCfg{
			Dir:     viper.GetString("UPLOAD_DIR"),
			BaseURL: viper.GetString("APP_BASE_URL") + "/uploads",
		},
		Daraja: DarajaCfg{
			Env:            viper.GetString("DARAJA_ENV"),
			Shortcode:      viper.GetString("DARAJA_SHORTCODE"),
			Passkey:        viper.GetString("DARAJA_PASSKEY"),
			ConsumerKey:    viper.GetString("DARAJA_CONSUMER_KEY"),
			ConsumerSecret: viper.GetString("DARAJA_CONSUMER_SECRET"),
			CallbackURL:    viper.GetString("DARAJA_CALLBACK_URL"),
			WebhookSecret:  viper.GetString("DARAJA_WEBHOOK_SECRET"),
		},
		Paystack: PaystackCfg{
			SecretKey:   viper.GetString("PAYSTACK_SECRET_KEY"),
			CallbackURL: viper.GetString("PAYSTACK_CALLBACK_URL"),
		},
		Sec: SecurityCfg{
			AdminToken:      strings.TrimSpace(viper.GetString("ADMIN_TOKEN")),
			RateLimitPerMin: viper.GetInt("RATE_LIMIT_PER_MIN"),
		},
		Provider: strings.ToLower(viper.GetString("PAYMENT_PROVIDER")),
	}

	if cfg.DB.DSN == "" {
		log.Fatal().Msg("DB_DSN is required")
	}
	if cfg.Provider != "daraja" && cfg.Provider != "paystack" {
		log.Fatal().Str("provider", cfg.Provider).Msg("PAYMENT_PROVIDER must be daraja or paystack")
	}
	return cfg
}
