package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	SupabaseURL         string // storage sign URLs for supporting documents
	SupabaseSecretKey   string // service_role key, not anon key
	DocumentBucket      string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	SendinblueAPIKey    string // SENDINBLUE_API_KEY for credit/certificate notifications (Brevo)
	MailFrom            string
	LogLevel            string

	CertificatePrefix    string
	CertificateCredits   float64
	DiplomaCredits       float64
	PGDiplomaCredits     float64
	ExtraUmbrellas       []string
	IdempotencyTTL       time.Duration
	ReconcileConcurrency int
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DOCUMENT_BUCKET", "credit-documents")
	viper.SetDefault("MAIL_FROM", "noreply@bprd.gov.in")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CERTIFICATE_PREFIX", "BPRD")
	viper.SetDefault("CERTIFICATE_CREDITS", 20)
	viper.SetDefault("DIPLOMA_CREDITS", 30)
	viper.SetDefault("PG_DIPLOMA_CREDITS", 40)
	viper.SetDefault("IDEMPOTENCY_TTL", "24h")
	viper.SetDefault("RECONCILE_CONCURRENCY", 4)

	env := viper.GetString("APP_ENV")

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	ttl := viper.GetDuration("IDEMPOTENCY_TTL")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	concurrency := viper.GetInt("RECONCILE_CONCURRENCY")
	if concurrency < 1 {
		concurrency = 1
	}

	return &Config{
		Env:                  env,
		Port:                 viper.GetString("PORT"),
		SessionSecret:        viper.GetString("SESSION_SECRET"),
		DatabaseURL:          dbURL,
		RedisURL:             viper.GetString("REDIS_URL"),
		SupabaseURL:          viper.GetString("SUPABASE_URL"),
		SupabaseSecretKey:    viper.GetString("SUPABASE_SECRET_KEY"),
		DocumentBucket:       viper.GetString("DOCUMENT_BUCKET"),
		FrontendURLEndsWith:  viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:          viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:    strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:       viper.GetString("HEALTH_ADMIN_KEY"),
		SendinblueAPIKey:     viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:             viper.GetString("MAIL_FROM"),
		LogLevel:             viper.GetString("LOG_LEVEL"),
		CertificatePrefix:    viper.GetString("CERTIFICATE_PREFIX"),
		CertificateCredits:   viper.GetFloat64("CERTIFICATE_CREDITS"),
		DiplomaCredits:       viper.GetFloat64("DIPLOMA_CREDITS"),
		PGDiplomaCredits:     viper.GetFloat64("PG_DIPLOMA_CREDITS"),
		ExtraUmbrellas:       splitList(viper.GetString("EXTRA_UMBRELLAS")),
		IdempotencyTTL:       ttl,
		ReconcileConcurrency: concurrency,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
