package config

import (
	"fmt"
	"os"
	"strings"
)

type Gateway struct {
	MerchantID string
	Secret     string
	GatewayURL string
	ServiceID  string
	AllowIPs   []string
}

type Config struct {
	ListenAddr  string
	DatabaseURL string
	RedisAddr   string

	ReferenceCurrency string

	Cardlink Gateway
	ERIPBill Gateway
	AcqBank  Gateway

	FiscalRegisterURL string
	FiscalRegisterKey string
	FiscalCountries   []string

	FiscalWorkers int
}

// Load reads the configuration from the environment. Only the database and
// Redis addresses are mandatory; a gateway with an empty secret is simply not
// registered.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:        envOr("LISTEN_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         envOr("REDIS_ADDR", "localhost:6379"),
		ReferenceCurrency: envOr("REFERENCE_CURRENCY", "RUB"),

		Cardlink: Gateway{
			MerchantID: os.Getenv("CARDLINK_MERCHANT_ID"),
			Secret:     os.Getenv("CARDLINK_SECRET"),
			GatewayURL: envOr("CARDLINK_CHECKOUT_URL", "https://pay.cardlink.example/checkout"),
		},
		ERIPBill: Gateway{
			ServiceID: os.Getenv("ERIP_SERVICE_ID"),
			AllowIPs:  splitList(os.Getenv("ERIP_ALLOW_CIDRS")),
		},
		AcqBank: Gateway{
			Secret:     os.Getenv("ACQBANK_SECRET"),
			GatewayURL: envOr("ACQBANK_GATEWAY_URL", "https://securepayments.example.ru/payment"),
			AllowIPs:   splitList(os.Getenv("ACQBANK_ALLOW_IPS")),
		},

		FiscalRegisterURL: os.Getenv("FISCAL_REGISTER_URL"),
		FiscalRegisterKey: os.Getenv("FISCAL_REGISTER_KEY"),
		FiscalCountries:   splitList(envOr("FISCAL_COUNTRIES", "ru")),

		FiscalWorkers: 1,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is empty")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
