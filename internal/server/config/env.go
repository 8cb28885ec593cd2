package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type lookupFunc func(key string) (string, bool)

var lookupEnv lookupFunc = os.LookupEnv

// loadDotEnv reads .env from the working directory when present. Variables
// already set in the process environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		panic(err)
	}
}

// parseEnv overlays values from the environment. Variable names are the
// ones the deployment already uses.
func parseEnv(c *Config, lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		c.HTTPAddr = ":" + strings.TrimPrefix(v, ":")
	}
	str("DATABASE_URL", &c.DatabaseDSN)
	str("REDIS_URL", &c.RedisURL)
	str("JWT_SECRET", &c.JWTSecret)
	dur("JWT_TTL", &c.AccessTokenValidity)
	str("ENCRYPTION_SECRET", &c.EncryptionSecret)
	str("RPC_URL", &c.RPCURL)
	str("CONTRACT_ADDRESS", &c.ContractAddress)
	str("PRIVATE_KEY", &c.CustodianKey)
	dur("CONFIRMATION_TIMEOUT", &c.ConfirmationTimeout)
	dur("POLL_INTERVAL", &c.PollInterval)
	str("FALLBACK_GAS_PRICE_WEI", &c.FallbackGasPriceWei)
	str("USD_PER_COIN", &c.USDPerCoin)
	dur("QR_TTL", &c.QRTTL)
	dur("SMS_CODE_TTL", &c.SMSCodeTTL)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_ENDPOINT", &c.S3BaseEndpoint)
	dur("S3_PRESIGN_TTL", &c.S3PresignTTL)
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_BACKEND", &c.LogBackend)
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
