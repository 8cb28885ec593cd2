package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/flagx"
	"github.com/dmitrijs2005/ticketkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Zero values leave
// the corresponding setting untouched.
type JsonConfig struct {
	HTTPAddr            string         `json:"http_addr"`
	DatabaseDSN         string         `json:"database_dsn"`
	RedisURL            string         `json:"redis_url"`
	JWTSecret           string         `json:"jwt_secret"`
	AccessTokenValidity timex.Duration `json:"access_token_validity"`
	EncryptionSecret    string         `json:"encryption_secret"`
	RPCURL              string         `json:"rpc_url"`
	ContractAddress     string         `json:"contract_address"`
	CustodianKey        string         `json:"custodian_key"`
	ConfirmationTimeout timex.Duration `json:"confirmation_timeout"`
	PollInterval        timex.Duration `json:"poll_interval"`
	FallbackGasPriceWei string         `json:"fallback_gas_price_wei"`
	USDPerCoin          string         `json:"usd_per_coin"`
	QRTTL               timex.Duration `json:"qr_ttl"`
	SMSCodeTTL          timex.Duration `json:"sms_code_ttl"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	S3PresignTTL        timex.Duration `json:"s3_presign_ttl"`
	CORSOrigins         []string       `json:"cors_origins"`
	LogLevel            string         `json:"log_level"`
	LogBackend          string         `json:"log_backend"`
}

// parseJson overlays the file named by -c/-config, if any. An unreadable
// file or invalid JSON panics.
func parseJson(config *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setDur := func(dst *time.Duration, v timex.Duration) {
		if v.Duration != 0 {
			*dst = v.Duration
		}
	}

	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.RedisURL, c.RedisURL)
	set(&config.JWTSecret, c.JWTSecret)
	setDur(&config.AccessTokenValidity, c.AccessTokenValidity)
	set(&config.EncryptionSecret, c.EncryptionSecret)
	set(&config.RPCURL, c.RPCURL)
	set(&config.ContractAddress, c.ContractAddress)
	set(&config.CustodianKey, c.CustodianKey)
	setDur(&config.ConfirmationTimeout, c.ConfirmationTimeout)
	setDur(&config.PollInterval, c.PollInterval)
	set(&config.FallbackGasPriceWei, c.FallbackGasPriceWei)
	set(&config.USDPerCoin, c.USDPerCoin)
	setDur(&config.QRTTL, c.QRTTL)
	setDur(&config.SMSCodeTTL, c.SMSCodeTTL)
	set(&config.S3AccessKey, c.S3AccessKey)
	set(&config.S3SecretKey, c.S3SecretKey)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDur(&config.S3PresignTTL, c.S3PresignTTL)
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	set(&config.LogLevel, c.LogLevel)
	set(&config.LogBackend, c.LogBackend)
}
