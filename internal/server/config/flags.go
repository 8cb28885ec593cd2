package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/flagx"
)

// parseFlags overlays selected settings from short command-line flags.
//
//	-a string   HTTP bind address (":3000")
//	-d string   PostgreSQL DSN
//	-r string   ledger JSON-RPC URL
//	-x string   ticket contract address
//	-q string   Redis URL
//	-t int      access token validity, minutes
//	-w int      confirmation timeout, seconds
//	-l string   log level
//
// Secrets have no flags.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-r", "-x", "-q", "-t", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RPCURL, "r", config.RPCURL, "ledger JSON-RPC URL")
	fs.StringVar(&config.ContractAddress, "x", config.ContractAddress, "ticket contract address")
	fs.StringVar(&config.RedisURL, "q", config.RedisURL, "redis URL")

	tokenMinutes := fs.Int("t", int(config.AccessTokenValidity.Minutes()), "access token validity (in minutes)")
	waitSeconds := fs.Int("w", int(config.ConfirmationTimeout.Seconds()), "confirmation timeout (in seconds)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidity = time.Duration(*tokenMinutes) * time.Minute
	config.ConfirmationTimeout = time.Duration(*waitSeconds) * time.Second
}
