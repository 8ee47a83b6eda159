package config

import (
	"flag"
	"os"
	"time"

	"github.com/babelscrib/babelscrib/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   session token HMAC secret key
//	-b string   shared source container name
//	-t string   shared target container name
//	-i int      session idle threshold, hours
//	-r int      target retention threshold, hours
//	-n string   translation service endpoint
//	-k string   translation service API key
//	-w int      translation wait timeout, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-b", "-t", "-i", "-r", "-n", "-k", "-w", "-u", "-p", "-g", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SourceContainer, "b", config.SourceContainer, "shared source container")
	fs.StringVar(&config.TargetContainer, "t", config.TargetContainer, "shared target container")

	sessionIdleHours := fs.Int("i", int(config.SessionIdleThreshold.Hours()), "session idle threshold (in hours)")
	targetRetentionHours := fs.Int("r", int(config.TargetRetentionThreshold.Hours()), "target retention threshold (in hours)")

	fs.StringVar(&config.TranslatorEndpoint, "n", config.TranslatorEndpoint, "translation service endpoint")
	fs.StringVar(&config.TranslatorAPIKey, "k", config.TranslatorAPIKey, "translation service API key")

	waitTimeoutMinutes := fs.Int("w", int(config.TranslationWaitTimeout.Minutes()), "translation wait timeout (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionIdleThreshold = time.Duration(*sessionIdleHours) * time.Hour
	config.TargetRetentionThreshold = time.Duration(*targetRetentionHours) * time.Hour
	config.TranslationWaitTimeout = time.Duration(*waitTimeoutMinutes) * time.Minute
}
