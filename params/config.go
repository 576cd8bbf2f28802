package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries everything the exchange reads from the environment. The
// product file and the trader executables come from the command line, not
// from here.
type Config struct {
	// APIAddr enables the observer REST/websocket server when non-empty,
	// e.g. ":8080".
	APIAddr string
	// JournalPath enables the Pebble fill journal when non-empty.
	JournalPath string
	// LogFile tees structured logs to a file when non-empty.
	LogFile string
	// SendQueue is the per-trader outbound message buffer depth.
	SendQueue int
	// Debug raises log verbosity.
	Debug bool
}

func Default() Config {
	return Config{
		SendQueue: 256,
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.APIAddr = getEnv("SPX_API_ADDR", cfg.APIAddr)
	cfg.JournalPath = getEnv("SPX_JOURNAL_PATH", cfg.JournalPath)
	cfg.LogFile = getEnv("SPX_LOG_FILE", cfg.LogFile)
	if q := os.Getenv("SPX_SEND_QUEUE"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			cfg.SendQueue = n
		}
	}
	cfg.Debug = os.Getenv("SPX_DEBUG") == "true"

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
