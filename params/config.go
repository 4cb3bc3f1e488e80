package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Server struct {
	APIAddr        string
	AllowedOrigins []string
}

type Settlement struct {
	// ChainID scopes order signatures to one deployment.
	ChainID int64
	// FeeHolder receives every fee and captured-spread transfer.
	FeeHolder string
	// WalletSplitPct is validated in [0,100] by the planner. Wallet fee
	// splitting is currently disabled, so the value is plumbed but unused.
	WalletSplitPct int
}

type Storage struct {
	DBPath string
}

type Config struct {
	Server     Server
	Settlement Settlement
	Storage    Storage
	LogFile    string
}

func Default() Config {
	return Config{
		Server: Server{
			APIAddr:        ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Settlement: Settlement{
			ChainID:        1337,
			FeeHolder:      "0x00000000000000000000000000000000000000fe",
			WalletSplitPct: 20,
		},
		Storage: Storage{DBPath: "data/ringdex"},
		LogFile: "data/relayd.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.Server.APIAddr = addr
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.Settlement.ChainID = id
		}
	}
	if holder := os.Getenv("FEE_HOLDER"); holder != "" {
		cfg.Settlement.FeeHolder = holder
	}
	if split := os.Getenv("WALLET_SPLIT_PCT"); split != "" {
		if pct, err := strconv.Atoi(split); err == nil {
			cfg.Settlement.WalletSplitPct = pct
		}
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}

	return cfg
}
