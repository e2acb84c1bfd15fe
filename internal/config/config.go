// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Blockchain settings
	RPCURL        string
	ChainID       int64
	PrivateKey    string // Server wallet key, hex-encoded, 0x prefix optional
	ArenaContract string // DebateArena contract address (may be empty until deployed)
	ExplorerURL   string // Block explorer base URL for tx/address links

	// Arena defaults
	DefaultStake    string // Default arena stake in MON
	DefaultVote     string // Default spectator vote stake in MON
	DefaultDuration int64  // Default arena duration in seconds

	// Spectator voting gate
	MinSpectatorBalance string // Minimum MON balance for spectator voting rights
	GateFailOpen        bool   // Treat an unreachable balance RPC as passing

	// Security
	AdminSecret  string
	RateLimitRPS int

	// Tracing
	OTLPEndpoint string
}

// Monad testnet defaults
const (
	DefaultRPCURL      = "https://testnet-rpc.monad.xyz"
	DefaultChainID     = 10143 // Monad testnet
	DefaultExplorerURL = "https://testnet.monadscan.com"
	DefaultPort        = "8080"
	DefaultEnv         = "development"
	DefaultLogLevel    = "info"
	DefaultStakeMON    = "0.01"
	DefaultVoteMON     = "0.001"
	DefaultDurationSec = 600
	DefaultMinBalance  = "0.01"
	DefaultRateLimit   = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RPCURL:              getEnv("MONAD_RPC_URL", DefaultRPCURL),
		ChainID:             getEnvInt64("CHAIN_ID", DefaultChainID),
		PrivateKey:          os.Getenv("SERVER_WALLET_PRIVATE_KEY"),
		ArenaContract:       os.Getenv("DEBATE_ARENA_ADDRESS"), // Optional until the contract is deployed
		ExplorerURL:         getEnv("EXPLORER_URL", DefaultExplorerURL),
		DefaultStake:        getEnv("DEFAULT_STAKE", DefaultStakeMON),
		DefaultVote:         getEnv("DEFAULT_VOTE_STAKE", DefaultVoteMON),
		DefaultDuration:     getEnvInt64("DEFAULT_DURATION_SECONDS", DefaultDurationSec),
		MinSpectatorBalance: getEnv("MIN_SPECTATOR_BALANCE", DefaultMinBalance),
		GateFailOpen:        getEnvBool("GATE_FAIL_OPEN", true),
		AdminSecret:         os.Getenv("ADMIN_SECRET"),
		RateLimitRPS:        int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are well-formed. The signing key
// and contract address are allowed to be absent: on-chain operations report
// their own error at call time, so the debate layer works without them.
func (c *Config) Validate() error {
	if c.PrivateKey != "" {
		key := strings.TrimPrefix(c.PrivateKey, "0x")
		if len(key) != 64 {
			return fmt.Errorf("SERVER_WALLET_PRIVATE_KEY must be 64 hex characters (with or without 0x prefix)")
		}
	}

	if c.RPCURL == "" {
		return fmt.Errorf("MONAD_RPC_URL is required")
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
