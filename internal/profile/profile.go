package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the fact store server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where recollect stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// EmbeddingDim is the expected embedding dimension. 0 means no dimension
	// is enforced at the write boundary.
	EmbeddingDim int

	// Embedding provider configuration
	AIEnabled        bool   // RECOLLECT_AI_ENABLED
	AIBaseURL        string // RECOLLECT_AI_BASE_URL (default: https://api.openai.com/v1)
	AIAPIKey         string // RECOLLECT_AI_API_KEY
	AIEmbeddingModel string // RECOLLECT_AI_EMBEDDING_MODEL (default: text-embedding-3-small)

	// RunnerInterval is how often the re-embedding pass runs.
	RunnerInterval time.Duration
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the embedding provider is enabled and configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && p.AIAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from RECOLLECT_* environment variables.
func (p *Profile) FromEnv() {
	p.AIEnabled = os.Getenv("RECOLLECT_AI_ENABLED") == "true"
	p.AIBaseURL = getEnvOrDefault("RECOLLECT_AI_BASE_URL", "https://api.openai.com/v1")
	p.AIAPIKey = os.Getenv("RECOLLECT_AI_API_KEY")
	p.AIEmbeddingModel = getEnvOrDefault("RECOLLECT_AI_EMBEDDING_MODEL", "text-embedding-3-small")

	if v := os.Getenv("RECOLLECT_EMBEDDING_DIM"); v != "" {
		if dim, err := strconv.Atoi(v); err == nil && dim > 0 {
			p.EmbeddingDim = dim
		}
	}
	if v := os.Getenv("RECOLLECT_RUNNER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			p.RunnerInterval = d
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}

	if p.RunnerInterval <= 0 {
		p.RunnerInterval = 2 * time.Minute
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "recollect")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/recollect"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("recollect_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	return nil
}
