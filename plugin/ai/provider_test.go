package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/recollect/internal/profile"
)

func TestNewConfigFromProfile(t *testing.T) {
	p := &profile.Profile{
		AIBaseURL:        "http://localhost:8080/v1",
		AIAPIKey:         "sk-test",
		AIEmbeddingModel: "nomic-embed-text",
	}
	cfg := NewConfigFromProfile(p)

	assert.Equal(t, "http://localhost:8080/v1", cfg.BaseURL)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
}

func TestNewConfigFromProfileDefaults(t *testing.T) {
	cfg := NewConfigFromProfile(&profile.Profile{AIAPIKey: "sk-test"})

	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestNewProviderFillsZeroValues(t *testing.T) {
	provider, err := NewProvider(&Config{APIKey: "sk-test"})
	require.NoError(t, err)

	assert.Equal(t, 3, provider.config.MaxRetries)
	assert.Equal(t, 30*time.Second, provider.config.Timeout)
	assert.Equal(t, "text-embedding-3-small", provider.config.EmbeddingModel)
}

func TestValidateRequiresAPIKey(t *testing.T) {
	provider, err := NewProvider(&Config{})
	require.NoError(t, err)

	err = provider.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}
