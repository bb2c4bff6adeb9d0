package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/licitaware/procurement-match-backend/internal/domain/errors"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/cache"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/config"
)

// New builds a vectorizer by backend name. Remote and local backends are
// cached individually so a degraded hybrid never pollutes the remote
// keyspace with local vectors.
func New(backend string, cfg *config.EmbeddingConfig, vc cache.VectorCache, logger *zap.Logger) (Vectorizer, error) {
	if vc == nil {
		vc = cache.NoopVectorCache{}
	}

	switch backend {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, errors.NewValidationError("MISSING_API_KEY",
				"openai embedding backend requires an API key")
		}
		return NewCachedVectorizer(NewOpenAIVectorizer(&cfg.OpenAI), vc, logger), nil

	case "local":
		return NewCachedVectorizer(NewLocalVectorizer(cfg.Local.Dimensions), vc, logger), nil

	case "hybrid":
		if cfg.OpenAI.APIKey == "" {
			// No key means the remote leg can never succeed; run local only.
			return NewCachedVectorizer(NewLocalVectorizer(cfg.Local.Dimensions), vc, logger), nil
		}
		remote := NewCachedVectorizer(NewOpenAIVectorizer(&cfg.OpenAI), vc, logger)
		local := NewCachedVectorizer(NewLocalVectorizer(cfg.Local.Dimensions), vc, logger)
		return NewHybridVectorizer(remote, local, logger), nil

	case "mock":
		return NewMockVectorizer(), nil

	default:
		return nil, errors.NewValidationError("UNKNOWN_BACKEND",
			fmt.Sprintf("unknown embedding backend %q", backend))
	}
}
