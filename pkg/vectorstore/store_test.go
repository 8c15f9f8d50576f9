package vectorstore

import (
	"banking-kb-go/internal/config"
)

func configWithBackend(backend string) config.VectorStoreConfig {
	return config.VectorStoreConfig{Backend: backend}
}
