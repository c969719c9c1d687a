package app

import (
	"fmt"

	"github.com/stratalabs/strata-backend/internal/clients/redis"
	"github.com/stratalabs/strata-backend/internal/platform/gcs"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type Clients struct {
	ObjectStore gcs.ObjectStore
	SearchFeed  redis.SearchFeed
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	store, err := gcs.NewObjectStore(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init object store: %w", err)
	}

	// The search feed is optional; without REDIS_ADDR the services treat a
	// nil feed as disabled and skip publishing.
	var feed redis.SearchFeed
	if cfg.SearchFeedOn {
		f, err := redis.NewSearchFeed(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init search feed: %w", err)
		}
		feed = f
	}

	return Clients{ObjectStore: store, SearchFeed: feed}, nil
}
