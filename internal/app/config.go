package app

import (
	"github.com/stratalabs/strata-backend/internal/platform/envutil"
	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

type Config struct {
	SearchFeedOn bool
	AutoMigrate  bool
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		SearchFeedOn: envutil.String("REDIS_ADDR", "") != "",
		AutoMigrate:  envutil.Bool("DB_AUTOMIGRATE", true),
	}
	log.Info("config loaded",
		"search_feed", cfg.SearchFeedOn,
		"automigrate", cfg.AutoMigrate,
	)
	return cfg
}
