package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

const (
	OpIndex  = "index"
	OpDelete = "delete"

	DocTypeDataset = "dataset"
	DocTypeFile    = "file"
)

// Document is the envelope published for every index mutation. A downstream
// indexer subscribes to the channel and applies ops in arrival order; Doc is
// only set for index ops.
type Document struct {
	Op      string         `json:"op"`
	DocType string         `json:"doc_type"`
	ID      string         `json:"id"`
	Doc     map[string]any `json:"doc,omitempty"`
}

type SearchFeed interface {
	Publish(ctx context.Context, doc Document) error
	Close() error
}

type searchFeed struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewSearchFeed(log *logger.Logger) (SearchFeed, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "search"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &searchFeed{
		log:     log.With("service", "RedisSearchFeed"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (f *searchFeed) Publish(ctx context.Context, doc Document) error {
	if f == nil || f.rdb == nil {
		return fmt.Errorf("redis search feed not initialized")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, raw).Err()
}

func (f *searchFeed) Close() error {
	if f == nil || f.rdb == nil {
		return nil
	}
	return f.rdb.Close()
}
