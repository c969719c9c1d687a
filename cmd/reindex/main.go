package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stratalabs/strata-backend/internal/app"
	types "github.com/stratalabs/strata-backend/internal/domain"
	"github.com/stratalabs/strata-backend/internal/platform/dbctx"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var sets idList
	var concurrency int
	flag.Var(&sets, "dataset", "dataset id to reindex (repeatable; default all)")
	flag.IntVar(&concurrency, "concurrency", 4, "datasets reindexed in parallel")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if !application.Cfg.SearchFeedOn {
		fmt.Println("REDIS_ADDR is not set; nothing to publish to")
		os.Exit(1)
	}

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	var datasets []*types.Dataset
	if len(sets) > 0 {
		for _, s := range sets {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				fmt.Printf("invalid dataset id %q\n", s)
				os.Exit(1)
			}
			ds, err := application.Services.Dataset.Get(dbc, id)
			if err != nil {
				fmt.Printf("dataset %s: %v\n", id, err)
				os.Exit(1)
			}
			datasets = append(datasets, ds)
		}
	} else {
		datasets, err = application.Services.Dataset.List(dbc, nil, 0, 0)
		if err != nil {
			fmt.Printf("list datasets: %v\n", err)
			os.Exit(1)
		}
	}
	if len(datasets) == 0 {
		fmt.Println("no datasets to reindex")
		return
	}

	if concurrency < 1 {
		concurrency = 1
	}
	var published atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, ds := range datasets {
		ds := ds
		g.Go(func() error {
			n, err := application.Services.SearchFeed.ReindexDataset(dbctx.Context{Ctx: gctx}, ds.ID)
			if err != nil {
				return fmt.Errorf("dataset %s: %w", ds.ID, err)
			}
			published.Add(int64(n))
			fmt.Printf("reindexed %s (%d docs)\n", ds.ID, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Printf("reindex failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("done: %d datasets, %d documents\n", len(datasets), published.Load())
}
