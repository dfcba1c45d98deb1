package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/config"
	dbRedis "github.com/kailas-cloud/vecmatch/internal/db/redis"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/query"
	"github.com/kailas-cloud/vecmatch/internal/repository/respcache"
)

// prefixInvalidator is the part of the response cache invalidate needs.
type prefixInvalidator interface {
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
}

func newInvalidateCmd(opts *rootOptions) *cobra.Command {
	var collection, partition string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Purge cached match responses of a collection or one partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := dbRedis.NewStore(dbRedis.Config{
				Addrs:    cfg.Database.Addrs,
				Password: cfg.Database.Password,
			})
			if err != nil {
				return fmt.Errorf("connect store: %w", err)
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			cache := respcache.New(store, time.Duration(cfg.Cache.TTLSec)*time.Second, nil, zap.NewNop())
			n, err := invalidate(ctx, cache, collection, partition)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %d cached responses\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name")
	cmd.Flags().StringVarP(&partition, "partition", "p", "",
		"partition key; empty purges the whole collection")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

// invalidate purges one partition scope plus the unscoped and by-id scopes,
// or the whole collection when partition is empty.
func invalidate(ctx context.Context, cache prefixInvalidator, collection, partition string) (int, error) {
	prefixes := []string{query.CollectionPrefix(collection)}
	if partition != "" {
		prefixes = []string{
			query.ScopePrefix(collection, partition),
			query.ScopePrefix(collection, ""),
			query.SourcePrefix(collection),
		}
	}
	total := 0
	for _, p := range prefixes {
		n, err := cache.InvalidatePrefix(ctx, p)
		if err != nil {
			return total, fmt.Errorf("invalidate %s: %w", p, err)
		}
		total += n
	}
	return total, nil
}
