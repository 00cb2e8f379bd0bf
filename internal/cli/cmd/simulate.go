package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/avolkhov/sessionkit/internal/cache/totals"
	"github.com/avolkhov/sessionkit/internal/dedup"
	"github.com/avolkhov/sessionkit/internal/telemetry"
)

var (
	simWorkers  int
	simOps      int
	simProducts int
	simSeed     int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a synthetic storefront workload",
	Long: `simulate drives the coordination layer the way a busy storefront
session would: concurrent product fetches deduplicated per key,
cached detail lookups, cart totals with invalidation, debounced
searches, and a stream of interaction events through the batcher.

Useful for eyeballing eviction and batching behaviour against a
local ingest endpoint.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		app := sessionApp
		log := app.Log()

		userID := "user-" + uuid.NewString()[:8]
		app.Login(userID)

		products := make([]string, simProducts)
		for i := range products {
			products[i] = "prod-" + uuid.NewString()[:8]
		}

		start := time.Now()
		var fetches, cacheHits atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(simWorkers)

		for w := 0; w < simWorkers; w++ {
			rng := rand.New(rand.NewSource(simSeed + int64(w)))
			g.Go(func() error {
				for i := 0; i < simOps; i++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					pid := products[rng.Intn(len(products))]

					switch rng.Intn(5) {
					case 0: // deduplicated product fetch
						_, err := dedup.Do(gctx, app.Dedup, "product:"+pid,
							func(ctx context.Context) (string, error) {
								time.Sleep(time.Duration(rng.Intn(5)) * time.Millisecond)
								return pid, nil
							}, dedup.Options{})
						if err != nil {
							return err
						}
						fetches.Add(1)
					case 1: // cached detail lookup
						if _, ok := app.Cache.Get("products", pid, 0); ok {
							cacheHits.Add(1)
						} else {
							app.Cache.Set("products", pid, pid)
						}
						app.Batcher.Record(telemetry.EventImpression, pid, "shop-main")
					case 2: // cart churn with totals invalidation
						items := products[:1+rng.Intn(3)]
						app.Totals.Set(userID, items, totals.Totals{
							Total:    float64(len(items)) * 9.99,
							Currency: "EUR",
						})
						app.Batcher.Record(telemetry.EventCartAdded, pid, "shop-main")
						if rng.Intn(4) == 0 {
							app.Totals.InvalidateForUser(userID)
							app.Batcher.Record(telemetry.EventCartRemoved, pid, "shop-main")
						}
					case 3: // debounced search keystrokes
						app.Debounce.Call("search", 50*time.Millisecond, func() {
							app.Cache.Set("search", pid, pid)
						})
						app.Batcher.Record(telemetry.EventClick, pid, "shop-main")
					case 4: // favorites
						app.Batcher.Record(telemetry.EventFavoriteAdded, pid, "shop-main")
					}
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return fmt.Errorf("workload: %w", err)
		}

		// Let trailing debounces land, then push whatever is buffered.
		time.Sleep(100 * time.Millisecond)
		if err := app.Batcher.Flush(ctx); err != nil {
			log.Warn().Err(err).Msg("final flush failed, events remain durable")
		}

		status := app.Batcher.Status()
		fmt.Printf("simulated %d ops across %d workers in %s\n",
			simWorkers*simOps, simWorkers, time.Since(start).Round(time.Millisecond))
		fmt.Printf("dedup fetches: %d  cache hits: %d  totals entries: %d\n",
			fetches.Load(), cacheHits.Load(), app.Totals.Len())
		fmt.Printf("batcher: state=%s buffered=%d\n", status.State, status.BufferLen)
		for ns, st := range app.Cache.StatsAll() {
			fmt.Printf("cache %-10s size=%d hits=%d misses=%d evictions=%d\n",
				ns, st.Size, st.Hits, st.Misses, st.Evictions)
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simWorkers, "workers", 4, "concurrent workers")
	simulateCmd.Flags().IntVar(&simOps, "ops", 200, "operations per worker")
	simulateCmd.Flags().IntVar(&simProducts, "products", 40, "distinct product ids")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", time.Now().UnixNano(), "workload random seed")
	rootCmd.AddCommand(simulateCmd)
}
