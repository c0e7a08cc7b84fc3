package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/metrics/export/prometheus"
	"github.com/MrEthical07/authsession/session"
)

type loadtestOptions struct {
	sessions    int
	racers      int
	concurrency int
	metrics     bool
}

func newLoadtestCmd(opts *rootOptions) *cobra.Command {
	lt := &loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Race concurrent completions per session and verify a single winner",
		Long: "Seeds sessions, then races --racers MarkSessionUsed calls on each one. " +
			"Exactly one call per session must succeed. Without a configured Redis " +
			"address the redis backend runs against an in-process miniredis.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lt.sessions <= 0 || lt.racers <= 0 || lt.concurrency <= 0 {
				return errors.New("sessions, racers and concurrency must be > 0")
			}

			cfg, err := opts.config()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if cfg.ResolveBackend() == authsession.BackendRedis && cfg.Redis.Addr == "" {
				mr, err := miniredis.Run()
				if err != nil {
					return fmt.Errorf("start miniredis: %w", err)
				}
				defer mr.Close()
				cfg.Backend = authsession.BackendRedis
				cfg.Redis.Addr = mr.Addr()
				fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
			}

			logger := slog.New(slog.DiscardHandler)
			if opts.verbose {
				logger = opts.logger
			}
			store, err := authsession.New().WithConfig(cfg).WithLogger(logger).Build()
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintf(out, "backend %s: seeding %d sessions...\n", store.Backend(), lt.sessions)
			ids, err := seed(cmd.Context(), store, lt.sessions)
			if err != nil {
				return err
			}

			res := race(cmd.Context(), store, ids, lt.racers, lt.concurrency)
			printResult(out, res)

			if lt.metrics {
				fmt.Fprint(out, prometheus.NewPrometheusExporter(store).Render(cmd.Context()))
			}
			if res.badSessions > 0 {
				return fmt.Errorf("%d sessions did not have exactly one winner", res.badSessions)
			}
			if res.failures > 0 {
				return fmt.Errorf("%d completion attempts failed unexpectedly", res.failures)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&lt.sessions, "sessions", 1000, "number of sessions to seed")
	flags.IntVar(&lt.racers, "racers", 8, "concurrent completions per session")
	flags.IntVar(&lt.concurrency, "concurrency", 32, "sessions raced in parallel")
	flags.BoolVar(&lt.metrics, "metrics", false, "print store metrics in Prometheus format")
	return cmd
}

func seed(ctx context.Context, store *authsession.Store, n int) ([]string, error) {
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		sess, err := store.CreateSession(ctx, loadtestRequest(i))
		if err != nil {
			return nil, fmt.Errorf("seed session %d: %w", i, err)
		}
		ids[i] = sess.ID
	}
	return ids, nil
}

type raceResult struct {
	total       time.Duration
	attempts    int
	winners     int64
	rejected    int64
	failures    int64
	badSessions int64
	p50         time.Duration
	p95         time.Duration
	p99         time.Duration
}

func race(ctx context.Context, store *authsession.Store, ids []string, racers, concurrency int) raceResult {
	var (
		wg        sync.WaitGroup
		cursor    int64
		res       raceResult
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, len(ids)*racers)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(ids) {
					return
				}

				var (
					inner   sync.WaitGroup
					winners int64
					gate    = make(chan struct{})
				)
				samples := make([]time.Duration, racers)
				for r := 0; r < racers; r++ {
					inner.Add(1)
					go func(r int) {
						defer inner.Done()
						<-gate
						t0 := time.Now()
						err := store.MarkSessionUsed(ctx, ids[i])
						samples[r] = time.Since(t0)
						switch {
						case err == nil:
							atomic.AddInt64(&winners, 1)
						case errors.Is(err, authsession.ErrSessionAlreadyUsed):
							atomic.AddInt64(&res.rejected, 1)
						default:
							atomic.AddInt64(&res.failures, 1)
						}
					}(r)
				}
				close(gate)
				inner.Wait()

				atomic.AddInt64(&res.winners, winners)
				if winners != 1 {
					atomic.AddInt64(&res.badSessions, 1)
				}
				mu.Lock()
				latencies = append(latencies, samples...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	res.total = time.Since(start)
	res.attempts = len(latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	res.p50 = percentile(latencies, 50)
	res.p95 = percentile(latencies, 95)
	res.p99 = percentile(latencies, 99)
	return res
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printResult(w io.Writer, r raceResult) {
	var opsPerS float64
	if r.total > 0 {
		opsPerS = float64(r.attempts) / r.total.Seconds()
	}
	fmt.Fprintf(w, "attempts=%d winners=%d already_used=%d failures=%d bad_sessions=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		r.attempts,
		r.winners,
		r.rejected,
		r.failures,
		r.badSessions,
		r.total.Round(time.Millisecond),
		opsPerS,
		r.p50.Round(time.Microsecond),
		r.p95.Round(time.Microsecond),
		r.p99.Round(time.Microsecond),
	)
}

func loadtestRequest(i int) session.CreateRequest {
	return session.CreateRequest{
		CartID:       fmt.Sprintf("cart-%d", i),
		CartVersion:  1,
		PaymentToken: fmt.Sprintf("tok_load_%06d", i),
		TokenType:    session.TokenTransient,
		BillingDetails: session.BillingDetails{
			Name: "Load Test",
			Address: session.Address{
				Line1:      "1 Test Street",
				City:       "Testville",
				PostalCode: "00000",
				Country:    "US",
			},
		},
		AnonymousID: fmt.Sprintf("anon-%d", i),
	}
}
