// Command bench replays render bursts against the query cache in front of a
// local upstream API and exposes Prometheus metrics while it runs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/HarshavardhanDanda/querycache/cache"
	"github.com/HarshavardhanDanda/querycache/httpfetch"
	pmet "github.com/HarshavardhanDanda/querycache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		shards = flag.Int("shards", 0, "number of shards (0=auto)")
		frame  = flag.Duration("frame", cache.DefaultFrame, "scheduling tick")
		retain = flag.Duration("retain", 30*time.Second, "default retain window")
		age    = flag.Duration("allowed_age", 5*time.Second, "allowed age for reads")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "concurrent render loops")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		burst    = flag.Int("burst", 20, "queries per render burst")
		forcePct = flag.Int("force", 2, "forced query percentage [0..100]")

		keys  = flag.Int("keys", 500, "keyspace size")
		zipfS = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		latency = flag.Duration("latency", 40*time.Millisecond, "simulated upstream latency")
		failPct = flag.Int("fail", 1, "upstream failure percentage [0..100]")
		rps     = flag.Float64("rps", 0, "client rate limit in requests/s (0 = unlimited)")

		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// ---- Upstream ----
	var upstreamHits atomic.Uint64
	upstream, err := serveUpstream(*latency, *failPct, *seed, &upstreamHits)
	if err != nil {
		logger.Error("failed to start upstream", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("upstream listening", slog.String("url", upstream))

	// ---- Build cache ----
	fetchOpts := []httpfetch.Option{httpfetch.WithLogger(logger)}
	if *rps > 0 {
		fetchOpts = append(fetchOpts, httpfetch.WithRateLimit(*rps, *workers))
	}
	client, err := httpfetch.New(upstream, fetchOpts...)
	if err != nil {
		logger.Error("failed to build client", slog.Any("error", err))
		os.Exit(1)
	}

	c := cache.New(cache.Options[json.RawMessage]{
		Fetch:         client.Fetch,
		DefaultRetain: *retain,
		Shards:        *shards,
		Scheduler:     cache.FrameScheduler{Frame: *frame},
		Metrics:       pmet.New(nil, "querycache", "bench", nil),
		Logger:        logger,
	})
	defer func() { _ = c.Close() }()

	// ---- Prometheus metrics ----
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c.Stats())
	})
	go func() {
		logger.Info("metrics listening", slog.String("addr", *metricsAddr))
		if err := http.ListenAndServe(*metricsAddr, r); err != nil {
			logger.Warn("metrics server stopped", slog.Any("error", err))
		}
	}()

	// ---- Load generation ----
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}
	keysMax := uint64(*keys - 1)
	var bursts, failures atomic.Uint64

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workersN; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(*seed + int64(w)*9973))
			localZipf := rand.NewZipf(localR, *zipfS, *zipfV, keysMax)

			reqs := make([]*cache.Request[json.RawMessage], 0, *burst)
			for gctx.Err() == nil {
				reqs = reqs[:0]
				for i := 0; i < *burst; i++ {
					path := "/api/items/" + strconv.FormatUint(localZipf.Uint64(), 10)
					opt := cache.RequestOptions{
						AllowedAge: *age,
						Force:      int(localR.Int31n(100)) < *forcePct,
					}
					req, err := c.Request(path, nil, opt)
					if err != nil {
						return err
					}
					reqs = append(reqs, req)
				}
				for _, req := range reqs {
					if _, err := req.Wait(gctx); err != nil {
						if gctx.Err() != nil {
							return nil
						}
						failures.Add(1)
					}
				}
				bursts.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("workload failed", slog.Any("error", err))
	}
	elapsed := time.Since(start)

	// ---- Report ----
	st := c.Stats()
	fmt.Printf("workers=%d burst=%d keys=%d frame=%v dur=%v seed=%d\n",
		workersN, *burst, *keys, *frame, elapsed, *seed)
	fmt.Printf("queries=%d (%.0f q/s)  bursts=%d  failures=%d\n",
		st.Total, float64(st.Total)/elapsed.Seconds(), bursts.Load(), failures.Load())
	fmt.Printf("hits=%d  batched=%d  actual=%d  forced=%d  misses=%d  hit-rate=%.2f%%\n",
		st.Hits, st.Batched, st.Actual, st.Forced, st.Misses, st.HitRatio()*100)
	fmt.Printf("upstream requests=%d  evicted=%d  Len()=%d\n", upstreamHits.Load(), st.Evicted, c.Len())
}

// serveUpstream starts a fake item API on a random local port.
func serveUpstream(latency time.Duration, failPct int, seed int64, hits *atomic.Uint64) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}

	var n atomic.Uint64
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		time.Sleep(latency)
		// Deterministic failure pattern derived from the request sequence.
		if failPct > 0 && int((uint64(seed)+n.Add(1))%100) < failPct {
			http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": chi.URLParam(req, "id")})
	})

	go func() { _ = http.Serve(ln, r) }()
	return "http://" + ln.Addr().String(), nil
}
