// Command wanderauth-loadtest seeds profiles and measures concurrent
// username resolution and auth-email lookups against Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/wanderauth/docstore"
	"github.com/MrEthical07/wanderauth/identifier"
	"github.com/MrEthical07/wanderauth/profile"
)

func main() {
	var (
		profiles    = flag.Int("profiles", 20000, "number of profiles to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (resolve + lookup)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "ds", "document store key prefix")
	)
	flag.Parse()

	if *profiles <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "profiles, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := profile.NewStore(docstore.New(client, docstore.Config{
		Prefix:  *prefix,
		Indexes: profile.Indexes(),
	}))
	resolver := identifier.NewResolver(store, identifier.Options{})

	fmt.Printf("seeding %d profiles...\n", *profiles)
	startSeed := time.Now()
	for i := 0; i < *profiles; i++ {
		if err := store.Put(ctx, accountID(i), seedRecord(i)); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolveStats := runPhase(*ops, *concurrency, *profiles, 7919, func(i int) error {
		res, err := resolver.Resolve(ctx, username(i))
		if err == nil && res.Email != email(i) {
			return fmt.Errorf("resolved %s to %s", username(i), res.Email)
		}
		return err
	})
	lookupStats := runPhase(*ops, *concurrency, *profiles, 6151, func(i int) error {
		_, found, err := store.FindByEmail(ctx, email(i))
		if err == nil && !found {
			return fmt.Errorf("no profile for %s", email(i))
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolveStats)
	printStats("lookup", lookupStats)
}

// runPhase calls op for ops random seeded indexes spread over concurrency
// workers.
func runPhase(ops, concurrency, seeded int, seedMul int64, op func(i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedMul))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r.Intn(seeded))
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
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

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func accountID(i int) string { return fmt.Sprintf("acct-%d", i) }
func email(i int) string     { return fmt.Sprintf("traveller%d@example.com", i) }
func username(i int) string  { return fmt.Sprintf("traveller_%d", i) }

func seedRecord(i int) profile.Record {
	return profile.New(profile.Draft{
		AuthEmail: email(i),
		Name:      fmt.Sprintf("Traveller %d", i),
		Username:  username(i),
		CreatedAt: time.Unix(1700000000+int64(i), 0),
	})
}
