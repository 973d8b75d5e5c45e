package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/analytics"
)

type Config struct {
	BaseURL           string
	Concurrency       int
	Duration          time.Duration
	AutocompleteRatio float64
	Seed              int
	Queries           []string
}

// Stats collects results per endpoint kind ("search", "autocomplete").
type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	mu            sync.Mutex
	latencies     map[string][]time.Duration
	statusCodes   map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make(map[string][]time.Duration),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(kind string, duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	s.mu.Lock()
	s.latencies[kind] = append(s.latencies[kind], duration)
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

var vocabulary = []string{
	"electric", "cars", "battery", "charging", "solar", "panels", "energy",
	"storage", "grid", "hybrid", "engine", "efficiency", "range", "motor",
	"bicycles", "transit", "rail", "hydrogen", "fuel", "emissions",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of searchd")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	ratio := flag.Float64("autocomplete-ratio", 0.5, "share of requests sent to autocomplete")
	seed := flag.Int("seed", 0, "documents to PUT before the run")
	flag.Parse()

	cfg := Config{
		BaseURL:           strings.TrimRight(*baseURL, "/"),
		Concurrency:       *concurrency,
		Duration:          *duration,
		AutocompleteRatio: *ratio,
		Seed:              *seed,
		Queries: []string{
			"electric cars", "solar energy", "battery storage", "charging range",
			"hydrogen fuel", "rail transit", "hybrid engine", "grid efficiency",
			"electric motor", "emissions", "bicycles", "the",
		},
	}

	fmt.Println("=== searchd load test ===")
	fmt.Printf("Target:       %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:  %d\n", cfg.Concurrency)
	fmt.Printf("Duration:     %s\n", cfg.Duration)
	fmt.Printf("Autocomplete: %.0f%%\n", cfg.AutocompleteRatio*100)
	fmt.Println()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	if cfg.Seed > 0 {
		if err := seedDocuments(client, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "seeding failed: %v\n", err)
			os.Exit(1)
		}
	}
	stats := runLoadTest(client, cfg)
	if !printReport(stats, cfg.Duration) {
		os.Exit(1)
	}
}

// seedDocuments PUTs cfg.Seed synthetic documents drawn from the vocabulary.
func seedDocuments(client *http.Client, cfg Config) error {
	rng := rand.New(rand.NewPCG(1, 2))
	fmt.Printf("Seeding %d documents", cfg.Seed)
	for i := 0; i < cfg.Seed; i++ {
		words := make([]string, 8+rng.IntN(24))
		for j := range words {
			words[j] = vocabulary[rng.IntN(len(vocabulary))]
		}
		body, err := json.Marshal(map[string]string{
			"title": strings.Join(words[:3], " "),
			"body":  strings.Join(words[3:], " "),
		})
		if err != nil {
			return err
		}
		req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/api/v1/documents/load-%d", cfg.BaseURL, i), bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("PUT document %d: status %d", i, resp.StatusCode)
		}
		if i%500 == 0 {
			fmt.Print(".")
		}
	}
	fmt.Println(" done")
	return nil
}

func runLoadTest(client *http.Client, cfg Config) *Stats {
	stats := NewStats()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(workerID), 7))
			for ctx.Err() == nil {
				kind, target := nextRequest(rng, cfg)
				start := time.Now()
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					stats.RecordRequest(kind, 0, 0, err)
					continue
				}
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(kind, elapsed, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(kind, elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// nextRequest picks an autocomplete prefix or a search query. Prefixes are
// 1-4 leading runes of a vocabulary word, the way a user types.
func nextRequest(rng *rand.Rand, cfg Config) (kind, target string) {
	if rng.Float64() < cfg.AutocompleteRatio {
		word := []rune(vocabulary[rng.IntN(len(vocabulary))])
		prefix := string(word[:min(len(word), 1+rng.IntN(4))])
		return "autocomplete", fmt.Sprintf("%s/api/v1/autocomplete?prefix=%s&limit=8", cfg.BaseURL, url.QueryEscape(prefix))
	}
	q := cfg.Queries[rng.IntN(len(cfg.Queries))]
	return "search", fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", cfg.BaseURL, url.QueryEscape(q))
}

func printReport(stats *Stats, duration time.Duration) bool {
	total := stats.totalRequests.Load()
	errs := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", stats.successCount.Load())
	fmt.Printf("Errors:          %d\n", errs)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errs)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()
	for _, kind := range []string{"search", "autocomplete"} {
		latencies := slices.Clone(stats.latencies[kind])
		if len(latencies) == 0 {
			continue
		}
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sumSquared += diff * diff
		}

		fmt.Println()
		fmt.Printf("=== %s latency (%d requests) ===\n", kind, len(latencies))
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", analytics.Percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", analytics.Percentile(latencies, 90))
		fmt.Printf("P99:    %s\n", analytics.Percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is searchd running?")
		return false
	}
	return true
}
