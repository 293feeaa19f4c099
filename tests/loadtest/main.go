package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"
)

const (
	baseURL      = "http://127.0.0.1:8765"
	numWorkers   = 20
	testDuration = 10 * time.Second
)

var difficulties = []string{"easy", "medium", "hard"}

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

type gameState struct {
	State     string `json:"state"`
	Encrypted string `json:"encrypted"`
}

func main() {
	fmt.Println("=== Cryptogram Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n\n", numWorkers, testDuration)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Every worker drives the same session, so this mostly measures how the
	// daemon serializes concurrent actions on one puzzle.
	fmt.Println("\n--- Phase 1: Play (new games, selections, guesses) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.05:
			return doNewGame(rng)
		case r < 0.10:
			return doHint()
		default:
			return doGuess(rng)
		}
	})

	fmt.Println("\n--- Phase 2: Mixed load (50% play, 50% reads) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.05:
			return doNewGame(rng)
		case r < 0.50:
			return doGuess(rng)
		case r < 0.75:
			return doGet("/game/state")
		case r < 0.90:
			return doGet("/stats")
		default:
			return doGet("/sync/status")
		}
	})
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	totalOps := atomic.NewInt64(0)
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Inc()
					results <- r
				}
			}
		}(rand.Uint64() + uint64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration, totalOps.Load())
}

func printResults(allResults map[string]*stats, duration time.Duration, totalOps int64) {
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	fmt.Println("  " + strings.Repeat("-", 88))
	if totalOps == 0 {
		fmt.Println("  Total: 0 reqs")
		return
	}
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, float64(totalOps)/duration.Seconds())
}

func doNewGame(rng *rand.Rand) result {
	body := map[string]string{"difficulty": difficulties[rng.IntN(len(difficulties))]}
	return doPost("/game/custom", body, http.StatusOK)
}

// doGuess selects a cipher letter from the current puzzle and guesses a random
// plain letter. A 409 means another worker already ended the game.
func doGuess(rng *rand.Rand) result {
	st, ok := currentState()
	if !ok || st.State != "in_progress" {
		return doNewGame(rng)
	}
	letters := cipherLetters(st.Encrypted)
	if len(letters) == 0 {
		return doNewGame(rng)
	}
	sel := doPost("/game/select", map[string]string{"letter": string(letters[rng.IntN(len(letters))])}, http.StatusOK, http.StatusConflict)
	if sel.err {
		return sel
	}
	return doPost("/game/guess", map[string]string{"letter": string(rune('A' + rng.IntN(26)))}, http.StatusOK, http.StatusConflict)
}

func doHint() result {
	return doPost("/game/hint", nil, http.StatusOK, http.StatusConflict)
}

func currentState() (gameState, bool) {
	var st gameState
	resp, err := httpClient.Get(baseURL + "/game/state")
	if err != nil {
		return st, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, false
	}
	return st, json.NewDecoder(resp.Body).Decode(&st) == nil
}

func cipherLetters(encrypted string) []rune {
	seen := make(map[rune]bool)
	var out []rune
	for _, r := range encrypted {
		if r >= 'A' && r <= 'Z' && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func doPost(path string, body any, ok ...int) result {
	endpoint := "POST " + path
	var data []byte
	if body != nil {
		data, _ = json.Marshal(body)
	}
	start := time.Now()
	resp, err := httpClient.Post(baseURL+path, "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, !expected(resp.StatusCode, ok)}
}

func doGet(path string) result {
	endpoint := "GET " + path
	start := time.Now()
	resp, err := httpClient.Get(baseURL + path)
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, !expected(resp.StatusCode, []int{http.StatusOK, http.StatusConflict})}
}

func expected(status int, ok []int) bool {
	for _, s := range ok {
		if s == status {
			return true
		}
	}
	return false
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
