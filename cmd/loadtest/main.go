package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type dispatchResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type result struct {
	d    time.Duration
	err  error
	code int
}

func main() {
	var (
		baseURL     = flag.String("base-url", "http://localhost:8080", "API base URL")
		apiKey      = flag.String("api-key", "", "value for X-API-Key, if the API requires one")
		rps         = flag.Int("rps", 20, "bulk requests per second")
		duration    = flag.Duration("duration", 30*time.Second, "test duration")
		concurrency = flag.Int("concurrency", 20, "number of worker goroutines")
		recipients  = flag.Int("recipients", 5, "recipients per bulk request")
		countryCode = flag.String("country-code", "233", "country code prefix for generated numbers")
		timeout     = flag.Duration("timeout", 60*time.Second, "HTTP client timeout; a bulk request waits for every recipient")

		// Stub gateway: point GATEWAY_BASE_URL of the API at this address.
		stubAddr     = flag.String("stub-gateway", "", "if set (e.g. :9090), serve a stub SMS gateway on this address")
		stubFail     = flag.Float64("stub-fail-ratio", 0.05, "fraction of stub gateway calls answered with HTTP 500")
		stubLatency  = flag.Duration("stub-latency", 20*time.Millisecond, "stub gateway response delay")
		seedSettings = flag.Bool("seed-settings", true, "store dummy gateway credentials before sending traffic")
	)
	flag.Parse()

	if *duration <= 0 || *rps <= 0 || *concurrency <= 0 || *recipients <= 0 {
		panic("invalid args")
	}

	client := &http.Client{Timeout: *timeout}

	if *stubAddr != "" {
		stub := &http.Server{Addr: *stubAddr, Handler: stubGateway(*stubFail, *stubLatency)}
		go func() {
			if err := stub.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				panic(err)
			}
		}()
		defer func() { _ = stub.Close() }()
		fmt.Printf("stub gateway listening on %s fail_ratio=%.2f\n", *stubAddr, *stubFail)
	}

	if *seedSettings {
		if err := putSettings(client, *baseURL, *apiKey); err != nil {
			panic(fmt.Sprintf("seed settings failed: %v", err))
		}
	}

	endpoint := *baseURL + "/sms/bulk"
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	// token bucket by ticker
	tokens := make(chan struct{}, *rps)
	ticker := time.NewTicker(time.Second / time.Duration(*rps))
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(tokens)
				return
			case <-ticker.C:
				select {
				case tokens <- struct{}{}:
				default:
					// if channel is full, drop token (backpressure)
				}
			}
		}
	}()

	results := make(chan result, *rps)
	var sent, allSent, partial, httpErr, bad uint64

	var wg sync.WaitGroup
	wg.Add(*concurrency)
	for i := 0; i < *concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
			for range tokens {
				form := url.Values{
					"senderId":   {"LoadTest"},
					"message":    {fmt.Sprintf("load test message %d", rng.Intn(1_000_000))},
					"recipients": makeRecipients(rng, *countryCode, *recipients),
				}

				start := time.Now()
				// not bound to ctx: a started bulk send is never cut short
				req, _ := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				if *apiKey != "" {
					req.Header.Set("X-API-Key", *apiKey)
				}

				resp, err := client.Do(req)
				d := time.Since(start)
				atomic.AddUint64(&sent, 1)
				if err != nil {
					atomic.AddUint64(&httpErr, 1)
					results <- result{d: d, err: err}
					continue
				}
				body, _ := io.ReadAll(resp.Body)
				_ = resp.Body.Close()

				var out dispatchResult
				switch {
				case resp.StatusCode != http.StatusOK:
					atomic.AddUint64(&bad, 1)
				case json.Unmarshal(body, &out) == nil && out.Success:
					atomic.AddUint64(&allSent, 1)
				default:
					atomic.AddUint64(&partial, 1)
				}
				results <- result{d: d, code: resp.StatusCode}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	latencies := make([]time.Duration, 0, *rps*int(duration.Seconds()))
	startAll := time.Now()
	for r := range results {
		latencies = append(latencies, r.d)
	}
	elapsed := time.Since(startAll)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	p := func(q float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		idx := int(float64(len(latencies)-1) * q)
		return latencies[idx]
	}

	total := atomic.LoadUint64(&sent)
	fmt.Printf("endpoint=%s recipients_per_request=%d\n", endpoint, *recipients)
	fmt.Printf("sent=%d all_sent=%d with_failures=%d non200=%d http_err=%d elapsed=%s achieved_rps=%.1f\n",
		total,
		atomic.LoadUint64(&allSent),
		atomic.LoadUint64(&partial),
		atomic.LoadUint64(&bad),
		atomic.LoadUint64(&httpErr),
		elapsed,
		float64(total)/elapsed.Seconds(),
	)
	fmt.Printf("latency p50=%s p90=%s p95=%s p99=%s max=%s\n",
		p(0.50), p(0.90), p(0.95), p(0.99),
		func() time.Duration {
			if len(latencies) == 0 {
				return 0
			}
			return latencies[len(latencies)-1]
		}(),
	)
}

func makeRecipients(rng *rand.Rand, countryCode string, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%s%09d", countryCode, rng.Intn(1_000_000_000)))
	}
	return out
}

// stubGateway mimics the SMS gateway: a JSON jobId reply, or HTTP 500 for a
// random share of calls.
func stubGateway(failRatio float64, latency time.Duration) http.Handler {
	var seq atomic.Uint64
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(latency)
		mu.Lock()
		fail := rng.Float64() < failRatio
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"status":1,"message":"stub failure"}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"status":0,"jobId":"stub-%d"}`, seq.Add(1))
	})
}

func putSettings(client *http.Client, baseURL, apiKey string) error {
	b, _ := json.Marshal(map[string]string{"clientId": "loadtest", "clientSecret": "loadtest"})
	req, _ := http.NewRequest(http.MethodPut, baseURL+"/settings/sms-api", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return nil
}
