// Command simulate fires concurrent bookings at a running api-server and
// checks that no slot ends up above its limit.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-capacity-scheduling/internal/config"
	"github.com/hackgods/clinic-capacity-scheduling/internal/logging"
	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

type SimConfig struct {
	APIBaseURL string
	Date       string
	Slots      []string
	Requests   int // concurrent booking attempts per slot
	CompanyID  string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status == http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentile(p int) time.Duration {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0
	}
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	idx := len(latencies) * p / 100
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	return latencies[idx]
}

type slotResult struct {
	Slot    string
	Limit   int
	Current int
	Metrics *OperationMetrics
}

type Simulator struct {
	config SimConfig
	client *http.Client
	faker  *gofakeit.Faker
	log    zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "simulate")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(baseCfg.Env, "simulate")

	cfg := loadConfig(baseCfg)
	log.Info().
		Str("date", cfg.Date).
		Strs("slots", cfg.Slots).
		Int("requests_per_slot", cfg.Requests).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		faker:  gofakeit.New(0),
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results := make([]slotResult, 0, len(cfg.Slots))
	for _, slot := range cfg.Slots {
		res, err := sim.RunSlot(ctx, slot)
		if err != nil {
			log.Fatal().Err(err).Str("slot", slot).Msg("slot run failed")
		}
		results = append(results, res)
	}

	if !PrintReport(cfg, results) {
		os.Exit(1)
	}
}

func loadConfig(base config.Config) SimConfig {
	tomorrow := time.Now().In(base.Location()).AddDate(0, 0, 1).Format(scheduling.DateLayout)
	return SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort),
		Date:       getEnv("SIM_DATE", tomorrow),
		Slots:      strings.Split(getEnv("SIM_SLOTS", "07:00,10:00,14:00,16:30"), ","),
		Requests:   getInt("SIM_REQUESTS_PER_SLOT", 25),
		CompanyID:  getEnv("SIM_COMPANY_ID", "sim-company"),
	}
}

// RunSlot releases all booking attempts for one slot at once and reads the
// slot back afterwards.
func (s *Simulator) RunSlot(ctx context.Context, slot string) (slotResult, error) {
	res := slotResult{Slot: slot, Metrics: &OperationMetrics{}}
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < s.config.Requests; i++ {
		body, _ := json.Marshal(map[string]any{
			"company_id":   s.config.CompanyID,
			"employee_id":  s.faker.UUID(),
			"exam_type_id": "periodic",
			"date":         s.config.Date,
			"time":         slot,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			begin := time.Now()
			status, err := s.post(ctx, "/appointments", body)
			res.Metrics.Record(time.Since(begin), status, err)
		}()
	}
	close(start)
	wg.Wait()

	var avail struct {
		Limit   int `json:"limit"`
		Current int `json:"current"`
	}
	if err := s.get(ctx, fmt.Sprintf("/availability?date=%s&time=%s", s.config.Date, slot), &avail); err != nil {
		return res, err
	}
	res.Limit, res.Current = avail.Limit, avail.Current

	s.log.Info().
		Str("slot", slot).
		Int64("booked", res.Metrics.Success).
		Int64("conflicts", res.Metrics.Conflict).
		Int("limit", res.Limit).
		Msg("slot done")
	return res, nil
}

func (s *Simulator) post(ctx context.Context, path string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	s.identify(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *Simulator) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	s.identify(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (s *Simulator) identify(req *http.Request) {
	req.Header.Set("X-Actor-ID", "simulator")
	req.Header.Set("X-Actor-Role", string(scheduling.RoleCompany))
	req.Header.Set("X-Company-ID", s.config.CompanyID)
}

// PrintReport prints one line per slot and reports whether every slot
// stayed within its limit.
func PrintReport(cfg SimConfig, results []slotResult) bool {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Date: %s  Requests per slot: %d\n\n", cfg.Date, cfg.Requests)

	ok := true
	for _, r := range results {
		m := r.Metrics
		verdict := "OK"
		if r.Current > r.Limit {
			verdict = "OVERBOOKED"
			ok = false
		}
		fmt.Printf("%s  limit=%d occupied=%d booked=%d conflicts=%d errors=%d p50=%s p95=%s  %s\n",
			r.Slot, r.Limit, r.Current,
			atomic.LoadInt64(&m.Success), atomic.LoadInt64(&m.Conflict), atomic.LoadInt64(&m.Error),
			m.Percentile(50).Round(time.Millisecond), m.Percentile(95).Round(time.Millisecond),
			verdict)
	}
	fmt.Println()
	return ok
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
