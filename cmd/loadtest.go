package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// LoadTestConfig holds configuration for load testing
type LoadTestConfig struct {
	BaseURL         string
	NumUsers        int
	NumClasses      int
	ConcurrentUsers int
	RequestsPerUser int
}

// LoadTestResult holds the results of load testing
type LoadTestResult struct {
	TotalRequests     int
	ConfirmedReqs     int
	WaitlistedReqs    int
	FailedReqs        int
	AvgResponseTimeMs float64
	MaxResponseTimeMs int64
	MinResponseTimeMs int64
	ThroughputRPS     float64
	ErrorsByType      map[string]int

	totalLatencyMs int64
	elapsed        time.Duration
}

// LoadTester fires concurrent booking attempts at a running server to
// exercise the per-class transaction path under contention.
type LoadTester struct {
	config    LoadTestConfig
	client    *http.Client
	users     []uuid.UUID
	classes   []uuid.UUID
	results   LoadTestResult
	mutex     sync.Mutex
	startTime time.Time
}

func NewLoadTester(config LoadTestConfig) *LoadTester {
	return &LoadTester{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		users:   make([]uuid.UUID, config.NumUsers),
		classes: make([]uuid.UUID, config.NumClasses),
		results: LoadTestResult{
			ErrorsByType:      make(map[string]int),
			MinResponseTimeMs: int64(^uint64(0) >> 1),
		},
	}
}

// Initialize sets up test data
func (lt *LoadTester) Initialize() {
	fmt.Println("Initializing load test data...")

	for i := 0; i < lt.config.NumUsers; i++ {
		lt.users[i] = uuid.New()
	}

	// Class IDs must exist in the target database; random IDs exercise
	// the not-found path, seeded IDs exercise the booking path.
	for i := 0; i < lt.config.NumClasses; i++ {
		lt.classes[i] = uuid.New()
	}

	fmt.Printf("Generated %d users and %d classes\n", len(lt.users), len(lt.classes))
}

// RunLoadTest executes the load test
func (lt *LoadTester) RunLoadTest() {
	fmt.Printf("Starting load test with %d concurrent users...\n", lt.config.ConcurrentUsers)

	lt.startTime = time.Now()
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, lt.config.ConcurrentUsers)
	totalRequests := lt.config.ConcurrentUsers * lt.config.RequestsPerUser

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)

		go func(requestID int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			lt.attemptBooking(requestID)
		}(i)

		time.Sleep(10 * time.Millisecond)
	}

	wg.Wait()

	lt.results.elapsed = time.Since(lt.startTime)
	lt.printResults()
}

// attemptBooking fires a single booking attempt. Many users target the
// same class so confirmed seats run out and the waitlist path gets hit.
func (lt *LoadTester) attemptBooking(requestID int) {
	startTime := time.Now()

	userID := lt.users[requestID%len(lt.users)]
	classID := lt.classes[requestID%len(lt.classes)]

	url := fmt.Sprintf("%s/api/v1/classes/%s/book", lt.config.BaseURL, classID)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		lt.recordError("build_request", startTime)
		return
	}
	req.Header.Set("X-User-ID", userID.String())
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := lt.client.Do(req)
	if err != nil {
		lt.recordError("http_error", startTime)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	latency := time.Since(startTime).Milliseconds()

	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	lt.results.TotalRequests++
	lt.results.totalLatencyMs += latency
	if latency > lt.results.MaxResponseTimeMs {
		lt.results.MaxResponseTimeMs = latency
	}
	if latency < lt.results.MinResponseTimeMs {
		lt.results.MinResponseTimeMs = latency
	}

	if resp.StatusCode == http.StatusCreated {
		var parsed struct {
			Data struct {
				Status string `json:"status"`
			} `json:"data"`
		}
		if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Data.Status == "waitlisted" {
			lt.results.WaitlistedReqs++
		} else {
			lt.results.ConfirmedReqs++
		}
		return
	}

	lt.results.FailedReqs++
	lt.results.ErrorsByType[fmt.Sprintf("status_%d", resp.StatusCode)]++
}

func (lt *LoadTester) recordError(kind string, startTime time.Time) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	lt.results.TotalRequests++
	lt.results.FailedReqs++
	lt.results.ErrorsByType[kind]++
	lt.results.totalLatencyMs += time.Since(startTime).Milliseconds()
}

func (lt *LoadTester) printResults() {
	r := &lt.results

	if r.TotalRequests > 0 {
		r.AvgResponseTimeMs = float64(r.totalLatencyMs) / float64(r.TotalRequests)
	}
	if r.elapsed > 0 {
		r.ThroughputRPS = float64(r.TotalRequests) / r.elapsed.Seconds()
	}
	if r.MinResponseTimeMs == int64(^uint64(0)>>1) {
		r.MinResponseTimeMs = 0
	}

	fmt.Println("\nLoad Test Results")
	fmt.Println("=================")
	fmt.Printf("Total requests:     %d\n", r.TotalRequests)
	fmt.Printf("Confirmed:          %d\n", r.ConfirmedReqs)
	fmt.Printf("Waitlisted:         %d\n", r.WaitlistedReqs)
	fmt.Printf("Failed:             %d\n", r.FailedReqs)
	fmt.Printf("Avg response time:  %.2f ms\n", r.AvgResponseTimeMs)
	fmt.Printf("Min response time:  %d ms\n", r.MinResponseTimeMs)
	fmt.Printf("Max response time:  %d ms\n", r.MaxResponseTimeMs)
	fmt.Printf("Throughput:         %.2f req/s\n", r.ThroughputRPS)

	if len(r.ErrorsByType) > 0 {
		fmt.Println("\nErrors by type:")
		for kind, count := range r.ErrorsByType {
			fmt.Printf("  %s: %d\n", kind, count)
		}
	}
}

var (
	loadTestBaseURL    string
	loadTestUsers      int
	loadTestClasses    int
	loadTestConcurrent int
	loadTestRequests   int
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Run a booking load test",
	Long: `Fire concurrent booking requests at a running server.
Many users contend for the same classes so the test exercises
capacity enforcement, waitlisting and transaction retries.`,
	Run: func(cmd *cobra.Command, args []string) {
		tester := NewLoadTester(LoadTestConfig{
			BaseURL:         loadTestBaseURL,
			NumUsers:        loadTestUsers,
			NumClasses:      loadTestClasses,
			ConcurrentUsers: loadTestConcurrent,
			RequestsPerUser: loadTestRequests,
		})
		tester.Initialize()
		tester.RunLoadTest()
	},
}

func init() {
	rootCmd.AddCommand(loadtestCmd)
	loadtestCmd.Flags().StringVar(&loadTestBaseURL, "base-url", "http://localhost:8080", "Base URL of the booking server")
	loadtestCmd.Flags().IntVar(&loadTestUsers, "users", 200, "Number of distinct users")
	loadtestCmd.Flags().IntVar(&loadTestClasses, "classes", 5, "Number of distinct classes")
	loadtestCmd.Flags().IntVar(&loadTestConcurrent, "concurrent", 50, "Concurrent request limit")
	loadtestCmd.Flags().IntVar(&loadTestRequests, "requests", 10, "Requests per concurrent slot")
}
