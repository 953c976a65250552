package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/classlens/classlens/internal/config"
	"github.com/classlens/classlens/internal/domain"
	"github.com/classlens/classlens/internal/prompts"
)

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	cfg := &config.VisionConfig{
		Model:            "gpt-4o",
		APIKey:           "test-key",
		BaseURL:          serverURL,
		MaxOutputTokens:  512,
		MaxAttempts:      3,
		BackoffBase:      time.Millisecond,
		MaxConcurrent:    3,
		RequestsPerMin:   6000,
		InputCostPer1K:   0.0025,
		OutputCostPer1K:  0.01,
		BreakerThreshold: 10,
		BreakerCooldown:  time.Minute,
	}
	return NewClient(cfg, NewLedger(newFakeUsageStore(), 100))
}

func analysisBody(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":%q}}],"usage":{"prompt_tokens":1000,"completion_tokens":200}}`, content)
}

const goodAnalysisContent = `{"element_analyses":[{"element_id":"e1","score":3,"confidence":75,"summary":"ok"}]}`

func testElements() []domain.RubricElement {
	return []domain.RubricElement{{ID: "e1", Name: "Questioning", Weight: 1}}
}

func TestAnalyzeBatchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, analysisBody(goodAnalysisContent))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	resp, usage, err := c.AnalyzeBatch(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(), nil)
	if err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}
	if len(resp.ElementAnalyses) != 1 || resp.ElementAnalyses[0].ElementID != "e1" {
		t.Errorf("unexpected analyses: %+v", resp.ElementAnalyses)
	}
	if usage.InputTokens != 1000 || usage.OutputTokens != 200 {
		t.Errorf("usage = %+v", usage)
	}
	wantCost := 1000.0/1000*0.0025 + 200.0/1000*0.01
	if usage.CostUSD != wantCost {
		t.Errorf("cost = %v, want %v", usage.CostUSD, wantCost)
	}
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, analysisBody(goodAnalysisContent))
		}
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	_, _, err := c.AnalyzeBatch(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(), nil)
	if err != nil {
		t.Fatalf("AnalyzeBatch failed after retries: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	_, _, err := c.AnalyzeBatch(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry on 400)", got)
	}
}

func TestAnalyzeBatchReparsesMalformedOnce(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, analysisBody("Sorry, I cannot produce JSON."))
			return
		}
		fmt.Fprint(w, analysisBody(goodAnalysisContent))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	resp, usage, err := c.AnalyzeBatch(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(), nil)
	if err != nil {
		t.Fatalf("AnalyzeBatch failed: %v", err)
	}
	if len(resp.ElementAnalyses) != 1 {
		t.Errorf("unexpected analyses: %+v", resp.ElementAnalyses)
	}
	// Both calls count toward the run's spend.
	if usage.InputTokens != 2000 {
		t.Errorf("input tokens = %d, want 2000 across both calls", usage.InputTokens)
	}
}

func TestAnalyzeBatchFailsAfterSecondMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, analysisBody("still not JSON"))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	_, _, err := c.AnalyzeBatch(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(), nil)
	if !errors.Is(err, prompts.ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestCompleteRefusesWhenBreakerOpen(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, analysisBody(goodAnalysisContent))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	for i := 0; i < 10; i++ {
		c.breaker.Failure()
	}

	_, _, err := c.AnalyzeBatch(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(), nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("open breaker still let a request through")
	}
}

func TestCompleteRefusesWhenBudgetExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, analysisBody(goodAnalysisContent))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	if err := c.ledger.Record(context.Background(), "gpt-4o", TokenUsage{CostUSD: 100}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	_, _, err := c.AnalyzeBatch(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(), nil)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("exhausted budget still let a request through")
	}
}

func TestCompleteRecoversAfterAbortedHalfOpenProbe(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, analysisBody(goodAnalysisContent))
	}))
	defer server.Close()

	cfg := &config.VisionConfig{
		Model:            "gpt-4o",
		APIKey:           "test-key",
		BaseURL:          server.URL,
		MaxAttempts:      1,
		BackoffBase:      time.Millisecond,
		MaxConcurrent:    3,
		RequestsPerMin:   6000,
		BreakerThreshold: 1,
		BreakerCooldown:  time.Minute,
	}
	c := NewClient(cfg, NewLedger(newFakeUsageStore(), 100))
	now := time.Now()
	c.breaker.now = func() time.Time { return now }

	// Provider failure opens the breaker.
	if _, _, err := c.AnalyzeBatch(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(), nil); err == nil {
		t.Fatal("expected provider failure")
	}
	if c.breaker.State() != "open" {
		t.Fatalf("state = %q, want open", c.breaker.State())
	}

	// Cooldown elapses; the half-open probe attempt aborts at the queue
	// gate because its context is already canceled. The probe slot must
	// not stay claimed.
	now = now.Add(2 * time.Minute)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.AnalyzeBatch(canceled, prompts.TeacherContext{}, "Danielson", testElements(), nil); err == nil {
		t.Fatal("expected canceled attempt to fail")
	}

	// The next probe must reach the now-healthy provider.
	healthy.Store(true)
	if _, _, err := c.AnalyzeBatch(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(), nil); err != nil {
		t.Fatalf("breaker never recovered after aborted probe: %v", err)
	}
	if c.breaker.State() != "closed" {
		t.Errorf("state = %q, want closed after successful probe", c.breaker.State())
	}
}

func TestCompleteDoesNotCountCanceledRequestsAsFailures(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, analysisBody(goodAnalysisContent))
	}))
	defer server.Close()
	defer close(release)

	cfg := &config.VisionConfig{
		Model:            "gpt-4o",
		APIKey:           "test-key",
		BaseURL:          server.URL,
		MaxAttempts:      1,
		BackoffBase:      time.Millisecond,
		MaxConcurrent:    3,
		RequestsPerMin:   6000,
		BreakerThreshold: 1,
		BreakerCooldown:  time.Minute,
	}
	c := NewClient(cfg, NewLedger(newFakeUsageStore(), 100))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := c.AnalyzeBatch(ctx, prompts.TeacherContext{}, "Danielson", testElements(), nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if c.breaker.State() != "closed" {
		t.Errorf("state = %q, deadline-exceeded request counted as provider failure", c.breaker.State())
	}
}

func TestSynthesizeSuccess(t *testing.T) {
	const synthesis = `{"executive_summary":"Solid lesson.","overall_score":3.1,"justification":"evidence","strengths":["pacing"],"growth_areas":["wait time"],"recommendations":["more cold calls"]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, analysisBody(synthesis))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	resp, _, err := c.Synthesize(context.Background(), prompts.TeacherContext{}, "Danielson", testElements(),
		[]prompts.ElementAnalysis{{ElementID: "e1", Score: 3, Confidence: 75}})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if resp.OverallScore != 3.1 {
		t.Errorf("overall score = %v, want 3.1", resp.OverallScore)
	}
}

func TestQueueBoundsConcurrency(t *testing.T) {
	q := NewQueue(2, 6000)
	ctx := context.Background()

	if err := q.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := q.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Acquire(timeout); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("third Acquire = %v, want deadline exceeded while slots full", err)
	}

	q.Release()
	if err := q.Acquire(ctx); err != nil {
		t.Fatalf("Acquire after Release failed: %v", err)
	}
}
