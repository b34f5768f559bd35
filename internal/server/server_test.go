package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"availability-dashboard/internal/agent"
	"availability-dashboard/internal/dataset/datasettest"
	"availability-dashboard/internal/llm"
	"availability-dashboard/internal/storage"
)

type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msgs)
	return llm.Response{Content: f.reply}, f.err
}

type memRecorder struct {
	mu     sync.Mutex
	events []storage.Event
}

func (r *memRecorder) AppendEvent(ev storage.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRecorder) LoadEvents() ([]storage.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.Event(nil), r.events...), nil
}

const hourlyReply = `{"explanation": "Evenings are busiest.", "chart_spec": {"chart_type": "bar",
 "title": "Average by hour", "data_code": "df.groupby('hour')['value'].mean().reset_index()", "x": "hour", "y": "value"}}`

func newTestServer(t *testing.T, reply string, opts Options) (*Server, *fakeLLM) {
	t.Helper()
	client := &fakeLLM{reply: reply}
	rec := &memRecorder{}
	a := agent.New(client, datasettest.New(t), rec, nil)
	return New(a, rec, opts, nil), client
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestRoot(t *testing.T) {
	s, _ := newTestServer(t, "", Options{})
	rr := do(t, s.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])

	rr = do(t, s.Handler(), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDataEndpoints(t *testing.T) {
	s, _ := newTestServer(t, "", Options{})
	h := s.Handler()

	rr := do(t, h, http.MethodGet, "/api/data/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 288, decode(t, rr)["total_rows"])

	rr = do(t, h, http.MethodGet, "/api/data/summary/text", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decode(t, rr)["summary"], "DATASET SUMMARY")

	rr = do(t, h, http.MethodGet, "/api/data/preview?rows=3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Len(t, body["data"], 3)
	assert.EqualValues(t, 288, body["total_rows"])

	rr = do(t, h, http.MethodGet, "/api/data/preview?rows=many", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFiltered(t *testing.T) {
	s, _ := newTestServer(t, "", Options{})
	h := s.Handler()

	rr := do(t, h, http.MethodGet, "/api/data/filtered?date_start=2026-02-02&hour_start=8&hour_end=9&resample=1h", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Len(t, body["hourly_avg"], 2)
	kpis := body["kpis"].(map[string]any)
	assert.EqualValues(t, 12, kpis["total_records"])

	rr = do(t, h, http.MethodGet, "/api/data/filtered?date_start=2030-01-01", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	assert.Empty(t, body["time_series"])
	assert.Equal(t, map[string]any{}, body["kpis"])

	for _, bad := range []string{"hour_start=x", "date_end=02/02/2026", "resample=fortnight"} {
		rr = do(t, h, http.MethodGet, "/api/data/filtered?"+bad, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}
}

func TestQuery(t *testing.T) {
	s, client := newTestServer(t, hourlyReply, Options{})
	rr := do(t, s.Handler(), http.MethodPost, "/api/query",
		`{"query": "busiest hour?", "chat_history": [{"role": "user", "content": "hi"}, {"role": "bot", "content": "hello"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decode(t, rr)
	assert.Equal(t, "Evenings are busiest.", body["explanation"])
	assert.Nil(t, body["error"])
	chartJSON, ok := body["chart_json"].(string)
	require.True(t, ok)
	var fig map[string]any
	require.NoError(t, json.Unmarshal([]byte(chartJSON), &fig))
	assert.Contains(t, fig, "data")
	assert.Contains(t, fig, "layout")

	msgs := client.calls[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
}

func TestQuery_NoChart(t *testing.T) {
	s, _ := newTestServer(t, `{"explanation": "Hi!", "chart_spec": {"data_code": "df.nonexistent()"}}`, Options{})
	rr := do(t, s.Handler(), http.MethodPost, "/api/query", `{"query": "hello"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "Hi!", body["explanation"])
	assert.Nil(t, body["chart_json"])
	assert.Nil(t, body["error"])
}

func TestQuery_Errors(t *testing.T) {
	s, client := newTestServer(t, "not json at all", Options{})
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/api/query", `{"query": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Query cannot be empty.", decode(t, rr)["detail"])
	assert.Empty(t, client.calls)

	rr = do(t, h, http.MethodPost, "/api/query", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/query", `{"query": "hello"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decode(t, rr)["detail"], "LLM returned invalid JSON")

	client.err = errors.New("upstream down")
	rr = do(t, h, http.MethodPost, "/api/query", `{"query": "hello"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decode(t, rr)["detail"], "upstream down")

	rr = do(t, h, http.MethodGet, "/api/query", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestQuery_RateLimited(t *testing.T) {
	s, _ := newTestServer(t, hourlyReply, Options{QueryRate: 0.001, QueryBurst: 1})
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/api/query", `{"query": "one"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodPost, "/api/query", `{"query": "two"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// data endpoints are not limited
	rr = do(t, h, http.MethodGet, "/api/data/summary", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestQuery_Timeout(t *testing.T) {
	client := &blockingLLM{}
	a := agent.New(client, datasettest.New(t), nil, nil)
	s := New(a, nil, Options{QueryTimeout: 20 * time.Millisecond}, nil)

	rr := do(t, s.Handler(), http.MethodPost, "/api/query", `{"query": "slow"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decode(t, rr)["detail"], context.DeadlineExceeded.Error())
}

type blockingLLM struct{}

func (blockingLLM) Generate(ctx context.Context, _ []llm.Message) (llm.Response, error) {
	<-ctx.Done()
	return llm.Response{}, ctx.Err()
}

func TestChartPNG(t *testing.T) {
	s, _ := newTestServer(t, "", Options{})
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/api/chart.png",
		`{"chart_type": "line", "data_code": "df.set_index('timestamp').resample('1h')['value'].mean().reset_index()"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)

	rr = do(t, h, http.MethodPost, "/api/chart.png", `{"data_code": "os.system('id')"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode(t, rr)["detail"], "DataShapingError")

	rr = do(t, h, http.MethodPost, "/api/chart.png", `{"y": "missing"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode(t, rr)["detail"], "ChartBuildError")

	rr = do(t, h, http.MethodPost, "/api/chart.png", `[]`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDailyAnalytics(t *testing.T) {
	s, _ := newTestServer(t, hourlyReply, Options{})
	h := s.Handler()
	do(t, h, http.MethodPost, "/api/query", `{"query": "hourly"}`)

	rr := do(t, h, http.MethodGet, "/api/analytics/daily", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.EqualValues(t, 1, body["total_questions"])
	assert.EqualValues(t, 1, body["charts_produced"])

	rr = do(t, h, http.MethodGet, "/api/analytics/daily?date=2001-01-01", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 0, decode(t, rr)["total_questions"])

	rr = do(t, h, http.MethodGet, "/api/analytics/daily?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, "", Options{})
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:8501")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:8501", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")

	rr = do(t, h, http.MethodGet, "/api/data/summary", "")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _ := newTestServer(t, "", Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	client.CloseIdleConnections()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
