package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"neurotrainer/internal/events"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/metrics"
	"neurotrainer/internal/rounds"
	"neurotrainer/internal/store"
	"neurotrainer/internal/wshub"
)

type testEnv struct {
	srv *Server
	mem *store.Memory
	bus *events.Bus
	ts  *httptest.Server
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	bus := events.NewBus()
	reg := prometheus.NewRegistry()

	srv := &Server{
		Rounds:  rounds.NewService(mem, rounds.Options{Events: bus, Metrics: metrics.New(reg)}),
		Hub:     wshub.NewHub(),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Hub.Pump(ctx, bus)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return &testEnv{srv: srv, mem: mem, bus: bus, ts: ts}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func generateRound(t *testing.T, env *testEnv, userID string) (gamedata.Manifest, store.AnswerKey) {
	t.Helper()
	resp := postJSON(t, env.ts.URL+"/api/rounds", gamedata.GenerateRequest{UserID: userID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d, want 200", resp.StatusCode)
	}
	var m gamedata.Manifest
	decodeBody(t, resp, &m)
	key, ok := env.mem.Key(userID)
	if !ok {
		t.Fatal("no key stored after generate")
	}
	return m, key
}

func correctAnswer(k store.AnswerKey) gamedata.Answer {
	shape, sat := k.TargetShape, k.SatShape
	return gamedata.Answer{Shape: &shape, Sat: &sat}
}

func TestGenerate_ReturnsManifest(t *testing.T) {
	env := newTestServer(t)
	m, key := generateRound(t, env, "alice")

	if m.SessionSalt != key.Salt {
		t.Errorf("sessionSalt = %q, want %q", m.SessionSalt, key.Salt)
	}
	if !m.TargetShape.Valid() || !m.SatShape.Valid() {
		t.Errorf("invalid shapes in manifest: %+v", m)
	}
}

func TestGenerate_EmptyUserIs400(t *testing.T) {
	env := newTestServer(t)
	resp := postJSON(t, env.ts.URL+"/api/rounds", gamedata.GenerateRequest{UserID: "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body errorBody
	decodeBody(t, resp, &body)
	if body.Error != "invalid_argument" {
		t.Errorf("error = %q, want invalid_argument", body.Error)
	}
}

func TestGenerate_MalformedBodyIs400(t *testing.T) {
	env := newTestServer(t)
	resp, err := http.Post(env.ts.URL+"/api/rounds", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmit_CorrectThenStale(t *testing.T) {
	env := newTestServer(t)
	m, key := generateRound(t, env, "alice")

	req := gamedata.SubmitRequest{
		UserID:   "alice",
		Answer:   correctAnswer(key),
		Speed:    200,
		Manifest: gamedata.SaltEcho{Salt: m.SessionSalt},
	}

	resp := postJSON(t, env.ts.URL+"/api/rounds/submit", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res gamedata.SubmitResult
	decodeBody(t, resp, &res)
	if !res.Correct || res.NewScore != 1950 || res.NewTier != gamedata.T2 {
		t.Errorf("result = %+v, want correct 1950 T2", res)
	}

	resp = postJSON(t, env.ts.URL+"/api/rounds/submit", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", resp.StatusCode)
	}
	var replay gamedata.SubmitResult
	decodeBody(t, resp, &replay)
	if replay.Correct || replay.Reason != gamedata.ReasonStaleRound {
		t.Errorf("replay = %+v, want STALE_ROUND", replay)
	}
}

func TestSubmit_SaltMismatchIsSoftRejection(t *testing.T) {
	env := newTestServer(t)
	_, key := generateRound(t, env, "alice")

	resp := postJSON(t, env.ts.URL+"/api/rounds/submit", gamedata.SubmitRequest{
		UserID:   "alice",
		Answer:   correctAnswer(key),
		Speed:    200,
		Manifest: gamedata.SaltEcho{Salt: "NOTTHESALT00"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res gamedata.SubmitResult
	decodeBody(t, resp, &res)
	if res.Reason != gamedata.ReasonTemporalAnomaly || res.NewScore != 0 || res.NewTier != gamedata.T1 {
		t.Errorf("result = %+v, want TEMPORAL_ANOMALY 0 T1", res)
	}
}

func TestSubmit_NegativeSpeedIs400(t *testing.T) {
	env := newTestServer(t)
	generateRound(t, env, "alice")

	resp := postJSON(t, env.ts.URL+"/api/rounds/submit", gamedata.SubmitRequest{UserID: "alice", Speed: -1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPinAndSync(t *testing.T) {
	env := newTestServer(t)

	resp := postJSON(t, env.ts.URL+"/api/pin", map[string]string{"userId": "alice", "pin": "1234"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pin status = %d, want 200", resp.StatusCode)
	}
	resp = postJSON(t, env.ts.URL+"/api/profile/sync", map[string]any{
		"userId":  "alice",
		"profile": store.ProfileSync{DisplayName: "Alice", TotalSessions: 3},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d, want 200", resp.StatusCode)
	}

	p, err := env.mem.Profile(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Pin != "1234" || p.DisplayName != "Alice" || p.TotalSessions != 3 {
		t.Errorf("profile = %+v", p)
	}

	resp = postJSON(t, env.ts.URL+"/api/pin", map[string]string{"userId": "alice"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing pin status = %d, want 400", resp.StatusCode)
	}
}

func TestLeaderboard(t *testing.T) {
	env := newTestServer(t)
	m, key := generateRound(t, env, "alice")
	postJSON(t, env.ts.URL+"/api/rounds/submit", gamedata.SubmitRequest{
		UserID:   "alice",
		Answer:   correctAnswer(key),
		Speed:    200,
		Manifest: gamedata.SaltEcho{Salt: m.SessionSalt},
	})

	resp, err := http.Get(env.ts.URL + "/api/leaderboard?mode=STANDARD&count=10")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Results []store.LeaderboardEntry `json:"results"`
	}
	decodeBody(t, resp, &out)
	if len(out.Results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(out.Results))
	}
	if got := out.Results[0]; got.Rank != 1 || got.UserID != "alice" || got.Score != 1950 {
		t.Errorf("entry = %+v", got)
	}
}

func TestLeaderboard_BadParams(t *testing.T) {
	env := newTestServer(t)
	for _, q := range []string{"?count=abc", "?mode=HARDCORE"} {
		resp, err := http.Get(env.ts.URL + "/api/leaderboard" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestServer(t)
	resp, err := http.Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("connection refused") }

func TestHealth_DatabaseDown(t *testing.T) {
	env := newTestServer(t)
	env.srv.DB = downDB{}
	resp, err := http.Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t)
	generateRound(t, env, "alice")

	resp, err := http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "neurotrainer_rounds_generated_total 1") {
		t.Errorf("metrics output missing generated counter:\n%s", buf.String())
	}
}

func TestFeed_StreamsJudgedRounds(t *testing.T) {
	env := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(env.ts.URL, "http")+"/api/feed", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// Wait for the subscriber to land in the hub before judging.
	deadline := time.Now().Add(2 * time.Second)
	for env.srv.Hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m, key := generateRound(t, env, "alice")
	postJSON(t, env.ts.URL+"/api/rounds/submit", gamedata.SubmitRequest{
		UserID:   "alice",
		Answer:   correctAnswer(key),
		Speed:    200,
		Manifest: gamedata.SaltEcho{Salt: m.SessionSalt},
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg wshub.FeedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "judged" || msg.UserID != "alice" || !msg.Correct || msg.Score != 1950 {
		t.Errorf("feed message = %+v", msg)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestServer(t)

	resp, err := http.Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id on response")
	}

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("X-Request-Id = %q, want abc-123", got)
	}
}
