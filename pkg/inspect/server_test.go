package inspect

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulse-dev/pulse/pkg/pulse"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	pulse.ResetRegistry()
	t.Cleanup(pulse.ResetRegistry)

	srv := NewServer()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestListUnits(t *testing.T) {
	ts := newTestServer(t)

	pulse.NewSource("api-src", 1)
	pulse.NewGuard("api-guard", func() (bool, error) { return true, nil })

	var units []unitJSON
	resp := getJSON(t, ts.URL+"/api/units", &units)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}

	byName := map[string]unitJSON{}
	for _, u := range units {
		byName[u.Name] = u
	}
	if byName["api-src"].Kind != pulse.KindSource {
		t.Errorf("unexpected kind for source: %+v", byName["api-src"])
	}
	if byName["api-guard"].State.Status != pulse.StatusOK {
		t.Errorf("unexpected guard state: %+v", byName["api-guard"])
	}
}

func TestGetUnit(t *testing.T) {
	ts := newTestServer(t)
	pulse.NewSource("get-src", "hello")

	var unit unitJSON
	resp := getJSON(t, ts.URL+"/api/units/get-src", &unit)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if unit.State.Value != "hello" {
		t.Errorf("unexpected value: %v", unit.State.Value)
	}
}

func TestGetUnitNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp := getJSON(t, ts.URL+"/api/units/absent", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestExplainGuard(t *testing.T) {
	ts := newTestServer(t)

	src := pulse.NewSource("exp-src", 1)
	pulse.NewGuard("exp-guard", func() (bool, error) { return src.Get() > 0, nil })

	var explanation pulse.Explanation
	resp := getJSON(t, ts.URL+"/api/units/exp-guard/explain", &explanation)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(explanation.Dependencies) != 1 || explanation.Dependencies[0].Name != "exp-src" {
		t.Errorf("unexpected dependencies: %+v", explanation.Dependencies)
	}
}

func TestExplainNonGuard(t *testing.T) {
	ts := newTestServer(t)
	pulse.NewSource("exp-notguard", 1)

	resp := getJSON(t, ts.URL+"/api/units/exp-notguard/explain", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEvaluateGuard(t *testing.T) {
	ts := newTestServer(t)

	n := 0
	pulse.NewGuard("eval-guard", func() (int, error) {
		n++
		return n, nil
	})

	resp, err := http.Post(ts.URL+"/api/units/eval-guard/evaluate", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	var unit unitJSON
	if err := json.NewDecoder(resp.Body).Decode(&unit); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if unit.State.Value != float64(2) {
		t.Errorf("expected re-evaluated value 2, got %v", unit.State.Value)
	}
}

func TestSetValue(t *testing.T) {
	ts := newTestServer(t)
	src := pulse.NewSource("set-src", "old")

	body, _ := json.Marshal(setValueRequest{Value: "new"})
	resp, err := http.Post(ts.URL+"/api/units/set-src/value", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if src.Peek() != "new" {
		t.Errorf("expected new, got %q", src.Peek())
	}
}

func TestSetValueOnGuard(t *testing.T) {
	ts := newTestServer(t)
	pulse.NewGuard("set-guard", func() (bool, error) { return true, nil })

	body, _ := json.Marshal(setValueRequest{Value: 1})
	resp, err := http.Post(ts.URL+"/api/units/set-guard/value", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	ts := newTestServer(t)

	pulse.NewGuard("snap-ok", func() (string, error) { return "v", nil })
	pulse.NewGuard("snap-fail", func() (bool, error) {
		return false, pulse.NewReason("x", "broken")
	})

	var snap pulse.Snapshot
	resp := getJSON(t, ts.URL+"/api/snapshot", &snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if snap["snap-ok"].Status != pulse.StatusOK || snap["snap-ok"].Value != "v" {
		t.Errorf("unexpected entry: %+v", snap["snap-ok"])
	}
	if snap["snap-fail"].Reason == nil || snap["snap-fail"].Reason.Code != "x" {
		t.Errorf("unexpected entry: %+v", snap["snap-fail"])
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := getJSON(t, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWebSocketStream(t *testing.T) {
	ts := newTestServer(t)
	src := pulse.NewSource("ws-src", 1)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// First frame is the hello listing.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello struct {
		Type  string     `json:"type"`
		Units []unitJSON `json:"units"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != "hello" || len(hello.Units) == 0 {
		t.Fatalf("unexpected hello frame: %+v", hello)
	}

	src.Set(2)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("no state event received")
		}
		conn.SetReadDeadline(deadline)
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Type == "state" && ev.Unit.Name == "ws-src" {
			if ev.Unit.State.Value != float64(2) {
				t.Errorf("unexpected value in event: %v", ev.Unit.State.Value)
			}
			return
		}
	}
}

func TestReadOnlyDisablesWrites(t *testing.T) {
	pulse.ResetRegistry()
	t.Cleanup(pulse.ResetRegistry)
	pulse.NewSource("ro-src", 1)

	srv := NewServer(WithReadOnly(true))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	body, _ := json.Marshal(setValueRequest{Value: 2})
	resp, err := http.Post(ts.URL+"/api/units/ro-src/value", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusNotFound {
		t.Errorf("mutating endpoint should not be routed in read-only mode, got %d", resp.StatusCode)
	}

	// Read endpoints stay available.
	readResp := getJSON(t, ts.URL+"/api/units/ro-src", nil)
	if readResp.StatusCode != http.StatusOK {
		t.Errorf("read endpoint should still serve, got %d", readResp.StatusCode)
	}
}
