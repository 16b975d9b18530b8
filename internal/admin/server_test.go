package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/karsk/voicectl/internal/agent"
	"github.com/karsk/voicectl/internal/booking"
	"github.com/karsk/voicectl/internal/config"
	"github.com/karsk/voicectl/internal/skills"
	"github.com/karsk/voicectl/internal/testutil/testlog"
)

var adminTestSlots = []string{
	"10:30am - 11:30am, 26th January",
	"2:15pm - 3:15pm, 26th January",
}

func newTestServer(t *testing.T, mutate func(*config.AgentConfig)) (*Server, *agent.Service) {
	t.Helper()
	store, err := booking.Open(filepath.Join(t.TempDir(), "voiced.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	registry := skills.NewRegistry()
	if err := registry.Register(skills.NewBookingSkill(store, adminTestSlots)); err != nil {
		t.Fatalf("register booking skill: %v", err)
	}
	if err := registry.Register(skills.NewSessionSkill("")); err != nil {
		t.Fatalf("register session skill: %v", err)
	}

	cfg := config.DefaultAgentConfig()
	cfg.HeartbeatInterval = time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	svc := agent.NewService(cfg, registry, store)
	return NewServer(svc), svc
}

func doJSON(t *testing.T, method, url, token string, body any) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func TestHealthAndSkillCatalog(t *testing.T) {
	testlog.Start(t)
	server, svc := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	code, body := doJSON(t, http.MethodGet, ts.URL+"/health", "", nil)
	if code != http.StatusOK {
		t.Fatalf("health status=%d body=%s", code, body)
	}
	var status agent.ServiceStatus
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if status.WorkerID != svc.Config().WorkerID || status.Skills != 2 {
		t.Fatalf("health=%+v", status)
	}

	code, body = doJSON(t, http.MethodGet, ts.URL+"/skills", "", nil)
	if code != http.StatusOK {
		t.Fatalf("skills status=%d", code)
	}
	var catalog []skillView
	if err := json.Unmarshal(body, &catalog); err != nil {
		t.Fatalf("decode skills: %v", err)
	}
	if len(catalog) != 2 || catalog[0].ID != "skill.booking" || catalog[1].ID != "skill.session" {
		t.Fatalf("catalog=%+v", catalog)
	}
	if len(catalog[0].Operations) != 6 {
		t.Fatalf("booking operations=%d want 6", len(catalog[0].Operations))
	}
}

func TestReadyReflectsProbes(t *testing.T) {
	testlog.Start(t)
	server, svc := newTestServer(t, nil)
	probeErr := errors.New("assets incomplete")
	healthy := false
	svc.AddReadiness("assets", func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return probeErr
	})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	code, body := doJSON(t, http.MethodGet, ts.URL+"/ready", "", nil)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("ready status=%d body=%s want 503", code, body)
	}
	if !strings.Contains(string(body), "assets incomplete") {
		t.Fatalf("503 body must carry the probe error: %s", body)
	}

	healthy = true
	code, _ = doJSON(t, http.MethodGet, ts.URL+"/ready", "", nil)
	if code != http.StatusOK {
		t.Fatalf("ready status=%d want 200", code)
	}
}

func TestAuthGateOnMutatingRoutes(t *testing.T) {
	testlog.Start(t)
	server, _ := newTestServer(t, func(cfg *config.AgentConfig) {
		cfg.AdminToken = "secret"
	})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	code, _ := doJSON(t, http.MethodPost, ts.URL+"/sessions", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create status=%d want 401", code)
	}
	code, _ = doJSON(t, http.MethodPost, ts.URL+"/sessions", "wrong", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("bad token status=%d want 401", code)
	}
	code, _ = doJSON(t, http.MethodPost, ts.URL+"/sessions", "secret", nil)
	if code != http.StatusCreated {
		t.Fatalf("authenticated create status=%d want 201", code)
	}

	code, _ = doJSON(t, http.MethodGet, ts.URL+"/sessions", "", nil)
	if code != http.StatusOK {
		t.Fatalf("session list must stay open, status=%d", code)
	}
}

func TestInvokeFlowOverHTTP(t *testing.T) {
	testlog.Start(t)
	server, _ := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	code, body := doJSON(t, http.MethodPost, ts.URL+"/sessions", "", nil)
	if code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", code, body)
	}
	var info agent.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	invokeURL := ts.URL + "/sessions/" + info.ID + "/skills/skill.booking/ops/identify"
	code, body = doJSON(t, http.MethodPost, invokeURL, "", invokeRequest{
		Args: map[string]string{"contact_number": "555-0101"},
	})
	if code != http.StatusOK {
		t.Fatalf("invoke status=%d body=%s", code, body)
	}
	var res invokeResponse
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode invoke: %v", err)
	}
	if res.Status != "ok" || !strings.Contains(res.Response, "555-0101") {
		t.Fatalf("invoke result=%+v", res)
	}

	code, _ = doJSON(t, http.MethodPost, ts.URL+"/sessions/missing/skills/skill.booking/ops/slots", "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown session status=%d want 404", code)
	}

	code, _ = doJSON(t, http.MethodPost, ts.URL+"/sessions/"+info.ID+"/skills/skill.booking/ops/reboot", "", nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown op status=%d want 404", code)
	}

	code, _ = doJSON(t, http.MethodPost, ts.URL+"/sessions/"+info.ID+"/skills/skill.session/ops/end", "", nil)
	if code != http.StatusOK {
		t.Fatalf("end status=%d", code)
	}
	code, _ = doJSON(t, http.MethodPost, ts.URL+"/sessions/"+info.ID+"/skills/skill.booking/ops/slots", "", nil)
	if code != http.StatusConflict {
		t.Fatalf("post-end invoke status=%d want 409", code)
	}
}

func TestEventStreamOverWebsocket(t *testing.T) {
	testlog.Start(t)
	server, svc := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for svc.Events().SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sess := svc.Sessions().Create()
	if _, err := svc.Sessions().Invoke(t.Context(), sess.ID(), "skill.booking", "identify",
		map[string]string{"contact_number": "555-0101"}); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if _, err := svc.Sessions().Invoke(t.Context(), sess.ID(), "skill.session", "end", nil); err != nil {
		t.Fatalf("end: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	wantTypes := []string{agent.EventToolCall, agent.EventToolCall, agent.EventConversationSummary}
	for i, want := range wantTypes {
		var evt agent.Event
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		if evt.Type != want {
			t.Fatalf("event %d type=%q want %q", i, evt.Type, want)
		}
		if want == agent.EventConversationSummary && evt.UserContact != "555-0101" {
			t.Fatalf("summary user_contact=%q", evt.UserContact)
		}
	}
}

func TestRecentEventsEndpoint(t *testing.T) {
	testlog.Start(t)
	server, svc := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	sess := svc.Sessions().Create()
	if _, err := svc.Sessions().Invoke(t.Context(), sess.ID(), "skill.booking", "slots", nil); err != nil {
		t.Fatalf("slots: %v", err)
	}

	code, body := doJSON(t, http.MethodGet, ts.URL+"/events/recent", "", nil)
	if code != http.StatusOK {
		t.Fatalf("recent status=%d", code)
	}
	var events []agent.Event
	if err := json.Unmarshal(body, &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 1 || events[0].Type != agent.EventToolCall {
		t.Fatalf("events=%+v", events)
	}
}
