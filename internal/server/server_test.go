package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/orato-voice/orato/internal/app"
	"github.com/orato-voice/orato/internal/capture"
	"github.com/orato-voice/orato/internal/oracle"
	oraclemock "github.com/orato-voice/orato/internal/oracle/mock"
	"github.com/orato-voice/orato/internal/report"
	"github.com/orato-voice/orato/internal/session"
	"github.com/orato-voice/orato/internal/store"
	"github.com/orato-voice/orato/internal/transcript"
	"github.com/orato-voice/orato/pkg/audio"
	audiomock "github.com/orato-voice/orato/pkg/audio/mock"
	sttmock "github.com/orato-voice/orato/pkg/provider/stt/mock"
)

type testServer struct {
	srv    *httptest.Server
	stream *audiomock.Stream
	oracle *oraclemock.Oracle
	store  *store.MemStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		stream: audiomock.NewStream(audio.Format{SampleRate: 16000, Channels: 1}, 64),
		oracle: &oraclemock.Oracle{Report: &report.Report{Clarity: &report.Clarity{Score: 8, Rationale: "boa"}}},
		store:  store.NewMemStore(),
	}
	coordinator := capture.New(capture.Config{
		Device:      &audiomock.Device{Stream: ts.stream},
		MinDuration: time.Second,
		GraceIdle:   20 * time.Millisecond,
	})
	manager := app.New(app.Config{
		Coordinator: coordinator,
		Reconciler:  transcript.NewReconciler(&sttmock.Transcriber{Result: "fala completa"}, nil, nil),
		Oracle:      ts.oracle,
		Store:       ts.store,
	})
	ts.srv = httptest.NewServer(New(Config{Manager: manager}).Handler())
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestRecordingFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/recording/start", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	status := decode[app.RecordingStatus](t, resp)
	if status.State != capture.StateRecording {
		t.Fatalf("state = %s, want recording", status.State)
	}

	for i := 0; i < 4; i++ {
		ts.stream.PushPCM(make([]byte, 16000), time.Duration(i)*500*time.Millisecond)
	}

	resp = ts.do(t, "POST", "/recording/stop", `{"title": "Minha fala", "mode": "pitch"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("stop status = %d", resp.StatusCode)
	}
	sess := decode[session.Session](t, resp)
	if sess.Title != "Minha fala" || sess.Transcript != "fala completa" {
		t.Errorf("session = %+v", sess)
	}

	resp = ts.do(t, "GET", "/sessions", "")
	list := decode[[]session.Session](t, resp)
	if len(list) != 1 || list[0].ID != sess.ID {
		t.Errorf("list = %+v", list)
	}
	if list[0].Audio != nil {
		t.Error("list response must not carry audio blobs")
	}

	resp = ts.do(t, "GET", "/sessions/"+sess.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
}

func TestStopWhileIdleConflicts(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/recording/stop", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCancelRecording(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, "POST", "/recording/start", "")
	resp := ts.do(t, "POST", "/recording/cancel", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	status := decode[app.RecordingStatus](t, resp)
	if status.State != capture.StateIdle {
		t.Errorf("state = %s, want idle", status.State)
	}
}

func TestSessionNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/sessions/ghost", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRenameValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/sessions/any/rename", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateChallengeWithoutSessions(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/challenges/generate", "")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
}

func TestChallengesEmptyList(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/challenges", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[json.RawMessage](t, resp)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

func TestPersonaLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/personas", `{"name": "Investidora", "style": "cética"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	p := decode[session.Persona](t, resp)
	if p.ID == "" {
		t.Fatal("persona has no ID")
	}

	resp = ts.do(t, "GET", "/personas", "")
	list := decode[[]session.Persona](t, resp)
	if len(list) != 1 || list[0].Name != "Investidora" {
		t.Errorf("list = %+v", list)
	}

	resp = ts.do(t, "DELETE", "/personas/"+p.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = ts.do(t, "DELETE", "/personas/"+p.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestPersonaRequiresName(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "POST", "/personas", `{"style": "sem nome"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp := ts.do(t, "GET", path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
	}
}

func TestDrillEndpoints(t *testing.T) {
	ts := newTestServer(t)
	seeded := session.Session{
		ID:         "s1",
		Transcript: "fala",
		Report:     &report.Report{Clarity: &report.Clarity{Score: 5, Rationale: "fraca"}},
	}
	if err := store.PutJSON(t.Context(), ts.store, store.CollectionSessions, seeded.ID, seeded); err != nil {
		t.Fatal(err)
	}
	ts.oracle.Drills = []session.Drill{
		{ID: "d1", Title: "Trava-línguas", Description: "x", Goal: "clareza"},
	}

	resp := ts.do(t, "POST", "/sessions/s1/drills", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}

	resp = ts.do(t, "POST", "/drills/d1/complete", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d", resp.StatusCode)
	}
	d := decode[session.Drill](t, resp)
	if !d.Completed {
		t.Errorf("drill = %+v, want completed", d)
	}

	resp = ts.do(t, "GET", "/drills", "")
	list := decode[[]session.Drill](t, resp)
	if len(list) != 1 {
		t.Errorf("drills = %+v", list)
	}
}

func TestQAEndpoints(t *testing.T) {
	ts := newTestServer(t)
	seeded := session.Session{ID: "s1", Transcript: "apresentação do produto"}
	if err := store.PutJSON(t.Context(), ts.store, store.CollectionSessions, seeded.ID, seeded); err != nil {
		t.Fatal(err)
	}
	ts.oracle.QATurn = &oracle.QATurn{NextQuestion: "Qual o público?"}

	resp := ts.do(t, "POST", "/sessions/s1/qa", "{}")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	qa := decode[session.QASession](t, resp)

	ts.oracle.QATurn = &oracle.QATurn{Feedback: "ok", NextQuestion: "E o preço?"}
	resp = ts.do(t, "POST", "/sessions/s1/qa/"+qa.ID+"/answer", `{"answer": "Gestores de vendas."}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer status = %d", resp.StatusCode)
	}
	updated := decode[session.QASession](t, resp)
	if len(updated.Exchanges) != 2 {
		t.Errorf("exchanges = %+v", updated.Exchanges)
	}

	resp = ts.do(t, "POST", "/sessions/s1/qa/"+qa.ID+"/answer", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty answer status = %d, want 400", resp.StatusCode)
	}
}
