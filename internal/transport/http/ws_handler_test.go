package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/catalog"
	"skillquiz-service/internal/infra/memory"
)

type services struct {
	quizzes    *app.QuizService
	provider   *app.QuestionProvider
	moderation *app.ModerationService
	profiles   *app.ProfileService
	results    *app.ResultService
}

func newServices(t *testing.T) services {
	t.Helper()
	cat, err := catalog.Builtin()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	community := memory.NewCommunityStore()
	profileStore := memory.NewProfileStore()
	opts := []app.Option{app.WithAdmins("admin-1")}

	s := services{
		provider:   app.NewQuestionProvider(cat, community, catalog.NewShuffler(3)),
		moderation: app.NewModerationService(community, profileStore, opts...),
		profiles:   app.NewProfileService(profileStore, opts...),
		results:    app.NewResultService(memory.NewResultStore(), profileStore, opts...),
	}
	s.quizzes = app.NewQuizService(memory.NewSessionStore(), s.provider, s.results, app.QuizServiceConfig{}, opts...)
	return s
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readState reads messages until a state snapshot satisfies match.
func readState(t *testing.T, conn *websocket.Conn, match func(app.Snapshot) bool) app.Snapshot {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readNext(t, conn)
		switch msg.Type {
		case msgError:
			t.Fatalf("unexpected error message: %s", msg.Payload)
		case msgState:
			var snap app.Snapshot
			if err := json.Unmarshal(msg.Payload, &snap); err != nil {
				t.Fatalf("decode state: %v", err)
			}
			if match(snap) {
				return snap
			}
		}
	}
	t.Fatalf("no matching state received")
	return app.Snapshot{}
}

func readType(t *testing.T, conn *websocket.Conn, typ string) envelope {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readNext(t, conn)
		if msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %s message received", typ)
	return envelope{}
}

func readNext(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	var msg envelope
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

func newWSServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := newServices(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(svc.quizzes, nil).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestWebSocketPlayFlow(t *testing.T) {
	server := newWSServer(t)
	conn := dial(t, server, "u1")
	defer conn.Close()

	readState(t, conn, func(s app.Snapshot) bool { return s.State == app.StateNotStarted })

	send(t, conn, msgStart, map[string]any{"category": "javascript", "limit": 2})
	started := readState(t, conn, func(s app.Snapshot) bool { return s.State == app.StateInProgress })
	if len(started.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(started.Questions))
	}
	if started.TimeRemainingSeconds != 600 {
		t.Fatalf("expected 600s, got %d", started.TimeRemainingSeconds)
	}

	send(t, conn, msgAnswer, map[string]any{"option": started.Questions[0].CorrectAnswer})
	readState(t, conn, func(s app.Snapshot) bool { return len(s.Answers) == 1 })

	send(t, conn, msgFinish, nil)
	readState(t, conn, func(s app.Snapshot) bool { return s.Finished })

	send(t, conn, msgComplete, nil)
	msg := readType(t, conn, msgResult)
	var outcome app.Outcome
	if err := json.Unmarshal(msg.Payload, &outcome); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if outcome.Result.Score != 1 || outcome.Result.TotalQuestions != 2 || outcome.Result.Percentage != 50 {
		t.Fatalf("unexpected result %+v", outcome.Result)
	}
	if outcome.Summary.Message == "" {
		t.Fatalf("expected a summary message")
	}
}

func TestWebSocketErrors(t *testing.T) {
	server := newWSServer(t)
	conn := dial(t, server, "u2")
	defer conn.Close()

	send(t, conn, msgNext, nil)
	msg := readType(t, conn, msgError)
	var payload errorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != http.StatusConflict {
		t.Fatalf("expected 409 for next before start, got %d (%s)", payload.Code, payload.Message)
	}

	send(t, conn, "dance", nil)
	msg = readType(t, conn, msgError)
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", payload.Code)
	}

	send(t, conn, msgStart, map[string]any{"category": "cobol"})
	msg = readType(t, conn, msgError)
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown category, got %d", payload.Code)
	}
}

func TestWebSocketRequiresUser(t *testing.T) {
	server := newWSServer(t)
	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebSocketDisconnectReleasesIdleSession(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(svc.quizzes, nil).ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	idle := dial(t, server, "idle")
	readState(t, idle, func(s app.Snapshot) bool { return s.State == app.StateNotStarted })
	playing := dial(t, server, "playing")
	readState(t, playing, func(s app.Snapshot) bool { return s.State == app.StateNotStarted })
	send(t, playing, msgStart, map[string]any{"category": "react", "limit": 1})
	readState(t, playing, func(s app.Snapshot) bool { return s.State == app.StateInProgress })

	idle.Close()
	playing.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		live, err := svc.quizzes.Live(ctx, "idle")
		if err != nil {
			t.Fatalf("live: %v", err)
		}
		if !live {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("idle session was not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if live, _ := svc.quizzes.Live(ctx, "playing"); !live {
		t.Fatalf("a running attempt must survive a disconnect")
	}
}
