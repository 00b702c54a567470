package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"terrafort/server"
	"terrafort/server/internal/net/proto"
)

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, engine *server.Engine) *websocket.Conn {
	t.Helper()
	handler := NewHandler(engine, HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatalf("invalid frame %q: %v", payload, err)
	}
	return env
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(proto.Envelope{Event: event, Payload: payload})
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandshakeSendsUsernameRequestTerrainAndReset(t *testing.T) {
	engine := server.NewEngine(server.Config{})
	conn := dial(t, engine)

	want := []string{proto.EventRequestUsername, proto.EventUpdateWorld, proto.EventReset}
	for _, event := range want {
		if env := readEnvelope(t, conn); env.Event != event {
			t.Fatalf("expected %s, got %s", event, env.Event)
		}
	}
}

func TestRenameAndInputReachTheSimulation(t *testing.T) {
	engine := server.NewEngine(server.Config{})
	conn := dial(t, engine)
	for i := 0; i < 3; i++ {
		readEnvelope(t, conn)
	}

	writeEnvelope(t, conn, proto.EventRename, "bob")
	held := true
	writeEnvelope(t, conn, proto.EventInput, proto.InputMessage{Keycode: server.KeyRight, State: &held})

	waitFor(t, "input", func() bool {
		sessions := engine.Sessions().Sessions()
		return len(sessions) == 1 && sessions[0].Username() == "bob" && sessions[0].Held(server.KeyRight)
	})

	if err := engine.Step(context.Background(), 1.0/server.DefaultTickRate); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	roster := readEnvelope(t, conn)
	if roster.Event != proto.EventPlayers {
		t.Fatalf("expected roster, got %s", roster.Event)
	}
	var names []string
	if err := json.Unmarshal(roster.Payload, &names); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(names) != 1 || names[0] != "bob" {
		t.Fatalf("unexpected roster %v", names)
	}
	if env := readEnvelope(t, conn); env.Event != proto.EventReset {
		t.Fatalf("expected reset on tick 0, got %s", env.Event)
	}
}

func TestMalformedMessageKeepsSessionOpen(t *testing.T) {
	engine := server.NewEngine(server.Config{})
	conn := dial(t, engine)
	for i := 0; i < 3; i++ {
		readEnvelope(t, conn)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	writeEnvelope(t, conn, proto.EventRename, "carol")
	waitFor(t, "rename after malformed frame", func() bool {
		sessions := engine.Sessions().Sessions()
		return len(sessions) == 1 && sessions[0].Username() == "carol"
	})
}

func TestClientCloseDisconnectsSession(t *testing.T) {
	engine := server.NewEngine(server.Config{})
	conn := dial(t, engine)
	readEnvelope(t, conn)

	waitFor(t, "registration", func() bool { return engine.Sessions().Len() == 1 })
	s := engine.Sessions().Sessions()[0]
	avatar := s.Player()

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, "disconnect", func() bool { return engine.Sessions().Len() == 0 })
	if !avatar.IsDead() {
		t.Fatalf("expected player to be killed on disconnect")
	}
}

func TestServerDisconnectClosesSocket(t *testing.T) {
	engine := server.NewEngine(server.Config{})
	conn := dial(t, engine)
	for i := 0; i < 3; i++ {
		readEnvelope(t, conn)
	}

	engine.DisconnectAll("shutdown")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the socket to be closed by the server")
	}
}
