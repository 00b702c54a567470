package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"terrafort/server/internal/net/proto"
	"terrafort/server/internal/session"
	"terrafort/server/internal/session/mocks"
	"terrafort/server/logging"
	"terrafort/server/logging/network"
)

func drain(t *testing.T, s *session.Session) []proto.Envelope {
	t.Helper()
	var out []proto.Envelope
	for {
		select {
		case frame := <-s.Outbox():
			var env struct {
				Event   string          `json:"event"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(frame.Data, &env); err != nil {
				t.Fatalf("invalid frame %q: %v", frame.Data, err)
			}
			out = append(out, proto.Envelope{Event: env.Event, Payload: env.Payload})
		default:
			return out
		}
	}
}

func TestRegisterRequestsUsernameThenJoins(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConn(ctrl)

	m := session.NewManager(session.Config{})
	var joined *session.Session
	m.OnJoin(func(s *session.Session) {
		joined = s
		if err := m.SendToClient(conn, proto.EventUpdateWorld, map[string]int{"width": 1}); err != nil {
			t.Errorf("send during join failed: %v", err)
		}
	})

	s := m.Register(conn)
	if joined != s {
		t.Fatalf("join callback did not receive the new session")
	}
	if s.ID() == "" {
		t.Fatalf("session id should be assigned")
	}
	frames := drain(t, s)
	if len(frames) != 2 || frames[0].Event != proto.EventRequestUsername || frames[1].Event != proto.EventUpdateWorld {
		t.Fatalf("unexpected frames %+v", frames)
	}
	if got, ok := m.Lookup(conn); !ok || got != s {
		t.Fatalf("connection lookup failed")
	}
}

func TestDisconnectClosesConnOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConn(ctrl)
	conn.EXPECT().Close().Return(nil).Times(1)

	m := session.NewManager(session.Config{})
	var reasons []string
	m.OnDisconnect(func(_ *session.Session, reason string) { reasons = append(reasons, reason) })

	s := m.Register(conn)
	m.Disconnect(s, "read error")
	m.Disconnect(s, "again")

	if len(reasons) != 1 || reasons[0] != "read error" {
		t.Fatalf("expected a single disconnect callback, got %v", reasons)
	}
	if m.Len() != 0 {
		t.Fatalf("session should be removed")
	}
	if _, ok := m.Lookup(conn); ok {
		t.Fatalf("connection should be forgotten")
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("done channel should be closed")
	}
	if err := m.Send(s, proto.EventPlayers, []string{}); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("expected ErrClosed after disconnect, got %v", err)
	}
	if err := m.SendToClient(conn, proto.EventPlayers, []string{}); !errors.Is(err, session.ErrUnknownConn) {
		t.Fatalf("expected ErrUnknownConn, got %v", err)
	}
}

func TestDispatchRenameAndInput(t *testing.T) {
	m := session.NewManager(session.Config{})
	s := m.Register(nil)

	if err := m.Dispatch(s, []byte(`{"event":"rename","payload":"  alice "}`)); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if s.Username() != "alice" {
		t.Fatalf("expected alice, got %q", s.Username())
	}

	for _, raw := range []string{
		`{"event":"input","payload":{"keycode":"rightArrow","state":true}}`,
		`{"event":"input","payload":{"keycode":"space","state":true}}`,
		`{"event":"input","payload":{"keycode":"space","state":false}}`,
	} {
		if err := m.Dispatch(s, []byte(raw)); err != nil {
			t.Fatalf("input %s failed: %v", raw, err)
		}
	}
	if !s.Held("rightArrow") || s.Held("space") {
		t.Fatalf("unexpected inputs %v", s.Inputs())
	}

	if got := m.PlayersOnline(); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("unexpected roster %v", got)
	}
}

func TestDispatchDropsBadMessages(t *testing.T) {
	var events []logging.Event
	m := session.NewManager(session.Config{Publisher: logging.PublisherFunc(func(_ context.Context, e logging.Event) {
		events = append(events, e)
	})})
	s := m.Register(nil)
	s.SetInput("upArrow", true)

	cases := []struct {
		raw  string
		want error
	}{
		{`not json`, proto.ErrMalformed},
		{`{"event":"fly","payload":1}`, proto.ErrUnknownEvent},
		{`{"event":"input","payload":{"keycode":"upArrow"}}`, proto.ErrMalformed},
		{`{"event":"rename","payload":42}`, proto.ErrMalformed},
	}
	for _, tc := range cases {
		if err := m.Dispatch(s, []byte(tc.raw)); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.raw, tc.want, err)
		}
	}
	if !s.Held("upArrow") {
		t.Fatalf("malformed input must not change held keys")
	}
	rejected := 0
	for _, e := range events {
		if e.Type == network.EventMessageRejected {
			rejected++
		}
	}
	if rejected != len(cases) {
		t.Fatalf("expected %d rejection events, got %d", len(cases), rejected)
	}
}

func TestInputKeyLimit(t *testing.T) {
	m := session.NewManager(session.Config{})
	s := m.Register(nil)
	for i := 0; i < session.MaxInputKeys; i++ {
		s.SetInput(string(rune('a'+i%26))+string(rune('A'+i/26)), false)
	}
	err := m.Dispatch(s, []byte(`{"event":"input","payload":{"keycode":"overflow","state":true}}`))
	if !errors.Is(err, proto.ErrMalformed) {
		t.Fatalf("expected key limit rejection, got %v", err)
	}
}

func TestBackpressureDropsInsteadOfBlocking(t *testing.T) {
	m := session.NewManager(session.Config{OutboxSize: 2})
	s := m.Register(nil) // requestUsername fills one slot

	if err := m.Send(s, proto.EventPlayers, []string{}); err != nil {
		t.Fatalf("second frame should fit: %v", err)
	}
	if err := m.Send(s, proto.EventPlayers, []string{}); !errors.Is(err, session.ErrBackpressure) {
		t.Fatalf("expected ErrBackpressure, got %v", err)
	}
	if s.Dropped() != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", s.Dropped())
	}
}

func TestBroadcastReachesEverySession(t *testing.T) {
	m := session.NewManager(session.Config{})
	a := m.Register(nil)
	b := m.Register(nil)
	drain(t, a)
	drain(t, b)

	if err := m.Broadcast(proto.EventPlayers, []string{"x"}); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	for _, s := range []*session.Session{a, b} {
		frames := drain(t, s)
		if len(frames) != 1 || frames[0].Event != proto.EventPlayers {
			t.Fatalf("session %s got %+v", s.ID(), frames)
		}
	}
	sessions := m.Sessions()
	if len(sessions) != 2 || sessions[0] != a || sessions[1] != b {
		t.Fatalf("sessions should be in registration order")
	}
}
