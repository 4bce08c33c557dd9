// SPDX-License-Identifier: MIT
package transport

import (
	"strings"
	"testing"
	"time"

	"ledviz/internal/sample"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return wst.Clients() == 1 })

	now := time.UnixMilli(1700000000000)
	frame := sample.Frame{Seq: 7, Time: now, Levels: []float64{0, 0.5, 1}, Impact: 0.25, Beat: true}
	if err := wst.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg FrameMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	if msg.Seq != 7 || msg.Time != now.UnixMilli() || msg.Impact != 0.25 || !msg.Beat {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.Levels) != 3 || msg.Levels[1] != 0.5 {
		t.Errorf("levels = %v, want [0 0.5 1]", msg.Levels)
	}
}

func TestWebSocketRightSideOnlyWhenSplit(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return wst.Clients() == 1 })

	frames := []sample.Frame{
		{Seq: 1, Levels: []float64{0.5}, Impact: 0.5},
		{Seq: 2, Levels: []float64{0.5}, Impact: 0.5, LevelsR: []float64{0.75}, ImpactR: 0.25},
	}
	wants := []string{"", `"levels_r":[0.75],"impact_r":0.25`}
	for i, f := range frames {
		if err := wst.Send(f); err != nil {
			t.Fatal(err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		got := string(raw)
		if wants[i] == "" && strings.Contains(got, "levels_r") {
			t.Errorf("mono frame carries a right side: %s", got)
		}
		if wants[i] != "" && !strings.Contains(got, wants[i]) {
			t.Errorf("split frame = %s, want it to contain %s", got, wants[i])
		}
	}
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	waitFor(t, func() bool { return wst.Clients() == 1 })

	conn.Close()
	waitFor(t, func() bool { return wst.Clients() == 0 })
}

func TestWebSocketSendWithoutClientsAndClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}

	for i := range 1000 {
		if err := wst.Send(sample.Frame{Seq: uint64(i)}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	if err := wst.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestWebSocketListenError(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport: %v", err)
	}
	defer wst.Close()

	if _, err := NewWebSocketTransport(wst.Addr().String()); err == nil {
		t.Error("expected error when the port is taken")
	}
}
