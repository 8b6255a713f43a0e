package pushclient_test

import (
	"sync"
	"testing"
	"time"

	"github.com/PEI-HAZARDS/gatewatch/internal/pushclient"
)

func TestManagerSwitchGateClosesOldFirst(t *testing.T) {
	gw := newTestGateway(t)
	m := pushclient.NewManager(gw.srv.URL, pushclient.Options{Logger: discardLogger()})
	defer m.Close()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	c1, err := m.Client("1")
	if err != nil {
		t.Fatal(err)
	}
	connected1 := make(chan struct{}, 1)
	c1.OnConnect(signal(connected1))
	c1.OnDisconnect(func() { record("disconnect-1") })
	c1.Connect()
	gw.accept(t)
	wait(t, connected1, "gate 1 connect")

	c2, err := m.Client("2")
	if err != nil {
		t.Fatal(err)
	}
	if c2 == c1 {
		t.Fatal("expected a new client for gate 2")
	}
	connected2 := make(chan struct{}, 1)
	c2.OnConnect(func() {
		record("connect-2")
		connected2 <- struct{}{}
	})
	c2.Connect()
	gw.accept(t)
	wait(t, connected2, "gate 2 connect")

	mu.Lock()
	got := append([]string(nil), order...)
	mu.Unlock()
	if len(got) != 2 || got[0] != "disconnect-1" || got[1] != "connect-2" {
		t.Errorf("expected [disconnect-1 connect-2], got %v", got)
	}
	if c1.State() != pushclient.StateIdle {
		t.Errorf("gate 1 client should be idle, got %s", c1.State())
	}

	first := <-gw.paths
	second := <-gw.paths
	if first != "/ws/decisions/1" || second != "/ws/decisions/2" {
		t.Errorf("unexpected endpoint paths %q, %q", first, second)
	}

	gate, active := m.Active()
	if gate != "2" || active != c2 {
		t.Errorf("active: got %q", gate)
	}
}

func TestManagerReturnsSameClientForSameGate(t *testing.T) {
	m := pushclient.NewManager("ws://gateway.local", pushclient.Options{Logger: discardLogger()})
	defer m.Close()

	a, err := m.Client("7")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.Client("7")
	if a != b {
		t.Error("expected the same client for the same gate")
	}
	if a.URL() != "ws://gateway.local/ws/decisions/7" {
		t.Errorf("url: got %q", a.URL())
	}
}

func TestManagerCloseDisconnectsAll(t *testing.T) {
	gw := newTestGateway(t)
	m := pushclient.NewManager(gw.srv.URL, pushclient.Options{Logger: discardLogger()})

	c, _ := m.Client("1")
	connected := make(chan struct{}, 1)
	c.OnConnect(signal(connected))
	c.Connect()
	gw.accept(t)
	wait(t, connected, "connect")

	m.Close()
	time.Sleep(20 * time.Millisecond)
	if c.IsConnected() {
		t.Error("expected client disconnected after Close")
	}
	if gate, active := m.Active(); gate != "" || active != nil {
		t.Errorf("expected no active client, got %q", gate)
	}
}

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		base, gate, want string
	}{
		{"ws://gw:8000", "1", "ws://gw:8000/ws/decisions/1"},
		{"http://gw:8000/", "1", "ws://gw:8000/ws/decisions/1"},
		{"https://gw.example/api", "2", "wss://gw.example/api/ws/decisions/2"},
		{"ws://gw", "gate 3", "ws://gw/ws/decisions/gate%203"},
		{"ws://gw", "a/b", "ws://gw/ws/decisions/a%2Fb"},
	}
	for _, tc := range cases {
		got, err := pushclient.EndpointURL(tc.base, tc.gate)
		if err != nil {
			t.Errorf("EndpointURL(%q, %q): %v", tc.base, tc.gate, err)
			continue
		}
		if got != tc.want {
			t.Errorf("EndpointURL(%q, %q): got %q want %q", tc.base, tc.gate, got, tc.want)
		}
	}

	if _, err := pushclient.EndpointURL("ftp://gw", "1"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
	if _, err := pushclient.EndpointURL("ws://gw", " "); err == nil {
		t.Error("expected error for empty gate")
	}
}
