package source_test

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
	"github.com/PEI-HAZARDS/gatewatch/internal/source"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func receive(t *testing.T, ch <-chan source.Message) source.Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return source.Message{}
}

func TestPublishSubscribeDecision(t *testing.T) {
	url := startTestNATS(t)

	sub, err := source.NewNATSSubscriber(url)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	ch, cancel, err := sub.Subscribe(source.Wildcard(""))
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	pub, err := source.NewNATSPublisher(url)
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	e := decision.Event{
		Type:    decision.TypeDecisionUpdate,
		Payload: decision.Payload{LicensePlate: "AA-00-BB", Decision: decision.OutcomeRejected},
	}
	if err := pub.Publish(context.Background(), source.Subject("", "3"), e); err != nil {
		t.Fatal(err)
	}

	m := receive(t, ch)
	if m.Subject != "decisions.3" {
		t.Errorf("subject: got %q", m.Subject)
	}
	got, err := decision.Parse(m.Data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Payload.LicensePlate != "AA-00-BB" || got.Payload.Decision != decision.OutcomeRejected {
		t.Errorf("payload: %+v", got.Payload)
	}
}

func TestPublishRawBytes(t *testing.T) {
	url := startTestNATS(t)
	sub, _ := source.NewNATSSubscriber(url)
	defer sub.Close()
	ch, cancel, _ := sub.Subscribe("decisions.1")
	defer cancel()

	pub, _ := source.NewNATSPublisher(url)
	defer pub.Close()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	pub.Publish(ctx, "decisions.2", []byte(`{"type":"heartbeat"}`))
	pub.Publish(ctx, "decisions.1", []byte(`{"type":"detection"}`))

	if m := receive(t, ch); string(m.Data) != `{"type":"detection"}` {
		t.Errorf("got %q", m.Data)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	url := startTestNATS(t)
	sub, _ := source.NewNATSSubscriber(url)
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("decisions.>")
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	url := startTestNATS(t)
	sub, _ := source.NewNATSSubscriber(url)
	sub.Close()
	if _, _, err := sub.Subscribe("decisions.1"); err == nil {
		t.Error("expected error after close")
	}
}

func TestGateOf(t *testing.T) {
	cases := []struct {
		prefix, subject, gate string
		ok                    bool
	}{
		{"", "decisions.1", "1", true},
		{"gates", "gates.north", "north", true},
		{"", "decisions.1.extra", "", false},
		{"", "other.1", "", false},
		{"", "decisions.", "", false},
	}
	for _, tc := range cases {
		gate, ok := source.GateOf(tc.prefix, tc.subject)
		if gate != tc.gate || ok != tc.ok {
			t.Errorf("GateOf(%q, %q) = %q, %v", tc.prefix, tc.subject, gate, ok)
		}
	}
}
