// Package notify pushes high-severity gate decisions to a webhook and/or
// an ntfy topic.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
	"github.com/PEI-HAZARDS/gatewatch/internal/feed"
)

type Config struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Notify posts e when notifications are enabled and e is high severity.
// Delivery failures are logged, never returned.
func (n *Notifier) Notify(gate string, e decision.Event) {
	if !n.cfg.Enabled || !e.Type.Foldable() || feed.SeverityOf(e) != feed.SeverityHigh {
		return
	}
	if n.cfg.Webhook != "" {
		n.sendWebhook(gate, e)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(gate, e)
	}
}

type webhookPayload struct {
	Gate      string   `json:"gate"`
	Plate     string   `json:"license_plate,omitempty"`
	TruckID   string   `json:"truck_id,omitempty"`
	UNNumber  string   `json:"un_number,omitempty"`
	Kemler    string   `json:"kemler_code,omitempty"`
	Decision  string   `json:"decision,omitempty"`
	Alerts    []string `json:"alerts,omitempty"`
	Timestamp string   `json:"timestamp"`
}

func (n *Notifier) sendWebhook(gate string, e decision.Event) {
	p := e.Payload
	payload := webhookPayload{
		Gate:      gate,
		Plate:     p.LicensePlate,
		TruckID:   p.TruckID,
		UNNumber:  p.UNNumber,
		Kemler:    p.KemlerCode,
		Decision:  string(p.Decision),
		Alerts:    p.Alerts,
		Timestamp: e.At(time.Now()).UTC().Format(time.RFC3339),
	}
	n.post("webhook", n.cfg.Webhook, payload)
}

type ntfyPayload struct {
	Topic    string   `json:"topic,omitempty"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(gate string, e decision.Event) {
	p := e.Payload
	title := fmt.Sprintf("Gate %s: %s", gate, p.Decision.Label())
	tags := []string{"truck"}
	if p.HasHazard() {
		title = fmt.Sprintf("Gate %s: dangerous goods", gate)
		tags = []string{"warning", "truck"}
	}

	var parts []string
	if p.LicensePlate != "" {
		parts = append(parts, p.LicensePlate)
	}
	if p.UNNumber != "" {
		parts = append(parts, "UN "+p.UNNumber)
	}
	if p.KemlerCode != "" {
		parts = append(parts, "Kemler "+p.KemlerCode)
	}
	parts = append(parts, p.Alerts...)

	n.post("ntfy", n.cfg.NtfyURL, ntfyPayload{
		Title:    title,
		Message:  strings.Join(parts, " · "),
		Priority: 4,
		Tags:     tags,
	})
}

func (n *Notifier) post(kind, url string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		n.logger.Warn("notify: marshal failed", "kind", kind, "err", err)
		return
	}
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: "+kind+" failed", "url", url, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("notify: "+kind+" rejected", "url", url, "status", resp.StatusCode)
	}
}
