// Package alert posts a signed webhook event whenever upstream reachability
// flips. Delivery is asynchronous and never blocks or fails a request.
package alert

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Dispatcher sends upstream state-change events to a configured endpoint.
type Dispatcher struct {
	URL    string
	Secret string
	Client *http.Client

	mu      sync.Mutex
	hasLast bool
	lastUp  bool
}

func New(url, secret string) *Dispatcher {
	return &Dispatcher{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Event is the webhook payload.
type Event struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Detail    string `json:"detail"`
}

// ObserveUpstream records the latest reachability observation and fires an
// event only when the state changed since the previous observation.
func (d *Dispatcher) ObserveUpstream(up bool, detail string) {
	d.mu.Lock()
	changed := !d.hasLast || d.lastUp != up
	d.hasLast = true
	d.lastUp = up
	d.mu.Unlock()

	if !changed {
		return
	}
	eventType := "upstream.down"
	if up {
		eventType = "upstream.up"
	}
	d.fire(eventType, detail)
}

func (d *Dispatcher) fire(eventType, detail string) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Detail:    detail,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	go d.send(body)
}

func (d *Dispatcher) send(body []byte) {
	req, err := http.NewRequest(http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ScoreGate-Alert/1.0")
	if d.Secret != "" {
		mac := hmac.New(sha256.New, []byte(d.Secret))
		mac.Write(body)
		req.Header.Set("X-ScoreGate-Signature", hex.EncodeToString(mac.Sum(nil)))
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
