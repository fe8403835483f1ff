package alert

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type received struct {
	event Event
	sig   string
	body  []byte
}

func newReceiver(t *testing.T) (*httptest.Server, chan received) {
	t.Helper()
	ch := make(chan received, 10)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("invalid event payload: %v", err)
		}
		ch <- received{event: ev, sig: r.Header.Get("X-ScoreGate-Signature"), body: body}
	}))
	t.Cleanup(ts.Close)
	return ts, ch
}

func waitEvent(t *testing.T, ch chan received) received {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no webhook delivery")
		return received{}
	}
}

func assertNoEvent(t *testing.T, ch chan received) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected webhook delivery: %+v", ev.event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestObserveUpstreamFiresOnTransition(t *testing.T) {
	ts, ch := newReceiver(t)
	d := New(ts.URL, "")

	d.ObserveUpstream(false, "probe: connect")
	ev := waitEvent(t, ch)
	if ev.event.Type != "upstream.down" {
		t.Errorf("event type = %q, want upstream.down", ev.event.Type)
	}
	if ev.event.Detail != "probe: connect" {
		t.Errorf("detail = %q", ev.event.Detail)
	}

	d.ObserveUpstream(true, "probe")
	ev = waitEvent(t, ch)
	if ev.event.Type != "upstream.up" {
		t.Errorf("event type = %q, want upstream.up", ev.event.Type)
	}
}

func TestObserveUpstreamDeduplicates(t *testing.T) {
	ts, ch := newReceiver(t)
	d := New(ts.URL, "")

	d.ObserveUpstream(false, "probe: connect")
	waitEvent(t, ch)

	// Same state again: no new delivery.
	d.ObserveUpstream(false, "probe: connect")
	d.ObserveUpstream(false, "forward: connect failure")
	assertNoEvent(t, ch)
}

func TestEventsAreSigned(t *testing.T) {
	ts, ch := newReceiver(t)
	d := New(ts.URL, "s3cret")

	d.ObserveUpstream(false, "probe: connect")
	ev := waitEvent(t, ch)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(ev.body)
	want := hex.EncodeToString(mac.Sum(nil))
	if ev.sig != want {
		t.Errorf("signature = %q, want HMAC over the body", ev.sig)
	}
}
