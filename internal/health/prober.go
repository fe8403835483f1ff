// Package health implements the advisory upstream reachability probe.
package health

import (
	"context"

	"scoregate/internal/alert"
	"scoregate/internal/metrics"
	"scoregate/internal/upstream"
)

// Prober issues single lightweight requests at the upstream base URL and
// keeps the upstream-up gauge in sync. Probe failures never touch the
// forwarding path.
type Prober struct {
	Upstream *upstream.Client
	Metrics  *metrics.Metrics
	Alerts   *alert.Dispatcher // nil when alerting is not configured
	Model    string
	Version  string
}

// Result reports one probe outcome.
type Result struct {
	Reachable bool
	Code      int
	Detail    string
}

// Probe pings the upstream once. Any received response counts as reachable,
// whatever its status code.
func (p *Prober) Probe(ctx context.Context) Result {
	code, err := p.Upstream.Ping(ctx)
	if err != nil {
		kind := upstream.AsFailure(err).Kind.String()
		p.Metrics.UpstreamUp.WithLabelValues(p.Model, p.Version).Set(0)
		if p.Alerts != nil {
			p.Alerts.ObserveUpstream(false, "probe: "+kind)
		}
		return Result{Reachable: false, Detail: kind}
	}
	p.Metrics.UpstreamUp.WithLabelValues(p.Model, p.Version).Set(1)
	if p.Alerts != nil {
		p.Alerts.ObserveUpstream(true, "probe")
	}
	return Result{Reachable: true, Code: code}
}
