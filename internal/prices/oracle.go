// Package prices fetches the hourly energy price curve from the spot-market
// oracle endpoint.
package prices

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/dtw/ports"
)

var _ ports.PriceSource = (*Oracle)(nil)

// Oracle queries a configured HTTP endpoint for intra-day and day-ahead
// energy prices.
type Oracle struct {
	url    string
	client *http.Client
}

// New creates an Oracle for the given endpoint. The timeout bounds the whole
// request so a hung endpoint cannot starve a scheduler tick.
func New(url string, timeout time.Duration) *Oracle {
	return &Oracle{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// GetPrices fetches the current price curve. Connection failures, non-2xx
// responses and malformed payloads all yield nil: price data is advisory and
// the energy-aware policy falls back when it is unavailable.
func (o *Oracle) GetPrices(ctx context.Context) *dtw.PriceCurve {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		slog.Warn("prices: invalid oracle request", "url", o.url, "err", err)
		return nil
	}

	resp, err := o.client.Do(req)
	if err != nil {
		slog.Debug("prices: oracle unreachable", "url", o.url, "err", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("prices: oracle returned non-2xx", "url", o.url, "status", resp.Status)
		return nil
	}

	var curve dtw.PriceCurve
	if err := json.NewDecoder(resp.Body).Decode(&curve); err != nil {
		slog.Debug("prices: malformed oracle payload", "url", o.url, "err", err)
		return nil
	}
	return &curve
}
