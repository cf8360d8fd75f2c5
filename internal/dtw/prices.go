package dtw

import (
	"encoding/json"
	"fmt"
	"time"
)

// PriceTimeLayout is the wire format of price-curve keys: hour-aligned,
// zone-less ISO 8601 local times.
const PriceTimeLayout = "2006-01-02T15:04:05"

// HourlyPrices maps an hour-aligned wall-clock instant to an energy price.
type HourlyPrices map[time.Time]float64

func (p *HourlyPrices) UnmarshalJSON(data []byte) error {
	raw := map[string]float64{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(HourlyPrices, len(raw))
	for k, v := range raw {
		t, err := time.Parse(PriceTimeLayout, k)
		if err != nil {
			return fmt.Errorf("price curve key %q: %w", k, err)
		}
		out[t] = v
	}
	*p = out
	return nil
}

func (p HourlyPrices) MarshalJSON() ([]byte, error) {
	raw := make(map[string]float64, len(p))
	for t, v := range p {
		raw[t.Format(PriceTimeLayout)] = v
	}
	return json.Marshal(raw)
}

// PriceCurve holds hourly energy prices over a 48-hour horizon from the top
// of the current day: today's intra-day prices plus tomorrow's day-ahead
// prices. The two sub-maps are disjoint.
type PriceCurve struct {
	IntraDay HourlyPrices `json:"intra-day"`
	DayAhead HourlyPrices `json:"day-ahead"`
}

// Merged returns a single map combining both sub-curves.
func (c *PriceCurve) Merged() map[time.Time]float64 {
	out := make(map[time.Time]float64, len(c.IntraDay)+len(c.DayAhead))
	for t, v := range c.IntraDay {
		out[t] = v
	}
	for t, v := range c.DayAhead {
		out[t] = v
	}
	return out
}
