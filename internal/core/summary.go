package core

import "encoding/json"

// Summary is the aggregate of one period of the ledger.
//
// A Snapshot summary is the live view of the current month: it starts from a
// zero previous balance, so Balance is the month's net delta and not a
// carried balance. It is serialized under "net" instead of "balance".
type Summary struct {
	Period   Period
	Previous Money
	Inflow   Money
	Outflow  Money
	Balance  Money
	Snapshot bool
}

// Summarize computes previous + Σinflows − Σoutflows. Aggregation and
// statement compilation both go through here so their totals cannot diverge.
func Summarize(period Period, previous Money, inflows, outflows []Money) Summary {
	in := Sum(inflows...)
	out := Sum(outflows...)
	return Summary{
		Period:   period,
		Previous: previous,
		Inflow:   in,
		Outflow:  out,
		Balance:  previous.Add(in).Sub(out),
	}
}

func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Snapshot {
		return json.Marshal(struct {
			Year    int   `json:"year"`
			Month   int   `json:"month"`
			Inflow  Money `json:"inflow"`
			Outflow Money `json:"outflow"`
			Net     Money `json:"net"`
		}{s.Period.Year, int(s.Period.Month), s.Inflow, s.Outflow, s.Balance})
	}
	return json.Marshal(struct {
		Year     int   `json:"year"`
		Month    int   `json:"month"`
		Previous Money `json:"previous_balance"`
		Inflow   Money `json:"inflow"`
		Outflow  Money `json:"outflow"`
		Balance  Money `json:"balance"`
	}{s.Period.Year, int(s.Period.Month), s.Previous, s.Inflow, s.Outflow, s.Balance})
}
