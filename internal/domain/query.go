package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var tickerRe = regexp.MustCompile(`^[A-Z]{1,5}$`)

// Query is the validated parameter record handed to the retriever.
type Query struct {
	Ticker    string
	Start     time.Time
	End       time.Time
	Timeframe Timeframe
}

// NewQuery builds a Query from string parameters in ISO date form and
// validates it.
func NewQuery(ticker, start, end, timeframe string) (Query, error) {
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return Query{}, err
	}
	s, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return Query{}, &ValidationError{Field: "start_date", Reason: fmt.Sprintf("invalid date %q", start)}
	}
	e, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return Query{}, &ValidationError{Field: "end_date", Reason: fmt.Sprintf("invalid date %q", end)}
	}
	q := Query{
		Ticker:    strings.TrimSpace(ticker),
		Start:     s,
		End:       e,
		Timeframe: tf,
	}
	return q, q.Validate()
}

// Validate rejects malformed parameters before any store access.
func (q Query) Validate() error {
	if q.Ticker == "" {
		return &ValidationError{Field: "ticker", Reason: "empty ticker"}
	}
	if !tickerRe.MatchString(q.Ticker) {
		return &ValidationError{Field: "ticker", Reason: fmt.Sprintf("%q is not 1-5 uppercase letters", q.Ticker)}
	}
	if q.Start.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "missing"}
	}
	if q.End.IsZero() {
		return &ValidationError{Field: "end_date", Reason: "missing"}
	}
	if q.End.Before(q.Start) {
		return &ValidationError{
			Field:  "end_date",
			Reason: fmt.Sprintf("%s is before start_date %s", q.End.Format(DateLayout), q.Start.Format(DateLayout)),
		}
	}
	if !q.Timeframe.Valid() {
		return &ValidationError{Field: "timeframe", Reason: fmt.Sprintf("unrecognized timeframe %q", q.Timeframe)}
	}
	return nil
}

// Contains reports whether the bar date falls inside [Start, End].
func (q Query) Contains(date time.Time) bool {
	d := date.Format(DateLayout)
	return d >= q.Start.Format(DateLayout) && d <= q.End.Format(DateLayout)
}

func (q Query) String() string {
	return fmt.Sprintf("%s %s %s..%s", q.Ticker, q.Timeframe, q.Start.Format(DateLayout), q.End.Format(DateLayout))
}
