// Package query turns free-text requests such as "show AAPL weekly data for
// last year" or "backtest MSFT sma 5/20 ytd" into validated query
// parameters. Parsing is rule based.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tickerlab/internal/domain"
)

// Request is a parsed free-text request.
type Request struct {
	Text     string       `json:"text"`
	Query    domain.Query `json:"query"`
	Backtest bool         `json:"backtest"`
	Fast     int          `json:"fast_window"`
	Slow     int          `json:"slow_window"`
}

// Parser extracts requests from text. Now supplies "today" for relative
// date phrases and defaults to time.Now.
type Parser struct {
	Now         func() time.Time
	DefaultFast int
	DefaultSlow int
}

// NewParser creates a Parser using the given default SMA windows.
func NewParser(fast, slow int) *Parser {
	return &Parser{Now: time.Now, DefaultFast: fast, DefaultSlow: slow}
}

var (
	tickerRe    = regexp.MustCompile(`\$?\b([A-Z]{1,5})\b`)
	cashtagRe   = regexp.MustCompile(`\$([A-Za-z]{1,5})\b`)
	dateRe      = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	timeframeRe = regexp.MustCompile(`\b(daily|weekly|monthly)\b`)
	lastNRe     = regexp.MustCompile(`\b(?:last|past)\s+(\d+)\s+(day|week|month|year)s?\b`)
	backtestRe  = regexp.MustCompile(`\b(backtest|sma|crossover|cross)\b`)
	fastRe      = regexp.MustCompile(`\bfast\s*[=:]?\s*(\d+)\b`)
	slowRe      = regexp.MustCompile(`\bslow\s*[=:]?\s*(\d+)\b`)
	pairRe      = regexp.MustCompile(`\b(\d{1,3})\s*/\s*(\d{1,3})\b`)
	ytdRe       = regexp.MustCompile(`\b(ytd|this year|year to date)\b`)
)

// stopWords are uppercase tokens that are never tickers.
var stopWords = map[string]bool{
	"I": true, "A": true, "AN": true, "THE": true, "AND": true, "OR": true,
	"FOR": true, "OF": true, "TO": true, "ON": true, "IN": true, "AT": true,
	"BY": true, "ME": true, "MY": true, "VS": true, "SMA": true, "EMA": true,
	"ETF": true, "YTD": true, "USD": true, "OHLC": true, "API": true, "DATA": true,
	"SHOW": true, "GET": true, "FROM": true, "LAST": true, "RUN": true,
	"DAILY": true, "WEEK": true, "MONTH": true, "YEAR": true, "DAY": true, "DAYS": true,
	"PAST": true, "THIS": true, "FAST": true, "SLOW": true, "CROSS": true, "OHLCV": true,
	"WHAT": true, "WHATS": true, "WHO": true, "WHY": true, "HOW": true, "WHEN": true,
	"WHERE": true, "WHICH": true, "IS": true, "ARE": true, "WAS": true, "DO": true,
	"DID": true, "DOES": true, "CAN": true, "YOU": true, "WITH": true, "PLEASE": true,
	"PRICE": true, "TELL": true, "GIVE": true, "HAS": true, "HAVE": true, "BEEN": true,
}

// Parse extracts a Request from text. Text without a recognisable ticker,
// or whose dates do not form a valid range, is a validation error.
func (p *Parser) Parse(text string) (Request, error) {
	req := Request{Text: text, Fast: p.DefaultFast, Slow: p.DefaultSlow}

	ticker := findTicker(text)
	if ticker == "" {
		return req, &domain.ValidationError{Field: "query", Reason: fmt.Sprintf("no ticker found in %q", text)}
	}

	lower := strings.ToLower(text)
	start, end, err := p.dateRange(text, lower)
	if err != nil {
		return req, err
	}

	tf := domain.TimeframeDaily
	if m := timeframeRe.FindStringSubmatch(lower); m != nil {
		tf = domain.Timeframe(m[1])
	}

	req.Query = domain.Query{Ticker: ticker, Start: start, End: end, Timeframe: tf}
	if err := req.Query.Validate(); err != nil {
		return req, err
	}

	if backtestRe.MatchString(lower) {
		req.Backtest = true
		if m := pairRe.FindStringSubmatch(lower); m != nil {
			req.Fast, _ = strconv.Atoi(m[1])
			req.Slow, _ = strconv.Atoi(m[2])
		}
		if m := fastRe.FindStringSubmatch(lower); m != nil {
			req.Fast, _ = strconv.Atoi(m[1])
		}
		if m := slowRe.FindStringSubmatch(lower); m != nil {
			req.Slow, _ = strconv.Atoi(m[1])
		}
	}
	return req, nil
}

func findTicker(text string) string {
	if m := cashtagRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	for _, m := range tickerRe.FindAllStringSubmatch(text, -1) {
		if !stopWords[m[1]] {
			return m[1]
		}
	}
	return ""
}

// dateRange resolves explicit ISO dates first, then relative phrases. With
// neither, the range is the year ending today.
func (p *Parser) dateRange(text, lower string) (time.Time, time.Time, error) {
	today := p.today()

	if dates := dateRe.FindAllString(text, 2); len(dates) > 0 {
		start, err := time.Parse(domain.DateLayout, dates[0])
		if err != nil {
			return time.Time{}, time.Time{}, &domain.ValidationError{Field: "start_date", Reason: fmt.Sprintf("invalid date %q", dates[0])}
		}
		end := today
		if len(dates) > 1 {
			end, err = time.Parse(domain.DateLayout, dates[1])
			if err != nil {
				return time.Time{}, time.Time{}, &domain.ValidationError{Field: "end_date", Reason: fmt.Sprintf("invalid date %q", dates[1])}
			}
		}
		return start, end, nil
	}

	if m := lastNRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "day":
			return today.AddDate(0, 0, -n), today, nil
		case "week":
			return today.AddDate(0, 0, -7*n), today, nil
		case "month":
			return today.AddDate(0, -n, 0), today, nil
		default:
			return today.AddDate(-n, 0, 0), today, nil
		}
	}

	y, mo, _ := today.Date()
	switch {
	case strings.Contains(lower, "last year"):
		return date(y-1, time.January, 1), date(y-1, time.December, 31), nil
	case ytdRe.MatchString(lower):
		return date(y, time.January, 1), today, nil
	case strings.Contains(lower, "last month"):
		first := date(y, mo, 1)
		return first.AddDate(0, -1, 0), first.AddDate(0, 0, -1), nil
	case strings.Contains(lower, "last week"):
		return today.AddDate(0, 0, -7), today, nil
	}
	return today.AddDate(-1, 0, 0), today, nil
}

func (p *Parser) today() time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	y, m, d := now().UTC().Date()
	return date(y, m, d)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
