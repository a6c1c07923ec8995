package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tickerlab/internal/domain"
	"tickerlab/internal/engine"
	"tickerlab/pkg/tickerlab"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query()
	q, err := domain.NewQuery(p.Get("ticker"), p.Get("start"), p.Get("end"), p.Get("timeframe"))
	if err != nil {
		writeErr(w, err)
		return
	}

	out, err := s.engine.Run(r.Context(), engine.Request{Query: q})
	if err != nil {
		s.log.Error("fetching bars", "query", q.String(), "error", err)
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tickerlab.BarsResponse{
		RequestID: out.RequestID,
		Ticker:    q.Ticker,
		Timeframe: string(q.Timeframe),
		StartDate: q.Start.Format(domain.DateLayout),
		EndDate:   q.End.Format(domain.DateLayout),
		Count:     len(out.Bars),
		Bars:      tickerlab.NewBars(out.Bars),
	})
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req tickerlab.BacktestRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	resp, err := runBacktest(r.Context(), s.engine, req)
	if err != nil {
		s.log.Error("running backtest", "ticker", req.Ticker, "error", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// runBacktest executes a backtest request. An empty series is reported as
// domain.ErrNotFound.
func runBacktest(ctx context.Context, e *engine.Engine, req tickerlab.BacktestRequest) (*tickerlab.BacktestResponse, error) {
	q, err := domain.NewQuery(req.Ticker, req.StartDate, req.EndDate, req.Timeframe)
	if err != nil {
		return nil, err
	}

	params := map[string]int{}
	if req.FastWindow != 0 {
		params["fast"] = req.FastWindow
	}
	if req.SlowWindow != 0 {
		params["slow"] = req.SlowWindow
	}

	out, err := e.Run(ctx, engine.Request{
		Query:       q,
		Backtest:    true,
		Strategy:    req.Strategy,
		Params:      params,
		InitialCash: req.InitialCash,
		Commission:  req.Commission,
		Description: req.Description,
	})
	if err != nil {
		return nil, err
	}
	if out.Run == nil {
		return nil, fmt.Errorf("no bars for %s: %w", q, domain.ErrNotFound)
	}

	return &tickerlab.BacktestResponse{
		RequestID:    out.RequestID,
		Bars:         len(out.Bars),
		OpenPosition: out.Result.OpenPosition,
		Run:          out.Run,
		Trades:       nonNilTrades(out.Trades),
	}, nil
}

func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.URL.Query().Get("ticker"))
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeErr(w, &domain.ValidationError{Field: "limit", Reason: fmt.Sprintf("invalid limit %q", l)})
			return
		}
		limit = n
	}

	runs, err := s.store.ListBacktests(r.Context(), ticker, limit)
	if err != nil {
		s.log.Error("listing backtests", "ticker", ticker, "error", err)
		writeErr(w, err)
		return
	}
	if runs == nil {
		runs = []domain.BacktestRun{}
	}
	writeJSON(w, http.StatusOK, tickerlab.RunsResponse{Runs: runs})
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("invalid run id %q", r.PathValue("id"))})
		return
	}

	run, trades, err := s.store.GetBacktest(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickerlab.RunResponse{Run: run, Trades: nonNilTrades(trades)})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req tickerlab.QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErr(w, err)
		return
	}

	out, err := s.engine.Ask(r.Context(), req.Text)
	if err != nil {
		s.log.Error("answering query", "text", req.Text, "error", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse(out))
}

func queryResponse(out *engine.Outcome) tickerlab.QueryResponse {
	return tickerlab.QueryResponse{
		RequestID: out.RequestID,
		Ticker:    out.Query.Ticker,
		Timeframe: string(out.Query.Timeframe),
		StartDate: out.Query.Start.Format(domain.DateLayout),
		EndDate:   out.Query.End.Format(domain.DateLayout),
		Backtest:  out.Run != nil,
		Bars:      tickerlab.NewBars(out.Bars),
		Run:       out.Run,
		Trades:    out.Trades,
	}
}

func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	insts, err := s.store.ListInstruments(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := tickerlab.InstrumentsResponse{Instruments: make([]tickerlab.Instrument, len(insts))}
	for i, in := range insts {
		resp.Instruments[i] = tickerlab.Instrument{
			Ticker:      in.Ticker,
			DisplayName: in.DisplayName,
			Industry:    in.Industry,
			AssetClass:  string(in.AssetClass),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteInstrument(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.PathValue("ticker"))
	if err := s.store.DeleteInstrument(r.Context(), ticker); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func nonNilTrades(t []domain.TradeDetail) []domain.TradeDetail {
	if t == nil {
		return []domain.TradeDetail{}
	}
	return t
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDataSource):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, tickerlab.ErrorResponse{Error: msg})
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
