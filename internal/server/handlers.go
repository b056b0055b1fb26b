package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/config"
	"github.com/dgnsrekt/tastygex/internal/gex"
	"github.com/dgnsrekt/tastygex/internal/nullable"
	"github.com/dgnsrekt/tastygex/internal/output"
)

// Server serves the files of the latest committed run from dir.
type Server struct {
	dir    string
	logger *zap.Logger
}

// NewServer creates a Server over the output directory.
func NewServer(dir string, logger *zap.Logger) *Server {
	return &Server{dir: dir, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	OutputDir string `json:"output_dir"`
}

type tickerInfo struct {
	Symbol    string    `json:"symbol"`
	UpdatedAt time.Time `json:"updated_at"`
}

type tickersResponse struct {
	Tickers []tickerInfo `json:"tickers"`
	Count   int          `json:"count"`
}

type gexResponse struct {
	Ticker    string    `json:"ticker"`
	UpdatedAt time.Time `json:"updated_at"`
	Count     int       `json:"count"`
	Rows      []gex.Row `json:"rows"`
}

type summaryEntry struct {
	Expiration  string           `json:"expiration"`
	Contracts   int              `json:"contracts"`
	WithGamma   int              `json:"with_gamma"`
	CallGEX     float64          `json:"call_gex"`
	PutGEX      float64          `json:"put_gex"`
	NetGEX      float64          `json:"net_gex"`
	MedianGamma nullable.Float64 `json:"median_gamma"`
	PeakStrike  nullable.Float64 `json:"peak_strike"`
}

type summaryResponse struct {
	Ticker      string         `json:"ticker"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Expirations []summaryEntry `json:"expirations"`
}

// Health reports liveness and whether the output directory is readable.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(s.dir); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "output directory unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", OutputDir: s.dir})
}

// Tickers lists every ticker with a CSV table in the output directory.
func (s *Server) Tickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := listTables(s.dir)
	if err != nil {
		s.logger.Error("failed to list output directory", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list tickers"})
		return
	}
	s.writeJSON(w, http.StatusOK, tickersResponse{Tickers: tickers, Count: len(tickers)})
}

// listTables returns the CSV tables in dir, by ticker. A missing directory
// has no tables.
func listTables(dir string) ([]tickerInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []tickerInfo{}, nil
	}
	if err != nil {
		return nil, err
	}

	suffix := "-gex." + string(output.FormatCSV)
	tickers := make([]tickerInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		tickers = append(tickers, tickerInfo{
			Symbol:    strings.TrimSuffix(e.Name(), suffix),
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	sortTickers(tickers)
	return tickers, nil
}

func sortTickers(t []tickerInfo) {
	sort.Slice(t, func(i, j int) bool { return t[i].Symbol < t[j].Symbol })
}

// GEX returns the rows of the ticker's latest CSV table.
func (s *Server) GEX(w http.ResponseWriter, r *http.Request) {
	ticker, ok := s.ticker(w, r)
	if !ok {
		return
	}
	rows, updated, ok := s.loadRows(w, ticker)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, gexResponse{
		Ticker:    ticker,
		UpdatedAt: updated,
		Count:     len(rows),
		Rows:      rows,
	})
}

// Summary returns per-expiration aggregates of the ticker's latest table.
func (s *Server) Summary(w http.ResponseWriter, r *http.Request) {
	ticker, ok := s.ticker(w, r)
	if !ok {
		return
	}
	rows, updated, ok := s.loadRows(w, ticker)
	if !ok {
		return
	}

	summaries := gex.Summarize(rows)
	entries := make([]summaryEntry, 0, len(summaries))
	for _, sm := range summaries {
		entries = append(entries, summaryEntry{
			Expiration:  sm.Expiration,
			Contracts:   sm.Contracts,
			WithGamma:   sm.WithGamma,
			CallGEX:     sm.CallGEX,
			PutGEX:      sm.PutGEX,
			NetGEX:      sm.NetGEX,
			MedianGamma: sm.MedianGamma,
			PeakStrike:  sm.PeakStrike,
		})
	}
	s.writeJSON(w, http.StatusOK, summaryResponse{Ticker: ticker, UpdatedAt: updated, Expirations: entries})
}

// Candle serves the underlying candle side-record as written.
func (s *Server) Candle(w http.ResponseWriter, r *http.Request) {
	ticker, ok := s.ticker(w, r)
	if !ok {
		return
	}
	data, err := os.ReadFile(filepath.Join(s.dir, output.CandleFileName(ticker)))
	if errors.Is(err, fs.ErrNotExist) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no candle for " + ticker})
		return
	}
	if err != nil {
		s.logger.Error("failed to read candle", zap.String("ticker", ticker), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read candle"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) ticker(w http.ResponseWriter, r *http.Request) (string, bool) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	if !config.ValidTicker(ticker) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid ticker"})
		return "", false
	}
	return ticker, true
}

func (s *Server) loadRows(w http.ResponseWriter, ticker string) ([]gex.Row, time.Time, bool) {
	path := filepath.Join(s.dir, output.GEXFileName(ticker, output.FormatCSV))
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no gex table for " + ticker})
		return nil, time.Time{}, false
	}
	if err != nil {
		s.logger.Error("failed to open gex table", zap.String("path", path), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read gex table"})
		return nil, time.Time{}, false
	}
	defer f.Close()

	var updated time.Time
	if info, err := f.Stat(); err == nil {
		updated = info.ModTime().UTC()
	}

	rows, err := output.ReadCSV(f)
	if err != nil {
		s.logger.Error("failed to decode gex table", zap.String("path", path), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to decode gex table"})
		return nil, time.Time{}, false
	}
	return rows, updated, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
