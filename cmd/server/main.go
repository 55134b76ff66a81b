// Command server exposes the dashboard backend over HTTP: portfolio
// analysis, the tracked wallet list, snapshot history, health, and
// Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-exit-desk/internal/aggregator"
	"solana-exit-desk/internal/balances"
	"solana-exit-desk/internal/config"
	"solana-exit-desk/internal/domain"
	"solana-exit-desk/internal/observability"
	"solana-exit-desk/internal/pricing"
	"solana-exit-desk/internal/solana"
	"solana-exit-desk/internal/storage"
	"solana-exit-desk/internal/storage/memory"
	"solana-exit-desk/internal/storage/migrations"
	pgstore "solana-exit-desk/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional, defaults apply)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots, wallets, cleanup, err := newStores(ctx, cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer cleanup()

	pool := solana.NewPool(cfg.RPC.Endpoints, cfg.EndpointInterval(), logger,
		solana.WithTimeout(cfg.RequestTimeout()))

	api := &apiServer{
		logger:    logger.Named("api"),
		fetcher:   balances.NewFetcher(pool, balances.NewRegistry(0), logger),
		pricer: pricing.NewFetcher(aggregator.New(cfg.Aggregator.BaseURL, logger), logger,
			pricing.WithInterval(cfg.QuoteInterval()),
			pricing.WithInterTokenDelay(cfg.PricingDelay())),
		snapshots: snapshots,
		wallets:   wallets,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/api/portfolio", api.handlePortfolio)
	mux.HandleFunc("/api/wallets", api.handleWallets)
	mux.HandleFunc("/api/wallets/", api.handleWalletByAddress)
	mux.HandleFunc("/api/snapshots", api.handleSnapshots)

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     mux,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.DefaultMetrics.UptimeSeconds.Inc()
			}
		}
	}()

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// buildLogger creates a production zap logger at the configured level.
func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

// newStores opens Postgres-backed stores when a DSN is configured and
// falls back to in-memory stores otherwise.
func newStores(ctx context.Context, dsn string, logger *zap.Logger) (storage.SnapshotStore, storage.WalletStore, func(), error) {
	if dsn == "" {
		logger.Warn("no database DSN configured, using in-memory stores")
		return memory.NewSnapshotStore(), memory.NewWalletStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return pgstore.NewSnapshotStore(pool), pgstore.NewWalletStore(pool), pool.Close, nil
}

// apiServer bundles the collaborators the HTTP handlers need.
type apiServer struct {
	logger    *zap.Logger
	fetcher   *balances.Fetcher
	pricer    *pricing.Fetcher
	snapshots storage.SnapshotStore
	wallets   storage.WalletStore
}

// holdingJSON is the wire shape of one holding.
type holdingJSON struct {
	Mint     string  `json:"mint"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	PriceUSD float64 `json:"price_usd"`
	ValueUSD float64 `json:"value_usd"`
	Status   string  `json:"status"`
	LogoURI  string  `json:"logo_uri,omitempty"`
}

// portfolioResponse is the /api/portfolio payload.
type portfolioResponse struct {
	Address       string        `json:"address"`
	TotalValueUSD float64       `json:"total_value_usd"`
	HoldingCount  int           `json:"holding_count"`
	PricedCount   int           `json:"priced_count"`
	Holdings      []holdingJSON `json:"holdings"`
}

// walletJSON is the wire shape of one tracked wallet.
type walletJSON struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
	AddedAt int64  `json:"added_at"`
}

// snapshotJSON is the wire shape of one valuation snapshot.
type snapshotJSON struct {
	ID            int64   `json:"id"`
	WalletAddress string  `json:"wallet_address"`
	TotalValueUSD float64 `json:"total_value_usd"`
	HoldingCount  int     `json:"holding_count"`
	PricedCount   int     `json:"priced_count"`
	CreatedAt     int64   `json:"created_at"`
}

// handlePortfolio runs a full fetch-and-price analysis for one address
// and persists a snapshot of the result.
func (s *apiServer) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address query parameter is required")
		return
	}

	ctx := r.Context()
	holdings, err := s.fetcher.FetchBalances(ctx, address, nil)
	if err != nil {
		if errors.Is(err, solana.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("fetch balances", zap.String("address", address), zap.Error(err))
		writeError(w, http.StatusBadGateway, "balance fetch failed")
		return
	}

	holdings, err = s.pricer.PriceTokens(ctx, holdings, nil)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, "pricing cancelled")
		return
	}

	resp := portfolioResponse{Address: address, HoldingCount: len(holdings), Holdings: make([]holdingJSON, 0, len(holdings))}
	for _, h := range holdings {
		resp.TotalValueUSD += h.ValueUSD
		if h.Status == domain.PriceOK {
			resp.PricedCount++
		}
		resp.Holdings = append(resp.Holdings, holdingJSON{
			Mint:     h.Mint,
			Symbol:   h.Symbol,
			Name:     h.Name,
			Amount:   h.UIAmount,
			PriceUSD: h.PriceUSD,
			ValueUSD: h.ValueUSD,
			Status:   string(h.Status),
			LogoURI:  h.LogoURI,
		})
	}

	snap := &domain.ValuationSnapshot{
		WalletAddress: address,
		TotalValueUSD: resp.TotalValueUSD,
		HoldingCount:  resp.HoldingCount,
		PricedCount:   resp.PricedCount,
		CreatedAt:     time.Now().UnixMilli(),
	}
	if err := s.snapshots.Insert(r.Context(), snap); err != nil {
		s.logger.Warn("persist snapshot", zap.Error(err))
	}
	observability.DefaultMetrics.LastSuccessfulAnalysis.SetToCurrentTime()
	observability.DefaultMetrics.BalancesFetched.Inc()
	observability.DefaultMetrics.HoldingsFound.Set(float64(resp.HoldingCount))

	writeJSON(w, http.StatusOK, resp)
}

// handleWallets serves GET (list) and POST (add) on /api/wallets.
func (s *apiServer) handleWallets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.wallets.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list wallets failed")
			return
		}
		out := make([]walletJSON, 0, len(list))
		for _, wlt := range list {
			out = append(out, walletJSON{Address: wlt.Address, Label: wlt.Label, AddedAt: wlt.AddedAt})
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var body struct {
			Address string `json:"address"`
			Label   string `json:"label"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed body")
			return
		}
		if err := solana.ValidateAddress(body.Address); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		wallet := &domain.Wallet{Address: body.Address, Label: body.Label, AddedAt: time.Now().UnixMilli()}
		if err := s.wallets.Add(r.Context(), wallet); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				writeError(w, http.StatusConflict, "wallet already tracked")
				return
			}
			writeError(w, http.StatusInternalServerError, "add wallet failed")
			return
		}
		writeJSON(w, http.StatusCreated, walletJSON{Address: wallet.Address, Label: wallet.Label, AddedAt: wallet.AddedAt})

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST only")
	}
}

// handleWalletByAddress serves DELETE /api/wallets/{address}.
func (s *apiServer) handleWalletByAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "DELETE only")
		return
	}
	address := strings.TrimPrefix(r.URL.Path, "/api/wallets/")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	if err := s.wallets.Remove(r.Context(), address); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "wallet not tracked")
			return
		}
		writeError(w, http.StatusInternalServerError, "remove wallet failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSnapshots serves GET /api/snapshots?address=&limit=.
func (s *apiServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address query parameter is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	snaps, err := s.snapshots.GetByWallet(r.Context(), address, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get snapshots failed")
		return
	}
	out := make([]snapshotJSON, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snapshotJSON{
			ID:            snap.ID,
			WalletAddress: snap.WalletAddress,
			TotalValueUSD: snap.TotalValueUSD,
			HoldingCount:  snap.HoldingCount,
			PricedCount:   snap.PricedCount,
			CreatedAt:     snap.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
