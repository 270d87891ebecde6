package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/model"
)

var servePort int

// searcher is the aggregator surface the HTTP layer needs.
type searcher interface {
	Search(ctx context.Context, query model.SearchQuery) <-chan model.StreamEvent
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streaming availability server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(env.Aggregator),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter assembles the HTTP routes around a searcher.
func buildRouter(agg searcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Get("/api/search", func(w http.ResponseWriter, req *http.Request) {
		query, err := queryFromRequest(req)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)

		// The request context cancels the whole fan-out when the client
		// disconnects; the channel closes and the loop ends.
		for ev := range agg.Search(req.Context(), query) {
			line, err := ev.Line()
			if err != nil {
				zap.L().Error("marshal event failed", zap.Error(err))
				continue
			}
			_, _ = w.Write(line)
			_, _ = w.Write([]byte("\n"))
			flusher.Flush()
		}
	})

	return r
}

// queryFromRequest parses and validates the search parameters. Dates may be
// repeated params or comma-separated.
func queryFromRequest(req *http.Request) (model.SearchQuery, error) {
	q := req.URL.Query()

	var dates []string
	for _, raw := range q["date"] {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				dates = append(dates, d)
			}
		}
	}

	partySize := 2
	if raw := q.Get("party_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.SearchQuery{}, eris.Errorf("invalid party_size %q", raw)
		}
		partySize = n
	}

	query := model.SearchQuery{
		City:      q.Get("city"),
		Dates:     dates,
		PartySize: partySize,
		Meal:      q.Get("meal"),
	}
	if err := query.Validate(); err != nil {
		return model.SearchQuery{}, err
	}
	return query, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
