package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/10aburnett/popuppromocodes-script/internal/export"
	"github.com/10aburnett/popuppromocodes-script/internal/model"
	"github.com/10aburnett/popuppromocodes-script/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only API over recorded results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newServeHandler(st),
		}

		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()

		zap.L().Info("serving results api", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "serve: listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newServeHandler builds the read-only results API.
func newServeHandler(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/results", func(w http.ResponseWriter, req *http.Request) {
		filter := store.VisitFilter{FoundOnly: true}
		if limit := req.URL.Query().Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 0 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}
		records, err := st.ListVisits(req.Context(), filter)
		if err != nil {
			zap.L().Error("serve: list visits failed", zap.Error(err))
			http.Error(w, `{"error":"store unavailable"}`, http.StatusInternalServerError)
			return
		}
		finds := export.Finds(records)
		if finds == nil {
			finds = []model.VisitRecord{}
		}
		writeJSON(w, http.StatusOK, finds)
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		counts, err := st.CountByStatus(req.Context())
		if err != nil {
			zap.L().Error("serve: count visits failed", zap.Error(err))
			http.Error(w, `{"error":"store unavailable"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
