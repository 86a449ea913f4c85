package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/redev-labs/complex-scanner/internal/model"
	"github.com/redev-labs/complex-scanner/internal/orchestrator"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan scheduler daemon with the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Scheduler.Rehydrate(ctx); err != nil {
			zap.L().Warn("rehydrate scheduler state", zap.Error(err))
		}
		if err := env.Scheduler.Start(ctx); err != nil {
			return err
		}
		defer env.Scheduler.Stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      newRouter(env),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("server started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(env *scanEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/scans", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Tier string `json:"tier"`
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		tier := model.Tier(body.Tier)
		mode := model.ScanMode(body.Mode)
		if !model.ValidTier(tier) || !model.ValidScanMode(mode) {
			writeError(w, http.StatusBadRequest, "unknown tier or mode")
			return
		}

		ids, err := tierIDs(req.Context(), env, tier)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(ids) == 0 {
			writeError(w, http.StatusConflict, "tier is empty")
			return
		}

		snap, err := env.Orchestrator.Launch(req.Context(), ids, tier, mode)
		if err != nil {
			if eris.Is(err, orchestrator.ErrTierBusy) {
				writeError(w, http.StatusConflict, "a scan of this tier is already running")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job_id": snap.JobID,
			"count":  snap.Total,
		})
	})

	r.Get("/api/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		snap, err := env.Orchestrator.Status(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if eris.Is(err, orchestrator.ErrJobNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Post("/api/jobs/{id}/chain", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Tier string `json:"tier"`
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		jobID := chi.URLParam(req, "id")
		if _, err := env.Orchestrator.Status(req.Context(), jobID); err != nil {
			if eris.Is(err, orchestrator.ErrJobNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := env.Orchestrator.RegisterChain(jobID, model.Tier(body.Tier), model.ScanMode(body.Mode)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "chained"})
	})

	r.Post("/api/monitor", func(w http.ResponseWriter, req *http.Request) {
		if err := env.Orchestrator.Monitor(req.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "swept",
			"tiers":  env.Orchestrator.TierSummaries(),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
