package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epicentre-risk/slf-cli/internal/slf"
)

var (
	serveFlags modelFlags
	servePort  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve loss queries for a pre-built curve table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		table, err := loadModel(cmd, cfg, &serveFlags)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(table),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.Int("curves", table.Leaves()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type lossRequest struct {
	Group     string    `json:"group"`
	EDP       string    `json:"edp"`
	Direction int       `json:"direction"`
	Story     int       `json:"story"`
	Demands   []float64 `json:"demands"`
}

func newRouter(table *slf.Table) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Post("/v1/loss", func(w http.ResponseWriter, req *http.Request) {
		var q lossRequest
		if err := json.NewDecoder(req.Body).Decode(&q); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if q.EDP == "" || len(q.Demands) == 0 {
			http.Error(w, `{"error":"edp and demands are required"}`, http.StatusBadRequest)
			return
		}
		if q.Group == "" {
			q.Group = slf.GroupNonDirectional
		}

		c, err := table.Curve(q.Group, q.EDP, q.Direction, q.Story)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		losses := make([]float64, len(q.Demands))
		for i, d := range q.Demands {
			losses[i] = c.At(d)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"losses": losses})
	})

	return r
}

func init() {
	addModelFlags(serveCmd, &serveFlags)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
