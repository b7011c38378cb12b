package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/countsheet/internal/api"
	"github.com/satindergrewal/countsheet/internal/audio"
	"github.com/satindergrewal/countsheet/internal/rehearsal"
	"github.com/satindergrewal/countsheet/internal/store"
	"github.com/satindergrewal/countsheet/internal/stream"
	"github.com/satindergrewal/countsheet/internal/suggest"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and rehearsal streams",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", cfg.Port, "HTTP listen port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("countsheet starting up...")

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	// Audio pipeline
	pipeline := audio.NewPipeline(cfg.FadeDuration)
	go pipeline.Run(ctx)

	// Broadcaster: fan-out PCM frames to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, pipeline.Frames())

	// Rehearsal session: follows the playhead and publishes count cues
	session := rehearsal.NewSession(pipeline, st)
	go session.Run(ctx)

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, session.Cues())

	// Ollama LLM (optional -- suggests moves per count)
	var suggestClient *suggest.Client
	if cfg.OllamaURL != "" {
		client := suggest.NewClient(cfg.OllamaURL, cfg.OllamaModel)
		readyCtx, readyCancel := context.WithTimeout(ctx, 30*time.Second)
		if client.WaitForReady(readyCtx) {
			suggestClient = client
			log.Printf("Ollama connected: %s (LLM suggestions enabled)", cfg.OllamaModel)
		} else {
			log.Println("Ollama not available, using the static move vocabulary")
		}
		readyCancel()
	} else {
		log.Println("Ollama not configured (set OLLAMA_URL to enable LLM suggestions)")
	}

	srv := api.New(api.Options{
		Store:          st,
		Rehearsal:      session,
		Suggester:      suggest.NewSuggester(suggestClient),
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		DefaultBPM:     cfg.DefaultBPM,
		Stream:         stream.NewHTTPHandler(broadcaster),
		Offer:          webrtcHandler,
	})

	addr := fmt.Sprintf(":%d", servePort)
	server := &http.Server{Addr: addr, Handler: srv.Routes()}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	log.WithFields(log.Fields{
		"addr":    addr,
		"db":      cfg.DBPath,
		"uploads": cfg.UploadDir,
	}).Info("countsheet live")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
