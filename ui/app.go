package ui

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/Horlarhyinka/ai-classroom/classroom"
	"github.com/Horlarhyinka/ai-classroom/speech"
	"github.com/Horlarhyinka/ai-classroom/speech/audio"
	"github.com/Horlarhyinka/ai-classroom/speech/synth"
	"github.com/Horlarhyinka/ai-classroom/stream"
)

// App bundles the long-lived collaborators behind the TUI: the REST client,
// the speech pipeline, and the realtime connection. One App serves the whole
// program run; the queue is reset when the user switches chapter or mode.
type App struct {
	cfg    Config
	logger *log.Logger

	API    *classroom.API
	Events *speech.Events
	Queue  *speech.Queue
	Orch   *speech.Orchestrator
	Sync   *stream.Synchronizer
	Conn   *stream.Conn

	cancel context.CancelFunc
}

// NewApp wires the application stack from config. The realtime connection is
// not dialed until Start.
func NewApp(cfg Config, self classroom.Persona, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}

	api, err := classroom.NewAPI(classroom.APIConfig{
		BaseURL: cfg.APIURL,
		Token:   cfg.Token,
	}, logger)
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cacheDir = filepath.Join(home, ".cache", "ai-classroom")
		}
	}
	synthClient := synth.New(synth.Config{
		BaseURL:      cfg.SynthURL,
		APIKey:       cfg.SynthKey,
		DefaultVoice: cfg.Voice,
		CacheDir:     cacheDir,
	})

	events := speech.NewEvents()
	queue := speech.NewQueue(synthClient, events)
	port := audio.NewPort(logger)
	orch := speech.NewOrchestrator(queue, port, events)
	orch.SetAutoplay(cfg.Autoplay)

	transport, err := stream.NewWSTransport(stream.WSConfig{URL: cfg.WSURL, Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	sync := stream.NewSynchronizer(nil, queue, self, logger)
	conn := stream.NewConn(transport, sync, stream.DefaultRetryConfig(), logger)
	sync.SetSender(conn)

	return &App{
		cfg:    cfg,
		logger: logger,
		API:    api,
		Events: events,
		Queue:  queue,
		Orch:   orch,
		Sync:   sync,
		Conn:   conn,
	}, nil
}

// Start dials the realtime connection in the background. Errors surface
// through the synchronizer's disconnect handling and the connection state.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		if err := a.Conn.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("realtime connection gave up", "error", err)
		}
	}()
}

// Shutdown stops playback and tears down the realtime connection.
func (a *App) Shutdown() {
	a.Orch.Stop()
	if a.cancel != nil {
		a.cancel()
	}
}
