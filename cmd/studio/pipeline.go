package main

import (
	"fmt"
	"time"

	"github.com/deliverable-studio/backend/internal/config"
	"github.com/deliverable-studio/backend/internal/intake"
	"github.com/deliverable-studio/backend/internal/layout"
	"github.com/deliverable-studio/backend/internal/media"
	"github.com/deliverable-studio/backend/internal/session"
	"github.com/deliverable-studio/backend/internal/storage"
	"go.uber.org/zap"
)

// pipeline is the media intake stack shared by the server and the export command.
type pipeline struct {
	blobs      *storage.BlobRegistry
	storage    *storage.Manager
	rules      *layout.Rules
	workspaces *session.Manager
	intake     *intake.Manager
}

func newPipeline(cfg *config.AppConfig, logger *zap.Logger) (*pipeline, error) {
	rules := layout.DefaultRules()
	if cfg.Advanced.LayoutRulesFile != "" {
		loaded, err := layout.LoadRules(cfg.Advanced.LayoutRulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load layout rules: %w", err)
		}
		rules = loaded
	}

	// Remote storage only when both URL and key are configured
	var uploader storage.Uploader
	if cfg.RemoteEnabled() {
		uploader = storage.NewRemoteClient(
			cfg.Storage.RemoteURL,
			cfg.Storage.RemoteKey,
			cfg.Storage.RemoteBucket,
			time.Duration(cfg.Storage.UploadTimeout)*time.Second,
		)
	}

	blobs := storage.NewBlobRegistry()
	store := storage.NewManager(storage.SelectStrategy(uploader), blobs, logger)
	workspaces := session.NewManager(cfg.Media.MaxMediaPerProject, blobs, logger)

	intakeMgr := intake.NewManager(intake.Config{
		Workspaces:  workspaces,
		Validator:   media.NewValidator(cfg.MaxFileSizeBytes()),
		Normalizer:  media.NewNormalizer(cfg.Media.MaxWidth, cfg.Media.JPEGQuality),
		Moderator:   media.StubModerator{Delay: time.Duration(cfg.Media.ModerationDelayMs) * time.Millisecond},
		Storage:     store,
		Rules:       rules,
		Concurrency: cfg.Media.IntakeConcurrency,
		Logger:      logger,
	})

	logger.Info("media pipeline ready",
		zap.String("storage", store.StrategyName()),
		zap.Int("maxMedia", cfg.Media.MaxMediaPerProject),
		zap.Int("maxWidth", cfg.Media.MaxWidth))

	return &pipeline{
		blobs:      blobs,
		storage:    store,
		rules:      rules,
		workspaces: workspaces,
		intake:     intakeMgr,
	}, nil
}

// Close stops running intake jobs.
func (p *pipeline) Close() {
	p.intake.Close()
}
