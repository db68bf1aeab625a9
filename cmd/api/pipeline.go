package main

import (
	"context"
	"errors"
	"fmt"

	"promoreel/internal/credits"
	"promoreel/internal/domain"
	"promoreel/internal/generation"
	"promoreel/internal/infra"
	"promoreel/internal/infra/credentials"
	"promoreel/internal/metrics"
	"promoreel/internal/pipeline"
	"promoreel/internal/providers/fetch"
	"promoreel/internal/providers/gemini"
	"promoreel/internal/providers/openaichat"
	"promoreel/internal/providers/synthetic"
)

// backends is the set of generation clients selected by configuration. A
// nil field leaves the matching stage unconfigured.
type backends struct {
	text      generation.TextGenerator
	images    generation.ImageGenerator
	videos    generation.VideoGenerator
	geminiKey string
}

// selectBackends resolves provider keys once. Keys stored later take effect
// on the next start.
func selectBackends(ctx context.Context, cfg *infra.Config, keys *credentials.Store, logger *infra.Logger) (backends, error) {
	if cfg.GenerationBackend == infra.BackendSynthetic {
		c := synthetic.NewClient(synthetic.Options{PollsToComplete: 2, Logger: logger})
		return backends{text: c, images: c, videos: c}, nil
	}

	key, err := keys.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		return backends{}, fmt.Errorf("resolve gemini key: %w", err)
	}
	gc, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:     key,
		TextModel:  cfg.GeminiTextModel,
		ImageModel: cfg.GeminiImageModel,
		VideoModel: cfg.GeminiVideoModel,
		Logger:     logger,
	})
	if errors.Is(err, domain.ErrConfigurationMissing) {
		logger.Warn().Msg("no gemini api key configured; generation endpoints will answer 503 until a key is stored and the server restarted")
		return backends{}, nil
	}
	if err != nil {
		return backends{}, err
	}
	b := backends{text: gc, images: gc, videos: gc, geminiKey: key}

	if cfg.TextProvider == infra.TextProviderOpenAI {
		okey, err := keys.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
		if err != nil {
			return backends{}, fmt.Errorf("resolve openai key: %w", err)
		}
		oc, err := openaichat.NewClient(openaichat.Options{
			APIKey:  okey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Logger:  logger,
			OnWarning: func(reason, detail string) {
				logger.Warn().Str("provider", "openai").Str("reason", reason).Msg(detail)
			},
		})
		if err != nil {
			return backends{}, err
		}
		b.text = oc
	}
	return b, nil
}

func buildPipeline(ctx context.Context, cfg *infra.Config, keys *credentials.Store, ledger *credits.Ledger, rec *metrics.Recorder, logger *infra.Logger) (*pipeline.Orchestrator, error) {
	b, err := selectBackends(ctx, cfg, keys, logger)
	if err != nil {
		return nil, err
	}
	p := cfg.Pipeline

	opts := pipeline.OrchestratorOptions{
		Ledger: ledger,
		Pricing: credits.Pricing{
			ConceptBatch:  p.ConceptPrice,
			VideoPerScene: p.VideoScenePrice,
		},
		ConceptCount:        p.ConceptCount,
		PlaceholderVideoURL: p.PlaceholderVideoURL,
		VideoDeadline:       cfg.VideoDeadline(),
		Logger:              logger,
		Metrics:             rec,
	}

	if b.text != nil && b.images != nil {
		gen, err := pipeline.NewConceptGenerator(pipeline.ConceptGeneratorOptions{
			Text:          b.text,
			Images:        b.images,
			ImagePoller:   pipeline.Poller{Interval: p.ImagePollInterval, MaxAttempts: p.ImagePollAttempts},
			MaxConcurrent: p.MaxConcurrentCandidates,
			Logger:        logger,
			Metrics:       rec,
		})
		if err != nil {
			return nil, err
		}
		opts.Concepts = gen
	}

	if b.videos != nil {
		scheduler, err := pipeline.NewSceneScheduler(pipeline.SceneSchedulerOptions{
			Videos: b.videos,
			Fetcher: fetch.New(fetch.Options{
				APIKey:   b.geminiKey,
				MaxTries: uint(p.FetchMaxTries),
				Logger:   logger,
			}),
			VideoPoller: pipeline.Poller{Interval: p.VideoPollInterval, MaxAttempts: p.VideoPollAttempts},
			SceneDelay:  p.SceneDelay,
			Resolution:  p.VideoResolution,
			Logger:      logger,
			Metrics:     rec,
		})
		if err != nil {
			return nil, err
		}
		opts.Scenes = scheduler
	}

	return pipeline.NewOrchestrator(opts), nil
}
