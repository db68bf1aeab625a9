package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promoreel/internal/credits"
	"promoreel/internal/domain"
	"promoreel/internal/infra"
	"promoreel/internal/metrics"
)

// ConceptSource produces key-framed concepts for a brief.
type ConceptSource interface {
	Generate(ctx context.Context, brief domain.BrandBrief, count int) ([]domain.Concept, error)
}

// VideoSource renders the video for a chosen concept.
type VideoSource interface {
	GenerateVideo(ctx context.Context, concept domain.Concept, brief domain.BrandBrief) (domain.Artifact, error)
}

// CreditLedger is the billing collaborator consulted around each run.
type CreditLedger interface {
	HasSufficientCredits(ctx context.Context, userID string, amount int64) (bool, error)
	Deduct(ctx context.Context, userID string, amount int64) (int64, error)
}

var (
	_ ConceptSource = (*ConceptGenerator)(nil)
	_ VideoSource   = (*SceneScheduler)(nil)
	_ CreditLedger  = (*credits.Ledger)(nil)
)

// OrchestratorOptions configures an Orchestrator. A nil Concepts or Scenes
// means the corresponding backend has no credentials configured. A nil
// Ledger disables billing.
type OrchestratorOptions struct {
	Concepts            ConceptSource
	Scenes              VideoSource
	Ledger              CreditLedger
	Pricing             credits.Pricing
	ConceptCount        int
	PlaceholderVideoURL string
	// VideoDeadline caps one video run. It must stay below the server's
	// write timeout so callers receive a timeout error rather than a
	// dropped connection. Zero means no cap.
	VideoDeadline time.Duration
	Logger        *infra.Logger
	Metrics       *metrics.Recorder
}

// Orchestrator exposes the two caller operations and applies validation,
// credit checks, rate-limit fallback and billing around them.
type Orchestrator struct {
	concepts     ConceptSource
	scenes       VideoSource
	ledger       CreditLedger
	pricing      credits.Pricing
	conceptCount int
	placeholder  string
	deadline     time.Duration
	logger       *infra.Logger
	metrics      *metrics.Recorder
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	count := opts.ConceptCount
	if count <= 0 {
		count = DefaultConceptCount
	}
	placeholder := opts.PlaceholderVideoURL
	if placeholder == "" {
		placeholder = infra.DefaultPlaceholderVideoURL
	}
	pricing := opts.Pricing
	if pricing == (credits.Pricing{}) {
		pricing = credits.DefaultPricing()
	}
	return &Orchestrator{
		concepts:     opts.Concepts,
		scenes:       opts.Scenes,
		ledger:       opts.Ledger,
		pricing:      pricing,
		conceptCount: count,
		placeholder:  placeholder,
		deadline:     opts.VideoDeadline,
		logger:       infra.LoggerOrDiscard(opts.Logger),
		metrics:      opts.Metrics,
	}
}

// GenerateConcepts validates the brief, checks the caller can pay for a batch
// and charges only once concepts were produced.
func (o *Orchestrator) GenerateConcepts(ctx context.Context, userID string, brief domain.BrandBrief) ([]domain.Concept, error) {
	brief = brief.Normalize()
	if err := brief.Validate(); err != nil {
		return nil, err
	}
	if o.concepts == nil {
		return nil, fmt.Errorf("%w: no concept backend", domain.ErrConfigurationMissing)
	}
	cost := o.pricing.ConceptCost()
	if err := o.precheck(ctx, userID, cost); err != nil {
		return nil, err
	}

	started := time.Now()
	concepts, err := o.concepts.Generate(ctx, brief, o.conceptCount)
	o.metrics.ObserveStage("concepts", started, err)
	if err != nil {
		return nil, err
	}

	o.charge(ctx, userID, cost, "concepts")
	return concepts, nil
}

// GenerateVideo renders the chosen concept. The outcome is Real on success,
// Degraded with the placeholder video when the backend rate-limited the job,
// and Failed otherwise.
func (o *Orchestrator) GenerateVideo(ctx context.Context, userID string, concept domain.Concept, brief domain.BrandBrief) domain.VideoOutcome {
	brief = brief.Normalize()
	aspect := brief.VideoAspectRatio()
	failed := func(err error) domain.VideoOutcome {
		o.metrics.VideoOutcome(string(domain.OutcomeFailed))
		return domain.VideoOutcome{Kind: domain.OutcomeFailed, AspectRatio: aspect, Err: err}
	}

	if err := brief.Validate(); err != nil {
		return failed(err)
	}
	if !concept.Script.Matches(brief.Duration) {
		return failed(&domain.InputError{
			Field:  "concept.script",
			Reason: fmt.Sprintf("expected %d scenes for %s", brief.Duration.SceneCount(), brief.Duration),
		})
	}
	if concept.StartFrame.Empty() {
		return failed(&domain.InputError{Field: "concept.start_frame", Reason: "required"})
	}
	if o.scenes == nil {
		return failed(fmt.Errorf("%w: no video backend", domain.ErrConfigurationMissing))
	}
	scenes := concept.Script.Len()
	cost := o.pricing.VideoCost(scenes)
	if err := o.precheck(ctx, userID, cost); err != nil {
		return failed(err)
	}

	runCtx := ctx
	if o.deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.deadline)
		defer cancel()
	}

	started := time.Now()
	video, err := o.scenes.GenerateVideo(runCtx, concept, brief)
	o.metrics.ObserveStage("video", started, err)

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		o.logger.Warn().Err(err).Str("concept_id", concept.ID).Msg("pipeline: video backend rate limited, returning placeholder")
		o.metrics.VideoOutcome(string(domain.OutcomeDegraded))
		return domain.VideoOutcome{
			Kind:        domain.OutcomeDegraded,
			Video:       domain.Artifact{URI: o.placeholder, MIMEType: domain.MIMETypeMP4},
			AspectRatio: aspect,
			Scenes:      scenes,
			Reason:      "video backend is rate limited; returned a sample video",
		}
	case err != nil:
		return failed(err)
	}

	o.charge(ctx, userID, cost, "video")
	o.metrics.VideoOutcome(string(domain.OutcomeReal))
	return domain.VideoOutcome{
		Kind:        domain.OutcomeReal,
		Video:       video,
		AspectRatio: aspect,
		Scenes:      scenes,
	}
}

func (o *Orchestrator) precheck(ctx context.Context, userID string, cost int64) error {
	if o.ledger == nil || cost <= 0 {
		return nil
	}
	if userID == "" {
		return domain.ErrUnauthorized
	}
	ok, err := o.ledger.HasSufficientCredits(ctx, userID, cost)
	if err != nil {
		return fmt.Errorf("check credits: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %d credits required", domain.ErrInsufficientCredits, cost)
	}
	return nil
}

// charge deducts after a delivered result. Failures are logged and counted
// but never returned.
func (o *Orchestrator) charge(ctx context.Context, userID string, cost int64, stage string) {
	if o.ledger == nil || cost <= 0 {
		return
	}
	remaining, err := o.ledger.Deduct(context.WithoutCancel(ctx), userID, cost)
	if err != nil {
		o.metrics.CreditDeductionFailed()
		o.logger.Error().
			Err(err).
			Str("user_id", userID).
			Str("stage", stage).
			Int64("amount", cost).
			Msg("pipeline: credit deduction failed")
		return
	}
	o.logger.Info().
		Str("user_id", userID).
		Str("stage", stage).
		Int64("amount", cost).
		Int64("remaining", remaining).
		Msg("pipeline: credits deducted")
}
