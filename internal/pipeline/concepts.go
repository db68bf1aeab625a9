package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
	"promoreel/internal/infra"
	"promoreel/internal/metrics"
)

const (
	DefaultConceptCount  = 4
	DefaultMaxConcurrent = 4

	scriptSystemPrompt = "You write short-form video ad scripts. Respond only with JSON that matches the provided schema."
)

// Result is the outcome of one independent unit of fan-out work.
type Result[T any] struct {
	Value T
	Err   error
}

// ConceptGeneratorOptions configures a ConceptGenerator.
type ConceptGeneratorOptions struct {
	Text          generation.TextGenerator
	Images        generation.ImageGenerator
	ImagePoller   Poller
	MaxConcurrent int
	Logger        *infra.Logger
	Metrics       *metrics.Recorder
}

// ConceptGenerator turns a brief into key-framed concepts: one script call,
// then a bounded fan-out of per-candidate frame renders.
type ConceptGenerator struct {
	text          generation.TextGenerator
	images        generation.ImageGenerator
	imagePoller   Poller
	maxConcurrent int
	logger        *infra.Logger
	metrics       *metrics.Recorder
}

func NewConceptGenerator(opts ConceptGeneratorOptions) (*ConceptGenerator, error) {
	if opts.Text == nil {
		return nil, errors.New("pipeline: text generator is required")
	}
	if opts.Images == nil {
		return nil, errors.New("pipeline: image generator is required")
	}
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	poller := opts.ImagePoller
	if poller.MaxAttempts <= 0 {
		poller.MaxAttempts = 15
	}
	if poller.Interval <= 0 {
		poller.Interval = 2 * time.Second
	}
	return &ConceptGenerator{
		text:          opts.Text,
		images:        opts.Images,
		imagePoller:   poller,
		maxConcurrent: limit,
		logger:        infra.LoggerOrDiscard(opts.Logger),
		metrics:       opts.Metrics,
	}, nil
}

// Generate returns up to count viable concepts in the order the script call
// emitted them. Candidates whose frames fail are dropped; when none survive
// the error wraps domain.ErrNoViableConcepts.
func (g *ConceptGenerator) Generate(ctx context.Context, brief domain.BrandBrief, count int) ([]domain.Concept, error) {
	if count <= 0 {
		count = DefaultConceptCount
	}
	if err := brief.Validate(); err != nil {
		return nil, err
	}
	scenes := brief.Duration.SceneCount()

	raw, err := g.text.GenerateText(ctx, generation.TextRequest{
		System: scriptSystemPrompt,
		Prompt: buildScriptPrompt(brief, count),
		Schema: conceptSchema(scenes, count),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: script call: %w", domain.ErrConceptGenerationFailed, err)
	}

	payloads, err := parseConcepts(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse script response: %v", domain.ErrConceptGenerationFailed, err)
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: script response contained no concepts", domain.ErrConceptGenerationFailed)
	}
	if len(payloads) > count {
		payloads = payloads[:count]
	}

	results := g.renderAll(ctx, brief, payloads)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	concepts := make([]domain.Concept, 0, len(results))
	var firstErr error
	for i, r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			g.logger.Warn().
				Err(r.Err).
				Int("candidate", i).
				Msg("pipeline: dropping concept candidate")
			continue
		}
		concepts = append(concepts, r.Value)
	}
	dropped := len(results) - len(concepts)
	g.metrics.ConceptCandidates(len(concepts), dropped)

	if len(concepts) == 0 {
		return nil, fmt.Errorf("%w: all %d candidates failed, first: %v", domain.ErrNoViableConcepts, dropped, firstErr)
	}

	g.logger.Info().
		Int("kept", len(concepts)).
		Int("dropped", dropped).
		Msg("pipeline: concepts generated")

	return concepts, nil
}

// renderAll renders every candidate with at most maxConcurrent in flight. A
// failing candidate never cancels its siblings.
func (g *ConceptGenerator) renderAll(ctx context.Context, brief domain.BrandBrief, payloads []conceptPayload) []Result[domain.Concept] {
	ids := assignIDs(payloads)
	results := make([]Result[domain.Concept], len(payloads))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.maxConcurrent)
	for i := range payloads {
		grp.Go(func() error {
			concept, err := g.renderCandidate(gctx, brief, ids[i], payloads[i])
			results[i] = Result[domain.Concept]{Value: concept, Err: err}
			return nil
		})
	}
	_ = grp.Wait()
	return results
}

func (g *ConceptGenerator) renderCandidate(ctx context.Context, brief domain.BrandBrief, id string, p conceptPayload) (domain.Concept, error) {
	if !p.Script.Matches(brief.Duration) {
		return domain.Concept{}, fmt.Errorf("concept %s: script has %d beats, want %d", id, p.Script.Len(), brief.Duration.SceneCount())
	}
	description := strings.TrimSpace(p.Description)
	if description == "" {
		return domain.Concept{}, fmt.Errorf("concept %s: missing description", id)
	}

	aspect := brief.ImageAspectRatio()
	refs := referenceParts(brief)

	startParts := append(append([]generation.Part(nil), refs...), generation.TextPart(buildStartFramePrompt(brief, description, p.Script.Beat(0))))
	start, err := g.renderFrame(ctx, generation.ImageRequest{Parts: startParts, AspectRatio: aspect})
	if err != nil {
		return domain.Concept{}, fmt.Errorf("concept %s: start frame: %w", id, err)
	}

	endParts := append(append([]generation.Part(nil), refs...),
		generation.ImagePart(start),
		generation.TextPart(buildEndFramePrompt(brief, p.Script.Last())),
	)
	end, err := g.renderFrame(ctx, generation.ImageRequest{Parts: endParts, AspectRatio: aspect})
	if err != nil {
		return domain.Concept{}, fmt.Errorf("concept %s: end frame: %w", id, err)
	}

	return domain.Concept{
		ID:          id,
		Description: description,
		Script:      p.Script,
		StartFrame:  start,
		EndFrame:    end,
	}, nil
}

func (g *ConceptGenerator) renderFrame(ctx context.Context, req generation.ImageRequest) (domain.Artifact, error) {
	res, err := g.images.GenerateImage(ctx, req)
	if err != nil {
		return domain.Artifact{}, err
	}
	if res.Image != nil && !res.Image.Empty() {
		return *res.Image, nil
	}
	if res.Operation == nil {
		return domain.Artifact{}, errors.New("image backend returned no image")
	}

	op, attempts, err := g.imagePoller.Await(ctx, *res.Operation, g.images.PollImage)
	g.metrics.PollAttempts("image", attempts)
	if err != nil {
		return domain.Artifact{}, err
	}
	switch {
	case op.FilteredReason != "":
		return domain.Artifact{}, fmt.Errorf("%w: %s", domain.ErrContentFiltered, op.FilteredReason)
	case op.Err != nil:
		return domain.Artifact{}, op.Err
	case op.Result == nil || op.Result.Empty():
		return domain.Artifact{}, errors.New("image operation finished without an image")
	}
	return *op.Result, nil
}

// assignIDs keeps model-provided IDs when present and unique, otherwise
// falls back to concept-<index>.
func assignIDs(payloads []conceptPayload) []string {
	ids := make([]string, len(payloads))
	seen := make(map[string]struct{}, len(payloads))
	for i, p := range payloads {
		id := strings.TrimSpace(p.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = fmt.Sprintf("concept-%d", i)
		}
		if _, dup := seen[id]; dup {
			id = "concept-" + uuid.NewString()[:8]
		}
		seen[id] = struct{}{}
		ids[i] = id
	}
	return ids
}
