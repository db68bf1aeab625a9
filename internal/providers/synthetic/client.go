// Package synthetic is a deterministic, offline generation backend. It
// produces schema-shaped text, flat PNG key frames and placeholder video
// bytes so the service runs end to end without provider credentials.
package synthetic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
	"promoreel/internal/infra"
)

const handlePrefix = "synthetic/"

// Options controls the synthetic backend.
type Options struct {
	// PollsToComplete is how many polls a video operation needs before it
	// reports done. Zero completes on the first poll.
	PollsToComplete int
	Logger          *infra.Logger
}

// Client implements every generation contract without network access.
type Client struct {
	pollsToComplete int
	logger          *infra.Logger
}

var (
	_ generation.TextGenerator  = (*Client)(nil)
	_ generation.ImageGenerator = (*Client)(nil)
	_ generation.VideoGenerator = (*Client)(nil)
)

func NewClient(opts Options) *Client {
	polls := opts.PollsToComplete
	if polls < 1 {
		polls = 1
	}
	return &Client{pollsToComplete: polls, logger: infra.LoggerOrDiscard(opts.Logger)}
}

// GenerateText fills the request schema with deterministic copy derived from
// the prompt. Without a schema it echoes a short summary line.
func (c *Client) GenerateText(ctx context.Context, req generation.TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seed := deterministicSeed(req.System, req.Prompt)
	if req.Schema == nil {
		return "Synthetic response " + seed, nil
	}
	value := fill(req.Schema, "", seed)
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("synthetic: encode response: %w", err)
	}
	c.logger.Debug().Str("seed", seed).Msg("synthetic: generated structured text")
	return string(raw), nil
}

// fill builds a value matching s. Strings name their path so every array
// element is distinct.
func fill(s *generation.Schema, path, seed string) any {
	switch s.Type {
	case generation.TypeObject:
		out := make(map[string]any, len(s.Properties))
		for _, p := range s.Properties {
			out[p.Name] = fill(p.Schema, joinPath(path, p.Name), seed)
		}
		return out
	case generation.TypeArray:
		n := s.MinItems
		if n <= 0 {
			n = 1
		}
		items := make([]any, n)
		for i := range items {
			if s.Items == nil {
				items[i] = fmt.Sprintf("%s-%d", seed, i+1)
				continue
			}
			items[i] = fill(s.Items, fmt.Sprintf("%s[%d]", path, i), seed)
		}
		return items
	default:
		return syntheticString(path, seed)
	}
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func syntheticString(path, seed string) string {
	leaf := path
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		leaf = path[idx+1:]
	}
	switch {
	case leaf == "id":
		return "synthetic-" + deterministicSeed(seed, path)[:8]
	case strings.HasPrefix(leaf, "scene"):
		return fmt.Sprintf("Synthetic %s: on-screen headline and action (%s)", leaf, path)
	default:
		return fmt.Sprintf("Synthetic %s (%s)", leaf, path)
	}
}

// GenerateImage returns an inline PNG sized for the aspect ratio.
func (c *Client) GenerateImage(ctx context.Context, req generation.ImageRequest) (generation.ImageResult, error) {
	if err := ctx.Err(); err != nil {
		return generation.ImageResult{}, err
	}
	var text strings.Builder
	inline := 0
	for _, p := range req.Parts {
		text.WriteString(p.Text)
		if p.Inline != nil {
			inline += len(p.Inline.Data)
		}
	}
	seed := deterministicSeed(text.String(), req.AspectRatio, inline)
	width, height := normalizeAspect(req.AspectRatio)
	data, err := renderSyntheticImage(width, height, seed)
	if err != nil {
		return generation.ImageResult{}, fmt.Errorf("synthetic: render image: %w", err)
	}
	return generation.ImageResult{Image: &domain.Artifact{Data: data, MIMEType: domain.MIMETypePNG}}, nil
}

// PollImage completes any image operation immediately.
func (c *Client) PollImage(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error) {
	op.Done = true
	return op, nil
}

// Submit starts a video seeded by an image.
func (c *Client) Submit(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	if req.Image == nil || req.Image.Empty() {
		return domain.AsyncOperation{}, errors.New("synthetic: submit requires a seed image")
	}
	return c.start(ctx, req, len(req.Image.Data))
}

// Extend continues a video seeded by the prior scene.
func (c *Client) Extend(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	if req.Video == nil || req.Video.Empty() {
		return domain.AsyncOperation{}, errors.New("synthetic: extend requires a seed video")
	}
	return c.start(ctx, req, req.Video.URI)
}

func (c *Client) start(ctx context.Context, req generation.VideoRequest, seedRef any) (domain.AsyncOperation, error) {
	if err := ctx.Err(); err != nil {
		return domain.AsyncOperation{}, err
	}
	seed := deterministicSeed(req.Prompt, req.AspectRatio, req.Resolution, seedRef)
	return domain.AsyncOperation{Handle: encodeHandle(seed, 0)}, nil
}

// PollVideo advances the poll counter carried in the handle, so the backend
// keeps no state between calls.
func (c *Client) PollVideo(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error) {
	seed, polls, err := decodeHandle(op.Handle)
	if err != nil {
		return op, err
	}
	polls++
	next := domain.AsyncOperation{Handle: encodeHandle(seed, polls)}
	if polls < c.pollsToComplete {
		return next, nil
	}
	next.Done = true
	next.Result = &domain.Artifact{
		URI:      "synthetic://video/" + seed + ".mp4",
		Data:     renderSyntheticVideo(seed),
		MIMEType: domain.MIMETypeMP4,
	}
	return next, nil
}

func encodeHandle(seed string, polls int) string {
	return fmt.Sprintf("%s%s/%d", handlePrefix, seed, polls)
}

func decodeHandle(handle string) (string, int, error) {
	rest, ok := strings.CutPrefix(handle, handlePrefix)
	if !ok {
		return "", 0, fmt.Errorf("synthetic: unknown operation %q", handle)
	}
	seed, count, ok := strings.Cut(rest, "/")
	if !ok || seed == "" {
		return "", 0, fmt.Errorf("synthetic: malformed operation %q", handle)
	}
	var polls int
	if _, err := fmt.Sscanf(count, "%d", &polls); err != nil {
		return "", 0, fmt.Errorf("synthetic: malformed operation %q", handle)
	}
	return seed, polls, nil
}
