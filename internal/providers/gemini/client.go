// Package gemini adapts the Gemini API (text, image and Veo video models) to
// the generation contracts.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
	"promoreel/internal/infra"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultVideoModel = "veo-3.1-generate-preview"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	TextModel  string
	ImageModel string
	VideoModel string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is safe for concurrent use. It holds no per-request state, so one
// instance is shared by every pipeline run.
type Client struct {
	genai      *genai.Client
	textModel  string
	imageModel string
	videoModel string
	logger     *infra.Logger
}

var (
	_ generation.TextGenerator  = (*Client)(nil)
	_ generation.ImageGenerator = (*Client)(nil)
	_ generation.VideoGenerator = (*Client)(nil)
)

// NewClient builds a client for the Gemini Developer API. A blank key is a
// configuration error.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: gemini api key", domain.ErrConfigurationMissing)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		genai:      gc,
		textModel:  coalesce(opts.TextModel, DefaultTextModel),
		imageModel: coalesce(opts.ImageModel, DefaultImageModel),
		videoModel: coalesce(opts.VideoModel, DefaultVideoModel),
		logger:     infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// GenerateText runs one completion, constrained to JSON when a schema is set.
func (c *Client) GenerateText(ctx context.Context, req generation.TextRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toSchema(req.Schema)
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.textModel, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", classifyError("generate text", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty text response%s", blockSuffix(resp))
	}
	c.logger.Debug().Str("model", c.textModel).Int("chars", len(text)).Msg("gemini: text generated")
	return text, nil
}

// GenerateImage renders a key frame. Gemini answers image calls inline, so
// the result never carries an operation.
func (c *Client) GenerateImage(ctx context.Context, req generation.ImageRequest) (generation.ImageResult, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	}
	if req.AspectRatio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: req.AspectRatio}
	}
	contents := []*genai.Content{genai.NewContentFromParts(toParts(req.Parts), genai.RoleUser)}

	resp, err := c.genai.Models.GenerateContent(ctx, c.imageModel, contents, cfg)
	if err != nil {
		return generation.ImageResult{}, classifyError("generate image", err)
	}
	img, err := firstInlineImage(resp)
	if err != nil {
		return generation.ImageResult{}, err
	}
	c.logger.Debug().Str("model", c.imageModel).Int("bytes", len(img.Data)).Msg("gemini: image generated")
	return generation.ImageResult{Image: &img}, nil
}

// PollImage is never needed for Gemini; an operation passed in is returned
// as finished without a result.
func (c *Client) PollImage(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error) {
	return op, errors.New("gemini: image generation is synchronous")
}

// Submit starts an image-to-video job seeded by req.Image.
func (c *Client) Submit(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	if req.Image == nil || len(req.Image.Data) == 0 {
		return domain.AsyncOperation{}, errors.New("gemini: submit requires an inline seed image")
	}
	source := &genai.GenerateVideosSource{
		Prompt: req.Prompt,
		Image: &genai.Image{
			ImageBytes: req.Image.Data,
			MIMEType:   coalesce(req.Image.MIMEType, domain.MIMETypePNG),
		},
	}
	return c.startVideo(ctx, source, req)
}

// Extend continues the video in req.Video.
func (c *Client) Extend(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	if req.Video == nil || req.Video.Empty() {
		return domain.AsyncOperation{}, errors.New("gemini: extend requires a seed video")
	}
	video := &genai.Video{URI: req.Video.URI}
	if video.URI == "" {
		video.VideoBytes = req.Video.Data
		video.MIMEType = coalesce(req.Video.MIMEType, domain.MIMETypeMP4)
	}
	return c.startVideo(ctx, &genai.GenerateVideosSource{Prompt: req.Prompt, Video: video}, req)
}

func (c *Client) startVideo(ctx context.Context, source *genai.GenerateVideosSource, req generation.VideoRequest) (domain.AsyncOperation, error) {
	op, err := c.genai.Models.GenerateVideosFromSource(ctx, c.videoModel, source, videoConfig(req))
	if err != nil {
		return domain.AsyncOperation{}, classifyError("generate video", err)
	}
	out := fromVideosOperation(op)
	c.logger.Debug().Str("model", c.videoModel).Str("operation", out.Handle).Msg("gemini: video operation started")
	return out, nil
}

// PollVideo refreshes a Veo operation by name.
func (c *Client) PollVideo(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error) {
	if op.Handle == "" {
		return op, errors.New("gemini: operation handle is empty")
	}
	latest, err := c.genai.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: op.Handle}, nil)
	if err != nil {
		return op, classifyError("poll video", err)
	}
	return fromVideosOperation(latest), nil
}

func videoConfig(req generation.VideoRequest) *genai.GenerateVideosConfig {
	return &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    req.AspectRatio,
		Resolution:     coalesce(req.Resolution, "720p"),
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
