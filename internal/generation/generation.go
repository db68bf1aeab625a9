// Package generation defines the contracts the pipeline uses to reach
// text, image and video backends. Adapters live under internal/providers.
package generation

import (
	"context"

	"promoreel/internal/domain"
)

// TextRequest asks for a single structured completion.
type TextRequest struct {
	System string
	Prompt string
	Schema *Schema
}

// TextGenerator returns the raw model text for a request. When Schema is set
// the text is expected to be JSON conforming to it.
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// Part is one element of a multimodal prompt.
type Part struct {
	Text   string
	Inline *domain.Artifact
}

// TextPart is shorthand for a text-only Part.
func TextPart(text string) Part { return Part{Text: text} }

// ImagePart wraps an inline reference image.
func ImagePart(a domain.Artifact) Part { return Part{Inline: &a} }

// ImageRequest describes a single key-frame render.
type ImageRequest struct {
	Parts       []Part
	AspectRatio string
}

// ImageResult holds either an inline image or a pending operation.
type ImageResult struct {
	Image     *domain.Artifact
	Operation *domain.AsyncOperation
}

// ImageGenerator renders still images. Backends that answer asynchronously
// return an Operation that is resolved through PollImage.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error)
	PollImage(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error)
}

// VideoRequest describes one video step. Submit seeds from Image, Extend
// seeds from Video.
type VideoRequest struct {
	Prompt      string
	AspectRatio string
	Resolution  string
	Image       *domain.Artifact
	Video       *domain.Artifact
}

// VideoGenerator starts and polls long-running video jobs.
type VideoGenerator interface {
	Submit(ctx context.Context, req VideoRequest) (domain.AsyncOperation, error)
	Extend(ctx context.Context, req VideoRequest) (domain.AsyncOperation, error)
	PollVideo(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error)
}

// Fetcher resolves an artifact reference into bytes.
type Fetcher interface {
	Fetch(ctx context.Context, a domain.Artifact) (domain.Artifact, error)
}
