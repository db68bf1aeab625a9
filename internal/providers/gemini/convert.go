package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
)

// grpcResourceExhausted is the google.rpc.Code carried in failed operations
// that hit a quota.
const grpcResourceExhausted = 8

func toSchema(s *generation.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Description: s.Description, Required: append([]string(nil), s.Required...)}
	switch s.Type {
	case generation.TypeObject:
		out.Type = genai.TypeObject
	case generation.TypeArray:
		out.Type = genai.TypeArray
	default:
		out.Type = genai.TypeString
	}
	if s.Items != nil {
		out.Items = toSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for _, p := range s.Properties {
			out.Properties[p.Name] = toSchema(p.Schema)
			out.PropertyOrdering = append(out.PropertyOrdering, p.Name)
		}
	}
	if s.MinItems > 0 {
		out.MinItems = int64Ptr(int64(s.MinItems))
	}
	if s.MaxItems > 0 {
		out.MaxItems = int64Ptr(int64(s.MaxItems))
	}
	return out
}

func int64Ptr(v int64) *int64 { return &v }

func toParts(parts []generation.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.Inline != nil && len(p.Inline.Data) > 0:
			out = append(out, genai.NewPartFromBytes(p.Inline.Data, coalesce(p.Inline.MIMEType, domain.MIMETypePNG)))
		case strings.TrimSpace(p.Text) != "":
			out = append(out, genai.NewPartFromText(p.Text))
		}
	}
	return out
}

func firstInlineImage(resp *genai.GenerateContentResponse) (domain.Artifact, error) {
	if resp == nil {
		return domain.Artifact{}, errors.New("gemini: empty image response")
	}
	var finish string
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		finish = string(cand.FinishReason)
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return domain.Artifact{
				Data:     part.InlineData.Data,
				MIMEType: coalesce(part.InlineData.MIMEType, domain.MIMETypePNG),
			}, nil
		}
	}
	if strings.Contains(finish, "SAFETY") || strings.Contains(finish, "PROHIBITED") || blockSuffix(resp) != "" {
		return domain.Artifact{}, fmt.Errorf("%w: image rejected (%s)%s", domain.ErrContentFiltered, finish, blockSuffix(resp))
	}
	return domain.Artifact{}, fmt.Errorf("gemini: no image in response (finish reason %q)", finish)
}

func blockSuffix(resp *genai.GenerateContentResponse) string {
	if resp == nil || resp.PromptFeedback == nil || resp.PromptFeedback.BlockReason == "" {
		return ""
	}
	return fmt.Sprintf(" (blocked: %s)", resp.PromptFeedback.BlockReason)
}

func fromVideosOperation(op *genai.GenerateVideosOperation) domain.AsyncOperation {
	if op == nil {
		return domain.AsyncOperation{}
	}
	out := domain.AsyncOperation{Handle: op.Name, Done: op.Done}
	if !op.Done {
		return out
	}
	if len(op.Error) > 0 {
		out.Err = operationError(op.Error)
		return out
	}
	resp := op.Response
	if resp == nil {
		return out
	}
	if len(resp.RAIMediaFilteredReasons) > 0 {
		out.FilteredReason = strings.Join(resp.RAIMediaFilteredReasons, "; ")
		return out
	}
	if resp.RAIMediaFilteredCount > 0 && len(resp.GeneratedVideos) == 0 {
		out.FilteredReason = "video removed by safety filters"
		return out
	}
	for _, gv := range resp.GeneratedVideos {
		if gv == nil || gv.Video == nil {
			continue
		}
		if gv.Video.URI == "" && len(gv.Video.VideoBytes) == 0 {
			continue
		}
		out.Result = &domain.Artifact{
			URI:      gv.Video.URI,
			Data:     gv.Video.VideoBytes,
			MIMEType: coalesce(gv.Video.MIMEType, domain.MIMETypeMP4),
		}
		break
	}
	return out
}

// operationError converts the google.rpc.Status map of a failed operation.
func operationError(status map[string]any) error {
	message, _ := status["message"].(string)
	var code int
	switch v := status["code"].(type) {
	case float64:
		code = int(v)
	case int:
		code = v
	case int64:
		code = int(v)
	}
	if code == grpcResourceExhausted || strings.Contains(strings.ToUpper(message), "RESOURCE_EXHAUSTED") {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, message)
	}
	if message == "" {
		message = "unknown error"
	}
	return fmt.Errorf("gemini operation failed (code %d): %s", code, message)
}

// classifyError maps SDK errors onto the domain taxonomy.
func classifyError(op string, err error) error {
	var (
		apiErr genai.APIError
		code   int
		status string
		msg    string
	)
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status, msg = apiErr.Code, apiErr.Status, apiErr.Message
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status, msg = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
	default:
		return fmt.Errorf("gemini %s: %w", op, err)
	}
	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("gemini %s: %w: %s", op, domain.ErrRateLimited, msg)
	case code == http.StatusUnauthorized || code == http.StatusForbidden || status == "PERMISSION_DENIED" || status == "UNAUTHENTICATED":
		return fmt.Errorf("gemini %s: %w: %s", op, domain.ErrConfigurationMissing, msg)
	default:
		return fmt.Errorf("gemini %s: %w", op, err)
	}
}
