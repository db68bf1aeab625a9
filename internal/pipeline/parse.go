package pipeline

import (
	"encoding/json"
	"errors"
	"strings"

	"promoreel/internal/domain"
)

type conceptPayload struct {
	ID          string             `json:"id"`
	Description string             `json:"description"`
	Script      domain.SceneScript `json:"script"`
}

type conceptEnvelope struct {
	Concepts []conceptPayload `json:"concepts"`
}

// parseConcepts accepts either {"concepts":[...]} or a bare array, tolerating
// code fences and chatter around the JSON.
func parseConcepts(raw string) ([]conceptPayload, error) {
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return nil, errors.New("empty payload")
	}
	if strings.HasPrefix(cleaned, "[") {
		var items []conceptPayload
		if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var env conceptEnvelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return nil, err
	}
	return env.Concepts, nil
}

func extractJSONFragment(raw string) string {
	text := trimCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return ""
	}
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
