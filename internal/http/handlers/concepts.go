package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"promoreel/internal/domain"
	"promoreel/internal/middleware"
)

const maxReferenceImages = 4

// briefRequest is the wire form of a brand brief. Images are base64 data URIs.
type briefRequest struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Variant      string   `json:"variant"`
	SellingPoint string   `json:"selling_point"`
	Tone         string   `json:"tone"`
	ThemeColor   string   `json:"theme_color"`
	Logo         string   `json:"logo"`
	References   []string `json:"references"`
	AspectRatio  string   `json:"aspect_ratio"`
	CustomWidth  int      `json:"custom_width"`
	CustomHeight int      `json:"custom_height"`
	Duration     string   `json:"duration"`
	Locale       string   `json:"locale"`
}

// toDomain decodes the images and falls back to the negotiated locale.
func (b briefRequest) toDomain(locale string) (domain.BrandBrief, error) {
	brief := domain.BrandBrief{
		SubjectName:  b.Name,
		SubjectKind:  b.Kind,
		Variant:      domain.Variant(b.Variant),
		SellingPoint: b.SellingPoint,
		Tone:         domain.Tone(b.Tone),
		ThemeColor:   b.ThemeColor,
		AspectRatio:  b.AspectRatio,
		CustomWidth:  b.CustomWidth,
		CustomHeight: b.CustomHeight,
		Duration:     domain.Duration(b.Duration),
		Locale:       b.Locale,
	}
	if strings.TrimSpace(brief.Locale) == "" {
		brief.Locale = locale
	}
	if strings.TrimSpace(b.Logo) != "" {
		logo, err := domain.ParseDataURI(b.Logo, domain.MIMETypePNG)
		if err != nil {
			return domain.BrandBrief{}, &domain.InputError{Field: "logo", Reason: err.Error()}
		}
		brief.Logo = &logo
	}
	if len(b.References) > maxReferenceImages {
		return domain.BrandBrief{}, &domain.InputError{Field: "references", Reason: fmt.Sprintf("at most %d images", maxReferenceImages)}
	}
	for i, raw := range b.References {
		ref, err := domain.ParseDataURI(raw, domain.MIMETypePNG)
		if err != nil {
			return domain.BrandBrief{}, &domain.InputError{Field: fmt.Sprintf("references[%d]", i), Reason: err.Error()}
		}
		brief.References = append(brief.References, ref)
	}
	return brief, nil
}

type conceptDTO struct {
	ID          string             `json:"id"`
	Description string             `json:"description"`
	Script      domain.SceneScript `json:"script"`
	StartFrame  string             `json:"start_frame"`
	EndFrame    string             `json:"end_frame"`
}

func conceptToDTO(c domain.Concept) conceptDTO {
	return conceptDTO{
		ID:          c.ID,
		Description: c.Description,
		Script:      c.Script,
		StartFrame:  c.StartFrame.DataURI(),
		EndFrame:    c.EndFrame.DataURI(),
	}
}

// toDomain restores a concept the client echoed back. The end frame is
// optional; only the start frame seeds the video.
func (c conceptDTO) toDomain() (domain.Concept, error) {
	out := domain.Concept{ID: c.ID, Description: c.Description, Script: c.Script}
	if strings.TrimSpace(c.StartFrame) == "" {
		return domain.Concept{}, &domain.InputError{Field: "concept.start_frame", Reason: "is required"}
	}
	start, err := domain.ParseDataURI(c.StartFrame, domain.MIMETypePNG)
	if err != nil {
		return domain.Concept{}, &domain.InputError{Field: "concept.start_frame", Reason: err.Error()}
	}
	out.StartFrame = start
	if strings.TrimSpace(c.EndFrame) != "" {
		end, err := domain.ParseDataURI(c.EndFrame, domain.MIMETypePNG)
		if err != nil {
			return domain.Concept{}, &domain.InputError{Field: "concept.end_frame", Reason: err.Error()}
		}
		out.EndFrame = end
	}
	return out, nil
}

type conceptsResponse struct {
	Concepts []conceptDTO `json:"concepts"`
}

// ConceptsGenerate runs stage one: a brief in, several viable concepts out.
func (a *App) ConceptsGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req briefRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	brief, err := req.toDomain(middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	concepts, err := a.Pipeline.GenerateConcepts(r.Context(), userID, brief)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := conceptsResponse{Concepts: make([]conceptDTO, 0, len(concepts))}
	for _, c := range concepts {
		resp.Concepts = append(resp.Concepts, conceptToDTO(c))
	}
	a.json(w, http.StatusOK, resp)
}
