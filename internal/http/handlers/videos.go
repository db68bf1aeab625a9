package handlers

import (
	"net/http"

	"promoreel/internal/domain"
	"promoreel/internal/middleware"
)

const videoStoragePrefix = "videos"

type videoRequest struct {
	Concept conceptDTO   `json:"concept"`
	Brief   briefRequest `json:"brief"`
}

type videoResponse struct {
	VideoURL    string `json:"video_url"`
	MIMEType    string `json:"mime_type"`
	AspectRatio string `json:"aspect_ratio"`
	Scenes      int    `json:"scenes"`
	Degraded    bool   `json:"degraded"`
	Note        string `json:"note,omitempty"`
	StorageKey  string `json:"storage_key,omitempty"`
}

// VideosGenerate runs stage two for the chosen concept. The request blocks
// until every scene is rendered. A degraded outcome still answers 200 with
// the placeholder video and a note.
func (a *App) VideosGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req videoRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	brief, err := req.Brief.toDomain(middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	concept, err := req.Concept.toDomain()
	if err != nil {
		a.fail(w, r, err)
		return
	}

	outcome := a.Pipeline.GenerateVideo(r.Context(), userID, concept, brief)
	switch outcome.Kind {
	case domain.OutcomeFailed:
		a.fail(w, r, outcome.Err)
		return
	case domain.OutcomeDegraded:
		a.json(w, http.StatusOK, videoResponse{
			VideoURL:    outcome.Video.URI,
			MIMEType:    outcome.Video.MIMEType,
			AspectRatio: outcome.AspectRatio,
			Scenes:      outcome.Scenes,
			Degraded:    true,
			Note:        outcome.Reason,
		})
		return
	}

	resp := videoResponse{
		VideoURL:    outcome.Video.DataURI(),
		MIMEType:    outcome.Video.MIMEType,
		AspectRatio: outcome.AspectRatio,
		Scenes:      outcome.Scenes,
	}
	if a.Store != nil && len(outcome.Video.Data) > 0 {
		key, err := a.Store.Put(r.Context(), videoStoragePrefix+"/"+userID, outcome.Video)
		if err != nil {
			a.logger(r).Warn().Err(err).Str("concept_id", concept.ID).Msg("http: store video")
		} else {
			resp.StorageKey = key
		}
	}
	a.json(w, http.StatusOK, resp)
}
