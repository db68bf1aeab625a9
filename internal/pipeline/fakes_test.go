package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
)

type fakeText struct {
	raw  string
	err  error
	reqs []generation.TextRequest
}

func (f *fakeText) GenerateText(ctx context.Context, req generation.TextRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.raw, f.err
}

// fakeImages renders a frame per request. Requests whose text mentions
// failMarker return failErr instead.
type fakeImages struct {
	mu         sync.Mutex
	reqs       []generation.ImageRequest
	failMarker string
	failErr    error
	async      bool
	pollsToEnd int
	polls      map[string]int
	n          int
}

func (f *fakeImages) GenerateImage(ctx context.Context, req generation.ImageRequest) (generation.ImageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	f.n++
	text := promptText(req.Parts)
	if f.failMarker != "" && strings.Contains(text, f.failMarker) {
		return generation.ImageResult{}, f.failErr
	}
	frame := domain.Artifact{Data: []byte(fmt.Sprintf("frame-%d", f.n)), MIMEType: domain.MIMETypePNG}
	if f.async {
		handle := fmt.Sprintf("img-%d", f.n)
		if f.polls == nil {
			f.polls = map[string]int{}
		}
		f.polls[handle] = 0
		return generation.ImageResult{Operation: &domain.AsyncOperation{Handle: handle, Result: &frame}}, nil
	}
	return generation.ImageResult{Image: &frame}, nil
}

func (f *fakeImages) PollImage(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[op.Handle]++
	op.Done = f.polls[op.Handle] >= f.pollsToEnd
	return op, nil
}

func promptText(parts []generation.Part) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func scriptResponse(t *testing.T, concepts ...conceptPayload) string {
	t.Helper()
	raw, err := json.Marshal(conceptEnvelope{Concepts: concepts})
	if err != nil {
		t.Fatalf("marshal concepts: %v", err)
	}
	return string(raw)
}

func payload(id string, beats ...string) conceptPayload {
	return conceptPayload{ID: id, Description: "style " + id, Script: domain.SceneScript{Beats: beats}}
}

func finTrackBrief(d domain.Duration) domain.BrandBrief {
	return domain.BrandBrief{
		SubjectName:  "FinTrack",
		SubjectKind:  "finance",
		SellingPoint: "Save money automatically",
		Tone:         domain.ToneProfessional,
		Duration:     d,
	}.Normalize()
}

func conceptFor(d domain.Duration) domain.Concept {
	beats := make([]string, d.SceneCount())
	for i := range beats {
		beats[i] = fmt.Sprintf("beat %d", i+1)
	}
	return domain.Concept{
		ID:          "c1",
		Description: "clean flat illustration",
		Script:      domain.SceneScript{Beats: beats},
		StartFrame:  domain.Artifact{Data: []byte("start"), MIMEType: domain.MIMETypePNG},
		EndFrame:    domain.Artifact{Data: []byte("end"), MIMEType: domain.MIMETypePNG},
	}
}

type videoCall struct {
	kind   string
	handle string
	seed   domain.Artifact
}

// fakeVideos completes every operation after pollsToEnd polls and yields a
// video whose URI names the operation that produced it.
type fakeVideos struct {
	mu         sync.Mutex
	calls      []videoCall
	done       map[string]bool
	pollsToEnd int
	polls      map[string]int
	// per-scene overrides keyed by zero-based call index
	filterAt  map[int]string
	emptyAt   map[int]bool
	submitErr map[int]error
	// violations records ordering problems observed while serving calls
	violations []string
}

func newFakeVideos() *fakeVideos {
	return &fakeVideos{done: map[string]bool{}, polls: map[string]int{}, pollsToEnd: 2}
}

func (f *fakeVideos) Submit(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	if req.Image == nil || req.Video != nil {
		f.mu.Lock()
		f.violations = append(f.violations, "submit must be seeded by an image only")
		f.mu.Unlock()
	}
	return f.start("submit", req, req.Image)
}

func (f *fakeVideos) Extend(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	if req.Video == nil || req.Image != nil {
		f.mu.Lock()
		f.violations = append(f.violations, "extend must be seeded by a video only")
		f.mu.Unlock()
	}
	return f.start("extend", req, req.Video)
}

func (f *fakeVideos) start(kind string, req generation.VideoRequest, seed *domain.Artifact) (domain.AsyncOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	index := len(f.calls)
	for _, c := range f.calls {
		if !f.done[c.handle] {
			f.violations = append(f.violations, fmt.Sprintf("call %d started before %s was done", index, c.handle))
		}
	}
	if err := f.submitErr[index]; err != nil {
		f.calls = append(f.calls, videoCall{kind: kind, handle: "rejected", seed: deref(seed)})
		f.done["rejected"] = true
		return domain.AsyncOperation{}, err
	}
	handle := fmt.Sprintf("op-%d", index)
	f.calls = append(f.calls, videoCall{kind: kind, handle: handle, seed: deref(seed)})
	return domain.AsyncOperation{Handle: handle}, nil
}

func (f *fakeVideos) PollVideo(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[op.Handle]++
	if f.polls[op.Handle] < f.pollsToEnd {
		return op, nil
	}
	f.done[op.Handle] = true
	op.Done = true
	index := indexOf(f.calls, op.Handle)
	switch {
	case f.filterAt[index] != "":
		op.FilteredReason = f.filterAt[index]
	case f.emptyAt[index]:
	default:
		op.Result = &domain.Artifact{URI: "video-" + op.Handle, MIMEType: domain.MIMETypeMP4}
	}
	return op, nil
}

func (f *fakeVideos) snapshot() ([]videoCall, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]videoCall(nil), f.calls...), append([]string(nil), f.violations...)
}

func indexOf(calls []videoCall, handle string) int {
	for i, c := range calls {
		if c.handle == handle {
			return i
		}
	}
	return -1
}

func deref(a *domain.Artifact) domain.Artifact {
	if a == nil {
		return domain.Artifact{}
	}
	return *a
}

type fakeFetcher struct {
	mu      sync.Mutex
	fetched []domain.Artifact
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, a domain.Artifact) (domain.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, a)
	if f.err != nil {
		return domain.Artifact{}, f.err
	}
	return domain.Artifact{URI: a.URI, Data: []byte("bytes:" + a.URI), MIMEType: domain.MIMETypeMP4}, nil
}
