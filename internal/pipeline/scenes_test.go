package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
)

func newTestScheduler(t *testing.T, videos generation.VideoGenerator, fetcher generation.Fetcher, clock *fakeClock) *SceneScheduler {
	t.Helper()
	s, err := NewSceneScheduler(SceneSchedulerOptions{
		Videos:      videos,
		Fetcher:     fetcher,
		VideoPoller: Poller{Interval: 5 * time.Second, MaxAttempts: 4, Sleep: clock.Sleep},
		SceneDelay:  2 * time.Second,
		Sleep:       clock.Sleep,
	})
	if err != nil {
		t.Fatalf("NewSceneScheduler: %v", err)
	}
	return s
}

func TestGenerateVideoChainsScenes(t *testing.T) {
	cases := []struct {
		name     string
		duration domain.Duration
		kinds    []string
	}{
		{name: "short", duration: domain.DurationShort, kinds: []string{"submit", "extend"}},
		{name: "long", duration: domain.DurationLong, kinds: []string{"submit", "extend", "extend", "extend"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			videos := newFakeVideos()
			fetcher := &fakeFetcher{}
			clock := &fakeClock{}
			s := newTestScheduler(t, videos, fetcher, clock)
			concept := conceptFor(tc.duration)

			video, err := s.GenerateVideo(context.Background(), concept, finTrackBrief(tc.duration))
			if err != nil {
				t.Fatalf("GenerateVideo error: %v", err)
			}

			calls, violations := videos.snapshot()
			if len(violations) > 0 {
				t.Fatalf("ordering violations: %v", violations)
			}
			if len(calls) != len(tc.kinds) {
				t.Fatalf("got %d video calls, want %d", len(calls), len(tc.kinds))
			}
			for i, c := range calls {
				if c.kind != tc.kinds[i] {
					t.Fatalf("call %d kind = %s, want %s", i, c.kind, tc.kinds[i])
				}
				if i == 0 {
					if string(c.seed.Data) != "start" {
						t.Fatalf("scene 1 seed = %+v, want start frame", c.seed)
					}
					continue
				}
				if want := "video-" + calls[i-1].handle; c.seed.URI != want {
					t.Fatalf("scene %d seed = %q, want %q", i+1, c.seed.URI, want)
				}
			}

			last := "video-" + calls[len(calls)-1].handle
			if len(fetcher.fetched) != 1 || fetcher.fetched[0].URI != last {
				t.Fatalf("fetched %+v, want only %s", fetcher.fetched, last)
			}
			if string(video.Data) != "bytes:"+last || video.MIMEType != domain.MIMETypeMP4 {
				t.Fatalf("final video = %+v", video)
			}

			var delays int
			for _, d := range clock.sleeps {
				if d == 2*time.Second {
					delays++
				}
			}
			if delays != len(tc.kinds)-1 {
				t.Fatalf("inter-scene delays = %d, want %d", delays, len(tc.kinds)-1)
			}
		})
	}
}

type recordingVideos struct {
	*fakeVideos
	reqs []generation.VideoRequest
}

func (r *recordingVideos) Submit(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	r.reqs = append(r.reqs, req)
	return r.fakeVideos.Submit(ctx, req)
}

func (r *recordingVideos) Extend(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	r.reqs = append(r.reqs, req)
	return r.fakeVideos.Extend(ctx, req)
}

func TestGenerateVideoRequestShape(t *testing.T) {
	videos := &recordingVideos{fakeVideos: newFakeVideos()}
	s := newTestScheduler(t, videos, &fakeFetcher{}, &fakeClock{})
	brief := finTrackBrief(domain.DurationShort)
	brief.AspectRatio = domain.AspectCustom
	brief.CustomWidth, brief.CustomHeight = 1920, 1080

	if _, err := s.GenerateVideo(context.Background(), conceptFor(domain.DurationShort), brief); err != nil {
		t.Fatalf("GenerateVideo error: %v", err)
	}
	for i, req := range videos.reqs {
		if req.Resolution != "720p" {
			t.Fatalf("req %d resolution = %q", i, req.Resolution)
		}
		if req.AspectRatio != domain.AspectLandscape {
			t.Fatalf("req %d aspect = %q", i, req.AspectRatio)
		}
		want := fmt.Sprintf("Scene %d (%d-%ds)", i+1, i*8, (i+1)*8)
		if !strings.HasPrefix(req.Prompt, want) || !strings.Contains(req.Prompt, fmt.Sprintf("beat %d", i+1)) {
			t.Fatalf("req %d prompt = %q", i, req.Prompt)
		}
	}
	if videos.reqs[0].Image.MIMEType != domain.MIMETypePNG {
		t.Fatalf("seed mime = %q", videos.reqs[0].Image.MIMEType)
	}
}

func TestGenerateVideoContentFilterHaltsChain(t *testing.T) {
	for _, at := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("scene%d", at+1), func(t *testing.T) {
			videos := newFakeVideos()
			videos.filterAt = map[int]string{at: "celebrity likeness"}
			fetcher := &fakeFetcher{}
			s := newTestScheduler(t, videos, fetcher, &fakeClock{})

			_, err := s.GenerateVideo(context.Background(), conceptFor(domain.DurationLong), finTrackBrief(domain.DurationLong))
			var filtered *domain.FilteredError
			if !errors.As(err, &filtered) || !errors.Is(err, domain.ErrContentFiltered) {
				t.Fatalf("error = %v, want FilteredError", err)
			}
			if filtered.Index != at || filtered.Reason != "celebrity likeness" {
				t.Fatalf("filtered = %+v", filtered)
			}
			calls, _ := videos.snapshot()
			if len(calls) != at+1 {
				t.Fatalf("video calls = %d, want %d", len(calls), at+1)
			}
			if len(fetcher.fetched) != 0 {
				t.Fatal("no artifact may be fetched after a failure")
			}
		})
	}
}

func TestGenerateVideoMissingVideoFailsScene(t *testing.T) {
	videos := newFakeVideos()
	videos.emptyAt = map[int]bool{1: true}
	s := newTestScheduler(t, videos, &fakeFetcher{}, &fakeClock{})

	_, err := s.GenerateVideo(context.Background(), conceptFor(domain.DurationLong), finTrackBrief(domain.DurationLong))
	var sceneErr *domain.SceneError
	if !errors.As(err, &sceneErr) || !errors.Is(err, domain.ErrSceneGenerationFailed) {
		t.Fatalf("error = %v, want SceneError", err)
	}
	if sceneErr.Index != 1 {
		t.Fatalf("scene index = %d, want 1", sceneErr.Index)
	}
	if calls, _ := videos.snapshot(); len(calls) != 2 {
		t.Fatalf("video calls = %d, want 2", len(calls))
	}
}

func TestGenerateVideoTimesOut(t *testing.T) {
	videos := newFakeVideos()
	videos.pollsToEnd = 50
	s := newTestScheduler(t, videos, &fakeFetcher{}, &fakeClock{})

	_, err := s.GenerateVideo(context.Background(), conceptFor(domain.DurationShort), finTrackBrief(domain.DurationShort))
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if !domain.Retryable(err) {
		t.Fatal("timeouts must be retryable")
	}
}

func TestGenerateVideoPropagatesRateLimit(t *testing.T) {
	videos := newFakeVideos()
	videos.submitErr = map[int]error{1: fmt.Errorf("veo: %w", domain.ErrRateLimited)}
	s := newTestScheduler(t, videos, &fakeFetcher{}, &fakeClock{})

	_, err := s.GenerateVideo(context.Background(), conceptFor(domain.DurationShort), finTrackBrief(domain.DurationShort))
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
}

func TestGenerateVideoFetchFailure(t *testing.T) {
	fetchErr := errors.New("download failed")
	s := newTestScheduler(t, newFakeVideos(), &fakeFetcher{err: fetchErr}, &fakeClock{})

	_, err := s.GenerateVideo(context.Background(), conceptFor(domain.DurationShort), finTrackBrief(domain.DurationShort))
	if !errors.Is(err, fetchErr) {
		t.Fatalf("error = %v, want %v", err, fetchErr)
	}
}

func TestGenerateVideoRejectsIncompleteConcept(t *testing.T) {
	videos := newFakeVideos()
	s := newTestScheduler(t, videos, &fakeFetcher{}, &fakeClock{})

	concept := conceptFor(domain.DurationShort)
	concept.StartFrame = domain.Artifact{}
	if _, err := s.GenerateVideo(context.Background(), concept, finTrackBrief(domain.DurationShort)); !errors.Is(err, domain.ErrInputInvalid) {
		t.Fatalf("error = %v, want ErrInputInvalid", err)
	}
	if calls, _ := videos.snapshot(); len(calls) != 0 {
		t.Fatalf("video calls = %d, want 0", len(calls))
	}
}

func TestSubmitWithoutPriorVideoFailsFast(t *testing.T) {
	videos := newFakeVideos()
	s := newTestScheduler(t, videos, &fakeFetcher{}, &fakeClock{})
	job := &videoJob{
		concept: conceptFor(domain.DurationShort),
		brief:   finTrackBrief(domain.DurationShort),
		scenes:  2,
		index:   1,
		state:   stateInitial,
	}

	s.submit(context.Background(), job)
	if job.state != stateFailed || !errors.Is(job.err, errMissingSeed) {
		t.Fatalf("state = %s err = %v, want failed with missing seed", job.state, job.err)
	}
	if calls, _ := videos.snapshot(); len(calls) != 0 {
		t.Fatalf("video calls = %d, want 0", len(calls))
	}
}

// subjectVideos serves several jobs at once and tags every video with the
// subject named in the prompt that produced it.
type subjectVideos struct {
	mu       sync.Mutex
	n        int
	subjects map[string]string
	mixed    []string
}

func (v *subjectVideos) subjectOf(prompt string) string {
	for _, s := range []string{"Alpha", "Bravo"} {
		if strings.Contains(prompt, "for "+s+".") {
			return s
		}
	}
	return "?"
}

func (v *subjectVideos) start(req generation.VideoRequest) domain.AsyncOperation {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.n++
	subject := v.subjectOf(req.Prompt)
	if req.Video != nil && !strings.HasPrefix(req.Video.URI, subject+"/") {
		v.mixed = append(v.mixed, fmt.Sprintf("%s extended %s", subject, req.Video.URI))
	}
	handle := fmt.Sprintf("%s/op-%d", subject, v.n)
	return domain.AsyncOperation{Handle: handle}
}

func (v *subjectVideos) Submit(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	return v.start(req), nil
}

func (v *subjectVideos) Extend(ctx context.Context, req generation.VideoRequest) (domain.AsyncOperation, error) {
	return v.start(req), nil
}

func (v *subjectVideos) PollVideo(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error) {
	op.Done = true
	op.Result = &domain.Artifact{URI: op.Handle + "/video.mp4"}
	return op, nil
}

func TestConcurrentJobsDoNotShareState(t *testing.T) {
	videos := &subjectVideos{}
	s, err := NewSceneScheduler(SceneSchedulerOptions{
		Videos:      videos,
		Fetcher:     &fakeFetcher{},
		VideoPoller: Poller{Interval: time.Millisecond, MaxAttempts: 3},
		SceneDelay:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSceneScheduler: %v", err)
	}

	results := make([]domain.Artifact, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, subject := range []string{"Alpha", "Bravo"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			brief := finTrackBrief(domain.DurationLong)
			brief.SubjectName = subject
			results[i], errs[i] = s.GenerateVideo(context.Background(), conceptFor(domain.DurationLong), brief)
		}()
	}
	wg.Wait()

	for i, subject := range []string{"Alpha", "Bravo"} {
		if errs[i] != nil {
			t.Fatalf("%s: %v", subject, errs[i])
		}
		if !strings.HasPrefix(results[i].URI, subject+"/") {
			t.Fatalf("%s got video %q", subject, results[i].URI)
		}
	}
	if len(videos.mixed) > 0 {
		t.Fatalf("jobs interleaved: %v", videos.mixed)
	}
}
