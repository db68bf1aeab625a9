package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
	"promoreel/internal/infra"
	"promoreel/internal/metrics"
)

const DefaultVideoResolution = "720p"

var (
	errMissingSeed = errors.New("no prior scene video to extend")
	errNoVideo     = errors.New("operation finished without a video")
)

type sceneState int

const (
	stateInitial sceneState = iota
	statePolling
	stateSceneComplete
	stateDone
	stateFailed
)

func (s sceneState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case statePolling:
		return "polling"
	case stateSceneComplete:
		return "scene_complete"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SceneSchedulerOptions configures a SceneScheduler.
type SceneSchedulerOptions struct {
	Videos      generation.VideoGenerator
	Fetcher     generation.Fetcher
	VideoPoller Poller
	SceneDelay  time.Duration
	Resolution  string
	// Sleep is used for the inter-scene delay. Defaults to SleepContext.
	Sleep   Sleeper
	Logger  *infra.Logger
	Metrics *metrics.Recorder
}

// SceneScheduler chains one video call per scene. Scene 0 is seeded by the
// concept's start frame, every later scene extends the video produced by the
// scene right before it.
type SceneScheduler struct {
	videos     generation.VideoGenerator
	fetcher    generation.Fetcher
	poller     Poller
	sceneDelay time.Duration
	resolution string
	sleep      Sleeper
	logger     *infra.Logger
	metrics    *metrics.Recorder
}

func NewSceneScheduler(opts SceneSchedulerOptions) (*SceneScheduler, error) {
	if opts.Videos == nil {
		return nil, errors.New("pipeline: video generator is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("pipeline: artifact fetcher is required")
	}
	poller := opts.VideoPoller
	if poller.MaxAttempts <= 0 {
		poller.MaxAttempts = 120
	}
	if poller.Interval <= 0 {
		poller.Interval = 5 * time.Second
	}
	resolution := opts.Resolution
	if resolution == "" {
		resolution = DefaultVideoResolution
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	return &SceneScheduler{
		videos:     opts.Videos,
		fetcher:    opts.Fetcher,
		poller:     poller,
		sceneDelay: opts.SceneDelay,
		resolution: resolution,
		sleep:      sleep,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		metrics:    opts.Metrics,
	}, nil
}

// videoJob is the state of one GenerateVideo call. It is never shared.
type videoJob struct {
	concept domain.Concept
	brief   domain.BrandBrief
	scenes  int
	index   int
	state   sceneState
	op      domain.AsyncOperation
	prior   *domain.Artifact
	err     error
}

func (j *videoJob) fail(err error) {
	j.err = err
	j.state = stateFailed
}

// GenerateVideo runs the scene chain to completion and returns the fetched
// final video. No partial video is returned on failure.
func (s *SceneScheduler) GenerateVideo(ctx context.Context, concept domain.Concept, brief domain.BrandBrief) (domain.Artifact, error) {
	if concept.Script.Len() == 0 {
		return domain.Artifact{}, &domain.InputError{Field: "concept.script", Reason: "no scenes"}
	}
	if concept.StartFrame.Empty() {
		return domain.Artifact{}, &domain.InputError{Field: "concept.start_frame", Reason: "required"}
	}

	job := &videoJob{
		concept: concept,
		brief:   brief,
		scenes:  concept.Script.Len(),
		state:   stateInitial,
	}
	log := s.logger.With().Str("concept_id", concept.ID).Int("scenes", job.scenes).Logger()

	for {
		switch job.state {
		case stateInitial:
			s.submit(ctx, job)
		case statePolling:
			s.await(ctx, job)
		case stateSceneComplete:
			s.complete(ctx, job, &log)
		case stateDone:
			video, err := s.fetcher.Fetch(ctx, *job.prior)
			if err != nil {
				return domain.Artifact{}, fmt.Errorf("fetch final video: %w", err)
			}
			if video.MIMEType == "" {
				video.MIMEType = domain.MIMETypeMP4
			}
			log.Info().Msg("pipeline: video ready")
			return video, nil
		case stateFailed:
			log.Warn().Err(job.err).Int("scene", job.index+1).Msg("pipeline: video job failed")
			return domain.Artifact{}, job.err
		default:
			return domain.Artifact{}, fmt.Errorf("pipeline: unexpected scene state %s", job.state)
		}
	}
}

func (s *SceneScheduler) submit(ctx context.Context, job *videoJob) {
	req := generation.VideoRequest{
		Prompt:      buildScenePrompt(job.brief, job.concept, job.index),
		AspectRatio: job.brief.VideoAspectRatio(),
		Resolution:  s.resolution,
	}

	var (
		op  domain.AsyncOperation
		err error
	)
	if job.index == 0 {
		seed := job.concept.StartFrame
		if seed.MIMEType == "" {
			seed.MIMEType = domain.MIMETypePNG
		}
		req.Image = &seed
		op, err = s.videos.Submit(ctx, req)
	} else {
		if job.prior == nil || job.prior.Empty() {
			job.fail(&domain.SceneError{Index: job.index, Err: errMissingSeed})
			return
		}
		seed := *job.prior
		req.Video = &seed
		op, err = s.videos.Extend(ctx, req)
	}
	if err != nil {
		job.fail(fmt.Errorf("scene %d: submit: %w", job.index+1, err))
		return
	}
	job.op = op
	job.state = statePolling
}

func (s *SceneScheduler) await(ctx context.Context, job *videoJob) {
	op, attempts, err := s.poller.Await(ctx, job.op, s.videos.PollVideo)
	s.metrics.PollAttempts("video", attempts)
	if err != nil {
		job.fail(fmt.Errorf("scene %d: %w", job.index+1, err))
		return
	}
	job.op = op
	job.state = stateSceneComplete
}

func (s *SceneScheduler) complete(ctx context.Context, job *videoJob, log *infra.Logger) {
	op := job.op
	switch {
	case op.FilteredReason != "":
		job.fail(&domain.FilteredError{Index: job.index, Reason: op.FilteredReason})
		return
	case op.Err != nil:
		job.fail(&domain.SceneError{Index: job.index, Err: op.Err})
		return
	case op.Result == nil || op.Result.Empty():
		job.fail(&domain.SceneError{Index: job.index, Err: errNoVideo})
		return
	}

	video := *op.Result
	job.prior = &video
	s.metrics.SceneCompleted()
	log.Info().Int("scene", job.index+1).Msg("pipeline: scene complete")

	if job.index == job.scenes-1 {
		job.state = stateDone
		return
	}
	if err := s.sleep(ctx, s.sceneDelay); err != nil {
		job.fail(err)
		return
	}
	job.index++
	job.state = stateInitial
}
