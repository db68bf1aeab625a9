// Package fetch resolves artifact references returned by generation backends
// into bytes.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
	"promoreel/internal/infra"
)

const (
	apiKeyHeader        = "x-goog-api-key"
	defaultAuthHost     = "googleapis.com"
	defaultMaxTries     = 3
	defaultMaxBytes     = 512 << 20
	defaultInitialDelay = 500 * time.Millisecond
)

type Options struct {
	// APIKey is sent as x-goog-api-key to hosts under AuthHost.
	APIKey       string
	AuthHost     string
	HTTPClient   *http.Client
	MaxTries     uint
	InitialDelay time.Duration
	MaxBytes     int64
	Logger       *infra.Logger
}

type Fetcher struct {
	apiKey       string
	authHost     string
	client       *http.Client
	maxTries     uint
	initialDelay time.Duration
	maxBytes     int64
	logger       *infra.Logger
}

var _ generation.Fetcher = (*Fetcher)(nil)

func New(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	tries := opts.MaxTries
	if tries == 0 {
		tries = defaultMaxTries
	}
	delay := opts.InitialDelay
	if delay <= 0 {
		delay = defaultInitialDelay
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	host := strings.TrimSpace(opts.AuthHost)
	if host == "" {
		host = defaultAuthHost
	}
	return &Fetcher{
		apiKey:       strings.TrimSpace(opts.APIKey),
		authHost:     host,
		client:       client,
		maxTries:     tries,
		initialDelay: delay,
		maxBytes:     maxBytes,
		logger:       infra.LoggerOrDiscard(opts.Logger),
	}
}

// Fetch returns a with its bytes populated. Inline artifacts are returned
// unchanged, data: URIs are decoded, http(s) URIs are downloaded with retry on
// transient failures.
func (f *Fetcher) Fetch(ctx context.Context, a domain.Artifact) (domain.Artifact, error) {
	if len(a.Data) > 0 {
		return a, nil
	}
	uri := strings.TrimSpace(a.URI)
	if uri == "" {
		return domain.Artifact{}, errors.New("fetch: artifact has neither data nor uri")
	}
	if strings.HasPrefix(uri, "data:") {
		return domain.ParseDataURI(uri, a.MIMEType)
	}
	target, err := url.Parse(uri)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return domain.Artifact{}, fmt.Errorf("fetch: unsupported uri %q", uri)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.initialDelay
	attempts := 0
	out, err := backoff.Retry(ctx, func() (domain.Artifact, error) {
		attempts++
		return f.download(ctx, target, a.MIMEType)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(f.maxTries))
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("fetch %s: %w", target.Redacted(), err)
	}
	out.URI = a.URI
	f.logger.Debug().
		Str("host", target.Host).
		Int("attempts", attempts).
		Int("bytes", len(out.Data)).
		Msg("fetch: artifact downloaded")
	return out, nil
}

func (f *Fetcher) download(ctx context.Context, target *url.URL, mime string) (domain.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return domain.Artifact{}, backoff.Permanent(err)
	}
	if f.apiKey != "" && f.authorized(target.Hostname()) {
		req.Header.Set(apiKeyHeader, f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Artifact{}, backoff.Permanent(ctx.Err())
		}
		return domain.Artifact{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.Artifact{}, fmt.Errorf("%w: status %d", domain.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.Artifact{}, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Artifact{}, backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return domain.Artifact{}, backoff.Permanent(fmt.Errorf("artifact exceeds %d bytes", f.maxBytes))
	}
	if len(data) == 0 {
		return domain.Artifact{}, backoff.Permanent(errors.New("empty body"))
	}
	if mime == "" {
		mime = resp.Header.Get("Content-Type")
		if idx := strings.IndexByte(mime, ';'); idx >= 0 {
			mime = strings.TrimSpace(mime[:idx])
		}
	}
	return domain.Artifact{Data: data, MIMEType: mime}, nil
}

func (f *Fetcher) authorized(host string) bool {
	return host == f.authHost || strings.HasSuffix(host, "."+f.authHost)
}
