package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	domain "github.com/oshokin/schedule-watch/internal/domain/schedule"
	"github.com/oshokin/schedule-watch/internal/version"
)

const (
	// CacheBustParam is the query parameter carrying the request timestamp.
	CacheBustParam = "t"

	// maxSnapshotSize caps the body read from the resource.
	maxSnapshotSize = 1 << 20
)

var (
	// ErrBadHTTPStatus is returned for any response other than 200 OK.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// errResourceRequired is returned when no resource URL is given.
	errResourceRequired = errors.New("resource url must be provided")
)

// HTTPSource fetches snapshots from a fixed resource URL.
type HTTPSource struct {
	// resource is the parsed snapshot URL without the cache-busting parameter.
	resource *url.URL
	// client performs the requests.
	client *http.Client
	// timeout bounds a single fetch; zero means no extra deadline.
	timeout time.Duration
	// now stamps the cache-busting parameter.
	now func() time.Time
}

// Option configures an HTTPSource.
type Option func(*HTTPSource)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *HTTPSource) {
		if client != nil {
			s.client = client
		}
	}
}

// WithTimeout bounds every fetch.
func WithTimeout(timeout time.Duration) Option {
	return func(s *HTTPSource) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithClock overrides the time source used for cache busting.
func WithClock(now func() time.Time) Option {
	return func(s *HTTPSource) {
		if now != nil {
			s.now = now
		}
	}
}

// NewHTTPSource validates the resource URL and builds a source.
func NewHTTPSource(resourceURL string, opts ...Option) (*HTTPSource, error) {
	if resourceURL == "" {
		return nil, errResourceRequired
	}

	resource, err := url.Parse(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse resource url: %w", err)
	}

	s := &HTTPSource{
		resource: resource,
		client:   http.DefaultClient,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Fetch downloads and decodes the current snapshot.
func (s *HTTPSource) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	requestURL := s.requestURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", version.UserAgent())

	response, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.resource.Redacted(), err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", s.resource.Redacted(), response.Status, ErrBadHTTPStatus)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return domain.Decode(data)
}

// requestURL appends the cache-busting timestamp, keeping any existing query.
func (s *HTTPSource) requestURL() string {
	u := *s.resource
	query := u.Query()
	query.Set(CacheBustParam, strconv.FormatInt(s.now().UnixMilli(), 10))
	u.RawQuery = query.Encode()

	return u.String()
}
