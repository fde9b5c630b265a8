package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fenixbot/internal/course"
	logx "fenixbot/pkg/logx"
)

const (
	DefaultBaseURL   = "https://fenix.tecnico.ulisboa.pt/"
	DefaultTimeout   = 20 * time.Second
	DefaultUserAgent = "fenixbot/1.0 (+announcement tracker)"

	maxBodyBytes = 8 << 20
)

var ErrFetch = errors.New("fetch failed")

// FetchError reports a feed request that did not produce a 2xx response.
// StatusCode is 0 when the request never got a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

type Config struct {
	BaseURL   string
	Timeout   time.Duration // whole fetch, retries included
	Retries   int           // extra attempts after the first one
	RetryBase time.Duration // first backoff delay
	UserAgent string
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// Fetch bounds the whole call (retries included) with a context deadline,
	// so the http.Client carries no timeout of its own.
	return &Client{cfg: cfg, http: &http.Client{}, log: log}
}

// URL returns the announcement feed URL for a course.
func (c *Client) URL(li course.LinkInfo) string {
	return c.cfg.BaseURL + li.FeedPath()
}

// Fetch downloads and decodes the feed of one course.
//
// Network errors and 5xx responses are retried; any other non-2xx status fails
// immediately with *FetchError. Malformed documents fail with *course.ParseError.
func (c *Client) Fetch(ctx context.Context, li course.LinkInfo) ([]course.RawItem, error) {
	url := c.URL(li)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryBase
	eb.MaxInterval = 10 * c.cfg.RetryBase
	eb.MaxElapsedTime = 0 // bounded by ctx and Retries
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.Retries)), ctx)

	var body []byte
	op := func() error {
		data, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		body = data
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Debug("feed fetch retry", logx.String("url", url), logx.Duration("wait", wait), logx.Err(err))
	}

	start := time.Now()
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{URL: url, Err: err}
		}
		return nil, err
	}

	items, err := Parse(body)
	if err != nil {
		return nil, err
	}
	c.log.Debug("feed fetched",
		logx.String("course", li.Name),
		logx.Int("items", len(items)),
		logx.Duration("took", time.Since(start)),
	)
	return items, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{URL: url, Err: err})
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&FetchError{URL: url, Err: err})
		}
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		fe := &FetchError{URL: url, StatusCode: resp.StatusCode}
		if resp.StatusCode >= 500 {
			return nil, fe
		}
		return nil, backoff.Permanent(fe)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return data, nil
}
