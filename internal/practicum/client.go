// Package practicum talks to the homework review API.
package practicum

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	logx "reviewbot/pkg/logx"
)

const (
	DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultTimeout  = 30 * time.Second

	maxBodyBytes = 1 << 20
)

var (
	ErrFetchFailure        = errors.New("fetch failure")
	ErrUnreachableEndpoint = errors.New("unreachable endpoint")
)

type Config struct {
	Endpoint  string
	Token     string
	Timeout   time.Duration
	UserAgent string
}

// Client performs one GET per Fetch; it holds no per-call state and is safe
// for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
	now  func() time.Time
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("practicum token is empty")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, errors.Wrapf(err, "practicum endpoint %q", cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
		now:  time.Now,
	}, nil
}

// Endpoint returns the effective endpoint URL.
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// Fetch requests statuses changed since from (unix seconds). A zero from
// means "now". The decoded JSON is returned without any schema check.
func (c *Client) Fetch(ctx context.Context, from int64) (any, error) {
	if from == 0 {
		from = c.now().Unix()
	}

	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse endpoint"), ErrFetchFailure)
	}
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(from, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "build request"), ErrFetchFailure)
	}
	req.Header.Set("Authorization", "OAuth "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("api request failed", logx.String("endpoint", c.cfg.Endpoint), logx.Err(err))
		return nil, errors.Mark(errors.Wrapf(err, "GET %s", c.cfg.Endpoint), ErrFetchFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		c.log.Error("api endpoint unreachable",
			logx.String("endpoint", c.cfg.Endpoint),
			logx.Int("status", resp.StatusCode),
		)
		return nil, errors.Wrapf(ErrUnreachableEndpoint, "URL %s returned http %d", c.cfg.Endpoint, resp.StatusCode)
	}

	var payload any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		c.log.Error("api response decode failed", logx.String("endpoint", c.cfg.Endpoint), logx.Err(err))
		return nil, errors.Mark(errors.Wrap(err, "decode response"), ErrFetchFailure)
	}

	c.log.Debug("api response received",
		logx.Int64("from_date", from),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)
	return payload, nil
}
