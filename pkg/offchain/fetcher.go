// Package offchain fetches the JSON documents token metadata URIs point at.
package offchain

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tunegate/tunegate-server/pkg/metrics"
	"github.com/tunegate/tunegate-server/pkg/retry"
	"github.com/tunegate/tunegate-server/pkg/retry/backoff"
)

const (
	DefaultMaxDocumentBytes = 1 << 20
	DefaultTimeout          = 10 * time.Second

	metricsStructName = "offchain.fetcher"
)

var (
	ErrInvalidURI = errors.New("invalid metadata uri")

	errServerError = errors.New("server error")
)

// File is an entry of properties.files.
type File struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// Document is the off-chain token metadata JSON.
type Document struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Audio       string `json:"audio"`

	Properties struct {
		Files []File `json:"files"`
	} `json:"properties"`
}

// HasAudio reports whether the document links to an audio file.
func (d *Document) HasAudio() bool {
	return len(strings.TrimSpace(d.Audio)) > 0
}

// Fetcher retrieves off-chain documents.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (*Document, error)
}

type httpFetcher struct {
	log      *logrus.Entry
	client   *http.Client
	maxBytes int64
	retrier  retry.Retrier
}

// NewFetcher returns a Fetcher using httpClient. A nil client gets one with
// DefaultTimeout.
func NewFetcher(httpClient *http.Client) Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &httpFetcher{
		log:      logrus.StandardLogger().WithField("type", "offchain/fetcher"),
		client:   httpClient,
		maxBytes: DefaultMaxDocumentBytes,
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errServerError),
			retry.Limit(3),
			retry.Backoff(backoff.BinaryExponential(250*time.Millisecond), 2*time.Second),
		),
	}
}

func (f *httpFetcher) Fetch(ctx context.Context, uri string) (doc *Document, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Fetch")
	defer tracer.End()
	defer func() { tracer.OnError(err) }()

	target, err := validateURI(uri)
	if err != nil {
		return nil, err
	}

	var body []byte
	_, err = f.retrier.Retry(func() error {
		body, err = f.get(ctx, target)
		return err
	})
	if err != nil {
		return nil, err
	}

	doc = &Document{}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, errors.Wrapf(err, "invalid metadata document at %s", target)
	}

	return doc, nil
}

func (f *httpFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error executing http request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		f.log.WithFields(logrus.Fields{"uri": target, "status": resp.StatusCode}).Debug("retrying metadata fetch")
		return nil, errors.Wrapf(errServerError, "received http status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("received http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "error reading response body")
	}
	if int64(len(body)) > f.maxBytes {
		return nil, errors.Errorf("metadata document exceeds %d bytes", f.maxBytes)
	}

	return body, nil
}

func validateURI(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if len(uri) == 0 {
		return "", ErrInvalidURI
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return "", errors.Wrap(ErrInvalidURI, err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.Wrapf(ErrInvalidURI, "unsupported scheme %q", parsed.Scheme)
	}
	if len(parsed.Host) == 0 {
		return "", errors.Wrap(ErrInvalidURI, "missing host")
	}

	return parsed.String(), nil
}
