// Package notify sends the results of release runs as JSON documents to
// http endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/autorelease/internal/logfields"
	"github.com/simplesurance/autorelease/internal/releaseerr"
)

const loggerName = "notify"

const DefaultHTTPClientTimeout = time.Minute

// Notification describes the result of a release run.
type Notification struct {
	Repository string `json:"repository"`
	// PullRequest is the number of the merged pull request that triggered
	// the release.
	PullRequest        int    `json:"pull_request"`
	Result             string `json:"result"`
	Version            string `json:"version,omitempty"`
	PreviousVersion    string `json:"previous_version,omitempty"`
	ReleasePullRequest string `json:"release_pull_request,omitempty"`
	Error              string `json:"error,omitempty"`
}

// ErrorHTTPRequest is returned when the endpoint responded with a non-2xx
// status code.
type ErrorHTTPRequest struct {
	Body   []byte
	Status int
}

func (e *ErrorHTTPRequest) Error() string {
	return fmt.Sprintf("http request failed with StatusCode: %d, response: %q", e.Status, string(e.Body))
}

// HTTPNotifier sends notifications via http requests.
type HTTPNotifier struct {
	url      string
	user     string
	password string
	method   string
	headers  map[string]string

	client *http.Client
	logger *zap.Logger
}

type Option func(*HTTPNotifier)

// WithAuth defines user and password that is used for Basic Auth.
func WithAuth(user, password string) Option {
	return func(h *HTTPNotifier) {
		h.user = user
		h.password = password
	}
}

// WithMethod sets the http method, the default is POST.
func WithMethod(method string) Option {
	return func(h *HTTPNotifier) {
		h.method = method
	}
}

// WithHeaders sets additional http headers that are sent with every
// request.
func WithHeaders(headers map[string]string) Option {
	return func(h *HTTPNotifier) {
		h.headers = headers
	}
}

// NewHTTPNotifier returns a HTTPNotifier sending notifications to url.
// The http client uses a timeout of DefaultHTTPClientTimeout.
func NewHTTPNotifier(url string, opts ...Option) (*HTTPNotifier, error) {
	if url == "" {
		return nil, errors.New("url must be set")
	}

	n := HTTPNotifier{
		url:    url,
		method: http.MethodPost,
		client: &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		},
	}

	for _, o := range opts {
		o(&n)
	}

	n.logger = zap.L().Named(loggerName).With(n.LogFields()...)

	return &n, nil
}

// Notify sends the notification as JSON document.
// Connection errors and non-2xx responses are returned as
// releaseerr.RetryableError.
func (h *HTTPNotifier) Notify(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, h.method, h.url, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	if h.user != "" || h.password != "" {
		req.SetBasicAuth(h.user, h.password)
	}

	for k, v := range h.headers {
		req.Header.Add(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return releaseerr.NewRetryableAnytimeError(err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logger.Warn(
			"reading http response body failed",
			logfields.Event("notification_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return releaseerr.NewRetryableAnytimeError(&ErrorHTTPRequest{
			Body:   body,
			Status: resp.StatusCode,
		})
	}

	h.logger.Debug(
		"notification sent",
		logfields.Event("notification_sent"),
		zap.ByteString("http_response", body),
	)

	return nil
}

// LogFields returns fields that should be used when logging messages related
// to the notifier.
func (h *HTTPNotifier) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("notification_url", h.url),
		zap.String("http_method", h.method),
	}
}

func (h *HTTPNotifier) String() string {
	return fmt.Sprintf("http notification: %s to %s", h.method, h.url)
}
