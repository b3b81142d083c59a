package callback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Request is a single callback delivery handed to a Transport.
type Request struct {
	ID     string
	Method string
	URL    string
	Params *Params
}

// Transport performs the HTTP exchange for a callback.
type Transport interface {
	Do(ctx context.Context, req Request) error
}

// HTTPTransport delivers callbacks with net/http. POST sends a form-encoded
// body, GET sends the parameters as the query string.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

// NewHTTPTransport creates a transport. A zero Timeout means 10 seconds.
func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "esl-callbacks/1.0"
	}
	return &HTTPTransport{client: client, userAgent: ua}
}

func (t *HTTPTransport) Do(ctx context.Context, r Request) error {
	req, err := t.build(ctx, r)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.Method, r.URL, goerrors.Wrap(err, goerrors.CategoryBadInput, "building callback request"))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.Method, r.URL, goerrors.Wrap(err, goerrors.CategoryExternal, "sending callback"))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respErr := &ResponseError{StatusCode: resp.StatusCode, Status: resp.Status}
		return fmt.Errorf("%s %s: %w", r.Method, r.URL, goerrors.Wrap(respErr, goerrors.CategoryExternal, "callback rejected"))
	}
	return nil
}

func (t *HTTPTransport) build(ctx context.Context, r Request) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)

	switch strings.ToUpper(r.Method) {
	case http.MethodPost:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, r.URL, strings.NewReader(r.Params.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case http.MethodGet:
		u, perr := url.Parse(r.URL)
		if perr != nil {
			return nil, perr
		}
		if enc := r.Params.Encode(); enc != "" {
			if u.RawQuery != "" {
				u.RawQuery += "&"
			}
			u.RawQuery += enc
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported callback method %q", r.Method)
	}

	req.Header.Set("User-Agent", t.userAgent)
	if r.ID != "" {
		req.Header.Set("X-Callback-ID", r.ID)
	}
	return req, nil
}
