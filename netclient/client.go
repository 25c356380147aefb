package netclient

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/arenawatch/arenawatch/util"

	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-retryablehttp"
)

type Client struct {
	// HTTP is the retrying client to use. If not set, defaults to util.RetryingHTTPClient() with the default backoff.
	HTTP      *retryablehttp.Client
	UserAgent string
	Headers   map[string]string
}

func NewClient(httpc *retryablehttp.Client) *Client {
	return &Client{
		HTTP:      httpc,
		UserAgent: "arenawatch/" + versioninfo.Short(),
	}
}

func (c *Client) getClient() *retryablehttp.Client {
	if c.HTTP == nil {
		return util.RetryingHTTPClient(nil, util.DefaultBackoff())
	}
	return c.HTTP
}

type Request struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
	Accept      string
	Credential  Credential
}

// StatusError is returned when the retry limit was reached on a non-2xx
// response. With the default (unbounded) backoff this never happens.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (se *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", se.Method, se.URL, se.StatusCode)
}

// Perform sends the request, retrying transport failures and non-2xx
// responses according to the client's backoff. On success the caller owns
// the response body.
//
// Errors are only returned when the context is done, the request could not
// be constructed, or a configured attempt limit was reached.
func (c *Client) Perform(ctx context.Context, r Request) (*http.Response, error) {
	var body interface{}
	if r.Body != nil {
		body = r.Body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	if r.Accept != "" {
		req.Header.Set("Accept", r.Accept)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	if r.Credential != nil {
		r.Credential.Apply(req.Request)
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.Method, req.URL.Redacted(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Method:     r.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(msg),
		}
	}
	return resp, nil
}
