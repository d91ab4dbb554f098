package ctfd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/imroc/req/v3"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/110.0"

var (
	ErrAuth   = errors.New("authentication failed")
	ErrFetch  = errors.New("fetch failed")
	ErrDecode = errors.New("invalid json")
)

// Session is the cookie carrying HTTP client shared by every request of a run.
type Session struct {
	base   *url.URL
	client *req.Client
}

// Response wraps a fully read response body.
type Response struct {
	*req.Response
}

// NewSession creates a session for the platform at baseUrl.
func NewSession(baseUrl string, insecure bool) (*Session, error) {
	base, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid platform url %q: %w", baseUrl, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid platform url %q: scheme and host are required", baseUrl)
	}
	client := req.C().SetUserAgent(userAgent)
	if insecure {
		client.EnableInsecureSkipVerify()
	}
	return &Session{
		base:   base,
		client: client,
	}, nil
}

func (s *Session) Get(u string) (*Response, error) {
	res, err := s.client.R().Get(u)
	if err != nil {
		return nil, fmt.Errorf("GET request failed for %s: %w", u, err)
	}
	return &Response{res}, nil
}

// GetStream returns the unread body of a successful GET. The caller closes it.
func (s *Session) GetStream(u string) (io.ReadCloser, error) {
	res, err := s.client.R().DisableAutoReadResponse().Get(u)
	if err != nil {
		return nil, fmt.Errorf("GET request failed for %s: %w", u, err)
	}
	if !isSuccess(res.StatusCode) {
		res.Body.Close()
		return nil, fmt.Errorf("%w: GET %s returned %d status", ErrFetch, u, res.StatusCode)
	}
	return res.Body, nil
}

func (s *Session) Post(u string, form map[string]string) (*Response, error) {
	res, err := s.client.R().SetFormData(form).Post(u)
	if err != nil {
		return nil, fmt.Errorf("POST request failed for %s: %w", u, err)
	}
	return &Response{res}, nil
}

// Endpoint joins elem onto the platform url, keeping any sub path.
func (s *Session) Endpoint(elem ...string) string {
	return s.base.JoinPath(elem...).String()
}

// Resolve resolves ref against the platform url the way a browser resolves a link.
func (s *Session) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid file reference %q: %w", ref, err)
	}
	return s.base.ResolveReference(u).String(), nil
}

func (r *Response) Text() string {
	return r.String()
}

func (r *Response) OK() bool {
	return isSuccess(r.StatusCode)
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

// JSON decodes the body into v, keeping numbers as json.Number.
func (r *Response) JSON(v any) error {
	return decodeJSON(r.Bytes(), v)
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
