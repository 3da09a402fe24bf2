package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// JSONRequest describes an outbound JSON call to a sibling service or provider API.
type JSONRequest struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   any
}

// DoJSON performs the request and decodes the response body into out. The body
// is decoded even for non-2xx responses so callers can read error envelopes; in
// that case an *HTTPError is returned alongside.
func DoJSON(ctx context.Context, client *http.Client, r JSONRequest, out any) error {
	reqURL := r.URL
	if len(r.Query) > 0 {
		reqURL += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		buf, err := json.Marshal(r.Body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	for name, values := range r.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var statusErr error
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr = &HTTPError{Method: method, URL: r.URL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			if statusErr != nil {
				return statusErr
			}
			return fmt.Errorf("decode response of %s %s: %w", method, r.URL, err)
		}
	}
	return statusErr
}
