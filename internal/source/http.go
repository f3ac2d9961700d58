package source

import (
	"context"
	"fmt"
	"net/http"
)

// HTTPSource fetches a URL with a single GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// HTTP returns a Source for url. A nil client means http.DefaultClient.
func HTTP(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{URL: url, Client: client}
}

func (s *HTTPSource) Name() string { return s.URL }

// Open issues the request. Any non-2xx status is an error carrying the
// status text.
func (s *HTTPSource) Open(ctx context.Context) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %s", s.URL, resp.Status)
	}

	var size int64
	if resp.ContentLength > 0 {
		size = resp.ContentLength
	}
	return &Stream{ReadCloser: resp.Body, Size: size}, nil
}
