package model

import (
	"context"
	"io"
	"net/http"
	"time"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:125.0) Gecko/20100101 Firefox/125.0"

// Fetcher issues GET requests. No retries, no redirect policy beyond the
// default client.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type httpFetcher struct {
	cl *http.Client
}

func NewHTTPFetcher() Fetcher {
	return &httpFetcher{
		cl: &http.Client{
			Timeout: time.Second * 10,
			Transport: &http.Transport{
				ResponseHeaderTimeout: time.Second * 10,
			},
		},
	}
}

func (f *httpFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)

	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.cl.Do(req)

	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	return data, nil
}
