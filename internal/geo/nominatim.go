package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const maxAttempts = 4

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Body)
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Nominatim geocodes with the OpenStreetMap Nominatim search API.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	// Backoff is the wait before the first retry. It doubles after each attempt.
	Backoff time.Duration
}

// NewNominatim creates a client for the Nominatim instance at baseURL.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		Backoff:   200 * time.Millisecond,
	}
}

// Geocode returns the position of the best match for query.
func (n *Nominatim) Geocode(ctx context.Context, query string) (Coordinates, error) {
	resp, err := n.doWithRetry(ctx, func() (*http.Request, error) {
		return n.newSearchRequest(ctx, query)
	})
	if err != nil {
		return Coordinates{}, errors.Wrapf(err, "unable to geocode %q", query)
	}
	defer resp.Body.Close()

	var places []nominatimPlace
	err = json.NewDecoder(resp.Body).Decode(&places)
	if err != nil {
		return Coordinates{}, errors.Wrap(err, "unable to decode geocoding response")
	}
	if len(places) == 0 {
		return Coordinates{}, errors.Wrapf(ErrNoResult, "query %q", query)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Coordinates{}, errors.Wrapf(err, "invalid latitude %q", places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Coordinates{}, errors.Wrapf(err, "invalid longitude %q", places[0].Lon)
	}

	return Coordinates{Lat: lat, Lon: lon}, nil
}

func (n *Nominatim) newSearchRequest(ctx context.Context, query string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search", nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	req.URL.RawQuery = q.Encode()

	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (n *Nominatim) do(req *http.Request) (*http.Response, error) {
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}

	return resp, nil
}

// doWithRetry retries network errors, throttling and 5xx responses with exponential backoff.
func (n *Nominatim) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := n.Backoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, err
		}

		resp, err := n.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}

func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}

		return false
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}
