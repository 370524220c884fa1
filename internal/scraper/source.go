package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultScheduleURL = "https://lk.msal.ru/schedule"
	UserAgent          = "schedule-sync/1.0"
	Timeout            = 30 * time.Second
)

// PageSource retrieves the rendered schedule page for one week.
type PageSource interface {
	FetchWeek(ctx context.Context, from, to time.Time) (string, error)
}

// WeekURL builds the schedule URL for the week [from, to].
func WeekURL(base string, from, to time.Time) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing schedule URL: %w", err)
	}
	q := u.Query()
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HTTPSource fetches week pages with plain HTTP requests. It only works when the
// schedule is served pre-rendered and the session cookie is already known.
type HTTPSource struct {
	client  *http.Client
	baseURL string
	cookie  string
}

// NewHTTPSource creates an HTTPSource for baseURL. cookie, when set, is sent verbatim
// as the Cookie header.
func NewHTTPSource(baseURL, cookie string) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultScheduleURL
	}
	return &HTTPSource{
		client: &http.Client{
			Timeout: Timeout,
		},
		baseURL: baseURL,
		cookie:  cookie,
	}
}

// FetchWeek fetches the schedule page for [from, to].
func (s *HTTPSource) FetchWeek(ctx context.Context, from, to time.Time) (string, error) {
	target, err := WeekURL(s.baseURL, from, to)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	return string(body), nil
}
