package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zonewars/liveclient/go/internal/snapshot"
)

// SSEDialer opens the server-sent-events push subscription at
// GET {base}/stream?token=... . The server emits named "state" events whose
// payload is a full snapshot document; a 200 response signals channel
// health.
type SSEDialer struct {
	baseURL string
	client  *http.Client
}

// NewSSEDialer creates a dialer against the given API base URL. A nil
// httpClient gets a default with no overall timeout, since the stream is
// long-lived by design.
func NewSSEDialer(baseURL string, httpClient *http.Client) *SSEDialer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &SSEDialer{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// Dial opens the subscription. The returned stream fails when the underlying
// response body does, including on ctx cancellation.
func (d *SSEDialer) Dial(ctx context.Context, token string) (Stream, error) {
	u := d.baseURL + "/stream?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	// Snapshots can be large; the default scanner limit is too small.
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &sseStream{body: resp.Body, sc: sc}, nil
}

type sseStream struct {
	body io.ReadCloser
	sc   *bufio.Scanner
}

// Recv parses SSE frames until a complete "state" event arrives. A payload
// that fails to decode is logged and skipped rather than treated as a
// channel failure.
func (s *sseStream) Recv() (*snapshot.Snapshot, error) {
	var event string
	var data strings.Builder
	for s.sc.Scan() {
		line := s.sc.Text()
		if line == "" {
			if event == "state" && data.Len() > 0 {
				var snap snapshot.Snapshot
				if err := json.Unmarshal([]byte(data.String()), &snap); err != nil {
					log.Warn().Err(err).Msg("dropping undecodable state event")
					event = ""
					data.Reset()
					continue
				}
				return &snap, nil
			}
			event = ""
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if after, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(after, " "))
		}
	}
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

// HTTPFetcher pulls a full snapshot from GET {base}/state[?token=...].
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher against the given API base URL.
func NewHTTPFetcher(baseURL string, httpClient *http.Client) *HTTPFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// FetchState performs one snapshot fetch.
func (f *HTTPFetcher) FetchState(ctx context.Context, token string) (*snapshot.Snapshot, error) {
	u := f.baseURL + "/state"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create state request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch state: status %d, response: %s", resp.StatusCode, string(body))
	}
	var snap snapshot.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &snap, nil
}
