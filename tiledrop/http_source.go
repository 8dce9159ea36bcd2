package tiledrop

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	httpUserAgent   = "go-tiledrop/1.0"
	httpRetries     = 5
	maxRetryBackoff = 30 * time.Second
)

// HTTPSource proxies tiles from an upstream XYZ URL template such as
// "https://tiles.example.com/{z}/{x}/{y}.mvt".
type HTTPSource struct {
	httpClient  *http.Client
	urlTemplate string
	retries     int
	backoff     time.Duration
	logger      *slog.Logger
}

var _ TileSource = (*HTTPSource)(nil)

func NewHTTPSource(urlTemplate string, httpTimeout time.Duration, logger *slog.Logger) (*HTTPSource, error) {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(urlTemplate, p) {
			return nil, fmt.Errorf("URL template %q is missing %s", urlTemplate, p)
		}
	}

	// Configure the HTTP client with a timeout and connection pools
	httpClient := &http.Client{}
	httpClient.Timeout = httpTimeout
	httpClient.Transport = &http.Transport{
		MaxIdleConnsPerHost: 16,
		DisableCompression:  true,
	}

	return &HTTPSource{
		httpClient:  httpClient,
		urlTemplate: urlTemplate,
		retries:     httpRetries,
		backoff:     500 * time.Millisecond,
		logger:      loggerOrDefault(logger),
	}, nil
}

func (x *HTTPSource) URL(addr TileAddress) string {
	return strings.NewReplacer(
		"{x}", strconv.Itoa(addr.X),
		"{y}", strconv.Itoa(addr.Y),
		"{z}", strconv.Itoa(addr.Zoom)).Replace(x.urlTemplate)
}

// doHTTPWithRetry retries 5xx responses with exponential backoff. A 404 is
// returned to the caller as is.
func (x *HTTPSource) doHTTPWithRetry(ctx context.Context, url string) (*http.Response, error) {
	sleep := x.backoff

	for i := 0; i < x.retries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Add("User-Agent", httpUserAgent)
		req.Header.Add("Accept-Encoding", "gzip")

		resp, err := x.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
			return resp, nil
		}
		resp.Body.Close()

		if resp.StatusCode < 500 {
			return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
		}

		x.logger.Debug("Retrying tile request", "url", url, "try", i, "status", resp.Status)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
		sleep *= 2
		if sleep > maxRetryBackoff {
			sleep = maxRetryBackoff
		}
	}

	return nil, fmt.Errorf("ran out of HTTP GET retries for %s", url)
}

func (x *HTTPSource) GetTile(ctx context.Context, addr TileAddress) (*TileData, error) {
	if !addr.InPyramid() {
		return blankTile(addr), nil
	}

	resp, err := x.doHTTPWithRetry(ctx, x.URL(addr))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return blankTile(addr), nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Error copying bytes from HTTP response: %w", err)
	}

	return &TileData{Address: addr, Data: data}, nil
}

func (x *HTTPSource) Close() error {
	x.httpClient.CloseIdleConnections()
	return nil
}
