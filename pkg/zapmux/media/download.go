package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Download fetches remote media over plain HTTP. Returns the bytes and a
// best-effort filename. The response body is capped at the configured size.
func (p *Pipeline) Download(ctx context.Context, url string) ([]byte, string, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, int64(p.cfg.MaxDownloadMB)*1024*1024)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", err
	}

	return data, extractFilename(url, resp), nil
}

// extractFilename pulls a filename from Content-Disposition or the URL path.
func extractFilename(url string, resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if parts := strings.Split(cd, "filename="); len(parts) > 1 {
			if name := strings.Trim(parts[1], `"`); name != "" {
				return name
			}
		}
	}

	parts := strings.Split(strings.SplitN(url, "?", 2)[0], "/")
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return "download"
}
