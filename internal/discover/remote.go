package discover

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// maxRemoteSourceSize bounds how much of a remote source is read.
const maxRemoteSourceSize = 4 << 20

// FetchRemote retrieves a Mermaid source (a .mmd file or a Markdown document)
// from an HTTP(S) URL and extracts its diagram units. Transient failures are
// retried by the client before surfacing an error.
func FetchRemote(rawURL string, opts Options) ([]Unit, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported source URL scheme: %s", u.Scheme)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	if opts.Logger != nil {
		client.Logger = opts.Logger.StandardLogger(nil)
	}

	req, err := retryablehttp.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("failed to fetch remote source (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSourceSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read remote source: %w", err)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "remote.mmd"
	}
	// Markdown content types win over an extensionless path.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "markdown") {
		name = "remote.md"
	}

	return Extract(rawURL, name, data, opts.Thresholds)
}

// IsRemote reports whether a discovery root names an HTTP(S) source rather
// than a local path.
func IsRemote(root string) bool {
	return strings.HasPrefix(root, "http://") || strings.HasPrefix(root, "https://")
}
