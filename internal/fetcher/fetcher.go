package fetcher

import (
	"context"
	"net/url"
)

// Downloader copies a remote puff log to a local file.
type Downloader interface {
	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// IsRemote reports whether src is an http(s) URL rather than a local path.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
