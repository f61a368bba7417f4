package input

import (
	"context"
	"net/url"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/puff-cli/internal/fetcher"
)

// Fetch makes src readable by Load. Local paths are returned unchanged.
// URLs are downloaded into dir under the URL's file name, so the format
// is still detected from its extension.
func Fetch(ctx context.Context, d fetcher.Downloader, src, dir string) (string, error) {
	if !fetcher.IsRemote(src) {
		return src, nil
	}

	u, err := url.Parse(src)
	if err != nil {
		return "", eris.Wrapf(err, "input: parse %s", src)
	}
	name := path.Base(u.Path)
	if _, err := DetectFormat(name); err != nil {
		return "", err
	}

	dst := filepath.Join(dir, name)
	n, err := d.DownloadToFile(ctx, src, dst)
	if err != nil {
		return "", eris.Wrapf(err, "input: download %s", src)
	}

	zap.L().Info("input: downloaded puff log",
		zap.String("url", u.Redacted()),
		zap.String("path", dst),
		zap.Int64("bytes", n),
	)
	return dst, nil
}
