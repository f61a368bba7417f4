package input

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDownloader struct {
	body  string
	err   error
	calls []string
}

func (s *stubDownloader) DownloadToFile(_ context.Context, url, path string) (int64, error) {
	s.calls = append(s.calls, url)
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.body)), os.WriteFile(path, []byte(s.body), 0o644)
}

func TestFetch_LocalPathUnchanged(t *testing.T) {
	d := &stubDownloader{}
	got, err := Fetch(context.Background(), d, "logs/puffs.tsv", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "logs/puffs.tsv", got)
	assert.Empty(t, d.calls)
}

func TestFetch_DownloadsURL(t *testing.T) {
	d := &stubDownloader{body: "date\ttreatment\tinhaler\tpuff\tseconds\tsequence\n2024-03-01\t1\tA\t1\t20\t3\n"}
	dir := t.TempDir()

	got, err := Fetch(context.Background(), d, "https://files.example.com/share/puffs.tsv?dl=1", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "puffs.tsv"), got)
	assert.Equal(t, []string{"https://files.example.com/share/puffs.tsv?dl=1"}, d.calls)

	recs, err := Load(context.Background(), got, defaultOpts)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestFetch_UnsupportedExtension(t *testing.T) {
	d := &stubDownloader{}
	_, err := Fetch(context.Background(), d, "https://files.example.com/puffs.csv", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
	assert.Empty(t, d.calls)
}

func TestFetch_DownloadError(t *testing.T) {
	d := &stubDownloader{err: errors.New("connection refused")}
	_, err := Fetch(context.Background(), d, "https://files.example.com/puffs.xlsx", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input: download")
}
