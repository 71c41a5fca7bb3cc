package replica

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
)

// Fetcher downloads the remote entries of a replica catalog. Payloads
// whose URL ends in .gz are transparently decompressed; the catalog's
// file name is always taken verbatim as the final on-disk name.
type Fetcher struct {
	Client *resty.Client
	Log    *log.Logger
}

// NewFetcher creates a fetcher with a default HTTP client.
func NewFetcher(logger *log.Logger) *Fetcher {
	return &Fetcher{Client: resty.New(), Log: logger}
}

// FetchAll downloads every non-local entry into dir. Failures are
// accumulated per file; the returned error reports how many of the
// remote entries failed.
func (f *Fetcher) FetchAll(ctx context.Context, entries []Entry, dir string) error {
	logger := f.Log
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var remote []Entry
	for _, e := range entries {
		if e.Pool == PoolLocal {
			continue
		}
		remote = append(remote, e)
	}
	logger.Info("fetching replica catalog entries",
		"total", len(entries), "local", len(entries)-len(remote), "remote", len(remote))

	failed := 0
	for i, e := range remote {
		logger.Info("downloading", "file", e.Name, "pool", e.Pool, "n", i+1, "of", len(remote))
		if err := f.fetch(ctx, e, dir); err != nil {
			logger.Error("download failed", "file", e.Name, "err", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(remote))
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, e Entry, dir string) error {
	final := filepath.Join(dir, e.Name)

	// A .gz URL is downloaded to a temporary compressed file next to the
	// final name, decompressed in place, and the temporary removed only
	// on success. This holds even when the catalog name itself carries a
	// .gz suffix: the name is never stripped further.
	if strings.HasSuffix(e.URL, ".gz") {
		tmp := final + ".gz"
		if err := f.download(ctx, e.URL, tmp); err != nil {
			return err
		}
		if err := gunzip(tmp, final); err != nil {
			return err
		}
		return os.Remove(tmp)
	}
	return f.download(ctx, e.URL, final)
}

func (f *Fetcher) download(ctx context.Context, url, dest string) error {
	resp, err := f.Client.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(url)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if resp.IsError() {
		os.Remove(dest)
		return fmt.Errorf("download %s: %s", url, resp.Status())
	}
	return nil
}

// gunzip decompresses a single-file gzip payload.
func gunzip(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	defer zr.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	return out.Close()
}
