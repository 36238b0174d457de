// Package downloader runs bounded- or unbounded-parallel fetch tasks into
// a per-invocation temp directory, using golang.org/x/sync/errgroup for
// fan-out/fan-in with first-error-cancels-siblings semantics.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/utils"
)

// Job pairs a resolved package's manifest with the AssetInfo its
// asset-source driver produced.
type Job struct {
	Manifest  manifest.PackageManifest
	AssetInfo manifest.AssetInfo
}

// Reporter is the progress capability downloads report through; callers
// supply an implementation rather than the package reaching into a
// concrete logger type.
type Reporter interface {
	Message(msg string)
	Bytes(done, total int64)
	Started(url, dest string)
}

// Finalize is invoked once per job after its bytes are on disk.
type Finalize func(ctx context.Context, job Job, downloadedPath string) error

// Option configures Downloader behaviour.
type Option func(*options)

type options struct {
	client      *http.Client
	parallelism int // 0 means unbounded
}

// WithHTTPClient overrides the default client used for every download.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithParallelism caps concurrent downloads; 0 (the default) is unbounded.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

// DownloadAll runs one task per job. On success it invokes finalize for
// each job; on the first task failure, it cancels all sibling tasks and
// returns that error. The returned tempDir is valid until the caller
// removes it once every download has been consumed.
func DownloadAll(ctx context.Context, jobs []Job, finalize Finalize, reporter Reporter, opts ...Option) (tempDir string, err error) {
	o := options{client: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}

	tempDir, err = os.MkdirTemp("", "deps-fetch-*")
	if err != nil {
		return "", depserrors.FilesystemError{Op: "mkdtemp", Path: os.TempDir(), Cause: err}
	}

	g, gctx := errgroup.WithContext(ctx)
	var sem chan struct{}
	if o.parallelism > 0 {
		sem = make(chan struct{}, o.parallelism)
	}

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			dest := filepath.Join(tempDir, job.Manifest.Name)
			if err := downloadOne(gctx, o.client, job, dest, reporter); err != nil {
				return err
			}
			return finalize(gctx, job, dest)
		})
	}

	if err := g.Wait(); err != nil {
		return tempDir, err
	}
	return tempDir, nil
}

func downloadOne(ctx context.Context, client *http.Client, job Job, dest string, reporter Reporter) error {
	if reporter != nil {
		reporter.Started(job.AssetInfo.URL, dest)
		reporter.Message(fmt.Sprintf("downloading %s from %s", job.Manifest.Name, utils.ShortenURL(job.AssetInfo.URL)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.AssetInfo.URL, nil)
	if err != nil {
		return depserrors.NetworkFailure{URL: job.AssetInfo.URL, Cause: err}
	}
	for k, v := range job.AssetInfo.RequestHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return depserrors.NetworkFailure{URL: job.AssetInfo.URL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return depserrors.NetworkFailure{URL: job.AssetInfo.URL, StatusCode: resp.StatusCode}
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return depserrors.FilesystemError{Op: "create", Path: dest, Cause: err}
	}
	defer out.Close()

	total := resp.ContentLength
	var done int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return depserrors.FilesystemError{Op: "write", Path: dest, Cause: werr}
			}
			done += int64(n)
			if reporter != nil {
				reporter.Bytes(done, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return depserrors.NetworkFailure{URL: job.AssetInfo.URL, Cause: rerr}
		}
	}
	if reporter != nil {
		reporter.Message(fmt.Sprintf("downloaded %s (%s)", job.Manifest.Name, utils.FormatBytes(done)))
	}
	return nil
}
