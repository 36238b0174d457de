// Package assetsource implements the two AssetSource drivers named by a
// DownloadSource variant: a hardcoded per-platform URL (Direct) and a
// GitHub release asset matched by pattern (GitHub).
package assetsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
	depshttp "github.com/flanksource/deps-fetch/pkg/http"
	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/platform"
)

// AssetSource is the contract every DownloadSource variant implements:
// fetch_info(manifest_source) -> AssetInfo.
type AssetSource interface {
	FetchInfo(ctx context.Context, host platform.Platform) (manifest.AssetInfo, error)
}

// GitHubTokenEnvVar is read once, by pkg/config.Load, and threaded down
// explicitly from there rather than re-read deep inside call chains.
const GitHubTokenEnvVar = "DEPS_GITHUB_TOKEN"

// NewDirect builds the Direct driver for one package manifest's source.
func NewDirect(src *manifest.DirectSource) AssetSource {
	return &directSource{src: src}
}

type directSource struct {
	src *manifest.DirectSource
}

func (d *directSource) FetchInfo(_ context.Context, host platform.Platform) (manifest.AssetInfo, error) {
	entry, err := d.src.URLs.Select(host)
	if err != nil {
		return manifest.AssetInfo{}, err
	}
	return manifest.AssetInfo{
		URL:       entry.URL,
		Version:   d.src.HardcodedVersion,
		AssetType: entry.AssetType,
	}, nil
}

// Latest implements version.LatestResolver: a Direct source has no release
// feed to poll, so "latest" is simply whatever version the manifest
// hardcodes.
func (d *directSource) Latest(_ context.Context) (string, error) {
	return d.src.HardcodedVersion, nil
}

const githubAPIBase = "https://api.github.com"

// NewGitHub builds the GitHub driver. token may be "" (anonymous access).
func NewGitHub(src *manifest.GitHubSource, token string) AssetSource {
	return &githubSource{src: src, token: token, httpClient: depshttp.Client(), apiBase: githubAPIBase}
}

type githubSource struct {
	src        *manifest.GitHubSource
	token      string
	httpClient *http.Client
	apiBase    string
}

// restRelease/restAsset mirror the subset of the GitHub releases/latest
// response shape this driver decodes manually, including the per-asset
// digest hint go-github's typed release struct does not surface.
type restRelease struct {
	TagName string      `json:"tag_name"`
	Name    string      `json:"name"`
	Assets  []restAsset `json:"assets"`
}

type restAsset struct {
	BrowserDownloadURL string `json:"browser_download_url"`
	Name               string `json:"name"`
	Digest             string `json:"digest"`
}

func (g *githubSource) FetchInfo(ctx context.Context, host platform.Platform) (manifest.AssetInfo, error) {
	entry, err := g.src.Asset.Select(host)
	if err != nil {
		return manifest.AssetInfo{}, err
	}

	release, err := g.fetchLatestRelease(ctx)
	if err != nil {
		return manifest.AssetInfo{}, err
	}

	var matches []restAsset
	var names []string
	for _, a := range release.Assets {
		names = append(names, a.Name)
		if entry.Pattern.MatchString(a.Name) {
			matches = append(matches, a)
		}
	}

	switch len(matches) {
	case 0:
		return manifest.AssetInfo{}, depserrors.NoMatchingAsset{Pattern: entry.Pattern.Source(), AvailableAssets: names}
	default:
		if len(matches) > 1 {
			var matchNames []string
			for _, m := range matches {
				matchNames = append(matchNames, m.Name)
			}
			return manifest.AssetInfo{}, depserrors.AmbiguousAsset{Pattern: entry.Pattern.Source(), Matches: matchNames}
		}
	}

	asset := matches[0]

	version := release.TagName
	if g.src.VersionSource == manifest.ReleaseTitle {
		if release.Name == "" {
			return manifest.AssetInfo{}, depserrors.MissingReleaseTitle{Tag: release.TagName}
		}
		version = release.Name
	}

	headers := map[string]string{
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}

	return manifest.AssetInfo{
		URL:            asset.BrowserDownloadURL,
		RequestHeaders: headers,
		Version:        version,
		AssetType:      entry.AssetType,
		DigestHint:     asset.Digest,
	}, nil
}

// Latest implements version.LatestResolver by reading whichever release
// field VersionSource names off GET /releases/latest.
func (g *githubSource) Latest(ctx context.Context) (string, error) {
	release, err := g.fetchLatestRelease(ctx)
	if err != nil {
		return "", err
	}
	if g.src.VersionSource == manifest.ReleaseTitle {
		if release.Name == "" {
			return "", depserrors.MissingReleaseTitle{Tag: release.TagName}
		}
		return release.Name, nil
	}
	return release.TagName, nil
}

func (g *githubSource) fetchLatestRelease(ctx context.Context) (restRelease, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", g.apiBase, g.src.Author, g.src.Repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return restRelease{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", depshttp.UserAgent)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return restRelease{}, depserrors.NetworkFailure{URL: endpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return restRelease{}, depserrors.NetworkFailure{URL: endpoint, StatusCode: resp.StatusCode}
	}

	var rel restRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return restRelease{}, depserrors.NetworkFailure{URL: endpoint, Cause: err}
	}
	return rel, nil
}

// ghClient builds a go-github client honouring the same token, used by
// DiscoverVersions rather than the single-call fetchLatestRelease path
// above.
func (g *githubSource) ghClient() *github.Client {
	if g.token != "" {
		return github.NewClient(g.httpClient).WithAuthToken(g.token)
	}
	return github.NewClient(g.httpClient)
}

// DiscoverVersions lists release tag names, newest first, bounded by
// limit, for ResolveVersion's semver-constraint matching.
func (g *githubSource) DiscoverVersions(ctx context.Context, limit int) ([]string, error) {
	client := g.ghClient()
	opts := &github.ListOptions{PerPage: limit}
	releases, _, err := client.Repositories.ListReleases(ctx, g.src.Author, g.src.Repo, opts)
	if err != nil {
		return nil, depserrors.NetworkFailure{URL: fmt.Sprintf("repos/%s/%s/releases", g.src.Author, g.src.Repo), Cause: err}
	}

	out := make([]string, 0, len(releases))
	for _, r := range releases {
		if r.TagName != nil {
			out = append(out, *r.TagName)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
