package upgrade

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GitHubChecker implements Checker against a GitHub repository's releases
// API. It is the concrete external collaborator behind the Checker
// interface (§1 scope: the transport is ours to pick; none of the
// example pack's HTTP-client libraries made it into this module's domain
// stack, so a single net/http call doesn't earn one of its own).
type GitHubChecker struct {
	Owner  string
	Repo   string
	Client *http.Client
}

// NewGitHubChecker builds a GitHubChecker with a sane request timeout.
func NewGitHubChecker(owner, repo string) *GitHubChecker {
	return &GitHubChecker{Owner: owner, Repo: repo, Client: &http.Client{Timeout: 10 * time.Second}}
}

type githubRelease struct {
	TagName string `json:"tag_name"`
}

// Latest fetches the repository's latest release tag.
func (c *GitHubChecker) Latest(ctx context.Context) (string, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", c.Owner, c.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github releases: unexpected status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("github releases: decode response: %w", err)
	}
	return release.TagName, nil
}
