package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// isGitURL reports whether the input looks like a Git repository URL rather
// than a local path. Plain http(s) URLs are only treated as Git when they
// carry the .git suffix.
func isGitURL(input string) bool {
	return strings.HasSuffix(input, ".git") ||
		strings.HasPrefix(input, "git@")
}

// repoNameFromURL extracts the repository name so the clone directory (and
// the archive) carry it instead of a temp-dir name.
func repoNameFromURL(url string) string {
	base := path.Base(strings.ReplaceAll(url, ":", "/"))
	base = strings.TrimSuffix(base, ".git")
	if base == "" || base == "." || base == "/" {
		return "repository"
	}
	return base
}

// cloneGitRepo clones a repository into a temp directory so it can be
// archived like any local tree. Shallow, default branch only. The returned
// cleanup removes the clone and must be called even on error paths.
func cloneGitRepo(url string, progress io.Writer) (string, func(), error) {
	tempDir, err := os.MkdirTemp("", "codebase2xml-git-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tempDir) }

	dest := filepath.Join(tempDir, repoNameFromURL(url))
	_, err = git.PlainClone(dest, false, &git.CloneOptions{
		URL:           url,
		Progress:      progress,
		Depth:         1,
		ReferenceName: plumbing.HEAD,
		SingleBranch:  true,
	})
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to clone repository %q: %w", url, err)
	}
	return dest, cleanup, nil
}
