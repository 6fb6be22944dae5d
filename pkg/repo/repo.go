// Package repo has tools for doing some simple (clone and pull) operations
// with git and mercurial repositories.
package repo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"
)

// GuessURLVCS tries to guess what kind of VCS a url points at.  It returns
// "" if it can't make a good guess.
func GuessURLVCS(ctx context.Context, rawurl string) string {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}

	switch {
	case parsed.Scheme == "git" || parsed.Scheme == "svn":
		return parsed.Scheme
	case strings.HasSuffix(parsed.Path, ".git"):
		return "git"
	case parsed.Hostname() == "github.com":
		return "git"
	}

	// If it's an http url, we can try requesting it and guessing from the
	// response headers.
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
		if err != nil {
			return ""
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return ""
		}
		defer resp.Body.Close()
		server := strings.ToLower(resp.Header.Get("Server"))
		if regexp.MustCompile(`basehttp.*python.*`).MatchString(server) {
			// It's the mercurial http server.
			return "hg"
		}
	}
	return ""
}

// GuessFolderVCS looks at a folder on the local filesystem and reports what
// kind of vcs checkout it is, if any.
func GuessFolderVCS(folder string) string {
	for _, dotdir := range []string{".git", ".hg", ".svn"} {
		if _, err := os.Stat(folder + string(os.PathSeparator) + dotdir); err == nil {
			return dotdir[1:]
		}
	}
	return ""
}

// Repo is a local checkout of a remote git or hg repository.
type Repo struct {
	Folder   string
	URL      string
	VCSType  string
	Fragment string
}

// New builds a Repo for folder.  The vcs type is guessed from the folder
// contents, then from the url; the url may be recovered from an existing
// clone.  A "#fragment" on the url is split off and kept as the default
// revision for Update.
func New(ctx context.Context, folder, rawurl, vcsType string) (*Repo, error) {
	folder = strings.TrimSuffix(folder, "/")

	if vcsType == "" {
		vcsType = GuessFolderVCS(folder)
	}
	if vcsType == "" {
		vcsType = GuessURLVCS(ctx, rawurl)
	}
	if vcsType == "" {
		return nil, fmt.Errorf(
			"vcs type not guessable from folder (%s) or URL (%s)", folder, rawurl)
	}

	r := &Repo{Folder: folder, VCSType: vcsType}

	if rawurl == "" {
		if _, err := os.Stat(folder); err != nil {
			return nil, fmt.Errorf("must provide repo url if folder does not exist: %w", err)
		}
		var err error
		rawurl, err = r.GetURL(ctx)
		if err != nil {
			return nil, err
		}
	}

	rawurl, r.Fragment, _ = strings.Cut(rawurl, "#")
	r.URL = strings.TrimSuffix(rawurl, "/")
	return r, nil
}

func (r *Repo) run(ctx context.Context, inFolder bool, name string, args ...string) (string, error) {
	cmd := dexec.CommandContext(ctx, name, args...)
	if inFolder {
		cmd.Dir = r.Folder
	}
	out, err := cmd.Output()
	return string(out), err
}

// GetURL returns the default upstream URL of the existing local clone.
func (r *Repo) GetURL(ctx context.Context) (string, error) {
	var out string
	var err error
	switch r.VCSType {
	case "hg":
		out, err = r.run(ctx, true, "hg", "paths", "default")
	case "git":
		out, err = r.run(ctx, true, "git", "config", "--local", "--get", "remote.origin.url")
	default:
		return "", fmt.Errorf("unsupported vcs type %q", r.VCSType)
	}
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(out, "\n", ""), nil
}

// Clone makes the initial checkout of the repo into r.Folder.
func (r *Repo) Clone(ctx context.Context) error {
	dlog.Infof(ctx, "Cloning %s to %s", r.URL, r.Folder)
	var err error
	switch r.VCSType {
	case "hg":
		_, err = r.run(ctx, false, "hg", "clone", r.URL, r.Folder)
	case "git":
		_, err = r.run(ctx, false, "git", "clone", r.URL, r.Folder)
	default:
		err = fmt.Errorf("unsupported vcs type %q", r.VCSType)
	}
	return err
}

// Update brings the checkout to rev, cloning first if the folder doesn't
// exist yet.  An empty rev falls back to the url fragment, and then to the
// vcs default (master/tip).
func (r *Repo) Update(ctx context.Context, rev string) error {
	if _, err := os.Stat(r.Folder); err != nil {
		if err := r.Clone(ctx); err != nil {
			return err
		}
	}

	dlog.Infof(ctx, "Updating %s from %s", r.Folder, r.URL)

	if rev == "" {
		rev = r.Fragment
	}

	switch r.VCSType {
	case "hg":
		return r.updateHg(ctx, rev)
	case "git":
		return r.updateGit(ctx, rev)
	}
	return fmt.Errorf("unsupported vcs type %q", r.VCSType)
}

func (r *Repo) updateHg(ctx context.Context, rev string) error {
	if rev == "" {
		rev = "tip"
	}
	if _, err := r.run(ctx, true, "hg", "pull", r.URL); err != nil {
		return err
	}
	_, err := r.run(ctx, true, "hg", "up", "--clean", rev)
	return err
}

func (r *Repo) updateGit(ctx context.Context, rev string) error {
	if rev == "" {
		rev = "master"
	}
	// Get all refs first.
	if _, err := r.run(ctx, true, "git", "fetch", "--tags"); err != nil {
		return err
	}
	if _, err := r.run(ctx, true, "git", "checkout", rev); err != nil {
		return err
	}
	// Reset working state to the origin.  Only relevant to branches, so
	// errors are suppressed.
	_, _ = r.run(ctx, true, "git", "reset", "--hard", "origin/"+rev)
	return nil
}

// Version returns the revision the checkout is currently at.
func (r *Repo) Version(ctx context.Context) (string, error) {
	switch r.VCSType {
	case "hg":
		out, err := r.run(ctx, false, "hg", "identify", "-i", r.Folder)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, "+\n"), nil
	case "git":
		out, err := r.run(ctx, true, "git", "rev-parse", "HEAD")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	}
	return "", fmt.Errorf("unsupported vcs type %q", r.VCSType)
}

// Basename returns the name of the folder that you'd get if you cloned
// r.URL into the current working directory.
func (r *Repo) Basename() string {
	return Basename(r.URL)
}

var gitSuffix = regexp.MustCompile(`\.git$`)

// Basename returns the name of the folder that you'd get if you cloned
// 'url' into the current working directory.
func Basename(rawurl string) string {
	// It's easy to accidentally have whitespace on the beginning or end of
	// the url.
	rawurl = strings.TrimSpace(rawurl)
	rawurl, _, _ = strings.Cut(rawurl, "#")
	rawurl = strings.TrimSuffix(rawurl, "/")

	parts := strings.Split(rawurl, "/")
	return gitSuffix.ReplaceAllString(parts[len(parts)-1], "")
}
