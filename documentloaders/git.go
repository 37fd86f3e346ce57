package documentloaders

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/sevigo/sourceqa/schema"
)

// Metadata keys set on documents loaded from a git repository.
const (
	RepositoryKey = "repository"
	CommitKey     = "commit"
)

// Git clones a remote repository into a temporary directory, loads it like
// Directory and removes the checkout afterwards. Sources are paths relative
// to the repository root.
type Git struct {
	repoURL string
	opts    options
}

var _ Loader = (*Git)(nil)

func NewGit(repoURL string, opts ...Option) *Git {
	return &Git{repoURL: repoURL, opts: applyOptions(opts...)}
}

// IsGitURL reports whether s names a remote repository rather than a local path.
func IsGitURL(s string) bool {
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "git@"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func (l *Git) Load(ctx context.Context) ([]schema.Document, error) {
	if l.repoURL == "" {
		return nil, ErrEmptyPath
	}
	logger := l.opts.logger.With("component", "git_loader", "url", l.repoURL)

	tempPath, err := os.MkdirTemp("", "sourceqa-repo-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		logger.DebugContext(ctx, "Cleaning up temporary repository", "path", tempPath)
		_ = os.RemoveAll(tempPath)
	}()

	cloneOpts := &git.CloneOptions{
		URL:          l.repoURL,
		Depth:        1,
		SingleBranch: true,
	}
	if l.opts.branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(l.opts.branch)
	}

	logger.InfoContext(ctx, "Cloning repository", "path", tempPath, "branch", l.opts.branch)
	repo, err := git.PlainCloneContext(ctx, tempPath, false, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone repo '%s': %w", l.repoURL, err)
	}

	return l.loadCheckout(ctx, repo, tempPath)
}

// loadCheckout loads the working tree at dir and stamps every document with
// the repository URL and the checked out commit.
func (l *Git) loadCheckout(ctx context.Context, repo *git.Repository, dir string) ([]schema.Document, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD of %s: %w", l.repoURL, err)
	}
	commit := head.Hash().String()

	docs, err := NewDirectory(dir, WithLogger(l.opts.logger)).Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Metadata[RepositoryKey] = l.repoURL
		docs[i].Metadata[CommitKey] = commit
	}

	l.opts.logger.InfoContext(ctx, "Repository loaded", "url", l.repoURL, "commit", commit, "documents", len(docs))
	return docs, nil
}
