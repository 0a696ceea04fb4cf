package engine

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// changedFiles resolves the set of files that differ from the given base
// revision, as absolute paths. The set covers both committed changes
// (base..HEAD) and uncommitted worktree or index changes, so a diff scan sees
// exactly what a reviewer would.
func changedFiles(target, base string) (map[string]bool, error) {
	repo, err := git.PlainOpenWithOptions(target, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", target, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("reading worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	baseTree, err := treeAt(repo, base)
	if err != nil {
		return nil, err
	}
	headTree, err := treeAt(repo, "HEAD")
	if err != nil {
		return nil, err
	}

	changed := make(map[string]bool)

	changes, err := object.DiffTree(baseTree, headTree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..HEAD: %w", base, err)
	}
	for _, change := range changes {
		// Deletions have an empty To name; there is nothing left to scan.
		if change.To.Name != "" {
			changed[filepath.Join(root, change.To.Name)] = true
		}
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading worktree status: %w", err)
	}
	for rel, st := range status {
		if st.Worktree == git.Deleted || (st.Staging == git.Deleted && st.Worktree == git.Unmodified) {
			continue
		}
		if st.Worktree != git.Unmodified || st.Staging != git.Unmodified {
			changed[filepath.Join(root, rel)] = true
		}
	}

	return changed, nil
}

func treeAt(repo *git.Repository, revision string) (*object.Tree, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("resolving revision %q: %w", revision, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading tree for %s: %w", hash, err)
	}
	return tree, nil
}
