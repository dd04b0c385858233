package history

import (
	"errors"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ReadLog reads up to limit commits from the repository at repoRoot,
// newest first, including the changed-file list of each commit. A
// missing repository or empty history returns an empty slice: a fresh
// checkout simply has no history signal yet.
func ReadLog(repoRoot string, limit int) ([]Commit, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		// Unborn branch: no commits yet.
		return nil, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return errStopIteration
		}
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			When:    c.Author.When,
			Message: c.Message,
			Files:   changedFiles(c),
		})
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}
	return commits, nil
}

var errStopIteration = errors.New("stop iteration")

// changedFiles diffs a commit against its first parent. Root commits
// list their full tree; merge commits follow the first parent only.
func changedFiles(c *object.Commit) []string {
	tree, err := c.Tree()
	if err != nil {
		return nil
	}

	parent, err := c.Parent(0)
	if err != nil {
		// Root commit: every file in the tree counts as changed.
		var files []string
		_ = tree.Files().ForEach(func(f *object.File) error {
			files = append(files, f.Name)
			return nil
		})
		return files
	}

	parentTree, err := parent.Tree()
	if err != nil {
		return nil
	}
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil
	}

	var files []string
	seen := make(map[string]bool)
	for _, ch := range changes {
		for _, name := range []string{ch.From.Name, ch.To.Name} {
			if name != "" && !seen[name] {
				files = append(files, name)
				seen[name] = true
			}
		}
	}
	return files
}
