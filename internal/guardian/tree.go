package guardian

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/crypto/blake2b"
)

// TreeHash fingerprints the working tree content. Pre-commit and
// post-commit hooks hash the same tree, so a marker written by the
// gate run matches the commit it certified. The .git and state
// directories are excluded.
func TreeHash(root string, stateDir string) (string, error) {
	type entry struct {
		path string
		sum  [32]byte
	}
	var entries []entry

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel == ".git" || rel == stateDir || strings.HasPrefix(rel, stateDir+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{path: rel, sum: blake2b.Sum256(data)})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash tree: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	h, _ := blake2b.New256(nil)
	for _, e := range entries {
		io.WriteString(h, e.path)
		h.Write([]byte{0})
		h.Write(e.sum[:])
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// MaterializeCommit writes the file tree of the given commit into
// dest, so gate checks can rerun against the exact committed content
// rather than whatever the working tree holds now.
func MaterializeCommit(repoRoot, commitHash, dest string) error {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	commit, err := repo.CommitObject(plumbing.NewHash(commitHash))
	if err != nil {
		return fmt.Errorf("failed to resolve commit %s: %w", commitHash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("failed to read commit tree: %w", err)
	}

	return tree.Files().ForEach(func(f *object.File) error {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		r, err := f.Reader()
		if err != nil {
			return err
		}
		defer r.Close()
		mode := os.FileMode(0644)
		if f.Mode == filemode.Executable {
			mode = 0755
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, r); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}
