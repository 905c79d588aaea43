package git

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Signature is the name, email and instant of an author or committer.
// When keeps the UTC offset recorded in the commit as its location.
type Signature = object.Signature

// Commit is a read-only reflection of a commit object. A rewrite never
// mutates one; it creates new commits through CreateCommit.
type Commit struct {
	Hash      plumbing.Hash
	Tree      plumbing.Hash
	Parents   []plumbing.Hash
	Author    Signature
	Committer Signature
	Message   string
}

// IsMerge reports whether the commit has more than one parent.
func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// IsRoot reports whether the commit has no parents.
func (c *Commit) IsRoot() bool {
	return len(c.Parents) == 0
}

func fromObject(c *object.Commit) *Commit {
	parents := make([]plumbing.Hash, len(c.ParentHashes))
	copy(parents, c.ParentHashes)

	return &Commit{
		Hash:      c.Hash,
		Tree:      c.TreeHash,
		Parents:   parents,
		Author:    c.Author,
		Committer: c.Committer,
		Message:   c.Message,
	}
}

// Ref is a branch or tag. Hash is the value stored in the ref, which for
// an annotated tag is the tag object; Commit is always the peeled commit.
type Ref struct {
	Name      plumbing.ReferenceName
	Hash      plumbing.Hash
	Commit    plumbing.Hash
	Annotated bool
}

// RefScope selects which refs a run considers.
type RefScope int

const (
	// ScopeCurrentBranch is the branch HEAD points at.
	ScopeCurrentBranch RefScope = iota
	// ScopeAll is every local branch and tag.
	ScopeAll
)

func (s RefScope) String() string {
	switch s {
	case ScopeCurrentBranch:
		return "current"
	case ScopeAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseRefScope accepts "current" and "all".
func ParseRefScope(s string) (RefScope, bool) {
	switch s {
	case "current", "current-branch":
		return ScopeCurrentBranch, true
	case "all", "all-refs":
		return ScopeAll, true
	default:
		return 0, false
	}
}

type empty = struct{}

// HashSet is a set of object ids.
type HashSet = map[plumbing.Hash]empty

// NewHashSet creates a new set of Hash
func NewHashSet(hashes ...plumbing.Hash) HashSet {
	result := make(HashSet, len(hashes))
	for _, v := range hashes {
		result[v] = empty{}
	}
	return result
}

// Tips collects the distinct peeled commits of refs, in ref order.
func Tips(refs []Ref) []plumbing.Hash {
	seen := make(HashSet)
	tips := make([]plumbing.Hash, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r.Commit]; ok {
			continue
		}
		seen[r.Commit] = empty{}
		tips = append(tips, r.Commit)
	}
	return tips
}
