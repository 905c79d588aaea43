// Package dropset persists a drop set as a plain list of commit ids, one
// per line, so selection and rewriting can run as separate passes.
package dropset

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/rohankatakam/dropdays/internal/errors"
	"github.com/rohankatakam/dropdays/internal/git"
)

// FileName is the default name of the scratch file inside the git dir.
const FileName = "dropdays-drop-set"

// Write stores set at path, sorted, replacing any previous file. The file
// is written next to its destination and renamed into place.
func Write(path string, set git.HashSet) error {
	hashes := make([]string, 0, len(set))
	for h := range set {
		hashes = append(hashes, h.String())
	}
	sort.Strings(hashes)

	var buf bytes.Buffer
	for _, h := range hashes {
		buf.WriteString(h)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FileSystemErrorf(err, "failed to create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return errors.FileSystemErrorf(err, "failed to create drop set file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.FileSystemErrorf(err, "failed to write drop set")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.FileSystemErrorf(err, "failed to sync drop set")
	}
	if err := tmp.Close(); err != nil {
		return errors.FileSystemErrorf(err, "failed to close drop set")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.FileSystemErrorf(err, "failed to move drop set into place")
	}
	return nil
}

// Read loads a drop set. Blank lines and lines starting with # are
// ignored; anything else must be a full commit id.
func Read(path string) (git.HashSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to open drop set %s", path)
	}
	defer f.Close()

	set := make(git.HashSet)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		h, ok := parseHash(text)
		if !ok {
			return nil, errors.ValidationErrorf("%s:%d: %q is not a commit id", path, line, text)
		}
		set[h] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to read drop set %s", path)
	}
	return set, nil
}

// Remove deletes the file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return errors.FileSystemErrorf(err, "failed to remove drop set %s", path)
	}
	return nil
}

func parseHash(s string) (plumbing.Hash, bool) {
	if len(s) != 40 {
		return plumbing.ZeroHash, false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return plumbing.ZeroHash, false
		}
	}
	h := plumbing.NewHash(strings.ToLower(s))
	return h, !h.IsZero()
}

// String renders a short summary for logs.
func String(set git.HashSet) string {
	return fmt.Sprintf("%d commits", len(set))
}
