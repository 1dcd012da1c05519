// Package stage manages the local staging area that sits between download and
// upload. Files live at {root}/{project}/{issue}/{filename}.
package stage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirPerm gives owner and group read, write, and execute on created directories.
const DirPerm os.FileMode = 0o770

// ErrUnsafePath is returned when a key component would escape its directory.
var ErrUnsafePath = errors.New("unsafe staging path")

// Stage is a staging area rooted at an existing directory.
type Stage struct {
	root  string
	locks *keyedMutex
}

// New returns a Stage rooted at root, which must already exist.
func New(root string) (*Stage, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("checking staging root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("staging root %s is not a directory", root)
	}
	return &Stage{root: root, locks: newKeyedMutex()}, nil
}

// Root returns the staging root directory.
func (s *Stage) Root() string {
	return s.root
}

// Path returns the staged file location for the addressing triple.
func (s *Stage) Path(projectKey, issueKey, filename string) (string, error) {
	for _, part := range []string{projectKey, issueKey, filename} {
		if err := checkComponent(part); err != nil {
			return "", err
		}
	}
	return filepath.Join(s.root, projectKey, issueKey, filename), nil
}

// Lock serializes work on one staged path. The returned func releases it.
func (s *Stage) Lock(projectKey, issueKey, filename string) (unlock func()) {
	return s.locks.lock(projectKey + "/" + issueKey + "/" + filename)
}

// Write streams r into the staged file for the triple, creating parent
// directories as needed. The content lands in a temporary file first and is
// renamed into place, so a reader never sees a partially written file and a
// rerun overwrites the previous copy. The number of bytes written is returned.
func (s *Stage) Write(projectKey, issueKey, filename string, r io.Reader) (string, int64, error) {
	dst, err := s.Path(projectKey, issueKey, filename)
	if err != nil {
		return "", 0, err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return "", 0, fmt.Errorf("creating staging directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".staging-*.part")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", n, fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", n, fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", n, fmt.Errorf("renaming into place: %w", err)
	}

	return dst, n, nil
}

func checkComponent(part string) error {
	switch {
	case part == "", part == ".", part == "..":
		return fmt.Errorf("%w: %q", ErrUnsafePath, part)
	case strings.ContainsAny(part, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrUnsafePath, part)
	}
	return nil
}
