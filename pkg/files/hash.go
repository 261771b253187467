package file

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DirFiles returns the list of files in the tree rooted at dir relative to dir.
// Hidden directories (e.g. .git, .terraform) are skipped. The resulting names always use forward slashes.
func DirFiles(dir string) ([]string, error) {
	var files []string
	dir = filepath.Clean(dir)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// HashDir returns the hex encoded FNV-128a hash of all files in dir.
//
// The hashed summary contains a single line for each file, ordered by file name,
// where each line consists of the hash of the file content, two spaces and the file name.
func HashDir(dir string) (string, error) {
	files, err := DirFiles(dir)
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	h := fnv.New128a()
	for _, name := range files {
		if strings.Contains(name, "\n") {
			return "", errors.New("dirhash: filenames with newlines are not supported")
		}
		hf := fnv.New128a()
		if err := copyFile(hf, filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			return "", err
		}
		_, _ = fmt.Fprintf(h, "%x  %s\n", hf.Sum(nil), name)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
