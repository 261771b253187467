package file

import "os"

// Exists reports whether path is a regular file, following symlinks.
func Exists(path string) bool {
	return statMode(path, false)
}

// DirExists reports whether path is a directory, following symlinks.
func DirExists(path string) bool {
	return statMode(path, true)
}

func statMode(path string, dir bool) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir() == dir
}
