package vrutil

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileMD5 returns the hex MD5 digest of the named file, reading it
// chunk-wise so the whole file never has to sit in memory.
func FileMD5(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Mkdir creates path (and parents) if it does not already exist.
func Mkdir(path string) error {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return nil
	}
	return os.MkdirAll(path, 0o777)
}

// Which searches PATH for executable files with the given name, honoring
// PATHEXT on platforms that set it.
func Which(name string) []string {
	var result []string
	exts := strings.Split(os.Getenv("PATHEXT"), string(os.PathListSeparator))
	for _, p := range filepath.SplitList(os.Getenv("PATH")) {
		candidate := filepath.Join(p, name)
		if isExecutable(candidate) {
			result = append(result, candidate)
		}
		for _, ext := range exts {
			if ext == "" {
				continue
			}
			if withExt := candidate + ext; isExecutable(withExt) {
				result = append(result, withExt)
			}
		}
	}
	return result
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0
}
