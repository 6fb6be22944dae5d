//go:build unix

package vrutil

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
)

// LockFile takes an exclusive flock on f.  If block is false and another
// process already holds the lock, ErrLocked is returned immediately;
// if block is true, LockFile waits for the lock to be released.
func LockFile(f *os.File, block bool) error {
	flags := syscall.LOCK_EX
	if !block {
		flags |= syscall.LOCK_NB
	}
	err := syscall.Flock(int(f.Fd()), flags)
	if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EAGAIN) {
		return fmt.Errorf("%w: %s", ErrLocked, f.Name())
	}
	return err
}

// ErrLocked means another process holds the lock on the file.
var ErrLocked = errors.New("file is locked by another process")

// ChownTree sets the owner and/or group (by name) of path and everything
// under it, skipping symlinks.  Passing an empty string leaves that id
// unchanged; at least one of the two must be given.
func ChownTree(path, username, groupname string) error {
	if username == "" && groupname == "" {
		return errors.New("must provide username and/or groupname")
	}

	// os.Chown accepts -1 to leave user or group unchanged.
	uid, gid := -1, -1

	if username != "" {
		u, err := user.Lookup(username)
		if err != nil {
			return err
		}
		uid, _ = strconv.Atoi(u.Uid)
	}
	if groupname != "" {
		g, err := user.LookupGroup(groupname)
		if err != nil {
			return err
		}
		gid, _ = strconv.Atoi(g.Gid)
	}

	return filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		return os.Chown(p, uid, gid)
	})
}
