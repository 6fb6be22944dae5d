package vrutil

import (
	"context"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/datawire/dlib/dexec"
)

// LXCVersion asks the current host what version of LXC it has.
func LXCVersion(ctx context.Context) (semver.Version, error) {
	// Old LXC had an lxc-version executable, and prefixed its result with
	// "lxc version: ".
	if out, err := dexec.CommandContext(ctx, "lxc-version").Output(); err == nil {
		raw := strings.TrimSpace(string(out))
		return semver.ParseTolerant(strings.TrimPrefix(raw, "lxc version: "))
	}

	// New LXC instead has a --version option on most installed executables.
	out, err := dexec.CommandContext(ctx, "lxc-start", "--version").Output()
	if err != nil {
		return semver.Version{}, err
	}
	return semver.ParseTolerant(strings.TrimSpace(string(out)))
}

var (
	lxcNetworkNone = semver.MustParse("1.0.0")
	lxcOverlay     = semver.MustParse("2.0.0")
)

// LXCNetworkConfig returns the lxc config stanza that shares the host's
// networking interface with the container.  LXC older than 1.0.0 needs no
// stanza at all.
func LXCNetworkConfig(version semver.Version) string {
	if version.LT(lxcNetworkNone) {
		return ""
	}
	return "\n# Share the host's networking interface.\nlxc.network.type = none"
}

// LXCOverlayEntry returns the lxc.mount.entry line that mounts the proc
// directory as an overlay over the image.  The fstype and required options
// changed in LXC 2.0.
func LXCOverlayEntry(version semver.Version, imagePath, procPath, workPath string) string {
	if version.LT(lxcOverlay) {
		return "lxc.mount.entry = overlayfs " + procPath + " overlayfs " +
			"lowerdir=" + imagePath + ",upperdir=" + procPath + " 0 0"
	}
	// On newer LXC, fstype is called 'overlay' and we need a 'workdir'.
	return "lxc.mount.entry = overlay " + procPath + " overlay " +
		"lowerdir=" + imagePath + ",upperdir=" + procPath + ",workdir=" + workPath + " 0 0"
}
