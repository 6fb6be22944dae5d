package balancer

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yougov/vr-common/pkg/vrutil"
)

// PoolFile translates between a pool's node list and the config file kept
// for it on each balancer host.  Drivers like varnish implement this; the
// SSH plumbing lives here.
type PoolFile interface {
	Path(pool string) string
	Render(pool string, nodes []string) []byte
	Parse(contents []byte) (sets.Set[string], error)
}

// SSHBalancer is a helper for writing balancer backends that are
// configured by SSHing to the balancer hosts, writing config files, and
// reloading config.
type SSHBalancer struct {
	File      PoolFile
	User      string
	Password  string
	Hosts     []string
	TmpDir    string
	ReloadCmd string
}

// NewSSHBalancer fills an SSHBalancer from a Config, applying the
// defaults ("localhost", /tmp).
func NewSSHBalancer(file PoolFile, cfg Config) *SSHBalancer {
	b := &SSHBalancer{
		File:      file,
		User:      cfg.User,
		Password:  cfg.Password,
		Hosts:     cfg.Hosts,
		TmpDir:    cfg.TmpDir,
		ReloadCmd: cfg.ReloadCmd,
	}
	if len(b.Hosts) == 0 {
		b.Hosts = []string{"localhost"}
	}
	if b.TmpDir == "" {
		b.TmpDir = "/tmp"
	}
	return b
}

func (b *SSHBalancer) dial(host string) (*ssh.Client, error) {
	if !strings.Contains(host, ":") {
		host += ":22"
	}
	return ssh.Dial("tcp", host, &ssh.ClientConfig{
		User:            b.User,
		Auth:            []ssh.AuthMethod{ssh.Password(b.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
}

func (b *SSHBalancer) readFile(host, filePath string) ([]byte, error) {
	conn, err := b.dial(host)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	f, err := client.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// sudo runs cmd under sudo on an established connection, feeding the
// password over stdin.
func (b *SSHBalancer) sudo(ctx context.Context, conn *ssh.Client, cmd string) error {
	session, err := conn.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	session.Stdin = strings.NewReader(b.Password + "\n")
	out, err := session.CombinedOutput("sudo -S -p '' " + cmd)
	if len(out) > 0 {
		dlog.Info(ctx, string(out))
	}
	if err != nil {
		return fmt.Errorf("sudo %s: %w", cmd, err)
	}
	return nil
}

// writeFile lands contents at filePath owned by root: upload to a
// temporary name over SFTP, then sudo it into place.
func (b *SSHBalancer) writeFile(ctx context.Context, host, filePath string, contents []byte) error {
	conn, err := b.dial(host)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return err
	}
	defer client.Close()

	tmpPath := path.Join(b.TmpDir, vrutil.RandChars(10))
	f, err := client.Create(tmpPath)
	if err != nil {
		return err
	}
	if _, err := f.Write(contents); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := client.Chmod(tmpPath, 0o644); err != nil {
		return err
	}

	if err := b.sudo(ctx, conn, fmt.Sprintf("mv %s %s", tmpPath, filePath)); err != nil {
		return err
	}
	return b.sudo(ctx, conn, "chown root "+filePath)
}

func (b *SSHBalancer) removeFile(ctx context.Context, host, filePath string) error {
	conn, err := b.dial(host)
	if err != nil {
		return err
	}
	defer conn.Close()
	return b.sudo(ctx, conn, "rm -f "+filePath)
}

func (b *SSHBalancer) reloadConfig(ctx context.Context, host string) error {
	conn, err := b.dial(host)
	if err != nil {
		return err
	}
	defer conn.Close()
	return b.sudo(ctx, conn, b.ReloadCmd)
}

func (b *SSHBalancer) hostNodes(host, pool string) (sets.Set[string], error) {
	contents, err := b.readFile(host, b.File.Path(pool))
	if err != nil {
		// No pool file yet means no nodes.
		return sets.New[string](), nil
	}
	return b.File.Parse(contents)
}

func (b *SSHBalancer) setHostNodes(ctx context.Context, host, pool string, nodes []string) error {
	sort.Strings(nodes)
	return b.writeFile(ctx, host, b.File.Path(pool), b.File.Render(pool, nodes))
}

// GetNodes looks at the pool files of all the hosts, and logs a warning
// about any mismatched pools (returning the union).
func (b *SSHBalancer) GetNodes(ctx context.Context, pool string) ([]string, error) {
	var nodes sets.Set[string]
	for _, host := range b.Hosts {
		hostNodes, err := b.hostNodes(host, pool)
		if err != nil {
			return nil, err
		}
		if nodes == nil {
			nodes = hostNodes
		} else if !nodes.Equal(hostNodes) {
			dlog.Warnf(ctx, "Host %s has nodes %v for pool %s, but other hosts have %v",
				host, sets.List(hostNodes), pool, sets.List(nodes))
			nodes = nodes.Union(hostNodes)
		}
	}
	if nodes == nil {
		return nil, nil
	}
	return sets.List(nodes), nil
}

// AddNodes merges nodes into the pool on every host and reloads.
func (b *SSHBalancer) AddNodes(ctx context.Context, pool string, nodes []string) error {
	current, err := b.GetNodes(ctx, pool)
	if err != nil {
		return err
	}
	merged := sets.New(current...).Insert(nodes...)
	for _, host := range b.Hosts {
		if err := b.setHostNodes(ctx, host, pool, sets.List(merged)); err != nil {
			return err
		}
		if err := b.reloadConfig(ctx, host); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNodes removes nodes from the pool on every host and reloads.
func (b *SSHBalancer) DeleteNodes(ctx context.Context, pool string, nodes []string) error {
	for _, host := range b.Hosts {
		current, err := b.hostNodes(host, pool)
		if err != nil {
			return err
		}
		correct := current.Difference(sets.New(nodes...))
		if err := b.setHostNodes(ctx, host, pool, sets.List(correct)); err != nil {
			return err
		}
		if err := b.reloadConfig(ctx, host); err != nil {
			return err
		}
	}
	return nil
}

// DeletePool removes the pool file from every host and reloads.
func (b *SSHBalancer) DeletePool(ctx context.Context, pool string) error {
	for _, host := range b.Hosts {
		if err := b.removeFile(ctx, host, b.File.Path(pool)); err != nil {
			return err
		}
		if err := b.reloadConfig(ctx, host); err != nil {
			return err
		}
	}
	return nil
}
