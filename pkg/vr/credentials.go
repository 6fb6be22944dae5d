package vr

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// Credential is a username/password pair for the API.
type Credential struct {
	Username string
	Password string
}

// envCredentials is what credential resolution reads from the
// environment, under the VELOCIRAPTOR_ prefix.
type envCredentials struct {
	Username   string `envconfig:"USERNAME"`
	Password   string `envconfig:"PASSWORD"`
	AuthDomain string `envconfig:"AUTH_DOMAIN"`
}

// ErrNoPassword means no password could be resolved without prompting
// and standard input is not a terminal.
var ErrNoPassword = errors.New("no password found in environment or keyring")

// ResolveCredential finds credentials for the deployment at hostname,
// trying in order:
//
//  1. $VELOCIRAPTOR_USERNAME and $VELOCIRAPTOR_PASSWORD;
//  2. the OS keyring, keyed by the auth domain ($VELOCIRAPTOR_AUTH_DOMAIN,
//     or the deployment hostname minus its first label) and the
//     username (the one given, or the current OS user);
//  3. prompting on the terminal.
func ResolveCredential(username, hostname string) (Credential, error) {
	var env envCredentials
	if err := envconfig.Process("velociraptor", &env); err != nil {
		return Credential{}, err
	}
	if env.Username != "" && env.Password != "" {
		return Credential{Username: env.Username, Password: env.Password}, nil
	}

	if username == "" {
		username = env.Username
	}
	if username == "" {
		current, err := user.Current()
		if err != nil {
			return Credential{}, fmt.Errorf("resolving current user: %w", err)
		}
		username = current.Username
	}

	domain := env.AuthDomain
	if domain == "" {
		domain = authDomain(hostname)
	}
	password, err := keyring.Get(domain, username)
	if err == nil {
		return Credential{Username: username, Password: password}, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return Credential{}, fmt.Errorf("reading keyring for %s@%s: %w", username, domain, err)
	}

	password, err = promptPassword(username, hostname)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Username: username, Password: password}, nil
}

// authDomain maps a deployment hostname to its keyring service name by
// dropping the leftmost label ("deploy.example.com" keys credentials
// under "example.com").
func authDomain(hostname string) string {
	if _, parent, ok := strings.Cut(hostname, "."); ok && parent != "" {
		return parent
	}
	return hostname
}

func promptPassword(username, hostname string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w for %s@%s", ErrNoPassword, username, hostname)
	}
	fmt.Fprintf(os.Stderr, "%s@%s's password: ", username, hostname)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
