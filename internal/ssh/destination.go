package ssh

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDestination indicates a destination parsing error.
var ErrDestination = errors.New("invalid destination")

// Destination is a parsed [user@]target or ssh://[user@]target[:port] argument.
// Target is an instance ID, name, IP address or private DNS name.
type Destination struct {
	Login  string
	Target string
	Port   int
}

// ParseDestination parses a command-line destination.
// An empty string is valid and selects the default bastion.
func ParseDestination(s string) (Destination, error) {
	if rest, ok := strings.CutPrefix(s, "ssh://"); ok {
		login, hostPort, _ := splitUserRest(rest)
		host, port, hasPort := splitHostRest(hostPort)
		if host == "" {
			return Destination{}, fmt.Errorf("%w: missing target in %q", ErrDestination, s)
		}

		d := Destination{Login: login, Target: trimBrackets(host)}
		if hasPort {
			n, err := strconv.Atoi(port)
			if err != nil || n <= 0 || n > 65535 {
				return Destination{}, fmt.Errorf("%w: bad port %q", ErrDestination, port)
			}
			d.Port = n
		}

		return d, nil
	}

	// Split at last @ like OpenSSH does.
	login, target, hasLogin := splitUserRest(s)
	if hasLogin && target == "" {
		return Destination{}, fmt.Errorf("%w: missing target in %q", ErrDestination, s)
	}

	return Destination{Login: login, Target: trimBrackets(target)}, nil
}

func (d Destination) String() string {
	s := d.Target
	if d.Login != "" {
		s = d.Login + "@" + s
	}
	if d.Port != 0 {
		s = "ssh://" + s + ":" + strconv.Itoa(d.Port)
	}
	return s
}

// splitUserRest splits "user@rest" at the last @.
func splitUserRest(s string) (user, rest string, ok bool) {
	if idx := strings.LastIndex(s, "@"); idx != -1 {
		return s[:idx], s[idx+1:], true
	}
	return "", s, false
}

// splitHostRest splits "host:rest" handling IPv6 brackets.
func splitHostRest(s string) (host, rest string, ok bool) {
	if strings.HasPrefix(s, "[") {
		if idx := strings.Index(s, "]:"); idx != -1 {
			return s[:idx+1], s[idx+2:], true
		}
		return s, "", false
	}
	if idx := strings.Index(s, ":"); idx != -1 {
		return s[:idx], s[idx+1:], true
	}
	return s, "", false
}

func trimBrackets(host string) string {
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host[1 : len(host)-1]
	}
	return host
}
