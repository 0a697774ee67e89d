package ssm

import "fmt"

// Shell selects how interactive sessions are opened.
type Shell int

const (
	// ShellBuiltin uses the in-process session client.
	ShellBuiltin Shell = iota
	// ShellPlugin runs "aws ssm start-session", which needs session-manager-plugin.
	ShellPlugin
)

// UnmarshalText implements encoding.TextUnmarshaler for config parsing.
func (s *Shell) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "builtin":
		*s = ShellBuiltin
	case "plugin":
		*s = ShellPlugin
	default:
		return fmt.Errorf("unknown SSM shell: %s", text)
	}
	return nil
}

func (s Shell) String() string {
	if s == ShellPlugin {
		return "plugin"
	}
	return "builtin"
}
