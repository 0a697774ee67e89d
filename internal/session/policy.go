package session

import (
	"fmt"
	"strings"
)

// StopPolicy decides whether the instance is stopped after a session.
type StopPolicy int

const (
	StopPrompt StopPolicy = iota
	StopNever
	StopAlways
)

func (p StopPolicy) String() string {
	switch p {
	case StopNever:
		return "never"
	case StopAlways:
		return "always"
	}

	return "prompt"
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *StopPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "prompt":
		*p = StopPrompt
	case "never", "no", "false":
		*p = StopNever
	case "always", "yes", "true":
		*p = StopAlways
	default:
		return fmt.Errorf("unknown stop policy: %s", text)
	}

	return nil
}

// ParseStopPolicy parses never, always or prompt.
func ParseStopPolicy(s string) (StopPolicy, error) {
	var p StopPolicy
	err := p.UnmarshalText([]byte(s))

	return p, err
}
