package solve

import (
	"fmt"
	"strings"
)

// Penalty is the penalty flag recorded against a solve.
type Penalty int

const (
	None Penalty = iota
	PlusTwo
	DNF
)

func (p Penalty) String() string {
	switch p {
	case None:
		return "none"
	case PlusTwo:
		return "+2"
	case DNF:
		return "dnf"
	default:
		return fmt.Sprintf("penalty(%d)", int(p))
	}
}

// ParsePenalty accepts the spellings used on the command line and in stored data.
func ParsePenalty(s string) (Penalty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ok", "none":
		return None, nil
	case "+2", "plus2", "plustwo":
		return PlusTwo, nil
	case "dnf":
		return DNF, nil
	default:
		return None, fmt.Errorf("unknown penalty %q (valid: none, +2, dnf)", s)
	}
}

func (p Penalty) MarshalText() ([]byte, error) {
	if p < None || p > DNF {
		return nil, fmt.Errorf("invalid penalty %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Penalty) UnmarshalText(text []byte) error {
	parsed, err := ParsePenalty(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
