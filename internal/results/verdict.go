package results

import (
	"errors"
	"fmt"
	"strconv"
)

// Verdict is the four-level outcome of checking one property under one model.
type Verdict int

const (
	FalseDefinite Verdict = iota // attack found, state space complete
	FalseBounded                 // attack found within bounds
	TrueBounded                  // no attack within bounds
	TrueDefinite                 // verified
)

// ErrInvalidVerdict is returned for ranks outside 0..3.
var ErrInvalidVerdict = errors.New("invalid verdict")

// Valid reports whether v is one of the four ranks.
func (v Verdict) Valid() bool { return v >= FalseDefinite && v <= TrueDefinite }

// Acceptable collapses the rank to a boolean: no attack was found.
func (v Verdict) Acceptable() bool { return v >= TrueBounded }

// String returns a short label for the rank.
func (v Verdict) String() string {
	switch v {
	case FalseDefinite:
		return "false"
	case FalseBounded:
		return "false-bounded"
	case TrueBounded:
		return "true-bounded"
	case TrueDefinite:
		return "true"
	default:
		return "invalid(" + strconv.Itoa(int(v)) + ")"
	}
}

// ParseVerdict parses the decimal rank used in the cache log.
func ParseVerdict(s string) (Verdict, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVerdict, s)
	}
	v := Verdict(n)
	if !v.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidVerdict, n)
	}
	return v, nil
}
