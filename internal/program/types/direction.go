package types

import (
	"fmt"
	"strings"
)

// Direction selects which reserve is the swap input.
type Direction uint8

const (
	AToB Direction = iota
	BToA
)

func (d Direction) String() string {
	switch d {
	case AToB:
		return "a_to_b"
	case BToA:
		return "b_to_a"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d is one of the two defined directions.
func (d Direction) Valid() bool {
	return d == AToB || d == BToA
}

// ParseDirection accepts "a_to_b"/"b_to_a" (also "A_TO_B", "atob", "btoa").
func ParseDirection(s string) (Direction, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "") {
	case "atob":
		return AToB, nil
	case "btoa":
		return BToA, nil
	default:
		return 0, ErrInvalidInstruction.Wrapf("unknown swap direction %q", s)
	}
}
