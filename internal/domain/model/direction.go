package model

import (
	"fmt"
	"strings"
)

// Direction is the user's verdict on a presented item.
type Direction string

// Supported directions.
const (
	DirectionAccept    Direction = "accept"
	DirectionReject    Direction = "reject"
	DirectionSuperlike Direction = "superlike"
)

// legacyDirections maps the swipe-gesture vocabulary used by older clients.
var legacyDirections = map[string]Direction{
	"right": DirectionAccept,
	"left":  DirectionReject,
	"super": DirectionSuperlike,
}

// ParseDirection normalizes s into a Direction. Both the canonical values and
// the legacy right/left/super vocabulary are accepted, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch d := Direction(v); d {
	case DirectionAccept, DirectionReject, DirectionSuperlike:
		return d, nil
	}
	if d, ok := legacyDirections[v]; ok {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// IsPositive reports whether the direction makes the item a recommendation candidate.
func (d Direction) IsPositive() bool {
	return d == DirectionAccept || d == DirectionSuperlike
}

func (d Direction) String() string { return string(d) }
