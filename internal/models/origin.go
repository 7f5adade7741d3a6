package models

import (
	"fmt"
	"strings"
)

// Origin identifies which ingestion channel produced an event
type Origin string

const (
	OriginPush Origin = "push"
	OriginPoll Origin = "poll"
)

// ParseOrigin parses a string into an Origin
// Returns an error if the origin is unknown
func ParseOrigin(name string) (Origin, error) {
	switch Origin(strings.ToLower(strings.TrimSpace(name))) {
	case OriginPush:
		return OriginPush, nil
	case OriginPoll:
		return OriginPoll, nil
	}
	return "", fmt.Errorf("unknown origin: %s", name)
}

func (o Origin) String() string {
	return string(o)
}
