package feature

import (
	"fmt"
	"github.com/pkg/errors"
)

type Kind int

const (
	KindRoads Kind = iota
	KindJunctions
	KindStructures
)

func (k Kind) String() string {
	switch k {
	case KindRoads:
		return "roads"
	case KindJunctions:
		return "junctions"
	case KindStructures:
		return "structures"
	}
	return fmt.Sprintf("[!UNKNOWN Kind %d]", k)
}

func KindFromString(s string) (Kind, error) {
	switch s {
	case "roads":
		return KindRoads, nil
	case "junctions":
		return KindJunctions, nil
	case "structures":
		return KindStructures, nil
	}
	return KindRoads, errors.Errorf("Unknown feature kind '%s'", s)
}
