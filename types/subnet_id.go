package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidSubnetID = errors.New("invalid subnet id")

// SubnetID identifies a subnet in the hierarchy: the chain id of the root
// network followed by the route of subnet actor addresses leading to it.
type SubnetID struct {
	Root  uint64
	Route []Address
}

// NewRootID returns the id of a root network
func NewRootID(root uint64) SubnetID {
	return SubnetID{Root: root}
}

// ParseSubnetID parses the /r<root>/<addr>/<addr> form of a subnet id
func ParseSubnetID(raw string) (SubnetID, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) < 2 || parts[0] != "" || !strings.HasPrefix(parts[1], "r") {
		return SubnetID{}, fmt.Errorf("%w: %q", ErrInvalidSubnetID, raw)
	}

	root, err := strconv.ParseUint(parts[1][1:], 10, 64)
	if err != nil {
		return SubnetID{}, fmt.Errorf("%w: %q: %w", ErrInvalidSubnetID, raw, err)
	}

	id := SubnetID{Root: root}

	for _, part := range parts[2:] {
		addr, err := ParseAddress(part)
		if err != nil {
			return SubnetID{}, fmt.Errorf("%w: %q: %w", ErrInvalidSubnetID, raw, err)
		}

		id.Route = append(id.Route, addr)
	}

	return id, nil
}

func (s SubnetID) String() string {
	var sb strings.Builder

	sb.WriteString("/r")
	sb.WriteString(strconv.FormatUint(s.Root, 10))

	for _, addr := range s.Route {
		sb.WriteByte('/')
		sb.WriteString(string(addr))
	}

	return sb.String()
}

// IsRoot reports whether the id names a root network
func (s SubnetID) IsRoot() bool {
	return len(s.Route) == 0
}

// Parent returns the id of the parent subnet. The root has no parent.
func (s SubnetID) Parent() (SubnetID, bool) {
	if s.IsRoot() {
		return SubnetID{}, false
	}

	route := make([]Address, len(s.Route)-1)
	copy(route, s.Route)

	return SubnetID{Root: s.Root, Route: route}, true
}

// SubnetActor returns the address of the subnet actor deployed in the parent.
// It is empty for the root.
func (s SubnetID) SubnetActor() Address {
	if s.IsRoot() {
		return ""
	}

	return s.Route[len(s.Route)-1]
}

func (s SubnetID) Equal(other SubnetID) bool {
	if s.Root != other.Root || len(s.Route) != len(other.Route) {
		return false
	}

	for i := range s.Route {
		if s.Route[i] != other.Route[i] {
			return false
		}
	}

	return true
}

func (s SubnetID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SubnetID) UnmarshalText(text []byte) error {
	id, err := ParseSubnetID(string(text))
	if err != nil {
		return err
	}

	*s = id

	return nil
}
