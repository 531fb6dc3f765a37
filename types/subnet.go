package types

import (
	"fmt"
	"strings"
)

// NetworkType is the execution environment of a subnet
type NetworkType string

const (
	// FVM subnets are driven through the Lotus IPC JSON-RPC API
	FVM NetworkType = "fvm"
	// FEVM subnets expose the gateway and subnet actors as solidity contracts
	FEVM NetworkType = "fevm"
)

func ParseNetworkType(raw string) (NetworkType, error) {
	switch nt := NetworkType(strings.ToLower(strings.TrimSpace(raw))); nt {
	case FVM, FEVM:
		return nt, nil
	case "":
		return FVM, nil
	default:
		return "", fmt.Errorf("unknown network type %q", raw)
	}
}

// Direction is the direction a checkpoint travels in the hierarchy
type Direction string

const (
	// BottomUp checkpoints are submitted by child validators to the parent
	BottomUp Direction = "bottom-up"
	// TopDown checkpoints are submitted by child validators to the child gateway
	TopDown Direction = "top-down"
)

// AllDirections lists every checkpoint direction in submission order
var AllDirections = []Direction{BottomUp, TopDown}

func ParseDirection(raw string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(raw))); d {
	case BottomUp, TopDown:
		return d, nil
	default:
		return "", fmt.Errorf("unknown checkpoint direction %q", raw)
	}
}

// Subnet is the immutable view of one configured subnet
type Subnet struct {
	Name         string
	ID           SubnetID
	NetworkType  NetworkType
	RPCAddr      string
	AuthToken    string
	GatewayAddr  Address
	Accounts     []Address
	KeystoreDir  string
	PasswordFile string
	Directions   []Direction
}

// HasAccounts reports whether the agent controls at least one account in the subnet
func (s *Subnet) HasAccounts() bool {
	return len(s.Accounts) > 0
}

// Manages reports whether the account is one of the local accounts of the subnet
func (s *Subnet) Manages(addr Address) bool {
	_, ok := s.LocalAccount(addr)

	return ok
}

// LocalAccount returns the configured form of a local account
func (s *Subnet) LocalAccount(addr Address) (Address, bool) {
	for _, acc := range s.Accounts {
		if acc.SameAccount(addr) {
			return acc, true
		}
	}

	return "", false
}

// Enabled reports whether checkpoints of the given direction are handled for the subnet.
// An empty direction list enables every direction.
func (s *Subnet) Enabled(dir Direction) bool {
	if len(s.Directions) == 0 {
		return true
	}

	for _, d := range s.Directions {
		if d == dir {
			return true
		}
	}

	return false
}

// SubnetPair is the unit of checkpoint management
type SubnetPair struct {
	Child  *Subnet
	Parent *Subnet
}

func (p SubnetPair) String() string {
	return fmt.Sprintf("%s->%s", p.Child.ID, p.Parent.ID)
}
