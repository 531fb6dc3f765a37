package types

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/builtin"
)

const (
	MainnetPrefix = address.MainnetPrefix
	TestnetPrefix = address.TestnetPrefix

	EthAddressLength = 20
)

var (
	// EthereumNamespace is the delegated address namespace of the Ethereum address manager
	EthereumNamespace = uint64(builtin.EthereumAddressManagerActorID)

	ErrInvalidAddress = errors.New("invalid address")

	// maskedIDPrefix marks an Ethereum address that wraps a Filecoin ID address
	maskedIDPrefix = [12]byte{0xff}
)

// Address is the textual form of an account or actor address. Filecoin
// addresses keep their network prefix, Ethereum addresses are lower-case 0x hex.
type Address string

// ParseAddress validates and normalizes an address string
func ParseAddress(raw string) (Address, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}

	if strings.HasPrefix(raw, "0x") {
		b, err := hex.DecodeString(raw[2:])
		if err != nil || len(b) != EthAddressLength {
			return "", fmt.Errorf("%w: %s", ErrInvalidAddress, raw)
		}

		return Address(raw), nil
	}

	if _, err := address.NewFromString(raw); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidAddress, raw, err)
	}

	return Address(raw), nil
}

// MustParseAddress is ParseAddress that panics on error. Used for constants and tests.
func MustParseAddress(raw string) Address {
	addr, err := ParseAddress(raw)
	if err != nil {
		panic(err)
	}

	return addr
}

// EthAddressFromBytes returns the 0x form of a 20 byte address
func EthAddressFromBytes(b [EthAddressLength]byte) Address {
	return Address("0x" + hex.EncodeToString(b[:]))
}

// FromFilecoin returns the text form of addr under the given network prefix.
// Delegated Ethereum addresses are returned in 0x form.
func FromFilecoin(prefix string, addr address.Address) Address {
	if eth, ok := ethSubAddress(addr); ok {
		return EthAddressFromBytes(eth)
	}

	// the checksum does not cover the network, only the leading character differs
	return Address(prefix + addr.String()[1:])
}

// NewDelegatedAddress wraps an Ethereum address into its f410 form
func NewDelegatedAddress(prefix string, eth [EthAddressLength]byte) Address {
	addr, err := address.NewDelegatedAddress(EthereumNamespace, eth[:])
	if err != nil {
		// a 20 byte sub address is always within bounds
		panic(err)
	}

	return Address(prefix + addr.String()[1:])
}

// NewAddressFromBytes builds an address from its Filecoin binary form.
// Delegated Ethereum addresses are returned in 0x form.
func NewAddressFromBytes(prefix string, b []byte) (Address, error) {
	addr, err := address.NewFromBytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %x: %w", ErrInvalidAddress, b, err)
	}

	return FromFilecoin(prefix, addr), nil
}

func (a Address) String() string {
	return string(a)
}

// Filecoin returns the decoded form of the address. 0x addresses are returned
// as their f410 delegated address.
func (a Address) Filecoin() (address.Address, error) {
	if a.IsEthereum() {
		eth, err := a.EthAddress()
		if err != nil {
			return address.Undef, err
		}

		return address.NewDelegatedAddress(EthereumNamespace, eth[:])
	}

	addr, err := address.NewFromString(string(a))
	if err != nil {
		return address.Undef, fmt.Errorf("%w: %s: %w", ErrInvalidAddress, a, err)
	}

	return addr, nil
}

// SameAccount reports whether both addresses name the same account. Addresses
// are compared on their binary form, so network prefixes are ignored and a 0x
// address matches its f410 form.
func (a Address) SameAccount(other Address) bool {
	if a == other {
		return true
	}

	ab, err := a.Bytes()
	if err != nil {
		return false
	}

	ob, err := other.Bytes()
	if err != nil {
		return false
	}

	return bytes.Equal(ab, ob)
}

// IsEthereum reports whether the address is in 0x form
func (a Address) IsEthereum() bool {
	return strings.HasPrefix(string(a), "0x")
}

// Protocol returns the Filecoin protocol of the address. 0x addresses are
// reported as delegated addresses.
func (a Address) Protocol() address.Protocol {
	if a.IsEthereum() {
		return address.Delegated
	}

	addr, err := a.Filecoin()
	if err != nil {
		return address.Unknown
	}

	return addr.Protocol()
}

// Bytes returns the Filecoin binary form of the address: protocol byte
// followed by the payload.
func (a Address) Bytes() ([]byte, error) {
	addr, err := a.Filecoin()
	if err != nil {
		return nil, err
	}

	return addr.Bytes(), nil
}

// Payload returns the address bytes without the protocol byte
func (a Address) Payload() ([]byte, error) {
	addr, err := a.Filecoin()
	if err != nil {
		return nil, err
	}

	return addr.Payload(), nil
}

// EthAddress returns the 20 byte Ethereum form of the address. ID addresses
// are returned in their masked form, f410 addresses unwrap to their sub address.
func (a Address) EthAddress() ([EthAddressLength]byte, error) {
	var out [EthAddressLength]byte

	if a.IsEthereum() {
		b, err := hex.DecodeString(string(a[2:]))
		if err != nil || len(b) != EthAddressLength {
			return out, fmt.Errorf("%w: %s", ErrInvalidAddress, a)
		}

		copy(out[:], b)

		return out, nil
	}

	addr, err := a.Filecoin()
	if err != nil {
		return out, err
	}

	if addr.Protocol() == address.ID {
		id, err := address.IDFromAddress(addr)
		if err != nil {
			return out, fmt.Errorf("%w: %s: %w", ErrInvalidAddress, a, err)
		}

		copy(out[:], maskedIDPrefix[:])
		binary.BigEndian.PutUint64(out[12:], id)

		return out, nil
	}

	eth, ok := ethSubAddress(addr)
	if !ok {
		return out, fmt.Errorf("%w: %s has no ethereum form", ErrInvalidAddress, a)
	}

	return eth, nil
}

// ethSubAddress unwraps a delegated address of the Ethereum address manager
func ethSubAddress(addr address.Address) ([EthAddressLength]byte, bool) {
	var out [EthAddressLength]byte

	if addr.Protocol() != address.Delegated {
		return out, false
	}

	payload := addr.Payload()

	ns, n := binary.Uvarint(payload)
	if n <= 0 || ns != EthereumNamespace || len(payload[n:]) != EthAddressLength {
		return out, false
	}

	copy(out[:], payload[n:])

	return out, true
}
