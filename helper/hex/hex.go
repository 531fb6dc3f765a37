package hex

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const prefix = "0x"

// EncodeToHex generates a hex string based on the byte representation, with the '0x' prefix
func EncodeToHex(b []byte) string {
	return prefix + hex.EncodeToString(b)
}

// DecodeHex converts a hex string, with or without the '0x' prefix, to a byte array
func DecodeHex(str string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(str, prefix))
}

// DecodeFixed decodes a hex string that must hold exactly len(out) bytes
func DecodeFixed(str string, out []byte) error {
	b, err := DecodeHex(str)
	if err != nil {
		return err
	}

	if len(b) != len(out) {
		return fmt.Errorf("expected %d bytes, got %d", len(out), len(b))
	}

	copy(out, b)

	return nil
}

// EncodeUint64 encodes a number as a hex quantity with 0x prefix
func EncodeUint64(i uint64) string {
	enc := make([]byte, 2, 18)
	copy(enc, prefix)

	return string(strconv.AppendUint(enc, i, 16))
}

// DecodeUint64 decodes a hex quantity with 0x prefix to uint64
func DecodeUint64(hexStr string) (uint64, error) {
	if !strings.HasPrefix(hexStr, prefix) {
		return 0, fmt.Errorf("hex quantity %q without 0x prefix", hexStr)
	}

	return strconv.ParseUint(hexStr[len(prefix):], 16, 64)
}
