// Package identifier normalizes and validates machine-identifying values.
// Its normalizers are the single point of truth for format validation: the
// CLI, the orchestrator, and the tests all go through them.
package identifier

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidFormat reports a value that cannot be reduced to the canonical
// form of its identifier class.
var ErrInvalidFormat = errors.New("invalid identifier format")

const hexDigits = "0123456789ABCDEF"

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(hexDigits, r) {
			return false
		}
	}
	return true
}

// stripSeparators removes the separators the platforms disagree on.
func stripSeparators(raw string) string {
	replacer := strings.NewReplacer(":", "", "-", "", ".", "", " ", "", "\t", "")
	return replacer.Replace(strings.TrimSpace(raw))
}

// NormalizeMAC reduces any mixture of ':', '-', '.' or bare hex to the
// canonical form: 6 uppercase colon-separated octets. It fails with
// ErrInvalidFormat unless the input reduces to exactly 12 hex digits.
func NormalizeMAC(raw string) (string, error) {
	hex := strings.ToUpper(stripSeparators(raw))
	if len(hex) != 12 || !isHex(hex) {
		return "", fmt.Errorf("%w: %q is not a 12-hex-digit MAC address", ErrInvalidFormat, raw)
	}
	octets := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		octets = append(octets, hex[i:i+2])
	}
	return strings.Join(octets, ":"), nil
}

// NormalizeVolumeSerial reduces a volume serial such as "ABCD-1234" to its
// canonical 8 uppercase hex digits.
func NormalizeVolumeSerial(raw string) (string, error) {
	hex := strings.ToUpper(stripSeparators(raw))
	if len(hex) != 8 || !isHex(hex) {
		return "", fmt.Errorf("%w: %q is not an 8-hex-digit volume serial", ErrInvalidFormat, raw)
	}
	return hex, nil
}

// NormalizeGUID validates a machine GUID and returns it in the lowercase
// hyphenated form Windows stores under MachineGuid.
func NormalizeGUID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a GUID: %v", ErrInvalidFormat, raw, err)
	}
	return id.String(), nil
}

// RandomGUID returns a fresh UUIDv4 in canonical form.
func RandomGUID() string {
	return uuid.NewString()
}

// RandomMAC generates a random unicast, locally administered MAC address.
// vendorPrefix, when given, supplies the first octets ("00:11:22" or
// "001122"); the remainder is filled randomly.
func RandomMAC(vendorPrefix string) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// Locally administered, unicast.
	buf[0] = (buf[0] | 0x02) &^ 0x01

	hex := fmt.Sprintf("%02X%02X%02X%02X%02X%02X", buf[0], buf[1], buf[2], buf[3], buf[4], buf[5])
	if vendorPrefix != "" {
		prefix := strings.ToUpper(stripSeparators(vendorPrefix))
		if len(prefix) == 0 || len(prefix) > 12 || len(prefix)%2 != 0 || !isHex(prefix) {
			return "", fmt.Errorf("%w: %q is not a valid vendor prefix", ErrInvalidFormat, vendorPrefix)
		}
		hex = prefix + hex[len(prefix):]
	}
	return NormalizeMAC(hex)
}

// EqualFold compares two identifier strings ignoring case and separators, the
// comparison the orchestrator uses for post-mutation verification.
func EqualFold(a, b string) bool {
	return strings.EqualFold(stripSeparators(a), stripSeparators(b))
}
