package domain

import (
	"fmt"
	"strings"
)

// AccountID is a caller identity: a 0x-prefixed 20-byte hex address as
// recovered from the request signature. Comparison is case-insensitive.
type AccountID string

// ParseAccountID validates the textual form of an address. It does not
// verify the EIP-55 checksum; identities are normalized to lower case.
func ParseAccountID(s string) (AccountID, error) {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("domain: malformed account id %q", s)
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return "", fmt.Errorf("domain: malformed account id %q", s)
		}
	}
	return AccountID(strings.ToLower(s)), nil
}

// Equal compares two identities ignoring hex case.
func (a AccountID) Equal(b AccountID) bool {
	return strings.EqualFold(string(a), string(b))
}

// TrustedAgents is the process-wide trusted-identity record. Both agents are
// unset until the admin configures them; every dependent operation checks
// configured-ness before caller identity.
type TrustedAgents struct {
	MarketCreator  *AccountID `json:"market_creator,omitempty"`
	ResolverOracle *AccountID `json:"resolver_oracle,omitempty"`
}
