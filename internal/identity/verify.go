// Package identity provides caller authentication: personal-sign signature
// recovery for API callers and HMAC signing for outbound oracle webhooks.
package identity

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// RecoverSigner recovers the account that produced an Ethereum personal-sign
// signature over message. The signature is the 65-byte r||s||v form, hex
// encoded with optional 0x prefix; v may be 0/1 or the legacy 27/28.
func RecoverSigner(message []byte, signature string) (domain.AccountID, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("identity: decode signature: %w", domain.ErrInvalidSignature)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("identity: signature length %d: %w", len(sig), domain.ErrInvalidSignature)
	}

	// Normalise the recovery id.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return "", fmt.Errorf("identity: recovery id %d: %w", sig[64], domain.ErrInvalidSignature)
	}

	pub, err := ethcrypto.SigToPub(personalHash(message), sig)
	if err != nil {
		return "", fmt.Errorf("identity: recover public key: %w", domain.ErrInvalidSignature)
	}

	addr := ethcrypto.PubkeyToAddress(*pub)
	return domain.AccountID(strings.ToLower(addr.Hex())), nil
}

// personalHash computes the EIP-191 personal-sign digest of message.
func personalHash(message []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return ethcrypto.Keccak256([]byte(prefix), message)
}

// Sign produces a personal-sign signature over message with the given
// hex-encoded private key. Used by the CLI and tests to author requests.
func Sign(message []byte, privateKeyHex string) (string, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("identity: parse private key: %w", err)
	}
	sig, err := ethcrypto.Sign(personalHash(message), key)
	if err != nil {
		return "", fmt.Errorf("identity: sign: %w", err)
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// AddressOf derives the account address for a hex-encoded private key.
func AddressOf(privateKeyHex string) (domain.AccountID, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("identity: parse private key: %w", err)
	}
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)
	return domain.AccountID(strings.ToLower(addr.Hex())), nil
}
