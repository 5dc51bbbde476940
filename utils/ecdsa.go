package utils

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RestoreSignerAddress recovers the Ethereum address that produced sig over
// the personal-message hash of data. Accepts both 0/1 and 27/28 recovery ids.
// The caller's sig slice is left untouched.
func RestoreSignerAddress(data, sig []byte) (common.Address, error) {
	if len(sig) >= 65 && sig[64] >= 27 {
		normalized := make([]byte, len(sig))
		copy(normalized, sig)
		normalized[64] -= 27
		sig = normalized
	}
	pk, err := crypto.SigToPub(accounts.TextHash(data), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("can't recover ecdsa signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pk), nil
}

// SignData is the inverse of RestoreSignerAddress: it signs the
// personal-message hash of data with the given key.
func SignData(key *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(data), key)
	if err != nil {
		return nil, fmt.Errorf("can't sign data: %w", err)
	}
	return sig, nil
}

// VerifySigner checks that sig over data recovers to the expected address.
func VerifySigner(expected common.Address, data, sig []byte) error {
	signer, err := RestoreSignerAddress(data, sig)
	if err != nil {
		return err
	}
	if signer != expected {
		return fmt.Errorf("signature produced by %s, expected %s", signer, expected)
	}
	return nil
}
