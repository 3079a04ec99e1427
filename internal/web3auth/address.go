package web3auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

// PublicKeyToAddress derives the EIP-55 checksummed Ethereum address of a
// hex encoded secp256k1 public key, compressed (33 bytes) or uncompressed (65 bytes).
func PublicKeyToAddress(publicKeyHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(publicKeyHex), "0x"))
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	uncompressed := pub.SerializeUncompressed()
	digest := keccak256(uncompressed[1:])
	return ChecksumAddress(digest[12:]), nil
}

// ChecksumAddress renders a 20 byte address with EIP-55 mixed-case checksum.
func ChecksumAddress(addr []byte) string {
	lower := hex.EncodeToString(addr)
	hash := keccak256([]byte(lower))

	out := make([]byte, len(lower))
	for i := range len(lower) {
		c := lower[i]
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if c >= 'a' && nibble&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
