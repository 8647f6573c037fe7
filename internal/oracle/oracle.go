// Package oracle implements the trust boundary of market resolution: a
// secp256k1/Keccak signature scheme binding the oracle's attestation to
// exactly one (market, outcome) pair.
//
// The signed payload is
//
//	keccak256(uint256(marketID) || uint8(outcome))
//
// wrapped in the EIP-191 personal-sign prefix.  A signature produced for one
// market cannot be replayed against another, nor reused for the other
// outcome of the same market.
package oracle

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/pariline/oraclemarket/internal/domain"
)

// signatureLength is r (32) || s (32) || v (1).
const signatureLength = 65

// AttestationDigest computes the EIP-191 digest the oracle signs for a
// (market, outcome) pair.  Deterministic: same inputs, same digest.
func AttestationDigest(marketID int64, outcome domain.Outcome) []byte {
	payload := ethcrypto.Keccak256(
		common.LeftPadBytes(big.NewInt(marketID).Bytes(), 32),
		[]byte{byte(outcome)},
	)
	// "\x19Ethereum Signed Message:\n32" prefix, as produced by
	// eth_sign / personal_sign on the 32-byte payload hash.
	return ethcrypto.Keccak256(
		[]byte("\x19Ethereum Signed Message:\n32"),
		payload,
	)
}

// ──────────────────────────────────────────────────────────────────────────────
// Verifier
// ──────────────────────────────────────────────────────────────────────────────

// Verifier checks resolution attestations against the registered oracle
// address.  The address is fixed configuration; there is no runtime rotation.
type Verifier struct {
	signer common.Address
}

// NewVerifier creates a Verifier for the given oracle address.
func NewVerifier(signer common.Address) *Verifier {
	return &Verifier{signer: signer}
}

// Signer returns the oracle address this verifier accepts.
func (v *Verifier) Signer() common.Address {
	return v.signer
}

// Verify reports whether sig is a valid oracle attestation for
// (marketID, outcome).  It fails closed: malformed input, an unrecoverable
// public key, or a signer mismatch all return false — never an error or a
// panic — so the resolution guard uniformly rejects on false.
func (v *Verifier) Verify(marketID int64, outcome domain.Outcome, sig []byte) bool {
	if len(sig) != signatureLength || !outcome.IsValid() {
		return false
	}

	// Accept both the raw {0,1} recovery id and the on-chain {27,28} form.
	normalized := make([]byte, signatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return false
	}

	pub, err := ethcrypto.SigToPub(AttestationDigest(marketID, outcome), normalized)
	if err != nil {
		return false
	}
	return ethcrypto.PubkeyToAddress(*pub) == v.signer
}

// VerifyHex is Verify for a 0x-prefixed hex signature string, the form the
// resolution endpoint receives.
func (v *Verifier) VerifyHex(marketID int64, outcome domain.Outcome, sigHex string) bool {
	sig, err := DecodeSignature(sigHex)
	if err != nil {
		return false
	}
	return v.Verify(marketID, outcome, sig)
}

// DecodeSignature parses a 0x-prefixed hex signature.
func DecodeSignature(sigHex string) ([]byte, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(sigHex), "0x")
	sig, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("oracle: decode signature: %w", err)
	}
	if len(sig) != signatureLength {
		return nil, fmt.Errorf("oracle: signature must be %d bytes, got %d", signatureLength, len(sig))
	}
	return sig, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Attestor — the signing side, used by oraclectl and tests
// ──────────────────────────────────────────────────────────────────────────────

// Attestor signs (market, outcome) attestations with the oracle's private
// key.  The server never holds this key; it lives with the oracle operator.
type Attestor struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewAttestor creates an Attestor from a hex-encoded secp256k1 private key.
func NewAttestor(privateKeyHex string) (*Attestor, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("oracle: invalid private key: %w", err)
	}
	return &Attestor{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the oracle address derived from the private key.
func (a *Attestor) Address() common.Address {
	return a.address
}

// Sign produces a 65-byte r || s || v attestation with v in {27,28},
// matching what wallet tooling emits.
func (a *Attestor) Sign(marketID int64, outcome domain.Outcome) ([]byte, error) {
	if !outcome.IsValid() {
		return nil, domain.ErrInvalidOutcome
	}
	sig, err := ethcrypto.Sign(AttestationDigest(marketID, outcome), a.privateKey)
	if err != nil {
		return nil, fmt.Errorf("oracle: sign attestation: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// SignHex is Sign returning a 0x-prefixed hex string for pasting into the
// resolution endpoint.
func (a *Attestor) SignHex(marketID int64, outcome domain.Outcome) (string, error) {
	sig, err := a.Sign(marketID, outcome)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(sig), nil
}
