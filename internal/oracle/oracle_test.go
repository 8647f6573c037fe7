package oracle_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/oracle"
)

// newAttestor generates a fresh oracle keypair for a test.
func newAttestor(t *testing.T) *oracle.Attestor {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	att, err := oracle.NewAttestor(hex.EncodeToString(ethcrypto.FromECDSA(key)))
	if err != nil {
		t.Fatalf("new attestor: %v", err)
	}
	return att
}

func TestVerify_RoundTrip(t *testing.T) {
	att := newAttestor(t)
	v := oracle.NewVerifier(att.Address())

	sig, err := att.Sign(42, domain.OutcomeA)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !v.Verify(42, domain.OutcomeA, sig) {
		t.Error("valid attestation should verify")
	}
}

// TestVerify_NoReplay pins the binding property: a signature for one
// (market, outcome) pair is useless for any other pair.
func TestVerify_NoReplay(t *testing.T) {
	att := newAttestor(t)
	v := oracle.NewVerifier(att.Address())

	sig, err := att.Sign(1, domain.OutcomeA)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if v.Verify(2, domain.OutcomeA, sig) {
		t.Error("signature replayed against another market should fail")
	}
	if v.Verify(1, domain.OutcomeB, sig) {
		t.Error("signature reused for the other outcome should fail")
	}
}

func TestVerify_WrongSigner(t *testing.T) {
	att := newAttestor(t)
	impostor := newAttestor(t)
	v := oracle.NewVerifier(att.Address())

	sig, err := impostor.Sign(7, domain.OutcomeB)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if v.Verify(7, domain.OutcomeB, sig) {
		t.Error("signature from a non-oracle key should fail")
	}
}

// TestVerify_FailsClosed feeds malformed input: every case must return
// false, never panic.
func TestVerify_FailsClosed(t *testing.T) {
	att := newAttestor(t)
	v := oracle.NewVerifier(att.Address())

	valid, err := att.Sign(3, domain.OutcomeA)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := map[string][]byte{
		"nil":             nil,
		"empty":           {},
		"truncated":       valid[:64],
		"oversized":       append(bytes.Clone(valid), 0x00),
		"garbage":         bytes.Repeat([]byte{0xff}, 65),
		"bad recovery id": append(bytes.Clone(valid[:64]), 9),
	}
	for name, sig := range cases {
		if v.Verify(3, domain.OutcomeA, sig) {
			t.Errorf("%s signature should not verify", name)
		}
	}
	if v.Verify(3, domain.Outcome(2), valid) {
		t.Error("invalid outcome value should not verify")
	}
}

// TestVerify_RecoveryIDForms accepts both v in {27,28} (wallet tooling) and
// the raw {0,1} form.
func TestVerify_RecoveryIDForms(t *testing.T) {
	att := newAttestor(t)
	v := oracle.NewVerifier(att.Address())

	sig, err := att.Sign(9, domain.OutcomeB) // v in {27,28}
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !v.Verify(9, domain.OutcomeB, sig) {
		t.Error("v in {27,28} should verify")
	}

	raw := bytes.Clone(sig)
	raw[64] -= 27
	if !v.Verify(9, domain.OutcomeB, raw) {
		t.Error("v in {0,1} should verify")
	}
}

func TestVerifyHex(t *testing.T) {
	att := newAttestor(t)
	v := oracle.NewVerifier(att.Address())

	sigHex, err := att.SignHex(11, domain.OutcomeA)
	if err != nil {
		t.Fatalf("sign hex: %v", err)
	}
	if !v.VerifyHex(11, domain.OutcomeA, sigHex) {
		t.Error("hex attestation should verify")
	}
	if v.VerifyHex(11, domain.OutcomeA, "0xdeadbeef") {
		t.Error("short hex should not verify")
	}
	if v.VerifyHex(11, domain.OutcomeA, "not hex at all") {
		t.Error("non-hex input should not verify")
	}
}

func TestAttestationDigest_Deterministic(t *testing.T) {
	d1 := oracle.AttestationDigest(100, domain.OutcomeA)
	d2 := oracle.AttestationDigest(100, domain.OutcomeA)
	if !bytes.Equal(d1, d2) {
		t.Error("digest must be deterministic")
	}
	if bytes.Equal(d1, oracle.AttestationDigest(101, domain.OutcomeA)) {
		t.Error("digest must vary with market id")
	}
	if bytes.Equal(d1, oracle.AttestationDigest(100, domain.OutcomeB)) {
		t.Error("digest must vary with outcome")
	}
	if len(d1) != 32 {
		t.Errorf("digest length = %d, want 32", len(d1))
	}
}

func TestDecodeSignature(t *testing.T) {
	if _, err := oracle.DecodeSignature("0x" + "00"); err == nil {
		t.Error("short signature should error")
	}
	sig, err := oracle.DecodeSignature("0x" + string(bytes.Repeat([]byte("ab"), 65)))
	if err != nil || len(sig) != 65 {
		t.Errorf("decode = %d bytes, %v; want 65, nil", len(sig), err)
	}
}
