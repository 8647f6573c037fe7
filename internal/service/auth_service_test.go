package service_test

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/pariline/oraclemarket/internal/config"
	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/service"
)

func buildAuthConfig(challengeTTL, accessTTL time.Duration) *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:    "test-secret",
			AccessTTL: accessTTL,
		},
		Oracle: config.OracleConfig{
			ChallengeTTL: challengeTTL,
		},
	}
}

// signChallenge signs the challenge message the way a wallet's personal_sign
// does: EIP-191 prefix over the message bytes.
func signChallenge(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	digest := ethcrypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))),
		[]byte(message),
	)
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("sign challenge: %v", err)
	}
	return "0x" + hex.EncodeToString(sig)
}

func TestAuth_ChallengeLoginRoundTrip(t *testing.T) {
	svc := service.NewAuthService(buildAuthConfig(time.Minute, time.Hour))

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	ch, err := svc.Challenge(service.ChallengeRequest{Address: addr.Hex()})
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if !strings.Contains(ch.Message, strings.ToLower(addr.Hex())) {
		t.Errorf("challenge message should bind the address, got %q", ch.Message)
	}

	resp, err := svc.Login(service.LoginRequest{
		Address:   addr.Hex(),
		Nonce:     ch.Nonce,
		Signature: signChallenge(t, key, ch.Message),
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Address != strings.ToLower(addr.Hex()) {
		t.Errorf("login address = %s, want %s", resp.Address, strings.ToLower(addr.Hex()))
	}
	if resp.Role != service.RoleStaker {
		t.Errorf("role = %s, want staker", resp.Role)
	}

	claims, err := svc.ParseAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != resp.Address {
		t.Errorf("token subject = %s, want %s", claims.Subject, resp.Address)
	}
}

func TestAuth_NonceIsSingleUse(t *testing.T) {
	svc := service.NewAuthService(buildAuthConfig(time.Minute, time.Hour))

	key, _ := ethcrypto.GenerateKey()
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	ch, err := svc.Challenge(service.ChallengeRequest{Address: addr.Hex()})
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	req := service.LoginRequest{
		Address:   addr.Hex(),
		Nonce:     ch.Nonce,
		Signature: signChallenge(t, key, ch.Message),
	}

	if _, err := svc.Login(req); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, err := svc.Login(req); !errors.Is(err, domain.ErrChallengeInvalid) {
		t.Errorf("replayed login err = %v, want ErrChallengeInvalid", err)
	}
}

func TestAuth_WrongKeyRejected(t *testing.T) {
	svc := service.NewAuthService(buildAuthConfig(time.Minute, time.Hour))

	key, _ := ethcrypto.GenerateKey()
	impostor, _ := ethcrypto.GenerateKey()
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	ch, err := svc.Challenge(service.ChallengeRequest{Address: addr.Hex()})
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	_, err = svc.Login(service.LoginRequest{
		Address:   addr.Hex(),
		Nonce:     ch.Nonce,
		Signature: signChallenge(t, impostor, ch.Message),
	})
	if !errors.Is(err, domain.ErrChallengeInvalid) {
		t.Errorf("login with impostor key err = %v, want ErrChallengeInvalid", err)
	}
}

func TestAuth_ExpiredChallengeRejected(t *testing.T) {
	// TTL in the past: the challenge is born expired.
	svc := service.NewAuthService(buildAuthConfig(-time.Second, time.Hour))

	key, _ := ethcrypto.GenerateKey()
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	ch, err := svc.Challenge(service.ChallengeRequest{Address: addr.Hex()})
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	_, err = svc.Login(service.LoginRequest{
		Address:   addr.Hex(),
		Nonce:     ch.Nonce,
		Signature: signChallenge(t, key, ch.Message),
	})
	if !errors.Is(err, domain.ErrChallengeInvalid) {
		t.Errorf("expired challenge err = %v, want ErrChallengeInvalid", err)
	}
}

func TestAuth_AdminRole(t *testing.T) {
	key, _ := ethcrypto.GenerateKey()
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	cfg := buildAuthConfig(time.Minute, time.Hour)
	cfg.Oracle.AdminAddresses = append(cfg.Oracle.AdminAddresses, addr)
	svc := service.NewAuthService(cfg)

	ch, err := svc.Challenge(service.ChallengeRequest{Address: addr.Hex()})
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	resp, err := svc.Login(service.LoginRequest{
		Address:   addr.Hex(),
		Nonce:     ch.Nonce,
		Signature: signChallenge(t, key, ch.Message),
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != service.RoleAdmin {
		t.Errorf("role = %s, want admin", resp.Role)
	}
}

func TestAuth_GarbageTokenRejected(t *testing.T) {
	svc := service.NewAuthService(buildAuthConfig(time.Minute, time.Hour))

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.ParseAccessToken(tok); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("ParseAccessToken(%q) err = %v, want ErrTokenInvalid", tok, err)
		}
	}
}
