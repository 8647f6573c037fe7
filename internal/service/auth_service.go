package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pariline/oraclemarket/internal/config"
	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/oracle"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ──────────────────────────────────────────────────────────────────────────────

// ChallengeRequest asks for a login challenge for one address.
type ChallengeRequest struct {
	Address string `json:"address" binding:"required"`
}

// ChallengeResponse carries the message the wallet must personal_sign.
type ChallengeResponse struct {
	Message   string    `json:"message"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginRequest exchanges a signed challenge for a session token.
type LoginRequest struct {
	Address   string `json:"address"   binding:"required"`
	Nonce     string `json:"nonce"     binding:"required"`
	Signature string `json:"signature" binding:"required"` // 0x-prefixed hex
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Address     string    `json:"address"`
	Role        string    `json:"role"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Roles carried in the session token.
const (
	RoleStaker = "staker"
	RoleAdmin  = "admin"
)

// AppClaims extends jwt.RegisteredClaims with the session role.  Subject is
// the lowercase 0x-hex address.
type AppClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthService
// ──────────────────────────────────────────────────────────────────────────────

// AuthService implements wallet-native login: the server issues a one-time
// challenge, the wallet signs it with personal_sign, and a valid signature
// proves control of the address.  No accounts, no passwords — the address
// is the identity.
type AuthService struct {
	cfg *config.Config

	mu         sync.Mutex
	challenges map[string]challenge // nonce → challenge
}

type challenge struct {
	address   common.Address
	message   string
	expiresAt time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		cfg:        cfg,
		challenges: make(map[string]challenge),
	}
}

// Challenge issues a fresh login challenge for the address.  The nonce is
// single-use and expires after the configured TTL.
func (s *AuthService) Challenge(req ChallengeRequest) (*ChallengeResponse, error) {
	if !common.IsHexAddress(req.Address) {
		return nil, domain.ErrChallengeInvalid
	}
	addr := common.HexToAddress(req.Address)

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("auth_service.Challenge: nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.Oracle.ChallengeTTL)
	message := fmt.Sprintf(
		"oraclemarket wants you to sign in\naddress: %s\nnonce: %s\nissued at: %s",
		strings.ToLower(addr.Hex()), nonce, now.Format(time.RFC3339),
	)

	s.mu.Lock()
	s.pruneLocked(now)
	s.challenges[nonce] = challenge{address: addr, message: message, expiresAt: expiresAt}
	s.mu.Unlock()

	return &ChallengeResponse{Message: message, Nonce: nonce, ExpiresAt: expiresAt}, nil
}

// Login verifies the signed challenge and issues a session token.  The
// challenge is consumed on the attempt, successful or not, so a captured
// signature cannot be replayed.
func (s *AuthService) Login(req LoginRequest) (*LoginResponse, error) {
	if !common.IsHexAddress(req.Address) {
		return nil, domain.ErrChallengeInvalid
	}
	addr := common.HexToAddress(req.Address)

	now := time.Now().UTC()
	s.mu.Lock()
	ch, ok := s.challenges[req.Nonce]
	delete(s.challenges, req.Nonce)
	s.mu.Unlock()

	if !ok || now.After(ch.expiresAt) || ch.address != addr {
		return nil, domain.ErrChallengeInvalid
	}
	if !verifyPersonalSign(ch.message, req.Signature, addr) {
		return nil, domain.ErrChallengeInvalid
	}

	role := RoleStaker
	if s.cfg.Oracle.IsAdmin(addr) {
		role = RoleAdmin
	}

	expiresAt := now.Add(s.cfg.JWT.AccessTTL)
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(addr.Hex()),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("auth_service.Login: sign token: %w", err)
	}

	return &LoginResponse{
		Address:     strings.ToLower(addr.Hex()),
		Role:        role,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// ParseAccessToken validates the token signature, algorithm and expiry.
// Exported for use by the JWT middleware and the WS hub.
func (s *AuthService) ParseAccessToken(tokenString string) (*AppClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, domain.ErrTokenInvalid
	}
	claims, ok := tok.Claims.(*AppClaims)
	if !ok || !common.IsHexAddress(claims.Subject) {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// pruneLocked drops expired challenges.  Caller holds s.mu.
func (s *AuthService) pruneLocked(now time.Time) {
	for nonce, ch := range s.challenges {
		if now.After(ch.expiresAt) {
			delete(s.challenges, nonce)
		}
	}
}

// verifyPersonalSign checks an EIP-191 personal_sign signature over message
// against the expected address.  Fails closed on any malformed input.
func verifyPersonalSign(message, sigHex string, expected common.Address) bool {
	sig, err := oracle.DecodeSignature(sigHex)
	if err != nil {
		return false
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return false
	}

	digest := ethcrypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))),
		[]byte(message),
	)
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}
	return ethcrypto.PubkeyToAddress(*pub) == expected
}
