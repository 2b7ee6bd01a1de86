package auth

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	domainerrors "github.com/listenupapp/labelsync/internal/errors"
	"github.com/listenupapp/labelsync/internal/id"
)

const (
	tokenIssuer   = "labelsync-server"
	tokenAudience = "labelsync-extension"
)

// TokenService issues and verifies access tokens.
type TokenService struct {
	now            func() time.Time
	key            paseto.V4SymmetricKey
	accessDuration time.Duration
}

// NewTokenService creates a token service from a hex-encoded key.
func NewTokenService(keyHex string, accessDuration time.Duration) (*TokenService, error) {
	if err := checkKeyHex(keyHex); err != nil {
		return nil, err
	}
	raw, _ := hex.DecodeString(keyHex)

	key, err := paseto.V4SymmetricKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("create PASETO key: %w", err)
	}
	return &TokenService{key: key, accessDuration: accessDuration, now: time.Now}, nil
}

// AccessTokenDuration returns the configured access token lifetime.
func (s *TokenService) AccessTokenDuration() time.Duration {
	return s.accessDuration
}

// IssueAccessToken creates an encrypted v4.local token for sub and returns it
// with its expiry.
func (s *TokenService) IssueAccessToken(sub Subject) (string, time.Time, error) {
	if sub.UserID == "" {
		return "", time.Time{}, domainerrors.Validation("user id is required")
	}
	now := s.now()
	exp := now.Add(s.accessDuration)

	jti, err := id.Generate("tok")
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token id: %w", err)
	}

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetSubject(sub.UserID)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(exp)
	token.SetJti(jti)
	token.SetString("user_id", sub.UserID)
	if sub.Email != "" {
		token.SetString("email", sub.Email)
	}
	if sub.IsAdmin {
		if err := token.Set("is_admin", true); err != nil {
			return "", time.Time{}, fmt.Errorf("set admin claim: %w", err)
		}
	}

	return token.V4Encrypt(s.key, nil), exp, nil
}

// VerifyAccessToken decrypts a token and checks its audience, issuer and
// validity window. Failures are Unauthorized, or TokenExpired once exp has passed.
func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid access token").WithCause(err)
	}

	var claims AccessClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, domainerrors.Unauthorized("invalid access token").WithCause(err)
	}

	now := s.now()
	if !claims.Expiration.After(now) {
		return nil, domainerrors.ErrTokenExpired
	}
	if claims.NotBefore.After(now) {
		return nil, domainerrors.Unauthorized("access token is not valid yet")
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, domainerrors.Unauthorized("access token has no subject")
	}
	return &claims, nil
}
