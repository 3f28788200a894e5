package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/utils"
)

// UserSession is the authenticated user carried in the JWT and the request context.
type UserSession struct {
	ID    string             `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
	Role  constants.UserRole `json:"role"`
}

// IsAdmin reports whether the user may manage users and automations.
func (u UserSession) IsAdmin() bool {
	return u.Role == constants.UserRoleAdmin
}

// ToMap exposes the session to automation conditions.
func (u UserSession) ToMap() map[string]any {
	return map[string]any{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  string(u.Role),
	}
}

// Claims represents JWT claims
type Claims struct {
	User UserSession `json:"user"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies session tokens with an HMAC secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

const defaultTokenTTL = 24 * time.Hour

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// TTL returns how long issued tokens stay valid.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// GenerateToken creates a JWT token for a user session. The returned jti is
// what the session store keys on.
func (m *TokenManager) GenerateToken(session UserSession) (token string, jti string, err error) {
	now := time.Now()
	jti = utils.GenerateID()

	claims := &Claims{
		User: session,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	return token, jti, err
}

// ValidateToken validates and parses a JWT token
func (m *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// DecodeToken decodes a token without validation (for extracting JTI on logout)
func DecodeToken(tokenString string) (*Claims, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}
