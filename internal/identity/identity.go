// Package identity verifies who is on the other end of every connection and
// request. The chat core consumes the result as an opaque verified identity
// plus role claim; account management itself lives outside this service.
package identity

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"marketchat/backend/internal/models"
)

var ErrUnauthenticated = errors.New("unverifiable identity")

// Identity is the verified result attached to a connection or request.
type Identity struct {
	UserID      string
	DisplayName string
	Role        string
}

// Manager issues and verifies HS256 tokens. Revoked tokens are held in a
// Redis blacklist until they would have expired anyway.
type Manager struct {
	secret []byte
	ttl    time.Duration
	redis  *redis.Client
	ctx    context.Context
}

func NewManager(secret string, ttl time.Duration, rdb *redis.Client) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		redis:  rdb,
		ctx:    context.Background(),
	}
}

// Issue creates a signed token for the user.
func (m *Manager) Issue(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"name": user.DisplayName,
		"role": user.Role,
		"exp":  time.Now().Add(m.ttl).Unix(),
		"iss":  "marketchat-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks the token's signature, expiry and blacklist status, and
// returns the identity it carries.
func (m *Manager) Verify(tokenString string) (*Identity, error) {
	if m.redis != nil {
		exists, err := m.redis.Exists(m.ctx, "blacklist:"+tokenString).Result()
		if err == nil && exists > 0 {
			return nil, ErrUnauthenticated
		}
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthenticated
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrUnauthenticated
	}
	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleUser
	}

	return &Identity{UserID: sub, DisplayName: name, Role: role}, nil
}

// Blacklist revokes a token until its natural expiry.
func (m *Manager) Blacklist(tokenString string) error {
	if m.redis == nil {
		return nil
	}
	return m.redis.Set(m.ctx, "blacklist:"+tokenString, "1", m.ttl).Err()
}
