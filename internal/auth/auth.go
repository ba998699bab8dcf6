// Package auth implements the login gate: bcrypt credential checks
// against a statically configured user list and signed session tokens.
// The ledger engine never authenticates; it only receives the opaque
// owner identifier this package yields.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMissingToken       = errors.New("authorization token required")
)

// User is one configured account. Owner is the opaque identifier the
// engine scopes all data by; it equals the account email here.
type User struct {
	Email        string
	PasswordHash string
}

// Authenticator verifies credentials and issues session tokens.
type Authenticator struct {
	users      map[string]User
	secretKey  []byte
	sessionTTL time.Duration
}

// Claims are the session token claims.
type Claims struct {
	Owner string `json:"owner"`
	jwt.RegisteredClaims
}

// ParseUsers parses the LEDGER_USERS format: comma-separated
// email:bcrypt-hash pairs. Bcrypt hashes contain no commas or colons
// beyond the dollar-delimited prefix, so the split is unambiguous.
func ParseUsers(spec string) ([]User, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	var users []User
	for _, pair := range strings.Split(spec, ",") {
		email, hash, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || email == "" || hash == "" {
			return nil, fmt.Errorf("invalid user entry %q: expected email:bcrypt-hash", pair)
		}
		users = append(users, User{Email: email, PasswordHash: hash})
	}
	return users, nil
}

func NewAuthenticator(users []User, secretKey string, sessionTTL time.Duration) *Authenticator {
	byEmail := make(map[string]User, len(users))
	for _, u := range users {
		byEmail[u.Email] = u
	}
	return &Authenticator{
		users:      byEmail,
		secretKey:  []byte(secretKey),
		sessionTTL: sessionTTL,
	}
}

// Authenticate verifies email and password and returns the owner
// identifier. Failures are indistinguishable by design.
func (a *Authenticator) Authenticate(email, password string) (string, error) {
	u, ok := a.users[strings.TrimSpace(email)]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return u.Email, nil
}

// IssueToken creates a signed session token for the owner.
func (a *Authenticator) IssueToken(owner string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Owner: owner,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a session token and returns the owner it was
// issued for.
func (a *Authenticator) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secretKey, nil
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Owner == "" {
		return "", ErrInvalidToken
	}
	return claims.Owner, nil
}

// HashPassword produces a bcrypt hash for provisioning users.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
