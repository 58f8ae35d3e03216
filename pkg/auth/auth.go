package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/arnavshah/secret-santa-api/pkg/database"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Token scopes
const (
	ScopeAdmin    = "admin"
	ScopeTracking = "tracking"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrWrongScope       = errors.New("token scope mismatch")
	ErrSessionMismatch  = errors.New("token is not valid for this session")
	ErrInvalidKeyFormat = errors.New("invalid key format")
	ErrInvalidSignature = errors.New("invalid signature")
)

// BcryptCost is the cost used for admin password hashes
var BcryptCost = 14

var jwtAlgorithm = jwt.SigningMethodHS256

// Claims represents the JWT claims
type Claims struct {
	Username  string `json:"username,omitempty"`
	SessionID string `json:"sid,omitempty"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies admin tokens, tracking tokens and API keys
type Authenticator struct {
	jwtSecret    []byte
	masterSecret []byte
}

// New creates an Authenticator from the JWT and API master secrets
func New(jwtSecret, masterSecret string) *Authenticator {
	return &Authenticator{jwtSecret: []byte(jwtSecret), masterSecret: []byte(masterSecret)}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (a *Authenticator) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *Authenticator) parse(tokenString, scope string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwtAlgorithm.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != scope {
		return nil, ErrWrongScope
	}
	return claims, nil
}

// CreateToken creates a new admin JWT token for a user
func (a *Authenticator) CreateToken(username string) (string, error) {
	return a.sign(&Claims{
		Username: username,
		Scope:    ScopeAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})
}

// VerifyToken verifies an admin JWT token
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	return a.parse(tokenString, ScopeAdmin)
}

// CreateTrackingToken issues the bearer token embedded in the links of one
// session. It authorizes visit writes and the session dashboard.
func (a *Authenticator) CreateTrackingToken(sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	return a.sign(&Claims{
		SessionID: sessionID,
		Scope:     ScopeTracking,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
}

// VerifyTrackingToken checks a tracking token against the session it claims
func (a *Authenticator) VerifyTrackingToken(tokenString, sessionID string) (*Claims, error) {
	claims, err := a.parse(tokenString, ScopeTracking)
	if err != nil {
		return nil, err
	}
	if sessionID == "" || !hmac.Equal([]byte(claims.SessionID), []byte(sessionID)) {
		return nil, ErrSessionMismatch
	}
	return claims, nil
}

// EnsureAdminExists creates the bootstrap admin when no admin exists yet
func EnsureAdminExists(db *gorm.DB, username, password string) error {
	var count int64
	if err := db.Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	user := database.MasterUser{
		Username:     username,
		PasswordHash: hash,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	slog.Info("Default admin user created", "username", username)
	return nil
}

// GenerateHMACKey creates a signed API key using HMAC-SHA256
func (a *Authenticator) GenerateHMACKey(userID string) string {
	h := hmac.New(sha256.New, a.masterSecret)
	h.Write([]byte(userID))
	signature := hex.EncodeToString(h.Sum(nil))
	return userID + "." + signature
}

// VerifyHMACKey validates an HMAC-signed API key and returns its user id
func (a *Authenticator) VerifyHMACKey(key string) (string, error) {
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return "", ErrInvalidKeyFormat
	}
	userID := key[:idx]
	providedSignature := key[idx+1:]

	h := hmac.New(sha256.New, a.masterSecret)
	h.Write([]byte(userID))
	expectedSignature := hex.EncodeToString(h.Sum(nil))

	// Use constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(providedSignature), []byte(expectedSignature)) {
		return "", ErrInvalidSignature
	}

	return userID, nil
}
