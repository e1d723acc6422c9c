package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

const (
	AuthContextKey    = "user_id"
	ChannelContextKey = "channel_id"
	ChannelHeader     = "X-Channel-Id"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"

	tokenIssuer = "sourcing"
	clockSkew   = 30 * time.Second
)

var jwtSecret []byte

// Claims carry the contributor and, optionally, the channel they act for
type Claims struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id,omitempty"`
	jwt.RegisteredClaims
}

// SetJWTSecret sets the HMAC key used to sign and verify tokens
func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

func verificationKey(*jwt.Token) (interface{}, error) {
	if len(jwtSecret) == 0 {
		return nil, errors.New("no jwt secret configured")
	}
	return jwtSecret, nil
}

// GenerateToken signs an HS256 token for userID valid for expiresIn
func GenerateToken(userID, channelID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		ChannelID: channelID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ParseToken verifies signature, issuer and expiry and returns the claims
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, verificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		models.NewErrorResponse("api.auth", models.ResponseCodeClientError, ErrCodeUnauthorized, msg))
}

// JWTAuth rejects requests without a valid bearer token. The X-Channel-Id
// header wins over the channel claim.
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "Authorization header required")
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			unauthorized(c, "Invalid authorization format")
			return
		}

		claims, err := ParseToken(token)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		channel := c.GetHeader(ChannelHeader)
		if channel == "" {
			channel = claims.ChannelID
		}
		c.Set(AuthContextKey, claims.UserID)
		c.Set(ChannelContextKey, channel)
		c.Next()
	}
}

// GetUserID returns the authenticated user, if any
func GetUserID(c *gin.Context) (string, bool) {
	id := c.GetString(AuthContextKey)
	return id, id != ""
}
