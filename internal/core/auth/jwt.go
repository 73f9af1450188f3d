package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClaims is the identity carried by an access token. Core operations
// always take identity from validated claims, never from ambient state.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
}

type JWTService struct {
	secretKey           string
	accessTokenDuration time.Duration
	downloadTokenTTL    time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey string, downloadTokenTTL time.Duration) *JWTService {
	return &JWTService{
		secretKey:           secretKey,
		accessTokenDuration: 15 * time.Minute,
		downloadTokenTTL:    downloadTokenTTL,
	}
}

// GenerateAccessToken generates a new access token
func (s *JWTService) GenerateAccessToken(userID uuid.UUID, role string) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTokenDuration)

	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secretKey))
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, int64(s.accessTokenDuration.Seconds()), nil
}

// ValidateAccessToken validates an access token and returns claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}

	userIDStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id claim")
	}
	role, _ := claims["role"].(string)

	return &TokenClaims{UserID: userID, Role: role}, nil
}

// GenerateDownloadToken issues the capability token gating result downloads.
// The token is bound to one stored file name; results are never fetchable by
// path alone.
func (s *JWTService) GenerateDownloadToken(userID uuid.UUID, fileName string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"file":    fileName,
		"type":    "download",
		"exp":     now.Add(s.downloadTokenTTL).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign download token: %w", err)
	}
	return signed, nil
}

// ValidateDownloadToken checks that the token grants access to fileName.
func (s *JWTService) ValidateDownloadToken(tokenString, fileName string) (uuid.UUID, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return uuid.Nil, err
	}

	if tokenType, _ := claims["type"].(string); tokenType != "download" {
		return uuid.Nil, fmt.Errorf("not a download token")
	}
	if file, _ := claims["file"].(string); file != fileName {
		return uuid.Nil, fmt.Errorf("token does not match file")
	}

	userIDStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user_id claim")
	}
	return userID, nil
}

func (s *JWTService) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
