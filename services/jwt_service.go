package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/Abin2112/Greencycle-sub000/config"

	"github.com/golang-jwt/jwt/v4"
)

// InterfaceJWTService defines the JWT service interface
type InterfaceJWTService interface {
	GenerateToken(accountID uint, role string, organizationID *uint) (string, error)
	ValidateToken(tokenString string) (*jwt.Token, error)
}

// JWTService 提供JWT相关服务
type JWTService struct {
	secretKey string
	issuer    string
}

// JWTClaims 定义JWT令牌的声明结构
type JWTClaims struct {
	AccountID      uint   `json:"account_id"`
	Role           string `json:"role"`
	OrganizationID *uint  `json:"organization_id,omitempty"` // 机构账户对应的机构ID
	jwt.RegisteredClaims
}

// NewJWTService 创建一个新的JWT服务
func NewJWTService(cfg *config.Config) InterfaceJWTService {
	return &JWTService{
		secretKey: cfg.JWTSecretKey,
		issuer:    "greencycle-service",
	}
}

// GenerateToken 生成JWT令牌
func (s *JWTService) GenerateToken(accountID uint, role string, organizationID *uint) (string, error) {
	// 令牌有效期为24小时
	expirationTime := time.Now().Add(24 * time.Hour)

	claims := &JWTClaims{
		AccountID:      accountID,
		Role:           role,
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secretKey))
}

// ValidateToken 验证JWT令牌
func (s *JWTService) ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	})
}

// ParseClaims 从已验证的令牌中还原声明结构
func ParseClaims(token *jwt.Token) (*JWTClaims, error) {
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	claims := &JWTClaims{}
	if id, ok := mapClaims["account_id"].(float64); ok {
		claims.AccountID = uint(id)
	}
	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = role
	}
	if orgID, ok := mapClaims["organization_id"].(float64); ok {
		id := uint(orgID)
		claims.OrganizationID = &id
	}

	if claims.AccountID == 0 || claims.Role == "" {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
