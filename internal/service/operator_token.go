package service

import (
	"errors"
	"strings"
	"time"

	"github.com/teamledger/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid 访问令牌无效
var ErrTokenInvalid = errors.New("无效的 token")

// OperatorClaims 运营人员令牌声明，SiteID 为 0 表示可访问全部站点
type OperatorClaims struct {
	Operator string `json:"operator"`
	SiteID   uint   `json:"site_id"`
	jwt.RegisteredClaims
}

// CanAccessSite 判断令牌是否可操作指定站点
func (c *OperatorClaims) CanAccessSite(siteID uint) bool {
	if c == nil {
		return false
	}
	return c.SiteID == 0 || c.SiteID == siteID
}

// OperatorTokenService 运营人员访问令牌签发与校验
type OperatorTokenService struct {
	cfg config.JWTConfig
	now func() time.Time
}

// NewOperatorTokenService 创建令牌服务
func NewOperatorTokenService(cfg config.JWTConfig) *OperatorTokenService {
	return &OperatorTokenService{cfg: cfg, now: time.Now}
}

// Issue 签发令牌
func (s *OperatorTokenService) Issue(operator string, siteID uint) (string, time.Time, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" || s.cfg.SecretKey == "" {
		return "", time.Time{}, ErrInvalidInput
	}
	now := s.now()
	expiresAt := now.Add(s.cfg.ExpireDuration())
	claims := OperatorClaims{
		Operator: operator,
		SiteID:   siteID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse 校验令牌并返回声明
func (s *OperatorTokenService) Parse(tokenString string) (*OperatorClaims, error) {
	if s.cfg.SecretKey == "" {
		return nil, ErrTokenInvalid
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.cfg.Issuer))
	}
	claims := &OperatorClaims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Operator == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
