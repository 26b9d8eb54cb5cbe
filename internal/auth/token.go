package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/blogflow/internal/model"
)

// トークン種別。アクセストークンをリフレッシュに使う取り違えを防ぐ。
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken はローカルトークンの署名・期限・種別いずれかが不正であることを表す。
var ErrInvalidToken = errors.New("invalid token")

// LocalClaims はローカル発行トークンのクレーム。
type LocalClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair はログイン・リフレッシュ時に返すトークンの組。
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// TokenIssuer はHS256でローカルトークンを発行・検証する。
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccess はユーザーのアクセストークンを発行する。
func (t *TokenIssuer) IssueAccess(user *model.User) (string, error) {
	now := t.now()
	claims := LocalClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		Type:   tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return t.sign(claims)
}

// IssueRefresh はリフレッシュトークンを発行し、トークン・jti・有効期限を返す。
func (t *TokenIssuer) IssueRefresh(userID string) (string, string, time.Time, error) {
	now := t.now()
	jti := uuid.NewString()
	expiresAt := now.Add(t.refreshTTL)
	claims := LocalClaims{
		UserID: userID,
		Type:   tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token, err := t.sign(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// AccessTTL はアクセストークンの有効期間を返す。
func (t *TokenIssuer) AccessTTL() time.Duration {
	return t.accessTTL
}

// ParseAccess はアクセストークンを検証してクレームを返す。
func (t *TokenIssuer) ParseAccess(token string) (*LocalClaims, error) {
	return t.parse(token, tokenTypeAccess)
}

// ParseRefresh はリフレッシュトークンを検証してクレームを返す。
func (t *TokenIssuer) ParseRefresh(token string) (*LocalClaims, error) {
	claims, err := t.parse(token, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenIssuer) sign(claims LocalClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(tokenString, wantType string) (*LocalClaims, error) {
	if len(t.secret) == 0 || tokenString == "" {
		return nil, ErrInvalidToken
	}
	claims := &LocalClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != wantType || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// refreshSessionID はjtiからrefresh_sessionsの主キーを導出する。
// トークン自体が漏れてもDBの値からは復元できない。
func refreshSessionID(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(sum[:])
}
