package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/blogflow/internal/model"
)

// userInfoPath は外部IdPの「トークンからユーザー取得」APIのパス。
const userInfoPath = "/auth/v1/user"

// defaultProviderTimeout は外部IdP API呼び出しのタイムアウト。
const defaultProviderTimeout = 5 * time.Second

// errProviderNotConfigured は設定がないため検証ステップを飛ばしたことを表す。
var errProviderNotConfigured = errors.New("provider not configured")

// providerMetadata は外部IdPが付与するuser_metadata / app_metadata。
type providerMetadata struct {
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

// toIdentity はメタデータから検証済み身元情報を組み立てる。
func (m providerMetadata) toIdentity(id, email string, source model.IdentitySource) *model.VerifiedIdentity {
	name := metadataString(m.UserMetadata, "name")
	if name == "" {
		name = metadataString(m.UserMetadata, "full_name")
	}
	return &model.VerifiedIdentity{
		ID:        id,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		RoleClaim: strings.ToUpper(metadataString(m.UserMetadata, "role")),
		Username:  metadataString(m.UserMetadata, "username"),
		Name:      name,
		Avatar:    metadataString(m.UserMetadata, "avatar_url"),
		Provider:  model.ParseAuthProvider(metadataString(m.AppMetadata, "provider")),
		Source:    source,
	}
}

func metadataString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// providerClaims は外部IdPが署名したHS256トークンのクレーム。
type providerClaims struct {
	Email string `json:"email"`
	providerMetadata
	jwt.RegisteredClaims
}

// ProviderTokenVerifier は外部IdPの共有シークレットでトークンを検証する。
type ProviderTokenVerifier struct {
	secret []byte
}

// NewProviderTokenVerifier はProviderTokenVerifierを生成する。
// secretが空の場合、Verifyは常に未設定エラーを返す。
func NewProviderTokenVerifier(secret string) *ProviderTokenVerifier {
	return &ProviderTokenVerifier{secret: []byte(secret)}
}

// Verify はトークンの署名と有効期限を検証し、身元情報を返す。
func (v *ProviderTokenVerifier) Verify(tokenString string) (*model.VerifiedIdentity, error) {
	if len(v.secret) == 0 {
		return nil, errProviderNotConfigured
	}

	claims := &providerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to verify provider token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("provider token has no subject")
	}

	return claims.providerMetadata.toIdentity(claims.Subject, claims.Email, model.SourceProviderJWT), nil
}

// ProviderClientConfig は外部IdP APIクライアントの設定。
type ProviderClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// ProviderClient は外部IdPのユーザー取得APIを呼び出す。
type ProviderClient struct {
	config ProviderClientConfig
}

// NewProviderClient はProviderClientを生成する。
func NewProviderClient(config ProviderClientConfig) *ProviderClient {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultProviderTimeout}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &ProviderClient{config: config}
}

// providerUser はユーザー取得APIのレスポンス。
type providerUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	providerMetadata
}

// GetUser はアクセストークンで外部IdPのユーザー情報を取得する。
// リトライは行わない。
func (c *ProviderClient) GetUser(ctx context.Context, accessToken string) (*model.VerifiedIdentity, error) {
	if c.config.BaseURL == "" {
		return nil, errProviderNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+userInfoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d", resp.StatusCode)
	}

	var user providerUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("empty id in user info response")
	}

	return user.providerMetadata.toIdentity(user.ID, user.Email, model.SourceProviderAPI), nil
}
