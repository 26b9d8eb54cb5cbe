package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/blogflow/internal/model"
)

// ProviderTokenChecker は外部IdP署名トークンの検証を行う。
type ProviderTokenChecker interface {
	Verify(token string) (*model.VerifiedIdentity, error)
}

// ProviderUserFetcher は外部IdPのユーザー取得APIを呼び出す。
type ProviderUserFetcher interface {
	GetUser(ctx context.Context, accessToken string) (*model.VerifiedIdentity, error)
}

// LocalTokenParser はローカル発行のアクセストークンを検証する。
type LocalTokenParser interface {
	ParseAccess(token string) (*LocalClaims, error)
}

// VerificationRecorder は検証結果をメトリクスに記録する。
type VerificationRecorder interface {
	RecordAuthVerification(source, result string)
}

// Verifier はベアラートークンを3段階で検証する。最初に成功した経路を採用する。
//  1. 外部IdPの共有シークレットによる署名検証
//  2. 外部IdPのユーザー取得API
//  3. ローカル発行トークン（AllowLocalがtrueの場合のみ）
type Verifier struct {
	providerToken ProviderTokenChecker
	providerAPI   ProviderUserFetcher
	local         LocalTokenParser
	allowLocal    bool
	recorder      VerificationRecorder
	logger        *slog.Logger
}

// VerifierConfig はVerifierの構成要素。nilのステップはスキップされる。
type VerifierConfig struct {
	ProviderToken ProviderTokenChecker
	ProviderAPI   ProviderUserFetcher
	Local         LocalTokenParser
	AllowLocal    bool
	Recorder      VerificationRecorder
	Logger        *slog.Logger
}

// NewVerifier はVerifierを生成する。
func NewVerifier(config VerifierConfig) *Verifier {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		providerToken: config.ProviderToken,
		providerAPI:   config.ProviderAPI,
		local:         config.Local,
		allowLocal:    config.AllowLocal,
		recorder:      config.Recorder,
		logger:        logger,
	}
}

// Verify はトークンを検証し、身元情報を返す。
// いずれの経路でも検証できない場合はAuthenticationRequiredエラーを返す。
func (v *Verifier) Verify(ctx context.Context, token string) (*model.VerifiedIdentity, error) {
	if token == "" {
		return nil, model.NewAuthenticationRequiredError()
	}

	if v.providerToken != nil {
		identity, err := v.providerToken.Verify(token)
		if err == nil {
			v.record(model.SourceProviderJWT, "success")
			return identity, nil
		}
		v.skipOrFail(model.SourceProviderJWT, err)
	}

	if v.providerAPI != nil {
		identity, err := v.providerAPI.GetUser(ctx, token)
		if err == nil {
			v.record(model.SourceProviderAPI, "success")
			return identity, nil
		}
		v.skipOrFail(model.SourceProviderAPI, err)
	}

	if v.local != nil && v.allowLocal {
		claims, err := v.local.ParseAccess(token)
		if err == nil {
			v.record(model.SourceLocal, "success")
			return &model.VerifiedIdentity{
				ID:        claims.UserID,
				Email:     claims.Email,
				RoleClaim: claims.Role,
				Source:    model.SourceLocal,
			}, nil
		}
		v.record(model.SourceLocal, "failure")
	}

	return nil, model.NewAuthenticationRequiredError()
}

func (v *Verifier) skipOrFail(source model.IdentitySource, err error) {
	if errors.Is(err, errProviderNotConfigured) {
		return
	}
	v.record(source, "failure")
	v.logger.Debug("token verification step failed",
		slog.String("source", string(source)),
		slog.String("error", err.Error()),
	)
}

func (v *Verifier) record(source model.IdentitySource, result string) {
	if v.recorder != nil {
		v.recorder.RecordAuthVerification(string(source), result)
	}
}
