package public

import (
	"errors"

	"github.com/postways-next/internal/http/response"
	"github.com/postways-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			var keyed interface {
				Key() string
				Args() []interface{}
			}
			// 业务错误自带明细参数时随响应返回（如冷却期剩余天数）
			if errors.As(err, &keyed) {
				response.ErrorWithData(c, rule.code, keyed.Key(), gin.H{"args": keyed.Args()})
				return
			}
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

var tokenErrorRules = []mappedHandlerError{
	{target: service.ErrTokenExpired, code: response.CodeUnauthorized, key: "error.token_expired"},
	{target: service.ErrTokenBlacklisted, code: response.CodeUnauthorized, key: "error.token_blacklisted"},
	{target: service.ErrTokenWrongType, code: response.CodeUnauthorized, key: "error.token_wrong_type"},
	{target: service.ErrTokenInvalid, code: response.CodeUnauthorized, key: "error.token_invalid"},
	{target: service.ErrAccountDisabled, code: response.CodeUnauthorized, key: "error.account_disabled"},
}

var accountErrorRules = []mappedHandlerError{
	{target: service.ErrNotFound, code: response.CodeNotFound, key: "error.user_not_found"},
	{target: service.ErrWrongPassword, code: response.CodeBadRequest, key: "error.wrong_password"},
	{target: service.ErrWeakPassword, code: response.CodeBadRequest, key: "error.weak_password"},
	{target: service.ErrPasswordMismatch, code: response.CodeBadRequest, key: "error.password_mismatch"},
	{target: service.ErrUsernameInvalid, code: response.CodeBadRequest, key: "error.username_invalid"},
	{target: service.ErrUsernameTaken, code: response.CodeBadRequest, key: "error.username_taken"},
	{target: service.ErrCooldownActive, code: response.CodeBadRequest, key: "error.username_cooldown_active"},
	{target: service.ErrEmailInvalid, code: response.CodeBadRequest, key: "error.email_invalid"},
	{target: service.ErrEmailTaken, code: response.CodeBadRequest, key: "error.email_taken"},
	{target: service.ErrSameAsCurrent, code: response.CodeBadRequest, key: "error.email_same_as_current"},
	{target: service.ErrVerificationInvalid, code: response.CodeBadRequest, key: "error.verification_invalid"},
	{target: service.ErrVerificationExpired, code: response.CodeBadRequest, key: "error.verification_expired"},
	{target: service.ErrRecoveryTokenInvalid, code: response.CodeBadRequest, key: "error.recovery_token_invalid"},
	{target: service.ErrForbidden, code: response.CodeForbidden, key: "error.forbidden"},
}

var postErrorRules = []mappedHandlerError{
	{target: service.ErrPostNotFound, code: response.CodeNotFound, key: "error.post_not_found"},
	{target: service.ErrPostUnpublished, code: response.CodeForbidden, key: "error.post_unpublished"},
	{target: service.ErrPostTitleInvalid, code: response.CodeBadRequest, key: "error.post_title_invalid"},
	{target: service.ErrForbidden, code: response.CodeForbidden, key: "error.forbidden"},
	{target: service.ErrUploadInvalid, code: response.CodeBadRequest, key: "error.upload_invalid"},
}

func respondAccountError(c *gin.Context, err error) {
	respondWithMappedError(c, err, accountErrorRules, response.CodeInternal, "error.internal")
}

func respondTokenError(c *gin.Context, err error) {
	respondWithMappedError(c, err, tokenErrorRules, response.CodeInternal, "error.internal")
}

func respondPostError(c *gin.Context, err error) {
	respondWithMappedError(c, err, postErrorRules, response.CodeInternal, "error.internal")
}
