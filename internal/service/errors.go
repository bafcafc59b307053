package service

import "errors"

// 服务层哨兵错误，统一在 handler 层映射为响应码。
var (
	ErrNotFound           = errors.New("error.not_found")
	ErrInvalidCredentials = errors.New("error.invalid_credentials")
	ErrAccountDisabled    = errors.New("error.account_disabled")
	ErrForbidden          = errors.New("error.forbidden")

	ErrTokenInvalid     = errors.New("error.token_invalid")
	ErrTokenExpired     = errors.New("error.token_expired")
	ErrTokenBlacklisted = errors.New("error.token_blacklisted")
	ErrTokenWrongType   = errors.New("error.token_wrong_type")

	ErrWrongPassword    = errors.New("error.wrong_password")
	ErrWeakPassword     = errors.New("error.weak_password")
	ErrPasswordMismatch = errors.New("error.password_mismatch")

	ErrUsernameTaken   = errors.New("error.username_taken")
	ErrUsernameInvalid = errors.New("error.username_invalid")
	ErrCooldownActive  = errors.New("error.username_cooldown_active")

	ErrEmailTaken           = errors.New("error.email_taken")
	ErrEmailInvalid         = errors.New("error.email_invalid")
	ErrSameAsCurrent        = errors.New("error.email_same_as_current")
	ErrVerificationInvalid  = errors.New("error.verification_invalid")
	ErrVerificationExpired  = errors.New("error.verification_expired")
	ErrEmailServiceDisabled = errors.New("error.email_service_disabled")
	ErrRecoveryTokenInvalid = errors.New("error.recovery_token_invalid")

	ErrPostNotFound     = errors.New("error.post_not_found")
	ErrPostUnpublished  = errors.New("error.post_unpublished")
	ErrPostTitleInvalid = errors.New("error.post_title_invalid")

	ErrUploadInvalid = errors.New("error.upload_invalid")
)
