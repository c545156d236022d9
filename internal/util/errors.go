package util

import (
	"errors"
	"net/http"
)

var (
	ErrPermissionDenied        = errors.New("permission denied")
	ErrAssessmentNotFound      = errors.New("assessment not found")
	ErrMaxAttemptsExceeded     = errors.New("maximum number of attempts reached")
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotOwned         = errors.New("attempt belongs to another user")
	ErrAttemptAlreadyFinalized = errors.New("attempt already finalized")
	ErrInvalidAnswerPayload    = errors.New("invalid answer payload")

	// 以下两个错误不直接暴露给客户端
	ErrAttemptConflict   = errors.New("attempt was modified concurrently")
	ErrAttemptInProgress = errors.New("an attempt is already in progress")
)

type errorKind struct {
	err    error
	reason string
	status int
}

var errorKinds = []errorKind{
	{ErrPermissionDenied, "permission_denied", http.StatusForbidden},
	{ErrAssessmentNotFound, "assessment_not_found", http.StatusNotFound},
	{ErrMaxAttemptsExceeded, "max_attempts_exceeded", http.StatusConflict},
	{ErrAttemptNotFound, "attempt_not_found", http.StatusNotFound},
	{ErrAttemptNotOwned, "attempt_not_owned", http.StatusForbidden},
	{ErrAttemptAlreadyFinalized, "attempt_already_finalized", http.StatusConflict},
	{ErrInvalidAnswerPayload, "invalid_answer_payload", http.StatusBadRequest},
	// 重试耗尽后才会返回给客户端，可安全重试
	{ErrAttemptConflict, "attempt_conflict", http.StatusConflict},
}

// ErrorKind 返回错误的稳定原因码与 HTTP 状态；未知错误返回 ok=false
func ErrorKind(err error) (reason string, status int, ok bool) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.reason, k.status, true
		}
	}
	return "internal_error", http.StatusInternalServerError, false
}
