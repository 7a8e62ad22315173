// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, store, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // バリデーションエラーのフィールド別詳細（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryValidation = "validation"
	CategoryStore      = "store"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeEmailTaken         = "EMAIL_ALREADY_REGISTERED"
	ErrCodeGoalNotFound       = "GOAL_NOT_FOUND"
	ErrCodeExerciseNotFound   = "EXERCISE_NOT_FOUND"
	ErrCodeExerciseInUse      = "EXERCISE_IN_USE"
	ErrCodePlanNotFound       = "PLAN_NOT_FOUND"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFInvalid        = "CSRF_TOKEN_INVALID"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// IsCode はerrがAPIErrorであり、指定コードを持つかどうかを返す。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// NewValidationError はバリデーションエラーを生成する。
// fieldsにはフィールド名とエラー内容を指定する。
func NewValidationError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "Some fields are missing or invalid.",
		Category: CategoryValidation,
		Action:   "Correct the highlighted fields and try again.",
		Fields:   fields,
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: CategoryValidation,
		Action:   "Send a well-formed JSON request body.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication is required.",
		Category: CategoryAuth,
		Action:   "Sign in and try again.",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードが誤っている場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "The email address or password is incorrect.",
		Category: CategoryAuth,
		Action:   "Check your email address and password.",
	}
}

// NewSessionExpiredError はセッション失効エラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "Your session has expired.",
		Category: CategoryAuth,
		Action:   "Sign in again.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("You are not allowed to %s.", reason),
		Category: CategoryAuth,
		Action:   "Ask your trainer or sign in with an account that has access.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("User not found: %s", userID),
		Category: CategoryStore,
		Action:   "Check the user ID.",
	}
}

// NewEmailTakenError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailTakenError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  fmt.Sprintf("The email address is already registered: %s", email),
		Category: CategoryValidation,
		Action:   "Use a different email address.",
	}
}

// NewGoalNotFoundError は目標が見つからない場合のエラーを生成する。
func NewGoalNotFoundError(goalID string) *APIError {
	return &APIError{
		Code:     ErrCodeGoalNotFound,
		Message:  fmt.Sprintf("Goal not found: %s", goalID),
		Category: CategoryStore,
		Action:   "Reload the goal list.",
	}
}

// NewExerciseNotFoundError はエクササイズが見つからない場合のエラーを生成する。
func NewExerciseNotFoundError(exerciseID string) *APIError {
	return &APIError{
		Code:     ErrCodeExerciseNotFound,
		Message:  fmt.Sprintf("Exercise not found: %s", exerciseID),
		Category: CategoryStore,
		Action:   "Reload the exercise list.",
	}
}

// NewExerciseInUseError はプランから参照されているエクササイズを削除しようとした場合のエラーを生成する。
func NewExerciseInUseError(exerciseIDs []string) *APIError {
	return &APIError{
		Code:     ErrCodeExerciseInUse,
		Message:  fmt.Sprintf("Exercises are still used by training plans: %s", strings.Join(exerciseIDs, ", ")),
		Category: CategoryValidation,
		Action:   "Remove the exercises from every plan first.",
		Fields:   map[string]string{"ids": strings.Join(exerciseIDs, ",")},
	}
}

// NewPlanNotFoundError はプランが見つからない場合のエラーを生成する。
func NewPlanNotFoundError(planID string) *APIError {
	return &APIError{
		Code:     ErrCodePlanNotFound,
		Message:  fmt.Sprintf("Plan not found: %s", planID),
		Category: CategoryStore,
		Action:   "Reload the plan list.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: CategorySystem,
		Action:   "Wait a moment and try again.",
	}
}
