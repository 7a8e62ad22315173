package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsCode_MatchesWrappedAPIError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewGoalNotFoundError("g-1"))

	if !IsCode(err, ErrCodeGoalNotFound) {
		t.Error("expected IsCode to match wrapped GOAL_NOT_FOUND")
	}
	if IsCode(err, ErrCodePlanNotFound) {
		t.Error("expected IsCode not to match PLAN_NOT_FOUND")
	}
}

func TestIsCode_PlainError(t *testing.T) {
	if IsCode(errors.New("boom"), ErrCodeInternal) {
		t.Error("plain error should not match any code")
	}
}

func TestAPIError_ErrorFormat(t *testing.T) {
	err := NewForbiddenError("edit exercises")
	want := "[FORBIDDEN] You are not allowed to edit exercises."
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewValidationError_KeepsFields(t *testing.T) {
	err := NewValidationError(map[string]string{"difficulty": "must be between 0 and 5"})
	if err.Category != CategoryValidation {
		t.Errorf("Category = %q, want %q", err.Category, CategoryValidation)
	}
	if err.Fields["difficulty"] == "" {
		t.Error("expected difficulty field detail")
	}
}

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleTrainer, true},
		{RoleCustomer, true},
		{Role("admin"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}
