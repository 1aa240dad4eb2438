package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"amtest/pkg/contracts/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   *domain.APIErrorBody
		want   Kind
	}{
		{"success", http.StatusOK, nil, KindNone},
		{"created is still success", http.StatusCreated, nil, KindNone},
		{"bad request", http.StatusBadRequest, &domain.APIErrorBody{Code: domain.ErrCodeValidation}, KindValidation},
		{"bad request without body", http.StatusBadRequest, nil, KindValidation},
		{"missing credential", http.StatusUnauthorized, &domain.APIErrorBody{Code: domain.ErrCodeInvalidToken}, KindAuth},
		{"scope mismatch", http.StatusForbidden, &domain.APIErrorBody{Code: domain.ErrCodeTokenScopeMismatch}, KindAuth},
		{"unknown team", http.StatusNotFound, &domain.APIErrorBody{Code: domain.ErrCodeTeamNotFound}, KindNotFound},
		{"revoke cooldown", http.StatusConflict, &domain.APIErrorBody{Code: domain.ErrCodeAssignmentCooldown}, KindCooldown},
		{"conflict with other code", http.StatusConflict, &domain.APIErrorBody{Code: "SOMETHING_ELSE"}, KindOther},
		{"conflict without body", http.StatusConflict, nil, KindOther},
		{"server error", http.StatusInternalServerError, nil, KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status, tt.body))
		})
	}
}

func TestIsCooldown(t *testing.T) {
	cooldown := &domain.APIErrorBody{Code: domain.ErrCodeAssignmentCooldown}

	assert.True(t, IsCooldown(http.StatusConflict, cooldown))
	assert.False(t, IsCooldown(http.StatusConflict, nil))
	assert.False(t, IsCooldown(http.StatusBadRequest, cooldown))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "cooldown", KindCooldown.String())
	assert.Equal(t, "auth", KindAuth.String())
	assert.Equal(t, "other", Kind(99).String())
}
