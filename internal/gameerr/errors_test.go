package gameerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"precondition", ErrNotAlive, KindPrecondition},
		{"conflict", ErrDuplicateClaim, KindConflict},
		{"wrapped", fmt.Errorf("join: %w", ErrAlreadyJoined), KindConflict},
		{"authorization", ErrForbidden, KindAuthorization},
		{"integrity", Integrity("hunter count %d", 2), KindIntegrity},
		{"plain", errors.New("connection reset"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWithKeepsIdentity(t *testing.T) {
	err := ErrWrongState.With("claim %d is %s", 3, "verified")
	assert.True(t, errors.Is(err, ErrWrongState))
	assert.False(t, errors.Is(err, ErrNotAlive))
	assert.Contains(t, err.Error(), "claim 3 is verified")
}

func TestCodeOfHidesIntegrityDetail(t *testing.T) {
	assert.Equal(t, "duplicate_claim", CodeOf(ErrDuplicateClaim))
	assert.Equal(t, "internal_error", CodeOf(Integrity("two hunters")))
	assert.Equal(t, "internal_error", CodeOf(errors.New("boom")))
}
