package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/id"
)

func TestBaseVersion_LiveAt(t *testing.T) {
	v := BaseVersion{ValidFrom: 100, ValidUntil: 200}

	tests := []struct {
		at   int64
		want bool
	}{
		{99, false},
		{100, true},
		{150, true},
		{199, true},
		{200, false},
		{201, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, v.LiveAt(tt.at), "at=%d", tt.at)
	}
}

func TestBaseVersion_OpenVersionIsLiveForever(t *testing.T) {
	var v BaseVersion
	v.Attach(id.New(), 10)

	assert.True(t, v.IsOpen())
	assert.True(t, v.LiveAt(Forever-1))
	assert.False(t, v.LiveAt(9))
}

func TestBaseVersion_CheckClose(t *testing.T) {
	open := BaseVersion{ValidFrom: 100, ValidUntil: Forever}
	require.NoError(t, open.CheckClose(101))

	err := open.CheckClose(100)
	assert.True(t, apperror.IsInvariantViolation(err), "close at valid_from must fail")

	err = open.CheckClose(50)
	assert.True(t, apperror.IsInvariantViolation(err))

	closed := BaseVersion{ValidFrom: 100, ValidUntil: 150}
	err = closed.CheckClose(200)
	assert.True(t, apperror.IsInvariantViolation(err), "closing twice must fail")
}

func TestBaseVersion_Overlaps(t *testing.T) {
	v := BaseVersion{ValidFrom: 100, ValidUntil: 200}

	assert.True(t, v.Overlaps(150, 250))
	assert.True(t, v.Overlaps(50, 101))
	assert.False(t, v.Overlaps(200, Forever), "touching intervals are disjoint")
	assert.False(t, v.Overlaps(0, 100))
}

func TestBaseVersion_CheckInterval(t *testing.T) {
	v := BaseVersion{ValidFrom: 1, ValidUntil: Forever}
	assert.True(t, apperror.IsInvariantViolation(v.CheckInterval()), "owner required")

	v.OwnerID = id.New()
	assert.NoError(t, v.CheckInterval())

	v.ValidUntil = 1
	assert.True(t, apperror.IsInvariantViolation(v.CheckInterval()))
}
