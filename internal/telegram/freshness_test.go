package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckFreshness(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		age     int64
		wantErr error
	}{
		{"just signed", 0, nil},
		{"at the limit", 300, nil},
		{"one second over", 301, ErrExpired},
		{"a day old", 86400, ErrExpired},
		{"clock ahead of server", -120, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFreshness(now.Unix()-tt.age, now, DefaultMaxAuthAge)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckFreshness_CustomWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.NoError(t, CheckFreshness(now.Unix()-60, now, time.Minute))
	assert.ErrorIs(t, CheckFreshness(now.Unix()-61, now, time.Minute), ErrExpired)
}

func TestCheckFreshness_SubSecondWindow(t *testing.T) {
	signed := time.Unix(1700000000, 0)
	window := 500 * time.Millisecond

	assert.NoError(t, CheckFreshness(signed.Unix(), signed.Add(400*time.Millisecond), window))
	assert.ErrorIs(t, CheckFreshness(signed.Unix(), signed.Add(600*time.Millisecond), window), ErrExpired)
	assert.ErrorIs(t, CheckFreshness(signed.Unix(), signed.Add(300*time.Second+time.Millisecond), DefaultMaxAuthAge), ErrExpired)
}

func TestRequireFields(t *testing.T) {
	fields := map[string]string{"hash": "abc", "auth_date": "  ", "id": "1"}

	assert.NoError(t, RequireFields(fields, "hash", "id"))

	err := RequireFields(fields, "hash", "auth_date", "id")
	assert.ErrorIs(t, err, ErrMissingField)
	assert.EqualError(t, err, "auth_date is required")

	assert.ErrorIs(t, RequireFields(fields, "user"), ErrMissingField)
}

func TestParseAuthDate(t *testing.T) {
	got, err := ParseAuthDate(" 1700000000 ")
	assert.NoError(t, err)
	assert.Equal(t, int64(1700000000), got)

	for _, raw := range []string{"", "abc", "1.5", "17e8"} {
		_, err := ParseAuthDate(raw)
		assert.ErrorIs(t, err, ErrMissingField, raw)
	}
}
