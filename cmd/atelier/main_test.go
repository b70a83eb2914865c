package main

import (
	"errors"
	"testing"

	"atelier/internal/services"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{
			err:  services.Wrap(services.ErrInvalidState, "coordinator", "purge", "asset is active", nil),
			want: "error [invalid_state]: invalid state: coordinator: purge: asset is active",
		},
		{
			err:  errors.New("boom"),
			want: "error [internal]: boom",
		},
	}
	for _, tc := range tests {
		if got := formatError(tc.err); got != tc.want {
			t.Fatalf("formatError() = %q, want %q", got, tc.want)
		}
	}
}
