package sidecar

import (
	"slices"
	"testing"
)

func TestTaskkillArgs(t *testing.T) {
	tests := []struct {
		force bool
		want  []string
	}{
		{false, []string{"/PID", "4242"}},
		{true, []string{"/F", "/T", "/PID", "4242"}},
	}
	for _, tt := range tests {
		if got := taskkillArgs(4242, tt.force); !slices.Equal(got, tt.want) {
			t.Errorf("taskkillArgs(4242, %v) = %v, want %v", tt.force, got, tt.want)
		}
	}
}
