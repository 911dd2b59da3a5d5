package database

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyStopsOnAuthFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"bad password", &pq.Error{Code: "28P01"}, true},
		{"unknown database", &pq.Error{Code: "3D000"}, true},
		{"starting up", &pq.Error{Code: "57P03"}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.err) {
				t.Fatalf("classify must keep the cause, got %v", got)
			}
			if permanent := got != tt.err; permanent != tt.permanent {
				t.Errorf("permanent = %v, want %v", permanent, tt.permanent)
			}
		})
	}
}

func TestNewConnectionPoolRequiresURL(t *testing.T) {
	if _, err := NewConnectionPool(context.Background(), &Config{}, nil); err == nil {
		t.Fatal("expected an error for an empty url")
	}
}
