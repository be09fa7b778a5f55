package auth

import (
	"testing"
	"time"
)

func TestJWTServiceRoundTrip(t *testing.T) {
	service := NewJWTService("secret", time.Hour)

	t.Run("generates and validates a token", func(t *testing.T) {
		token, err := service.Generate("svc-1", "a@x")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		claims, err := service.Validate(token)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if claims.Subject != "svc-1" || claims.Email != "a@x" {
			t.Errorf("unexpected claims: %+v", claims)
		}
	})

	t.Run("rejects an empty subject", func(t *testing.T) {
		if _, err := service.Generate("", "a@x"); err == nil {
			t.Fatal("expected error for empty subject")
		}
	})

	t.Run("rejects a tampered token", func(t *testing.T) {
		token, err := service.Generate("svc-1", "a@x")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if _, err := service.Validate(token + "x"); err != ErrInvalidToken {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("disabled service rejects everything", func(t *testing.T) {
		disabled := NewJWTService("", time.Hour)
		if _, err := disabled.Generate("svc-1", "a@x"); err != ErrAuthDisabled {
			t.Errorf("expected ErrAuthDisabled, got %v", err)
		}
	})
}
