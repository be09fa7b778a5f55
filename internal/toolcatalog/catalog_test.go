package toolcatalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentsql/bridge/internal/apierror"
)

func echoHandler(_ context.Context, args json.RawMessage) (string, error) {
	return string(args), nil
}

func TestCatalog_RegisterAndDescriptors(t *testing.T) {
	catalog := NewCatalog()
	if err := catalog.Register("first", "First tool.", []byte(`{"type":"object"}`), []string{"A"}, echoHandler); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := catalog.Register("second", "Second tool.", []byte(`{"type":"object"}`), nil, echoHandler); err != nil {
		t.Fatalf("Register: %v", err)
	}

	descriptors := catalog.Descriptors()
	if len(descriptors) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descriptors))
	}
	if descriptors[0].Name != "first" || descriptors[1].Name != "second" {
		t.Fatalf("expected registration order preserved, got %+v", descriptors)
	}
}

func TestCatalog_RegisterRejectsInvalidSchema(t *testing.T) {
	catalog := NewCatalog()
	err := catalog.Register("broken", "Broken schema.", []byte(`{not json`), nil, echoHandler)
	if err == nil {
		t.Fatal("expected a schema compile error")
	}
}

func TestCatalog_CallUnknownTool(t *testing.T) {
	catalog := NewCatalog()
	_, err := catalog.Call(context.Background(), "nope", nil)
	apiErr, ok := apierror.As(err)
	if !ok || apiErr.Kind != apierror.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestCatalog_CallValidatesArgumentsAgainstSchema(t *testing.T) {
	catalog := NewCatalog()
	schema := []byte(`{
		"type": "object",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`)
	if err := catalog.Register("greet", "Greets someone.", schema, nil, echoHandler); err != nil {
		t.Fatalf("Register: %v", err)
	}

	t.Run("rejects missing required field", func(t *testing.T) {
		_, err := catalog.Call(context.Background(), "greet", json.RawMessage(`{}`))
		apiErr, ok := apierror.As(err)
		if !ok || apiErr.Kind != apierror.KindValidation {
			t.Fatalf("expected KindValidation, got %v", err)
		}
	})

	t.Run("accepts valid arguments and defaults empty args to an object", func(t *testing.T) {
		result, err := catalog.Call(context.Background(), "greet", json.RawMessage(`{"name":"Ada"}`))
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		if result != `{"name":"Ada"}` {
			t.Fatalf("unexpected echo result: %q", result)
		}
	})

	t.Run("rejects malformed JSON arguments", func(t *testing.T) {
		_, err := catalog.Call(context.Background(), "greet", json.RawMessage(`{not json`))
		apiErr, ok := apierror.As(err)
		if !ok || apiErr.Kind != apierror.KindValidation {
			t.Fatalf("expected KindValidation, got %v", err)
		}
	})
}

func TestCatalog_CallDefaultsNilArgsToEmptyObject(t *testing.T) {
	catalog := NewCatalog()
	if err := catalog.Register("noargs", "No arguments required.", []byte(`{"type":"object"}`), nil, echoHandler); err != nil {
		t.Fatalf("Register: %v", err)
	}
	result, err := catalog.Call(context.Background(), "noargs", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != "{}" {
		t.Fatalf("expected empty object default, got %q", result)
	}
}
