package biclient

import (
	"strconv"
	"strings"
	"testing"
)

func TestParseQueryIDs(t *testing.T) {
	t.Run("parses commas, whitespace, and mixed separators", func(t *testing.T) {
		ids, err := ParseQueryIDs("42, 99  103")
		if err != nil {
			t.Fatalf("ParseQueryIDs: %v", err)
		}
		if len(ids) != 3 || ids[0] != 42 || ids[1] != 99 || ids[2] != 103 {
			t.Fatalf("unexpected ids: %v", ids)
		}
	})

	t.Run("rejects a non-numeric token, naming it", func(t *testing.T) {
		_, err := ParseQueryIDs("42,x")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "x") {
			t.Fatalf("expected error to name the bad token, got %v", err)
		}
	})
}

func TestParseQueryIDs_Idempotent(t *testing.T) {
	input := "7, 3, 19"
	first, err := ParseQueryIDs(input)
	if err != nil {
		t.Fatalf("ParseQueryIDs: %v", err)
	}

	parts := make([]string, len(first))
	for i, id := range first {
		parts[i] = strconv.Itoa(id)
	}
	joined := strings.Join(parts, ",")

	second, err := ParseQueryIDs(joined)
	if err != nil {
		t.Fatalf("ParseQueryIDs (round 2): %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("expected stable id count, got %v then %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected identical ids, got %v then %v", first, second)
		}
	}
}
