package repository

import (
	"testing"
)

func TestJSONTextExprByDialectSQLite(t *testing.T) {
	got := jsonTextExprByDialect("sqlite", "metadata", "payment_mode")
	want := "json_extract(metadata, '$.\"payment_mode\"')"
	if got != want {
		t.Fatalf("sqlite json expr mismatch, want %s got %s", want, got)
	}
}

func TestJSONTextExprByDialectPostgres(t *testing.T) {
	got := jsonTextExprByDialect("postgres", "metadata", "payment_mode")
	want := "(metadata::jsonb ->> 'payment_mode')"
	if got != want {
		t.Fatalf("postgres json expr mismatch, want %s got %s", want, got)
	}
}

func TestBuildLikeCondition(t *testing.T) {
	condition, argCount := buildLikeCondition(nil, []string{"title", " ", "slug"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	if condition != "(title LIKE ? OR slug LIKE ?)" {
		t.Fatalf("unexpected sqlite condition: %s", condition)
	}

	condition, _ = buildLikeConditionByDialect("postgres", []string{"donor_email"})
	if condition != "(donor_email ILIKE ?)" {
		t.Fatalf("unexpected postgres condition: %s", condition)
	}

	if condition, argCount = buildLikeCondition(nil, nil); condition != "" || argCount != 0 {
		t.Fatalf("empty columns should produce no condition")
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}
