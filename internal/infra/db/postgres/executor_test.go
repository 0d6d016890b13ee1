//go:build !integration

package postgres

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"telegram-insight-agent/internal/domain"
)

func TestGetExecutor(t *testing.T) {
	if _, err := getExecutor(nil, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument without pool or tx, got %v", err)
	}
	if _, err := getExecutor(nil, "not a tx"); !errors.Is(err, domain.ErrInvalidExecContext) {
		t.Errorf("expected ErrInvalidExecContext, got %v", err)
	}
}

func TestJSONArg(t *testing.T) {
	if v := jsonArg(nil); v != nil {
		t.Errorf("expected nil for an empty payload, got %v", v)
	}
	if v := jsonArg(json.RawMessage(`{"a":1}`)); v != `{"a":1}` {
		t.Errorf("unexpected arg %v", v)
	}
}

func TestSchemaIsIdempotent(t *testing.T) {
	for _, stmt := range strings.Split(Schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Errorf("statement is not idempotent: %s", stmt)
		}
	}
}
