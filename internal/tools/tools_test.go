package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestCalculator(t *testing.T) {
	tool := NewCalculatorTool()

	tests := []struct {
		name    string
		params  map[string]any
		want    float64
		wantErr bool
	}{
		{"add", map[string]any{"op": "add", "a": 2.0, "b": 3.0}, 5, false},
		{"sub", map[string]any{"op": "sub", "a": 2.0, "b": 3.0}, -1, false},
		{"mul", map[string]any{"op": "mul", "a": 4.0, "b": 2.5}, 10, false},
		{"div", map[string]any{"op": "div", "a": 9.0, "b": 3.0}, 3, false},
		{"div by zero", map[string]any{"op": "div", "a": 1.0, "b": 0.0}, 0, true},
		{"unknown op", map[string]any{"op": "pow", "a": 2.0, "b": 3.0}, 0, true},
		{"non numeric", map[string]any{"op": "add", "a": "x", "b": 3.0}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tool.Fn(context.Background(), tt.params)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var decoded struct {
				Result float64 `json:"result"`
			}
			if err := json.Unmarshal([]byte(out), &decoded); err != nil {
				t.Fatalf("output not JSON: %q", out)
			}
			if decoded.Result != tt.want {
				t.Errorf("result = %v, want %v", decoded.Result, tt.want)
			}
		})
	}
}

func TestValidateParams(t *testing.T) {
	tool := NewCalculatorTool()

	if err := tool.ValidateParams(map[string]any{"op": "add", "a": 1.0, "b": 2.0}); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	err := tool.ValidateParams(map[string]any{"op": "add"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if verr.ToolName != "calculator" {
		t.Errorf("tool name = %s", verr.ToolName)
	}
	if len(verr.Fields) == 0 {
		t.Error("expected violated fields to be reported")
	}

	err = tool.ValidateParams(map[string]any{"op": "modulo", "a": 1.0, "b": 2.0})
	if !errors.As(err, &verr) {
		t.Fatalf("enum violation should be a validation error, got %v", err)
	}
}

func TestValidateParamsNoSchema(t *testing.T) {
	tool := Tool{Name: "free"}
	if err := tool.ValidateParams(map[string]any{"anything": "goes"}); err != nil {
		t.Fatalf("schemaless tool rejected params: %v", err)
	}
}

func TestClockToolOptsOutOfDedupe(t *testing.T) {
	clock := NewClockTool()
	if clock.AllowDedupe() {
		t.Error("clock output is time-dependent; it must not be deduped")
	}
	if !NewCalculatorTool().AllowDedupe() {
		t.Error("calculator is deterministic; it should be deduped")
	}

	out, err := clock.Fn(context.Background(), nil)
	if err != nil {
		t.Fatalf("clock: %v", err)
	}
	if !strings.Contains(out, "now") {
		t.Errorf("output = %q", out)
	}
}

func TestEchoTool(t *testing.T) {
	echo := NewEchoTool()
	out, err := echo.Fn(context.Background(), map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("echo: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("output = %q", out)
	}
	if _, err := echo.Fn(context.Background(), map[string]any{"text": 5}); err == nil {
		t.Error("non-string text should error")
	}
}

func TestBuiltinRegistry(t *testing.T) {
	reg := BuiltinRegistry()
	for _, name := range []string{"calculator", "clock", "echo"} {
		if _, ok := reg[name]; !ok {
			t.Errorf("missing builtin %s", name)
		}
	}
	specs := reg.Specs()
	if len(specs) != len(reg) {
		t.Errorf("specs = %d, registry = %d", len(specs), len(reg))
	}
	for _, spec := range specs {
		if spec.Name == "" || spec.JSONSchema == "" {
			t.Errorf("incomplete spec: %+v", spec)
		}
	}
}
