package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// NewCalculatorTool returns a small arithmetic tool. It is deterministic, so
// it keeps the default dedup behavior.
func NewCalculatorTool() Tool {
	return Tool{
		Name:        "calculator",
		Description: "Evaluate a basic arithmetic operation on two numbers. Supported operations: add, sub, mul, div.",
		SchemaJSON:  `{"type":"object","properties":{"op":{"type":"string","enum":["add","sub","mul","div"]},"a":{"type":"number"},"b":{"type":"number"}},"required":["op","a","b"]}`,
		Fn: func(ctx context.Context, params map[string]any) (string, error) {
			op, _ := params["op"].(string)
			a, aok := params["a"].(float64)
			b, bok := params["b"].(float64)
			if !aok || !bok {
				return "", fmt.Errorf("parameters a and b must be numbers")
			}
			var result float64
			switch op {
			case "add":
				result = a + b
			case "sub":
				result = a - b
			case "mul":
				result = a * b
			case "div":
				if b == 0 {
					return "", fmt.Errorf("division by zero")
				}
				result = a / b
			default:
				return "", fmt.Errorf("unsupported operation: %s", op)
			}
			out, err := json.Marshal(map[string]any{"result": result})
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewClockTool returns the current time. Its output is inherently stale, so
// it opts out of dedup caching.
func NewClockTool() Tool {
	return Tool{
		Name:        "clock",
		Description: "Return the current UTC time in RFC 3339 format.",
		SchemaJSON:  `{"type":"object","properties":{},"additionalProperties":false}`,
		NoDedupe:    true,
		Fn: func(ctx context.Context, params map[string]any) (string, error) {
			out, err := json.Marshal(map[string]any{"now": time.Now().UTC().Format(time.RFC3339)})
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewEchoTool repeats its input back. Useful for wiring checks and tests.
func NewEchoTool() Tool {
	return Tool{
		Name:        "echo",
		Description: "Echo the provided text back to the caller.",
		SchemaJSON:  `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`,
		Fn: func(ctx context.Context, params map[string]any) (string, error) {
			text, ok := params["text"].(string)
			if !ok {
				return "", fmt.Errorf("parameter text must be a string")
			}
			out, err := json.Marshal(map[string]any{"echo": text})
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// BuiltinRegistry assembles the default tool set.
func BuiltinRegistry() Registry {
	reg := make(Registry)
	reg.Register(NewCalculatorTool())
	reg.Register(NewClockTool())
	reg.Register(NewEchoTool())
	return reg
}
