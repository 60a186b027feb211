package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ponderlab/ponder/internal/llm"
)

// Func executes a tool against a validated parameter map.
type Func func(ctx context.Context, params map[string]any) (string, error)

// Tool is one callable capability exposed to the model.
//
// Dedup control: by default repeated calls with identical parameters are
// served from the orchestrator's idempotency cache. Tools whose results are
// time- or state-dependent set NoDedupe; tools with a known staleness window
// set DedupeTTL instead of relying on the configured default.
type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          Func

	NoDedupe  bool          // opt out of idempotency caching
	DedupeTTL time.Duration // per-tool cache TTL override, 0 = configured default
	Timeout   time.Duration // per-tool deadline override, 0 = configured default
}

// AllowDedupe reports whether results of this tool may be reused from cache.
func (t Tool) AllowDedupe() bool { return !t.NoDedupe }

// ValidationError reports tool parameters that failed schema validation.
type ValidationError struct {
	ToolName string
	Fields   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s parameter validation failed: %v", e.ToolName, e.Fields)
}

// ValidateParams validates the provided parameters against the tool's JSON
// schema. A failure returns a *ValidationError carrying one message per
// violated constraint.
func (t Tool) ValidateParams(params map[string]any) error {
	if t.SchemaJSON == "" {
		return nil
	}
	schemaLoader := gojsonschema.NewStringLoader(t.SchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(params)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var fields []string
		for _, verr := range result.Errors() {
			fields = append(fields, verr.String())
		}
		return &ValidationError{ToolName: t.Name, Fields: fields}
	}
	return nil
}

// Registry maps tool names to tools. Lookup is by exact, case-sensitive name.
type Registry map[string]Tool

// Register adds a tool under its own name.
func (r Registry) Register(t Tool) { r[t.Name] = t }

// Specs returns function specs for providers with native structured calling.
func (r Registry) Specs() []llm.FunctionSpec {
	specs := make([]llm.FunctionSpec, 0, len(r))
	for _, t := range r {
		specs = append(specs, llm.FunctionSpec{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
		})
	}
	return specs
}

// Names returns the registered tool names, for error messages.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
