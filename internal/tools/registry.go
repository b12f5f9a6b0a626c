// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jeranaias/loom-tui/internal/model"
)

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// Tool represents an executable tool.
type Tool struct {
	// Name is the tool identifier (e.g., "read_file")
	Name string

	// Description explains what the tool does. The first line is what the
	// model sees in the schema.
	Description string

	// Parameters is the JSON-schema parameter object sent to the endpoint.
	Parameters Parameters

	// Executor handles the actual execution
	Executor Executor
}

// ShortDescription returns the first line of the description for schemas.
func (t *Tool) ShortDescription() string {
	if idx := strings.Index(t.Description, "\n"); idx != -1 {
		return t.Description[:idx]
	}
	return t.Description
}

// Schema returns the wire-format schema for this tool.
func (t *Tool) Schema() Schema {
	return Schema{
		Type: "function",
		Function: FunctionSchema{
			Name:        t.Name,
			Description: t.ShortDescription(),
			Parameters:  t.Parameters,
		},
	}
}

// =============================================================================
// EXECUTOR INTERFACE
// =============================================================================

// Executor is the interface for individual tool execution. History is the
// conversation so far, for tools that want it; most ignore it.
type Executor interface {
	Execute(ctx context.Context, args map[string]any, history []*model.Message) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, args map[string]any, history []*model.Message) (any, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, args map[string]any, history []*model.Message) (any, error) {
	return f(ctx, args, history)
}

// =============================================================================
// WIRE-FORMAT SCHEMA
// =============================================================================

// Schema is the tool description the completion endpoint expects.
type Schema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema is the function half of a tool schema.
type FunctionSchema struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Parameters is a JSON-schema object describing tool arguments.
type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one parameter using JSON Schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// ObjectParameters builds an object-typed Parameters value.
func ObjectParameters(props map[string]Property, required ...string) Parameters {
	return Parameters{Type: "object", Properties: props, Required: required}
}

// =============================================================================
// TOOL REGISTRY
// =============================================================================

// Registry holds all available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get retrieves a tool by name, or nil when unknown.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemasByNames returns wire-format schemas for the named tools, skipping
// unknown names. An empty result disables tool use for the request.
func (r *Registry) SchemasByNames(names []string) []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]Schema, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			schemas = append(schemas, tool.Schema())
		}
	}
	return schemas
}

// Schemas returns schemas for every registered tool, in name order.
func (r *Registry) Schemas() []Schema {
	return r.SchemasByNames(r.Names())
}
