// Package toolcatalog implements component D: the ten tools exposed over
// MCP, each gated by JSON-schema input validation ahead of its handler body.
// Schema compilation reuses the teacher's compileSchema + sync.Map cache
// pattern (originally pkg/pluginsdk/validation.go).
package toolcatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentsql/bridge/internal/apierror"
	"github.com/agentsql/bridge/pkg/models"
)

// HandlerFunc executes one tool call and returns its serialized text
// result.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (string, error)

type registeredTool struct {
	descriptor models.ToolDescriptor
	schema     *jsonschema.Schema
	handler    HandlerFunc
}

// Catalog is the registry of callable tools.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
	order []string
}

// NewCatalog returns an empty catalog ready for Register calls.
func NewCatalog() *Catalog {
	return &Catalog{tools: make(map[string]*registeredTool)}
}

// Register adds a tool. schemaJSON must be a valid JSON-schema document;
// requiredACLs is advisory metadata surfaced through Descriptors for
// operators auditing the ACL config against the catalog.
func (c *Catalog) Register(name, description string, schemaJSON []byte, requiredACLs []string, handler HandlerFunc) error {
	schema, err := jsonschema.CompileString(name+".schema.json", string(schemaJSON))
	if err != nil {
		return fmt.Errorf("toolcatalog: compile schema for %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[name] = &registeredTool{
		descriptor: models.ToolDescriptor{
			Name:         name,
			Description:  description,
			InputSchema:  schemaJSON,
			RequiredACLs: requiredACLs,
		},
		schema:  schema,
		handler: handler,
	}
	c.order = append(c.order, name)
	return nil
}

// Descriptors returns every registered tool, in registration order.
func (c *Catalog) Descriptors() []models.ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	descriptors := make([]models.ToolDescriptor, 0, len(c.order))
	for _, name := range c.order {
		descriptors = append(descriptors, c.tools[name].descriptor)
	}
	return descriptors
}

// Call validates args against the tool's schema, then runs its handler.
// ACL enforcement happens upstream of Call, in the MCP dispatcher; Call
// itself only ever sees already-authorized calls.
func (c *Catalog) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	c.mu.RLock()
	tool, ok := c.tools[name]
	c.mu.RUnlock()
	if !ok {
		return "", apierror.New(apierror.KindNotFound, fmt.Sprintf("unknown tool %q", name))
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return "", apierror.Wrap(apierror.KindValidation, "malformed tool arguments", err)
	}
	if err := tool.schema.Validate(decoded); err != nil {
		return "", apierror.Wrap(apierror.KindValidation, fmt.Sprintf("arguments for %s failed schema validation", name), err)
	}

	return tool.handler(ctx, args)
}
