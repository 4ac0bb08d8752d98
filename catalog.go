package todoagent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Protocol-Lattice/todo-agent/src/models"
)

// StaticToolCatalog is the default in-memory ToolCatalog.
//
// Names resolve loosely because models rarely echo a tool name verbatim:
// "todos.completeTodo", "complete_todo" and "CompleteTodo" all find
// completeTodo.
type StaticToolCatalog struct {
	mu      sync.RWMutex
	index   map[string]int
	entries []catalogEntry
}

type catalogEntry struct {
	tool Tool
	spec ToolSpec
}

// NewStaticToolCatalog constructs a catalog seeded with the provided tools.
func NewStaticToolCatalog(tools []Tool) *StaticToolCatalog {
	catalog := &StaticToolCatalog{index: make(map[string]int)}
	for _, tool := range tools {
		_ = catalog.Register(tool) // invalid entries are skipped
	}
	return catalog
}

// toolKey drops a UTCP provider prefix, separators and case.
func toolKey(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.NewReplacer("_", "", "-", "", " ", "").Replace(name)
	return strings.ToLower(name)
}

// Register adds a tool. Names that collide after normalisation return an error.
func (c *StaticToolCatalog) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	spec := tool.Spec()
	key := toolKey(spec.Name)
	if key == "" {
		return fmt.Errorf("tool name is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.index[key]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, catalogEntry{tool: tool, spec: spec})
	return nil
}

// Lookup returns the tool and its specification if present.
func (c *StaticToolCatalog) Lookup(name string) (Tool, ToolSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[toolKey(name)]
	if !ok {
		return nil, ToolSpec{}, false
	}
	return c.entries[i].tool, c.entries[i].spec, true
}

// Specs returns a snapshot of the tool specifications in registration order.
func (c *StaticToolCatalog) Specs() []ToolSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	specs := make([]ToolSpec, len(c.entries))
	for i, e := range c.entries {
		specs[i] = e.spec
	}
	return specs
}

// ToolDefinitions converts catalog specs into provider tool declarations.
func ToolDefinitions(catalog ToolCatalog) []models.ToolDefinition {
	if catalog == nil {
		return nil
	}
	specs := catalog.Specs()
	defs := make([]models.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, models.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.InputSchema,
		})
	}
	return defs
}
