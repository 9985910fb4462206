package tools

import (
	"google.golang.org/genai"
)

// Catalog is the closed set of planner-visible tools.
type Catalog struct {
	order  []Tool
	byName map[string]Tool
}

// NewCatalog registers the shipped tool set. computer_scroll is implemented
// but deliberately not registered; see scrollTool.
func NewCatalog() *Catalog {
	c := &Catalog{byName: make(map[string]Tool)}
	for _, t := range []Tool{
		clickTool{},
		typeTool{},
		dragTool{},
		keyTool{},
		waitTool{},
	} {
		c.order = append(c.order, t)
		c.byName[t.Name()] = t
	}
	return c
}

// Lookup returns the registered tool with the given name, or nil.
func (c *Catalog) Lookup(name string) Tool {
	return c.byName[name]
}

// Declarations returns the function declarations for the planner request,
// in registration order.
func (c *Catalog) Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(c.order))
	for _, t := range c.order {
		decls = append(decls, t.Declaration())
	}
	return decls
}
