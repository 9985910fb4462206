// Package tools declares the abstract computer-control tool set exposed to
// the planning model and turns validated calls into grounded .computer
// actions carrying concrete screen coordinates.
package tools

import (
	"context"

	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/computer"
	"github.com/openmule/gacua/internal/grounding"
	"github.com/openmule/gacua/internal/schemas"
	"github.com/openmule/gacua/internal/screen"
)

// DetectFunc grounds an element description within one tile. Implementations
// run the grounding model; tests script it.
type DetectFunc func(ctx context.Context, tileIndex int, description string) (*grounding.Detection, error)

// SaveImageFunc persists an annotated screenshot under the current session
// and returns the content part referencing it.
type SaveImageFunc func(img []byte) (schemas.Part, error)

// GroundInput carries everything a tool needs to ground one call: the
// planner's call (with normalized id), the per-screenshot tiler, and the
// detection callback.
type GroundInput struct {
	Call   schemas.FunctionCall
	Tiler  *screen.Tiler
	Detect DetectFunc
}

// Tool is one planner-visible computer tool. The set is closed; instances
// are registered statically in NewCatalog.
type Tool interface {
	// Name is the planner-visible function name.
	Name() string
	// Declaration describes the tool and its argument schema to the model.
	Declaration() *genai.FunctionDeclaration
	// ValidateArgs checks the call arguments against the schema.
	ValidateArgs(args map[string]any) error
	// Ground converts validated arguments into a grounded call. Errors are
	// grounding failures the agent forges into tool errors.
	Ground(ctx context.Context, in GroundInput) (*GroundedCall, error)
}

// GroundedCall is a low-level .computer action ready for execution, plus the
// material to describe it to the reviewing user.
type GroundedCall struct {
	// Call executes under the .computer tool; its id equals the original's.
	Call schemas.FunctionCall
	// Original is the planner's call before grounding.
	Original schemas.FunctionCall

	describe func(ctx context.Context, save SaveImageFunc) ([]schemas.Part, error)
}

// Describe produces the ordered description parts shown in the tool-review
// request: text fragments and, for grounded targets, an annotated screenshot.
func (g *GroundedCall) Describe(ctx context.Context, save SaveImageFunc) ([]schemas.Part, error) {
	if g.describe == nil {
		return nil, nil
	}
	return g.describe(ctx, save)
}

func newGroundedCall(original schemas.FunctionCall, args map[string]any, describe func(context.Context, SaveImageFunc) ([]schemas.Part, error)) *GroundedCall {
	return &GroundedCall{
		Call: schemas.FunctionCall{
			ID:   original.ID,
			Name: computer.ToolName,
			Args: args,
		},
		Original: original,
		describe: describe,
	}
}
