package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/computer"
	"github.com/openmule/gacua/internal/schemas"
)

// waitTool pauses for a number of seconds. No grounding required.
type waitTool struct{}

func (waitTool) Name() string { return "computer_wait" }

func (waitTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "computer_wait",
		Description: "Wait for a number of seconds, e.g. for a page to load.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"time": {
					Type:        genai.TypeNumber,
					Description: "Seconds to wait.",
				},
			},
			Required: []string{"time"},
		},
	}
}

func (waitTool) ValidateArgs(args map[string]any) error {
	secs, err := argFloat(args, "time", true, 0)
	if err != nil {
		return err
	}
	if secs < 0 {
		return fmt.Errorf("argument \"time\" must be non-negative")
	}
	return nil
}

func (t waitTool) Ground(ctx context.Context, in GroundInput) (*GroundedCall, error) {
	secs, _ := argFloat(in.Call.Args, "time", true, 0)

	args := map[string]any{
		"action": computer.ActionWait,
		"time":   secs,
	}
	describe := func(ctx context.Context, save SaveImageFunc) ([]schemas.Part, error) {
		return []schemas.Part{schemas.TextPart(fmt.Sprintf("Wait for %g second(s)", secs))}, nil
	}
	return newGroundedCall(in.Call, args, describe), nil
}
