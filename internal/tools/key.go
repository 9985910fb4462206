package tools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/computer"
	"github.com/openmule/gacua/internal/schemas"
)

// keyTool presses a key combination. No grounding required.
type keyTool struct{}

func (keyTool) Name() string { return "computer_key" }

func (keyTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "computer_key",
		Description: "Press a key or key combination, optionally holding it.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"keys": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeString},
					Description: "Keys pressed together, e.g. [\"ctrl\", \"c\"].",
				},
				"hold_duration": {
					Type:        genai.TypeNumber,
					Description: "Seconds to hold the keys down. Defaults to 0.",
				},
			},
			Required: []string{"keys"},
		},
	}
}

func (keyTool) ValidateArgs(args map[string]any) error {
	keys, err := argStringSlice(args, "keys", true)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("argument \"keys\" must not be empty")
	}
	dur, err := argFloat(args, "hold_duration", false, 0)
	if err != nil {
		return err
	}
	if dur < 0 {
		return fmt.Errorf("argument \"hold_duration\" must be non-negative")
	}
	return nil
}

func (t keyTool) Ground(ctx context.Context, in GroundInput) (*GroundedCall, error) {
	keys, _ := argStringSlice(in.Call.Args, "keys", true)
	dur, _ := argFloat(in.Call.Args, "hold_duration", false, 0)

	args := map[string]any{
		"action":        computer.ActionKey,
		"keys":          keys,
		"hold_duration": dur,
	}
	describe := func(ctx context.Context, save SaveImageFunc) ([]schemas.Part, error) {
		s := fmt.Sprintf("Press keys: %s", strings.Join(keys, "+"))
		if dur > 0 {
			s += fmt.Sprintf(", held for %g second(s)", dur)
		}
		return []schemas.Part{schemas.TextPart(s)}, nil
	}
	return newGroundedCall(in.Call, args, describe), nil
}
