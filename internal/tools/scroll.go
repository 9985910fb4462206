package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/computer"
	"github.com/openmule/gacua/internal/schemas"
	"github.com/openmule/gacua/internal/screen"
)

var scrollDirections = map[string]bool{"up": true, "down": true, "left": true, "right": true}

// scrollTool scrolls over a grounded element. Kept out of the catalog for
// now: dense pages trip the planner into scroll loops, and keyboard paging
// via computer_key covers the common cases.
type scrollTool struct{}

func (scrollTool) Name() string { return "computer_scroll" }

func (scrollTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "computer_scroll",
		Description: "Scroll over a UI element visible in one of the cropped screenshots.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"image_id": {
					Type:        genai.TypeInteger,
					Description: "Index of the cropped screenshot containing the element.",
				},
				"element_description": {
					Type:        genai.TypeString,
					Description: "Visual description of the element to scroll over.",
				},
				"direction": {
					Type:        genai.TypeString,
					Description: "Scroll direction: up, down, left or right. Defaults to down.",
				},
				"scroll_amount": {
					Type:        genai.TypeInteger,
					Description: "Number of wheel clicks. Defaults to 3.",
				},
			},
			Required: []string{"image_id", "element_description"},
		},
	}
}

func (scrollTool) ValidateArgs(args map[string]any) error {
	id, err := argInt(args, "image_id", true, 0)
	if err != nil {
		return err
	}
	if id < 0 {
		return fmt.Errorf("argument \"image_id\" must be a non-negative integer")
	}
	if _, err := argString(args, "element_description", true); err != nil {
		return err
	}
	dir, err := argString(args, "direction", false)
	if err != nil {
		return err
	}
	if dir != "" && !scrollDirections[dir] {
		return fmt.Errorf("argument \"direction\" must be one of up, down, left, right")
	}
	amount, err := argInt(args, "scroll_amount", false, 3)
	if err != nil {
		return err
	}
	if amount < 1 {
		return fmt.Errorf("argument \"scroll_amount\" must be at least 1")
	}
	return nil
}

func (t scrollTool) Ground(ctx context.Context, in GroundInput) (*GroundedCall, error) {
	imageID, _ := argInt(in.Call.Args, "image_id", true, 0)
	desc, _ := argString(in.Call.Args, "element_description", true)
	dir, _ := argString(in.Call.Args, "direction", false)
	if dir == "" {
		dir = "down"
	}
	amount, _ := argInt(in.Call.Args, "scroll_amount", false, 3)

	if err := checkTileIndex(imageID, in.Tiler.Geometry().NumTiles()); err != nil {
		return nil, err
	}
	det, err := in.Detect(ctx, imageID, "Scroll over: "+desc)
	if err != nil {
		return nil, err
	}
	coord, err := in.Tiler.ToScreenCoord(imageID, det.Box)
	if err != nil {
		return nil, err
	}

	args := map[string]any{
		"action":        computer.ActionScroll,
		"coordinate":    []int{coord.X, coord.Y},
		"direction":     dir,
		"scroll_amount": amount,
	}
	describe := func(ctx context.Context, save SaveImageFunc) ([]schemas.Part, error) {
		parts := []schemas.Part{schemas.TextPart(fmt.Sprintf(
			"Scroll %s %d click(s) over: %s", dir, amount, desc,
		))}
		img, err := in.Tiler.HighlightBox(imageID, det.Box, screen.DefaultColor, screen.DefaultWidth)
		if err != nil {
			return nil, err
		}
		png, err := screen.EncodePNG(img)
		if err != nil {
			return nil, err
		}
		part, err := save(png)
		if err != nil {
			return nil, err
		}
		return append(parts, part), nil
	}
	return newGroundedCall(in.Call, args, describe), nil
}
