package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/computer"
	"github.com/openmule/gacua/internal/schemas"
	"github.com/openmule/gacua/internal/screen"
)

// dragTool grounds two element descriptions and drags between their centers.
type dragTool struct{}

func (dragTool) Name() string { return "computer_drag_and_drop" }

func (dragTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "computer_drag_and_drop",
		Description: "Drag from one UI element to another.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"starting_image_id": {
					Type:        genai.TypeInteger,
					Description: "Index of the cropped screenshot containing the drag source.",
				},
				"starting_description": {
					Type:        genai.TypeString,
					Description: "Visual description of the element to drag.",
				},
				"ending_image_id": {
					Type:        genai.TypeInteger,
					Description: "Index of the cropped screenshot containing the drop target.",
				},
				"ending_description": {
					Type:        genai.TypeString,
					Description: "Visual description of the drop target.",
				},
				"hold_keys": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeString},
					Description: "Keys to hold down while dragging.",
				},
			},
			Required: []string{
				"starting_image_id", "starting_description",
				"ending_image_id", "ending_description",
			},
		},
	}
}

func (dragTool) ValidateArgs(args map[string]any) error {
	for _, key := range []string{"starting_image_id", "ending_image_id"} {
		id, err := argInt(args, key, true, 0)
		if err != nil {
			return err
		}
		if id < 0 {
			return fmt.Errorf("argument %q must be a non-negative integer", key)
		}
	}
	for _, key := range []string{"starting_description", "ending_description"} {
		if _, err := argString(args, key, true); err != nil {
			return err
		}
	}
	_, err := argStringSlice(args, "hold_keys", false)
	return err
}

func (t dragTool) Ground(ctx context.Context, in GroundInput) (*GroundedCall, error) {
	startID, _ := argInt(in.Call.Args, "starting_image_id", true, 0)
	startDesc, _ := argString(in.Call.Args, "starting_description", true)
	endID, _ := argInt(in.Call.Args, "ending_image_id", true, 0)
	endDesc, _ := argString(in.Call.Args, "ending_description", true)
	holdKeys, _ := argStringSlice(in.Call.Args, "hold_keys", false)
	if holdKeys == nil {
		holdKeys = []string{}
	}

	numTiles := in.Tiler.Geometry().NumTiles()
	if err := checkTileIndex(startID, numTiles); err != nil {
		return nil, err
	}
	if err := checkTileIndex(endID, numTiles); err != nil {
		return nil, err
	}

	startDet, err := in.Detect(ctx, startID, "Drag from: "+startDesc)
	if err != nil {
		return nil, err
	}
	endDet, err := in.Detect(ctx, endID, "Drop onto: "+endDesc)
	if err != nil {
		return nil, err
	}
	start, err := in.Tiler.ToScreenCoord(startID, startDet.Box)
	if err != nil {
		return nil, err
	}
	end, err := in.Tiler.ToScreenCoord(endID, endDet.Box)
	if err != nil {
		return nil, err
	}

	args := map[string]any{
		"action":            computer.ActionDragAndDrop,
		"coordinate":        []int{start.X, start.Y},
		"target_coordinate": []int{end.X, end.Y},
		"hold_keys":         holdKeys,
	}
	describe := func(ctx context.Context, save SaveImageFunc) ([]schemas.Part, error) {
		parts := []schemas.Part{schemas.TextPart(fmt.Sprintf(
			"Drag %s onto %s", startDesc, endDesc,
		))}
		img, err := in.Tiler.HighlightArrow(
			screen.ArrowEnd{Tile: startID, Box: startDet.Box},
			screen.ArrowEnd{Tile: endID, Box: endDet.Box},
			screen.DefaultColor, screen.DefaultWidth,
		)
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
