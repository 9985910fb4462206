package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/computer"
	"github.com/openmule/gacua/internal/schemas"
	"github.com/openmule/gacua/internal/screen"
)

var buttonTypes = map[string]bool{"left": true, "middle": true, "right": true}

// clickTool grounds a single element description and clicks its center.
type clickTool struct{}

func (clickTool) Name() string { return "computer_click" }

func (clickTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "computer_click",
		Description: "Click on a UI element visible in one of the cropped screenshots.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"image_id": {
					Type:        genai.TypeInteger,
					Description: "Index of the cropped screenshot containing the element.",
				},
				"element_description": {
					Type:        genai.TypeString,
					Description: "Visual description of the element to click.",
				},
				"num_clicks": {
					Type:        genai.TypeInteger,
					Description: "Number of clicks to perform. Defaults to 1.",
				},
				"button_type": {
					Type:        genai.TypeString,
					Description: "Mouse button to use: left, middle or right. Defaults to left.",
				},
				"hold_keys": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeString},
					Description: "Keys to hold down while clicking.",
				},
			},
			Required: []string{"image_id", "element_description"},
		},
	}
}

func (clickTool) ValidateArgs(args map[string]any) error {
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
	n, err := argInt(args, "num_clicks", false, 1)
	if err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("argument \"num_clicks\" must be at least 1")
	}
	button, err := argString(args, "button_type", false)
	if err != nil {
		return err
	}
	if button != "" && !buttonTypes[button] {
		return fmt.Errorf("argument \"button_type\" must be one of left, middle, right")
	}
	_, err = argStringSlice(args, "hold_keys", false)
	return err
}

func (t clickTool) Ground(ctx context.Context, in GroundInput) (*GroundedCall, error) {
	imageID, _ := argInt(in.Call.Args, "image_id", true, 0)
	desc, _ := argString(in.Call.Args, "element_description", true)
	numClicks, _ := argInt(in.Call.Args, "num_clicks", false, 1)
	button, _ := argString(in.Call.Args, "button_type", false)
	if button == "" {
		button = "left"
	}
	holdKeys, _ := argStringSlice(in.Call.Args, "hold_keys", false)
	if holdKeys == nil {
		holdKeys = []string{}
	}

	if err := checkTileIndex(imageID, in.Tiler.Geometry().NumTiles()); err != nil {
		return nil, err
	}
	det, err := in.Detect(ctx, imageID, "Click on: "+desc)
	if err != nil {
		return nil, err
	}
	coord, err := in.Tiler.ToScreenCoord(imageID, det.Box)
	if err != nil {
		return nil, err
	}

	args := map[string]any{
		"action":      computer.ActionClick,
		"coordinate":  []int{coord.X, coord.Y},
		"num_clicks":  numClicks,
		"button_type": button,
		"hold_keys":   holdKeys,
	}
	describe := func(ctx context.Context, save SaveImageFunc) ([]schemas.Part, error) {
		parts := []schemas.Part{schemas.TextPart(fmt.Sprintf(
			"Click %d time(s) with the %s button on: %s", numClicks, button, desc,
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
