package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/computer"
	"github.com/openmule/gacua/internal/schemas"
	"github.com/openmule/gacua/internal/screen"
)

// typeTool types text, optionally after clicking a grounded target field.
type typeTool struct{}

func (typeTool) Name() string { return "computer_type" }

func (typeTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name: "computer_type",
		Description: "Type text. When image_id and element_description are given, " +
			"the target field is clicked first.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text": {
					Type:        genai.TypeString,
					Description: "The text to type.",
				},
				"image_id": {
					Type:        genai.TypeInteger,
					Description: "Index of the cropped screenshot containing the input field.",
				},
				"element_description": {
					Type:        genai.TypeString,
					Description: "Visual description of the input field to click before typing.",
				},
				"overwrite": {
					Type:        genai.TypeBoolean,
					Description: "Select all and delete existing content before typing.",
				},
				"enter": {
					Type:        genai.TypeBoolean,
					Description: "Press Return after typing.",
				},
			},
			Required: []string{"text"},
		},
	}
}

func (typeTool) ValidateArgs(args map[string]any) error {
	if _, err := argString(args, "text", true); err != nil {
		return err
	}
	_, hasID := args["image_id"]
	_, hasDesc := args["element_description"]
	if hasID != hasDesc {
		return fmt.Errorf("arguments \"image_id\" and \"element_description\" must be given together")
	}
	if hasID {
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
	}
	if _, err := argBool(args, "overwrite"); err != nil {
		return err
	}
	_, err := argBool(args, "enter")
	return err
}

func (t typeTool) Ground(ctx context.Context, in GroundInput) (*GroundedCall, error) {
	text, _ := argString(in.Call.Args, "text", true)
	overwrite, _ := argBool(in.Call.Args, "overwrite")
	enter, _ := argBool(in.Call.Args, "enter")

	args := map[string]any{
		"action":    computer.ActionType,
		"text":      text,
		"overwrite": overwrite,
		"enter":     enter,
	}

	_, targeted := in.Call.Args["image_id"]
	if !targeted {
		describe := func(ctx context.Context, save SaveImageFunc) ([]schemas.Part, error) {
			return []schemas.Part{schemas.TextPart(typeSummary(text, "", overwrite, enter))}, nil
		}
		return newGroundedCall(in.Call, args, describe), nil
	}

	imageID, _ := argInt(in.Call.Args, "image_id", true, 0)
	desc, _ := argString(in.Call.Args, "element_description", true)
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
	args["coordinate"] = []int{coord.X, coord.Y}

	describe := func(ctx context.Context, save SaveImageFunc) ([]schemas.Part, error) {
		parts := []schemas.Part{schemas.TextPart(typeSummary(text, desc, overwrite, enter))}
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

func typeSummary(text, target string, overwrite, enter bool) string {
	s := fmt.Sprintf("Type %q", text)
	if target != "" {
		s += fmt.Sprintf(" into: %s", target)
	}
	if overwrite {
		s += ", replacing existing content"
	}
	if enter {
		s += ", then press Return"
	}
	return s
}
