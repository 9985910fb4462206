// Package grounding converts a textual description of a UI element plus one
// screenshot tile into a validated normalized bounding box, using the model
// in bounded-JSON mode.
package grounding

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/llm"
	"github.com/openmule/gacua/internal/screen"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// thinkingBudget keeps the grounding model's reasoning short; detection is a
// perception task, not a planning one.
const thinkingBudget int32 = 256

// responseSchema constrains the model to {box_2d: [4]int, label?: string}.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"box_2d": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeInteger},
		},
		"label": {Type: genai.TypeString},
	},
	Required: []string{"box_2d"},
}

// Detection is a successful grounding result.
type Detection struct {
	Box   screen.Box
	Label string
}

// Detector runs single-tile detections against the grounding model.
type Detector struct {
	gen   llm.ContentGenerator
	model string
	log   *zap.Logger
}

// NewDetector builds a Detector for the given model.
func NewDetector(gen llm.ContentGenerator, model string, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{gen: gen, model: model, log: logger.Named("grounding")}
}

// Detect asks the model for the bounding box of the described element within
// one 768x768 tile. Streamed thought/text deltas are forwarded to onDelta so
// the caller can surface them tagged as grounding-model output. Every failure
// is returned as a descriptive error for the agent to forge into a tool error.
func (d *Detector) Detect(ctx context.Context, tilePNG []byte, description string, onDelta func(llm.Delta)) (*Detection, error) {
	prompt := fmt.Sprintf(
		"Detect the %s in the image. The box_2d should be [ymin, xmin, ymax, xmax] normalized to 0-1000.",
		description,
	)
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(tilePNG, "image/png"),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(thinkingBudget),
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	}

	result, err := llm.Drain(d.gen.GenerateContentStream(ctx, d.model, contents, config), onDelta)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	if result.Text == "" {
		return nil, fmt.Errorf("detection model returned no content for %q", description)
	}

	detection, err := parseDetection(result.Text)
	if err != nil {
		d.log.Warn("Invalid detection response", zap.String("description", description), zap.Error(err))
		return nil, err
	}
	return detection, nil
}

type wireDetection struct {
	Box2D []float64 `json:"box_2d"`
	Label string    `json:"label"`
}

// parseDetection decodes and validates the bounded-JSON payload. A JSON
// array is accepted by taking its first element.
func parseDetection(text string) (*Detection, error) {
	trimmed := strings.TrimSpace(text)

	var wire wireDetection
	if strings.HasPrefix(trimmed, "[") {
		var list []wireDetection
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return nil, fmt.Errorf("failed to parse detection response: %v", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("detection response is an empty array")
		}
		wire = list[0]
	} else if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return nil, fmt.Errorf("failed to parse detection response: %v", err)
	}

	if len(wire.Box2D) != 4 {
		return nil, fmt.Errorf("box_2d must have exactly 4 elements, got %d", len(wire.Box2D))
	}
	var box screen.Box
	for i, v := range wire.Box2D {
		if v < 0 || v > screen.NormalizedMax {
			return nil, fmt.Errorf("box_2d[%d] = %v is outside [0, %d]", i, v, screen.NormalizedMax)
		}
		box[i] = int(v)
	}
	if box.YMin() >= box.YMax() {
		return nil, fmt.Errorf("box_2d has ymin %d >= ymax %d", box.YMin(), box.YMax())
	}
	if box.XMin() >= box.XMax() {
		return nil, fmt.Errorf("box_2d has xmin %d >= xmax %d", box.XMin(), box.XMax())
	}
	return &Detection{Box: box, Label: wire.Label}, nil
}
