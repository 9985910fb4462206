package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/schemas"
)

type fakeImages map[string][]byte

func (f fakeImages) GetImage(sessionID, fileName string) ([]byte, error) {
	data, ok := f[sessionID+"/"+fileName]
	if !ok {
		return nil, fmt.Errorf("image %s/%s not found", sessionID, fileName)
	}
	return data, nil
}

func boolPtr(b bool) *bool { return &b }

func TestAssembleRolesAndMerging(t *testing.T) {
	a := NewAssembler(fakeImages{}, "sess")

	msgs := []schemas.Message{
		{ID: "m1", Role: schemas.RoleUser, Parts: []schemas.Part{schemas.TextPart("open the settings")}},
		{ID: "m2", Role: schemas.RoleWorkflow, Parts: []schemas.Part{schemas.TextPart("Turn 1")}},
		{ID: "m3", Role: schemas.RoleModel, Parts: []schemas.Part{schemas.TextPart("Looking at the screen.")}},
		{ID: "m4", Role: schemas.RoleTool, Parts: []schemas.Part{
			schemas.OutputResponse("c1", ".computer", "done"),
		}},
	}

	contents, err := a.Assemble(msgs)
	require.NoError(t, err)
	require.Len(t, contents, 3)

	// user and workflow both map to the user role and merge.
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "open the settings", contents[0].Parts[0].Text)
	assert.Equal(t, "Turn 1", contents[0].Parts[1].Text)

	assert.Equal(t, genai.RoleModel, contents[1].Role)

	assert.Equal(t, genai.RoleUser, contents[2].Role)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, ".computer", contents[2].Parts[0].FunctionResponse.Name)
}

func TestAssembleFiltersDisplayOnlyAndThoughts(t *testing.T) {
	a := NewAssembler(fakeImages{}, "sess")

	msgs := []schemas.Message{
		{ID: "m1", Role: schemas.RoleUser, Parts: []schemas.Part{schemas.TextPart("hi")}},
		{ID: "m2", Role: schemas.RoleGroundingModel, ForDisplay: boolPtr(true), Parts: []schemas.Part{
			schemas.TextPart("detection chatter"),
		}},
		{ID: "m3", Role: schemas.RoleModel, Parts: []schemas.Part{
			schemas.ThoughtPart("reasoning..."),
			schemas.TextPart("I will click it."),
		}},
	}

	contents, err := a.Assemble(msgs)
	require.NoError(t, err)
	require.Len(t, contents, 2)
	require.Len(t, contents[1].Parts, 1)
	assert.Equal(t, "I will click it.", contents[1].Parts[0].Text)
}

func TestAssembleSkipsEmptyMessages(t *testing.T) {
	a := NewAssembler(fakeImages{}, "sess")

	msgs := []schemas.Message{
		{ID: "m1", Role: schemas.RoleModel, Parts: []schemas.Part{schemas.ThoughtPart("only thinking")}},
		{ID: "m2", Role: schemas.RoleUser, Parts: []schemas.Part{schemas.TextPart("go on")}},
	}

	contents, err := a.Assemble(msgs)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
}

func TestAssembleInlinesImages(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	a := NewAssembler(fakeImages{"sess/shot.png": png}, "sess")

	msgs := []schemas.Message{
		{ID: "m1", Role: schemas.RoleWorkflow, ForDisplay: boolPtr(false), Parts: []schemas.Part{
			schemas.TextPart("Current screen:"),
			schemas.ImagePart("sess", "shot.png"),
		}},
	}

	contents, err := a.Assemble(msgs)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 2)
	require.NotNil(t, contents[0].Parts[1].InlineData)
	assert.Equal(t, png, contents[0].Parts[1].InlineData.Data)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)
}

func TestAssembleRejectsCrossSessionImages(t *testing.T) {
	a := NewAssembler(fakeImages{"other/shot.png": {1}}, "sess")

	msgs := []schemas.Message{
		{ID: "m1", Role: schemas.RoleUser, Parts: []schemas.Part{
			schemas.ImagePart("other", "shot.png"),
		}},
	}

	_, err := a.Assemble(msgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crosses session boundary")
}

func TestAssembleMissingImage(t *testing.T) {
	a := NewAssembler(fakeImages{}, "sess")

	msgs := []schemas.Message{
		{ID: "m1", Role: schemas.RoleUser, Parts: []schemas.Part{
			schemas.ImagePart("sess", "gone.png"),
		}},
	}

	_, err := a.Assemble(msgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone.png")
}

func TestAssemblePreservesFunctionCalls(t *testing.T) {
	a := NewAssembler(fakeImages{}, "sess")

	msgs := []schemas.Message{
		{ID: "m1", Role: schemas.RoleModel, Parts: []schemas.Part{
			schemas.TextPart("Clicking."),
			{FunctionCall: &schemas.FunctionCall{
				ID: "c1", Name: "computer_click",
				Args: map[string]any{"image_id": float64(0), "element_description": "OK"},
			}},
		}},
	}

	contents, err := a.Assemble(msgs)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 2)
	fc := contents[0].Parts[1].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "c1", fc.ID)
	assert.Equal(t, "computer_click", fc.Name)
}
