// Package history turns the persisted session log into the content list sent
// to the planning model.
package history

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/openmule/gacua/internal/schemas"
)

// ImageLoader resolves an image reference to PNG bytes.
type ImageLoader interface {
	GetImage(sessionID, fileName string) ([]byte, error)
}

// Assembler rebuilds the model context for one session.
type Assembler struct {
	images    ImageLoader
	sessionID string
}

// NewAssembler builds an Assembler scoped to a session. Image references
// pointing into other sessions are rejected during assembly.
func NewAssembler(images ImageLoader, sessionID string) *Assembler {
	return &Assembler{images: images, sessionID: sessionID}
}

// Assemble converts persisted messages into genai contents. Display-only
// messages and thought parts are excluded; adjacent contents with the same
// role are merged so the model sees alternating turns.
func (a *Assembler) Assemble(msgs []schemas.Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	for i := range msgs {
		msg := &msgs[i]
		if msg.DisplayOnly() {
			continue
		}
		parts, err := a.convertParts(msg.Parts)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		if len(parts) == 0 {
			continue
		}
		contents = AppendContent(contents, genai.NewContentFromParts(parts, modelRole(msg.Role)))
	}
	return contents, nil
}

// AppendContent appends a content block, merging it into the previous one
// when both carry the same role.
func AppendContent(contents []*genai.Content, next *genai.Content) []*genai.Content {
	if n := len(contents); n > 0 && contents[n-1].Role == next.Role {
		contents[n-1].Parts = append(contents[n-1].Parts, next.Parts...)
		return contents
	}
	return append(contents, next)
}

func modelRole(role schemas.Role) genai.Role {
	if role == schemas.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func (a *Assembler) convertParts(parts []schemas.Part) ([]*genai.Part, error) {
	var out []*genai.Part
	for _, p := range parts {
		switch {
		case p.Thought:
			// Thoughts are never replayed to the model.
		case p.FunctionCall != nil:
			out = append(out, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   p.FunctionCall.ID,
				Name: p.FunctionCall.Name,
				Args: p.FunctionCall.Args,
			}})
		case p.FunctionResponse != nil:
			out = append(out, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       p.FunctionResponse.ID,
				Name:     p.FunctionResponse.Name,
				Response: p.FunctionResponse.Response,
			}})
		case p.Image != nil:
			if p.Image.SessionID != a.sessionID {
				return nil, fmt.Errorf("image reference %s crosses session boundary", p.Image)
			}
			data, err := a.images.GetImage(p.Image.SessionID, p.Image.FileName)
			if err != nil {
				return nil, fmt.Errorf("loading image %s: %w", p.Image, err)
			}
			out = append(out, genai.NewPartFromBytes(data, "image/png"))
		case p.Text != "":
			out = append(out, genai.NewPartFromText(p.Text))
		}
	}
	return out, nil
}
