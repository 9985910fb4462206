package llm

import (
	"iter"

	"google.golang.org/genai"
)

// Delta is one streamed fragment of model output.
type Delta struct {
	Text    string
	Thought bool
}

// Result aggregates a fully drained stream: concatenated thought, text, and
// the function calls in the order the model produced them.
type Result struct {
	Thought       string
	Text          string
	FunctionCalls []*genai.FunctionCall
}

// Empty reports whether the model produced neither text nor function calls.
// Thought alone counts as empty.
func (r *Result) Empty() bool {
	return r.Text == "" && len(r.FunctionCalls) == 0
}

// Drain consumes a generate stream, invoking onDelta for every thought and
// text fragment as it arrives, and returns the aggregate result.
func Drain(seq iter.Seq2[*genai.GenerateContentResponse, error], onDelta func(Delta)) (*Result, error) {
	result := &Result{}
	for resp, err := range seq {
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.FunctionCall != nil {
				result.FunctionCalls = append(result.FunctionCalls, part.FunctionCall)
			}
			if part.Text == "" {
				continue
			}
			if onDelta != nil {
				onDelta(Delta{Text: part.Text, Thought: part.Thought})
			}
			if part.Thought {
				result.Thought += part.Text
			} else {
				result.Text += part.Text
			}
		}
	}
	return result, nil
}
