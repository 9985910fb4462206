package schemas

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID(t *testing.T) {
	ts := time.Date(2024, 5, 17, 9, 30, 45, 123_000_000, time.UTC)
	assert.Equal(t, "2024-05-17T09-30-45-123Z", NewSessionID(ts))

	// Non-UTC instants normalize to UTC first.
	loc := time.FixedZone("UTC+2", 2*3600)
	local := time.Date(2024, 5, 17, 9, 30, 45, 123_000_000, loc)
	assert.Equal(t, "2024-05-17T07-30-45-123Z", NewSessionID(local))
}

func TestSessionIDsSortChronologically(t *testing.T) {
	a := NewSessionID(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	b := NewSessionID(time.Date(2024, 1, 2, 0, 0, 0, 1_000_000, time.UTC))
	assert.Less(t, a, b)
}

func TestForDisplayTriState(t *testing.T) {
	displayOnly := true
	modelOnly := false

	both := Message{}
	assert.False(t, both.Hidden())
	assert.False(t, both.DisplayOnly())

	display := Message{ForDisplay: &displayOnly}
	assert.False(t, display.Hidden())
	assert.True(t, display.DisplayOnly())

	hidden := Message{ForDisplay: &modelOnly}
	assert.True(t, hidden.Hidden())
	assert.False(t, hidden.DisplayOnly())
}

func TestImageRefRoundTrip(t *testing.T) {
	ref := ImageRef{SessionID: "2024-05-17T09-30-45-123Z", FileName: "tile-0.png"}
	assert.Equal(t, "internal://2024-05-17T09-30-45-123Z/tile-0.png", ref.String())

	data, err := json.Marshal(ImagePart(ref.SessionID, ref.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"internal://2024-05-17T09-30-45-123Z/tile-0.png"`)

	var part Part
	require.NoError(t, json.Unmarshal(data, &part))
	require.NotNil(t, part.Image)
	assert.Equal(t, ref, *part.Image)
}

func TestParseImageRefErrors(t *testing.T) {
	for _, bad := range []string{
		"",
		"tile-0.png",
		"internal://",
		"internal://session-only",
		"internal:///file.png",
		"http://host/file.png",
	} {
		_, err := ParseImageRef(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestReviewChoiceValid(t *testing.T) {
	assert.True(t, AcceptOnce.Valid())
	assert.True(t, AcceptSession.Valid())
	assert.True(t, RejectOnce.Valid())
	assert.False(t, ReviewChoice("maybe").Valid())
	assert.False(t, ReviewChoice("").Valid())
}

func TestSessionAccepted(t *testing.T) {
	s := Session{AcceptedTools: []string{"computer_click"}}
	assert.True(t, s.Accepted("computer_click"))
	assert.False(t, s.Accepted("computer_type"))
	assert.False(t, (&Session{}).Accepted("computer_click"))
}

func TestResponseHelpers(t *testing.T) {
	errPart := ErrorResponse("c1", "computer_click", "nope")
	require.NotNil(t, errPart.FunctionResponse)
	assert.Equal(t, map[string]any{"error": "nope"}, errPart.FunctionResponse.Response)

	outPart := OutputResponse("c1", ".computer", "done")
	require.NotNil(t, outPart.FunctionResponse)
	assert.Equal(t, map[string]any{"output": "done"}, outPart.FunctionResponse.Response)
}
