package diary

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/teilomillet/wave/server/provider"
)

// ErrInvalidDraft is returned by Parse for replies missing a field or using
// an unknown emotion.
var ErrInvalidDraft = errors.New("invalid diary draft")

// Parse decodes a model reply into a Draft. Fenced code blocks and
// surrounding prose are tolerated; the fields are not.
func Parse(content string) (Draft, error) {
	var d Draft
	if err := json.Unmarshal([]byte(provider.ExtractJSON(content)), &d); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(d.Content)
	d.Emotion = Emotion(strings.ToLower(strings.TrimSpace(string(d.Emotion))))

	switch {
	case d.Title == "":
		return Draft{}, fmt.Errorf("%w: empty title", ErrInvalidDraft)
	case d.Content == "":
		return Draft{}, fmt.Errorf("%w: empty content", ErrInvalidDraft)
	case !d.Emotion.Valid():
		return Draft{}, fmt.Errorf("%w: unknown emotion %q", ErrInvalidDraft, d.Emotion)
	}
	return d, nil
}
