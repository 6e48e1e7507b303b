package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/teilomillet/wave/server/persona"
	"github.com/teilomillet/wave/server/provider"
)

// ErrNoDecision is returned when the classifier reply names no routable
// character.
var ErrNoDecision = errors.New("no routing decision")

// ReasonLLM is used when the classifier gives no reason.
const ReasonLLM = "LLM 선택"

const classifierSystem = "당신은 JSON만 출력하는 라우터입니다. 설명 없이 JSON만 반환하세요."

var classifierTemplate = template.Must(template.New("router").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`당신은 사용자의 메시지를 분석하여 가장 적합한 AI 캐릭터를 선택하는 라우터입니다.

**캐릭터 정보:**
{{range $i, $c := .Characters}}
{{inc $i}}. **{{$c.Name}} ({{$c.ID}})** {{$c.Emoji}}
   - 역할: {{$c.Role}}
   - 전문성: {{$c.Expertise}}
   - 적합한 상황: {{$c.Situations}}
{{end}}
**사용자 메시지:**
"{{.Message}}"

**분석하여 JSON으로만 답변:**
{
  "character": "{{.Default}}",
  "reason": "선택 이유 짧게 답변"
}`))

type classification struct {
	Character string `json:"character"`
	Reason    string `json:"reason"`
}

// BuildClassifierPrompt renders the routing prompt for message.
func BuildClassifierPrompt(characters []persona.Character, defaultID, message string) (string, error) {
	var buf bytes.Buffer
	err := classifierTemplate.Execute(&buf, map[string]interface{}{
		"Characters": characters,
		"Default":    defaultID,
		"Message":    message,
	})
	if err != nil {
		return "", fmt.Errorf("render router prompt: %w", err)
	}
	return buf.String(), nil
}

// ByLLM asks the gateway to classify message. Only routable characters are
// accepted.
func (r *Router) ByLLM(ctx context.Context, message string, preference []string) (Decision, error) {
	if r.generator == nil {
		return Decision{}, fmt.Errorf("%w: no generator configured", ErrNoDecision)
	}

	routable := r.registry.Routable()
	prompt, err := BuildClassifierPrompt(routable, r.registry.Default().ID, message)
	if err != nil {
		return Decision{}, err
	}

	if r.provider != "" {
		preference = []string{r.provider}
	}

	res, err := r.generator.Generate(ctx, provider.Request{
		System:  classifierSystem,
		Message: prompt,
		Options: provider.Options{Temperature: 0.1, MaxTokens: 300, JSON: true},
	}, preference)
	if err != nil {
		return Decision{}, fmt.Errorf("router call: %w", err)
	}

	var out classification
	if err := json.Unmarshal([]byte(provider.ExtractJSON(res.Content)), &out); err != nil {
		return Decision{}, fmt.Errorf("%w: parse reply: %v", ErrNoDecision, err)
	}

	for _, c := range routable {
		if c.ID == strings.TrimSpace(out.Character) {
			reason := strings.TrimSpace(out.Reason)
			if reason == "" {
				reason = ReasonLLM
			}
			return decision(c, reason, SourceLLM), nil
		}
	}
	return Decision{}, fmt.Errorf("%w: unknown character %q", ErrNoDecision, out.Character)
}
