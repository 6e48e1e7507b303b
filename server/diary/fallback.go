package diary

import "strings"

type mood struct {
	emotion  Emotion
	title    string
	keywords []string
}

// Checked in order; the first mood with any keyword present wins.
var moods = []mood{
	{Happy, "기분 좋은 하루", []string{"좋", "행복", "기쁨", "즐거"}},
	{Sad, "힘들었던 하루", []string{"힘들", "슬프", "우울", "속상"}},
	{Anxious, "불안했던 하루", []string{"불안", "걱정", "긴장"}},
	{Calm, "평온한 하루", []string{"평온", "편안", "차분"}},
	{Excited, "설레는 하루", []string{"설레", "기대", "신나"}},
	{Tired, "피곤한 하루", []string{"피곤", "지침", "힘", "졸려"}},
}

// Fallback builds a draft from keywords alone.
func Fallback(messages []string) Draft {
	if len(messages) == 0 {
		return Placeholder
	}

	d := Draft{
		Title:    Placeholder.Title,
		Emotion:  Neutral,
		Content:  preview(messages),
		Provider: FallbackProvider,
	}

	text := strings.ToLower(strings.Join(messages, " "))
	for _, m := range moods {
		if containsAny(text, m.keywords) {
			d.Emotion = m.emotion
			d.Title = m.title
			break
		}
	}
	return d
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// preview joins the first few messages and cuts the result to previewLen
// runes.
func preview(messages []string) string {
	if len(messages) > previewSources {
		messages = messages[:previewSources]
	}
	runes := []rune(strings.Join(messages, " "))
	if len(runes) <= previewLen {
		return string(runes)
	}
	return string(runes[:previewLen]) + "..."
}
