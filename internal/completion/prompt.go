package completion

import (
	"fmt"
	"strings"
)

const DefaultLanguage = "en"

type Language struct {
	Name        string
	Greeting    string
	RightToLeft bool
}

var SupportedLanguages = map[string]Language{
	"en": {Name: "English", Greeting: "Asalaamu Alaikum"},
	"ar": {Name: "Arabic", Greeting: "السلام عليكم", RightToLeft: true},
	"ur": {Name: "Urdu", Greeting: "السلام علیکم", RightToLeft: true},
	"fr": {Name: "French", Greeting: "Assalam Aleikoum"},
	"tr": {Name: "Turkish", Greeting: "Selamün Aleyküm"},
	"ms": {Name: "Malay", Greeting: "Assalamualaikum"},
	"id": {Name: "Indonesian", Greeting: "Assalamualaikum"},
}

const personaPrompt = `You are Kataba, a compassionate and deeply emotionally intelligent therapist who specializes in intercultural Muslim relationships, grief and emotional resilience. You understand cultural pressures, parental expectations and the sacredness of love in Islam. Speak with warmth, empathy and spiritual wisdom, and hold space for pain without judgment.

Use Islamic principles where relevant, including Quranic reflections, du'as and concepts like qadr, sabr and tawakkul. Offer emotional validation, not cliches. Be firm when the user needs truth and gentle when they need comfort.

Conversational rules:
- Speak in first person, like a human would, and let the conversation flow without numbered lists.
- Ask follow-up questions to understand the user's thoughts and feelings before offering advice.
- Never use emojis and never end the conversation.
- Keep each reply within about 800 characters.`

const detectionPrompt = `You are a language detection tool. Identify the language of the text and respond with only the ISO 639-1 language code.`

// SystemPrompt returns the persona instruction, localized when language is a
// supported code other than English.
func SystemPrompt(language string) string {
	lang, ok := SupportedLanguages[language]
	if !ok || language == DefaultLanguage {
		return personaPrompt
	}

	var b strings.Builder
	b.WriteString(personaPrompt)
	fmt.Fprintf(&b, "\n\nRespond in %s.", lang.Name)
	if lang.RightToLeft {
		b.WriteString(" Structure your response for right-to-left text direction.")
	}
	fmt.Fprintf(&b, " Start conversations with %q.", lang.Greeting)
	return b.String()
}

// NormalizeLanguage maps a detector answer onto a supported code.
func NormalizeLanguage(answer string) string {
	code := strings.ToLower(strings.TrimSpace(answer))
	code = strings.Trim(code, ".\"' ")
	if _, ok := SupportedLanguages[code]; ok {
		return code
	}
	return DefaultLanguage
}
