package pipeline

// Language is one entry of the fixed supported set. Name feeds the scoring
// prompts, Locale feeds the speech-to-text provider.
type Language struct {
	Code   string
	Name   string
	Locale string
}

var supportedLanguages = map[string]Language{
	"ru": {Code: "ru", Name: "Russian", Locale: "ru-RU"},
	"en": {Code: "en", Name: "English", Locale: "en-US"},
	"es": {Code: "es", Name: "Spanish", Locale: "es-ES"},
	"de": {Code: "de", Name: "German", Locale: "de-DE"},
	"fr": {Code: "fr", Name: "French", Locale: "fr-FR"},
}

// ResolveLanguage maps an interview language code onto the supported set.
// Unsupported codes abort a run before any cost is incurred.
func ResolveLanguage(code string) (Language, bool) {
	l, ok := supportedLanguages[code]
	return l, ok
}
