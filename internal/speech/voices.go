package speech

import (
	"strings"
)

// Voice is one entry of the synthesizer's voice table.
type Voice struct {
	Language string
	Gender   string
	Name     string
	File     string
}

// ID is what gets passed to the synthesizer's -v flag.
func (v Voice) ID() string {
	if v.File != "" {
		return v.File
	}
	return v.Name
}

func (v Voice) english() bool {
	lang := strings.ToLower(v.Language)
	return lang == "en" || strings.HasPrefix(lang, "en-") || strings.HasPrefix(lang, "en_")
}

func (v Voice) female() bool {
	return strings.EqualFold(v.Gender, "F")
}

// ParseVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-gb           --/M      English_(Great_Britain) gmw/en          (en 2)
func ParseVoices(lines []string) []Voice {
	var voices []Voice
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 4 || strings.EqualFold(fields[0], "Pty") {
			continue
		}
		v := Voice{
			Language: fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
		}
		if _, gender, ok := strings.Cut(fields[2], "/"); ok {
			v.Gender = strings.TrimSpace(gender)
		}
		if len(fields) > 4 {
			v.File = fields[4]
		}
		voices = append(voices, v)
	}
	return voices
}

// PickVoice applies the selection order used for the narrator: the first
// preferred name (case-insensitive substring) that matches any voice, then an
// English female voice, then any English voice. ok is false when the
// synthesizer default should be used.
func PickVoice(voices []Voice, preferred []string) (Voice, bool) {
	for _, want := range preferred {
		want = strings.ToLower(strings.TrimSpace(want))
		if want == "" {
			continue
		}
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), want) {
				return v, true
			}
		}
	}
	for _, v := range voices {
		if v.english() && v.female() {
			return v, true
		}
	}
	for _, v := range voices {
		if v.english() {
			return v, true
		}
	}
	return Voice{}, false
}
