// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"strings"

	"golang.org/x/text/language"
)

// Voice is one synthesizer voice.
type Voice struct {
	ID   string
	Lang string
	Name string
}

// SelectVoice picks a voice for lang: an exact tag match first, then any
// voice sharing the base language. ok is false when nothing matches and the
// engine default should be used.
func SelectVoice(voices []Voice, lang string) (Voice, bool) {
	want := normalizeTag(lang)
	if want == "" {
		return Voice{}, false
	}
	for _, v := range voices {
		if normalizeTag(v.Lang) == want {
			return v, true
		}
	}
	base := baseLanguage(lang)
	for _, v := range voices {
		if baseLanguage(v.Lang) == base {
			return v, true
		}
	}
	return Voice{}, false
}

func normalizeTag(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", "-"))
	if s == "" {
		return ""
	}
	if tag, err := language.Parse(s); err == nil {
		return strings.ToLower(tag.String())
	}
	return strings.ToLower(s)
}

func baseLanguage(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", "-"))
	if tag, err := language.Parse(s); err == nil {
		b, _ := tag.Base()
		return b.String()
	}
	if i := strings.IndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}

// ParseEspeakVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  af              --/M      Afrikaans          gmw/af
//
// The language column doubles as the voice ID.
func ParseEspeakVoices(out string) []Voice {
	var voices []Voice
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if i == 0 && len(fields) > 0 && fields[0] == "Pty" {
			continue
		}
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{ID: fields[1], Lang: fields[1], Name: fields[3]})
	}
	return voices
}
