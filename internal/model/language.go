// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultLanguage is the reply language used when no preference is stored.
const DefaultLanguage = "English"

// Fallback codes for names missing from the table.
const (
	FallbackRecognitionCode = "en-US"
	FallbackSpeechCode      = "en"
)

// Language pairs a display name (sent to the model verbatim) with the BCP-47
// code the speech engines use.
type Language struct {
	Name string
	Code string
}

// Languages is the fixed set offered in the language picker.
var Languages = []Language{
	{Name: "English", Code: "en-US"},
	{Name: "Spanish", Code: "es-ES"},
	{Name: "French", Code: "fr-FR"},
	{Name: "German", Code: "de-DE"},
	{Name: "Italian", Code: "it-IT"},
	{Name: "Portuguese", Code: "pt-BR"},
	{Name: "Dutch", Code: "nl-NL"},
	{Name: "Russian", Code: "ru-RU"},
	{Name: "Ukrainian", Code: "uk-UA"},
	{Name: "Polish", Code: "pl-PL"},
	{Name: "Turkish", Code: "tr-TR"},
	{Name: "Arabic", Code: "ar-SA"},
	{Name: "Hindi", Code: "hi-IN"},
	{Name: "Japanese", Code: "ja-JP"},
	{Name: "Korean", Code: "ko-KR"},
	{Name: "Chinese", Code: "zh-CN"},
}

// LookupLanguage finds a language by name, case-insensitively.
func LookupLanguage(name string) (Language, bool) {
	name = strings.TrimSpace(name)
	for _, l := range Languages {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return Language{}, false
}

// RecognitionCode returns the speech recognition code for a language name.
func RecognitionCode(name string) string {
	if l, ok := LookupLanguage(name); ok {
		return l.Code
	}
	return FallbackRecognitionCode
}

// SpeechCode returns the synthesis code for a language name.
func SpeechCode(name string) string {
	if l, ok := LookupLanguage(name); ok {
		return l.Code
	}
	return FallbackSpeechCode
}

// Tag parses the language code. Unparseable codes yield language.Und.
func (l Language) Tag() language.Tag {
	tag, err := language.Parse(l.Code)
	if err != nil {
		return language.Und
	}
	return tag
}

// NativeName returns the language's own name for itself, e.g. "español".
// It falls back to Name when x/text has no self-name for the tag.
func (l Language) NativeName() string {
	tag := l.Tag()
	if tag == language.Und {
		return l.Name
	}
	base, _ := tag.Base()
	if n := display.Self.Name(language.Make(base.String())); n != "" {
		return n
	}
	return l.Name
}
