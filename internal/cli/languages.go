// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/speech"
)

// =============================================================================
// LANGUAGES
// =============================================================================

// LanguagesCmd lists the conversation languages.
type LanguagesCmd struct{}

// Run implements the languages command. The current language is read
// from the store when it can be opened; a missing store is not an error.
func (c *LanguagesCmd) Run(rt *Runtime) error {
	current := ""
	if prefs, err := rt.Prefs(false); err == nil {
		current = prefs.LoadLanguage()
	} else if rt.Globals.Language != "" {
		return err
	}

	rows := lo.Map(model.Languages, func(l model.Language, _ int) LanguageData {
		return LanguageData{
			Name:       l.Name,
			NativeName: l.NativeName(),
			Code:       l.Code,
			Current:    l.Name == current,
		}
	})

	if rt.Globals.JSON {
		return NewJSONResponse("languages", rows).Print(rt.Env.Stdout)
	}
	for _, row := range rows {
		marker := "  "
		if row.Current {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Fprintf(rt.Env.Stdout, "%s%s %s %s\n", marker, RenderLabel(row.Name, 12), RenderLabel(row.Code, 7), DimStyle.Render(row.NativeName))
	}
	return nil
}

// =============================================================================
// VOICES
// =============================================================================

// VoicesCmd lists synthesizer voices.
type VoicesCmd struct {
	All bool `short:"a" help:"List every voice, not just those for the current language."`
}

// Run implements the voices command.
func (c *VoicesCmd) Run(rt *Runtime) error {
	_, speaker, err := rt.Speech(false)
	if err != nil {
		return err
	}
	if !speaker.Supported() {
		return NewCommandError("voices", "list", "no speech synthesizer available; set speech.synthesizer_command", nil)
	}

	language := model.DefaultLanguage
	if prefs, err := rt.Prefs(false); err == nil {
		language = prefs.LoadLanguage()
	}
	code := model.SpeechCode(language)

	ctx, cancel := context.WithTimeout(rt.Ctx, 10*time.Second)
	defer cancel()
	voices := speaker.Voices(ctx)
	selected, hasSelected := speech.SelectVoice(voices, code)

	if !c.All {
		voices = lo.Filter(voices, func(v speech.Voice, _ int) bool {
			_, ok := speech.SelectVoice([]speech.Voice{v}, code)
			return ok
		})
	}
	if len(voices) == 0 {
		return &NotFoundError{Resource: "voice", ID: code}
	}

	rows := lo.Map(voices, func(v speech.Voice, _ int) VoiceData {
		return VoiceData{
			ID:       v.ID,
			Name:     v.Name,
			Language: v.Lang,
			Selected: hasSelected && v.ID == selected.ID,
		}
	})
	if rt.Globals.JSON {
		return NewJSONResponse("voices", rows).Print(rt.Env.Stdout)
	}
	for _, row := range rows {
		marker := "  "
		if row.Selected {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Fprintf(rt.Env.Stdout, "%s%s %s %s\n", marker, RenderLabel(row.Language, 8), RenderLabel(row.ID, 24), DimStyle.Render(row.Name))
	}
	return nil
}
