// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/jeranaias/lingochat/internal/export"
	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/util"
)

// HistoryCmd groups the saved-conversation commands.
type HistoryCmd struct {
	Show   HistoryShowCmd   `cmd:"" default:"1" help:"Print the saved conversation."`
	Export HistoryExportCmd `cmd:"" help:"Write the saved conversation to a file."`
	Clear  HistoryClearCmd  `cmd:"" help:"Delete the saved conversation."`
}

// loadHistory reads the transcript and language without locking the store,
// so it works while a chat is open.
func loadHistory(rt *Runtime) (model.Transcript, string, error) {
	prefs, err := rt.Prefs(false)
	if err != nil {
		return nil, "", err
	}
	return prefs.LoadTranscript(), prefs.LoadLanguage(), nil
}

// =============================================================================
// SHOW
// =============================================================================

// HistoryShowCmd prints the transcript.
type HistoryShowCmd struct {
	Last int `short:"n" help:"Only show the last N messages."`
}

// Run implements history show.
func (c *HistoryShowCmd) Run(rt *Runtime) error {
	t, language, err := loadHistory(rt)
	if err != nil {
		return err
	}
	if c.Last > 0 && len(t) > c.Last {
		t = t[len(t)-c.Last:]
	}

	if rt.Globals.JSON {
		raw, err := t.Encode()
		if err != nil {
			return err
		}
		images := lo.SumBy(t, func(m model.Message) int { return len(m.Images()) })
		return NewJSONResponse("history show", HistoryData{
			Language:   language,
			Messages:   len(t),
			Images:     images,
			Transcript: json.RawMessage(raw),
		}).Print(rt.Env.Stdout)
	}

	if len(t) == 0 {
		fmt.Fprintln(rt.Env.Stdout, "No saved conversation.")
		return nil
	}
	fmt.Fprintf(rt.Env.Stdout, "%s %s, %d messages\n\n", TitleStyle.Copy().MarginBottom(0).Render("Conversation"), language, len(t))
	writeTranscript(rt.Env.Stdout, t)
	return nil
}

// writeTranscript prints one block per message without Markdown rendering.
func writeTranscript(w io.Writer, t model.Transcript) {
	for _, msg := range t {
		style := ModelStyle
		if msg.Role == model.RoleUser {
			style = UserStyle
		}
		fmt.Fprintln(w, style.Render(msg.Role.DisplayName()+":"))
		for _, img := range msg.Images() {
			fmt.Fprintf(w, "[image: %s, %s]\n", img.MimeType, util.FormatBytes(img.Size()))
		}
		if text := strings.TrimSpace(msg.Text()); text != "" {
			fmt.Fprintln(w, text)
		}
		for i, c := range msg.Citations {
			fmt.Fprintf(w, "  [%d] %s <%s>\n", i+1, c.DisplayTitle(), c.URI)
		}
		fmt.Fprintln(w)
	}
}

// =============================================================================
// EXPORT
// =============================================================================

// HistoryExportCmd writes the transcript to a file or stdout.
type HistoryExportCmd struct {
	Format      string `short:"f" default:"markdown" enum:"markdown,md,json,html" help:"Output format (markdown, json, html)."`
	Output      string `short:"o" type:"path" placeholder:"DIR" help:"Directory for the file. Default: current directory."`
	Stdout      bool   `help:"Write to stdout instead of a file."`
	EmbedImages bool   `help:"Inline attached images instead of describing them."`
	NoMetadata  bool   `help:"Leave out the metadata header."`
	Theme       string `default:"dark" enum:"dark,light" help:"HTML color theme."`
	Open        bool   `help:"Open the file after writing it."`
}

// Run implements history export.
func (c *HistoryExportCmd) Run(rt *Runtime) error {
	t, language, err := loadHistory(rt)
	if err != nil {
		return err
	}
	cfg, err := rt.Config()
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	if c.Output != "" {
		dir, err := ValidateOutputPath(c.Output)
		if err != nil {
			return NewValidationErrorWithExample("output", c.Output, err.Error(), "lingochat history export -o ~/Documents")
		}
		opts.OutputDir = dir
	}
	opts.IncludeMetadata = !c.NoMetadata
	opts.EmbedImages = c.EmbedImages
	opts.Theme = c.Theme
	opts.OpenAfterExport = c.Open && !c.Stdout

	exporter, err := export.ForFormat(c.Format, opts)
	if err != nil {
		return ErrUnsupportedFormat(c.Format, export.Formats)
	}
	doc := export.NewDocument(t, language, cfg.Gemini.Model)

	if c.Stdout {
		data, err := exporter.Export(doc)
		if err != nil {
			return NewCommandError("history", "export", "nothing exported", err)
		}
		_, err = rt.Env.Stdout.Write(data)
		return err
	}

	path, err := export.ExportToFile(doc, exporter, opts)
	if err != nil {
		return NewCommandError("history", "export", "could not write file", err)
	}
	if rt.Globals.JSON {
		return NewJSONResponse("history export", map[string]any{
			"path":     path,
			"format":   strings.TrimPrefix(exporter.FileExtension(), "."),
			"messages": len(t),
		}).Print(rt.Env.Stdout)
	}
	fmt.Fprintf(rt.Env.Stdout, "%s Exported %d messages to %s\n", RenderStatus("ok"), len(t), path)
	return nil
}

// =============================================================================
// CLEAR
// =============================================================================

// HistoryClearCmd deletes the stored transcript. The language preference
// is kept.
type HistoryClearCmd struct {
	Yes bool `short:"y" help:"Do not ask for confirmation."`
}

// Run implements history clear.
func (c *HistoryClearCmd) Run(rt *Runtime) error {
	ok, err := RequireConfirmation(rt.Env, "delete the saved conversation", ConfirmationOptions{
		Yes:      c.Yes,
		JSONMode: rt.Globals.JSON,
	})
	if err != nil {
		return err
	}
	if !ok {
		ShowCancellationMessage(rt.Env)
		return nil
	}

	// Clearing takes the lock so it cannot race an open chat that would
	// write the history straight back.
	prefs, err := rt.Prefs(true)
	if err != nil {
		return err
	}
	if err := prefs.ClearTranscript(); err != nil {
		return NewCommandError("history", "clear", "could not delete", err)
	}
	if rt.Globals.JSON {
		return NewJSONResponse("history clear", map[string]bool{"cleared": true}).Print(rt.Env.Stdout)
	}
	fmt.Fprintf(rt.Env.Stdout, "%s Saved conversation deleted.\n", RenderStatus("ok"))
	return nil
}
