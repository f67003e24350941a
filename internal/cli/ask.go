// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/jeranaias/lingochat/internal/gemini"
	"github.com/jeranaias/lingochat/internal/model"
	"github.com/jeranaias/lingochat/internal/ui/components"
	"github.com/jeranaias/lingochat/internal/ui/styles"
)

// AskCmd sends one message to a fresh session. The saved conversation is
// neither used nor changed.
type AskCmd struct {
	Question []string `arg:"" optional:"" help:"The message. Read from stdin when omitted or '-'."`
	Image    string   `short:"i" type:"existingfile" help:"Attach an image."`
	Raw      bool     `help:"Print the reply as plain Markdown even on a terminal."`
}

// Run implements the ask command.
func (c *AskCmd) Run(rt *Runtime) error {
	question, err := c.readQuestion(rt.Env)
	if err != nil {
		return err
	}

	cfg, err := rt.Config()
	if err != nil {
		return err
	}
	prefs, err := rt.Prefs(false)
	if err != nil {
		return err
	}
	language := prefs.LoadLanguage()
	log, _ := rt.Logger(false)

	var image *model.InlineData
	if c.Image != "" {
		if image, err = model.LoadImage(c.Image, cfg.Chat.MaxImageBytes); err != nil {
			return err
		}
	}
	if question == "" && image == nil {
		return NewValidationErrorWithExample("question", "", "nothing to ask", `lingochat ask "¿Qué tal?"`)
	}

	ctx, stop := signal.NotifyContext(rt.Ctx, os.Interrupt)
	defer stop()
	if cfg.Gemini.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	backend, modelName, err := rt.newBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	remote, err := backend.NewSession(ctx, language, nil)
	if err != nil {
		return err
	}

	msg := model.NewUserMessage(question, image)
	// A terminal gets the rendered reply at the end; pipes get it live.
	render := rt.Env.Interactive && !c.Raw && !rt.Globals.JSON
	live := !rt.Globals.JSON && !render

	start := time.Now()
	var (
		reply     strings.Builder
		citations []model.Citation
	)
	for chunk, err := range remote.SendStream(ctx, msg.Parts, gemini.SendOptions{Search: cfg.Chat.SearchByDefault}) {
		if err != nil {
			return err
		}
		reply.WriteString(chunk.Text)
		citations = model.MergeCitations(citations, chunk.Citations)
		if live {
			io.WriteString(rt.Env.Stdout, chunk.Text)
		}
	}
	log.Debug("ask complete", "chars", reply.Len(), "duration", time.Since(start))

	if rt.Globals.JSON {
		return NewJSONResponse("ask", AskData{
			Response: reply.String(),
			Language: language,
			Model:    modelName,
			Sources: lo.Map(citations, func(c model.Citation, _ int) SourceData {
				return SourceData{Title: c.DisplayTitle(), URI: c.URI}
			}),
			DurationMs: time.Since(start).Milliseconds(),
			Search:     cfg.Chat.SearchByDefault,
		}).Print(rt.Env.Stdout)
	}

	if render {
		theme := styles.NewTheme(cfg.UI.Theme)
		fmt.Fprintln(rt.Env.Stdout, components.NewMarkdown(theme).Render(reply.String(), GetTerminalWidth()))
		if len(citations) > 0 {
			fmt.Fprintln(rt.Env.Stdout, components.RenderSources(theme, citations, GetTerminalWidth()))
		}
		return nil
	}

	if !strings.HasSuffix(reply.String(), "\n") {
		fmt.Fprintln(rt.Env.Stdout)
	}
	if len(citations) > 0 {
		fmt.Fprintln(rt.Env.Stdout, "\nSources:")
		for i, c := range citations {
			fmt.Fprintf(rt.Env.Stdout, "%d. %s <%s>\n", i+1, c.DisplayTitle(), c.URI)
		}
	}
	return nil
}

// readQuestion joins the arguments, or reads stdin for none or "-".
func (c *AskCmd) readQuestion(env Env) (string, error) {
	if len(c.Question) > 0 && !(len(c.Question) == 1 && c.Question[0] == "-") {
		return strings.TrimSpace(strings.Join(c.Question, " ")), nil
	}
	if env.Interactive && len(c.Question) == 0 {
		return "", NewValidationErrorWithExample("question", "", "required argument missing", `lingochat ask "How do I say hello?"`)
	}
	data, err := io.ReadAll(io.LimitReader(env.Stdin, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read question from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
