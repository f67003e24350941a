// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini is lingochat's client for the hosted Gemini model API.
//
// A Client holds the API connection. NewSession creates a ChatSession bound
// to one reply language and optionally seeded with an existing transcript.
// Sessions are cheap: nothing is sent until Send or SendStream is called.
//
// # Usage
//
//	client, err := gemini.NewClient(ctx, gemini.Config{APIKey: key}, log)
//	sess, err := client.NewSession(ctx, "Spanish", transcript)
//	for chunk, err := range sess.SendStream(ctx, parts, gemini.SendOptions{Search: true}) {
//		if err != nil {
//			// partial text already yielded stays valid
//			break
//		}
//		fmt.Print(chunk.Text)
//	}
//
// A session records a user/model turn in its history only after the whole
// reply arrived without error, so a failed or abandoned stream leaves the
// session as it was.
package gemini
