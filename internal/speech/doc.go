// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech binds lingochat to external speech recognition and speech
// synthesis engines.
//
// Both directions are driven by configurable commands so any local engine
// can be used. The Listener runs a recognizer that prints one result per
// line. The Speaker runs a synthesizer (espeak-ng by default) per utterance.
//
// Either side reports Supported() == false when its command is not
// configured or not on PATH, and the UI hides the matching control.
package speech
