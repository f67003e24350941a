// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxImageBytes caps attachments when no limit is configured.
const DefaultMaxImageBytes = 8 << 20

var (
	// ErrNotImage is returned when the content does not sniff as an image.
	ErrNotImage = errors.New("file is not an image")

	// ErrImageTooLarge is returned when the content exceeds the size cap.
	ErrImageTooLarge = errors.New("image is too large")
)

// LoadImage reads an image file into inline data. A leading "~/" expands
// to the home directory.
func LoadImage(path string, maxBytes int64) (*InlineData, error) {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, `"'`)
	if path == "" {
		return nil, errors.New("no image path given")
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return ReadImage(f, maxBytes)
}

// ReadImage sniffs and base64-encodes an image from r.
func ReadImage(r io.Reader, maxBytes int64) (*InlineData, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrImageTooLarge, maxBytes)
	}

	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w (detected %s)", ErrNotImage, mime)
	}
	return &InlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}, nil
}
