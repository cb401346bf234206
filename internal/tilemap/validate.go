// Package tilemap validates and hashes the ASCII tilemap levels submitted
// by generators.
package tilemap

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// Height is the fixed row count every level must have.
	Height = 16
	// MinWidth and MaxWidth bound a level's line length.
	MinWidth = 1
	MaxWidth = 250
	// GroundTile must appear at least once in a valid level.
	GroundTile = 'X'
)

// alphabet is the closed set of legal tilemap characters.
var alphabet = map[rune]bool{
	'-': true, 'X': true, '#': true, 'S': true, 'D': true, '%': true,
	'|': true, '?': true, '@': true, 'Q': true, '!': true, 'C': true,
	'U': true, 'L': true, '1': true, '2': true, 'o': true, 't': true,
	'T': true, '<': true, '>': true, '[': true, ']': true, '*': true,
	'B': true, 'b': true, 'M': true, 'F': true,
	'y': true, 'Y': true, 'E': true, 'g': true, 'G': true,
	'k': true, 'K': true, 'r': true, 'R': true,
}

// Errors returned by Validate. Callers surface these as LEVEL_VALIDATION_FAILED
// with the offending reason in the error's details.
var (
	ErrWrongLineCount  = errors.New("tilemap: must have exactly 16 non-empty lines")
	ErrRaggedWidth     = errors.New("tilemap: all lines must share one width")
	ErrWidthOutOfRange = errors.New("tilemap: width must be between 1 and 250")
	ErrIllegalTile     = errors.New("tilemap: contains a character outside the tile alphabet")
	ErrNoGroundTile    = errors.New("tilemap: must contain at least one ground tile")
)

// Result is a validated tilemap ready for storage.
type Result struct {
	Canonical   string // normalized text, \n separated, no trailing newline
	Width       int
	ContentHash string // hex-encoded sha256 of Canonical
}

// Validate normalizes raw level text (any of \r\n, \r, \n line endings) and
// checks it against every per-file rule in the submission pipeline: exactly
// 16 lines, uniform width in [1,250], closed tile alphabet, at least one
// ground tile.
func Validate(raw string) (*Result, error) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	// Drop a single trailing empty line left by a final newline.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	nonEmpty := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	if len(nonEmpty) != Height {
		return nil, fmt.Errorf("%w: got %d", ErrWrongLineCount, len(nonEmpty))
	}

	width := len([]rune(nonEmpty[0]))
	if width < MinWidth || width > MaxWidth {
		return nil, fmt.Errorf("%w: got %d", ErrWidthOutOfRange, width)
	}

	hasGround := false
	for i, line := range nonEmpty {
		runes := []rune(line)
		if len(runes) != width {
			return nil, fmt.Errorf("%w: line %d has width %d, expected %d", ErrRaggedWidth, i, len(runes), width)
		}
		for _, r := range runes {
			if !alphabet[r] {
				return nil, fmt.Errorf("%w: %q on line %d", ErrIllegalTile, r, i)
			}
			if r == GroundTile {
				hasGround = true
			}
		}
	}
	if !hasGround {
		return nil, ErrNoGroundTile
	}

	canonical := strings.Join(nonEmpty, "\n")
	sum := sha256.Sum256([]byte(canonical))

	return &Result{
		Canonical:   canonical,
		Width:       width,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}
