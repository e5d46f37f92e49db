package gallery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/nhle/memebox/internal/model"
)

const (
	// MaxTitleLen is the longest accepted meme title, in characters.
	MaxTitleLen = 255

	// MaxImageSize is the largest accepted upload, in bytes.
	MaxImageSize = 5 << 20
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ValidateTitle checks a meme title.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return fmt.Errorf("title must be at most %d characters", MaxTitleLen)
	}
	return nil
}

// ValidateImage checks that path is an existing image file of an accepted
// type and size.
func ValidateImage(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("image is required")
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return errors.New("image must be a JPEG, PNG, GIF or WebP file")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("image not readable: %w", err)
	}
	if !info.Mode().IsRegular() {
		return errors.New("image is not a regular file")
	}
	if info.Size() > MaxImageSize {
		return errors.New("image must be at most 5 MB")
	}
	return nil
}

// ExpandPath resolves a leading "~/" and trims quotes that terminals add
// when a file is dropped onto them.
func ExpandPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), `"'`)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// ValidateStatus checks the publication state chosen for a new meme.
func ValidateStatus(status model.MemeStatus) error {
	switch status {
	case "", model.MemePublished, model.MemeDraft:
		return nil
	}
	return fmt.Errorf("status must be %s or %s", model.MemePublished, model.MemeDraft)
}

// ValidateCreate checks a new meme before anything is uploaded.
func ValidateCreate(in CreateInput) error {
	return errors.Join(
		ValidateTitle(in.Title),
		ValidateImage(in.ImagePath),
		ValidateStatus(in.Status),
	)
}
