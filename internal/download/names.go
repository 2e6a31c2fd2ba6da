package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const maxNameRunes = 200

var (
	ErrInvalidName = errors.New("invalid archive name")
	ErrInvalidDir  = errors.New("invalid download dir")
)

// archiveName reduces filename to a base name that is safe to create in the
// download dir. Runes outside the archive alphabet become '_', leading dots
// are dropped so the result never hides or collides with a temp file, and
// the extension survives truncation.
func archiveName(filename string) (string, error) {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsControl(r):
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune("-_.()", r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := strings.TrimLeft(b.String(), ".")
	if strings.Trim(name, "_") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}

	if runes := []rune(name); len(runes) > maxNameRunes {
		ext := []rune(filepath.Ext(name))
		if len(ext) >= maxNameRunes {
			ext = nil
		}
		name = string(runes[:maxNameRunes-len(ext)]) + string(ext)
	}
	return name, nil
}

func checkDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: not configured", ErrInvalidDir)
	}
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s does not exist", ErrInvalidDir, dir)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidDir, dir)
	}
	return nil
}
