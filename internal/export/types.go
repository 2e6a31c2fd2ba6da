// Package export implements the session export control: the button that
// asks the backend for a session archive and saves it for the user.
package export

import (
	"fmt"
	"strings"
	"unicode"
)

// ArchiveFilename is the name a session archive is saved under. Runes of the
// id that cannot appear in a file name, path separators included, become '_'
// so every id maps to a single session_<id>.zip in the download dir.
func ArchiveFilename(sessionID string) string {
	return fmt.Sprintf("session_%s.zip", filenameSafe(sessionID))
}

func filenameSafe(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

// LoadingProps is what the presentation widget needs to render the busy
// affordance.
type LoadingProps struct {
	Loading bool   `json:"loading"`
	Label   string `json:"label"`
}

const (
	ButtonTitle  = "Export YOLO Format"
	LoadingLabel = "Exporting..."
)

// Loading returns the widget's loading props for the current busy flag.
func (c *Control) Loading() LoadingProps {
	return LoadingProps{Loading: c.Busy(), Label: LoadingLabel}
}
