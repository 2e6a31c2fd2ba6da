package ui

import (
	_ "embed"

	"github.com/heimdex/heimdex-exporter/internal/export"
)

//go:embed icon.png
var iconBytes []byte

// OptionButton is the generic labelled button with a loading affordance.
type OptionButton struct {
	Title   string
	Icon    []byte
	Loading export.LoadingProps
	OnClick func()
}

// Render returns the label to show and whether the button accepts clicks.
// While loading the button shows the loading label and is disabled.
func (b OptionButton) Render() (title string, enabled bool) {
	if b.Loading.Loading {
		if b.Loading.Label != "" {
			return b.Loading.Label, false
		}
		return b.Title, false
	}
	return b.Title, true
}

// Click dispatches the activation callback unless the button is loading.
func (b OptionButton) Click() bool {
	if b.Loading.Loading || b.OnClick == nil {
		return false
	}
	b.OnClick()
	return true
}

// menuItem is the subset of *systray.MenuItem a button is rendered into.
type menuItem interface {
	SetTitle(title string)
	Enable()
	Disable()
}

func applyButton(item menuItem, b OptionButton) {
	title, enabled := b.Render()
	item.SetTitle(title)
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}
