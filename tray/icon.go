package tray

import (
	_ "embed"
)

// Embedded tray icon: a handwritten stroke inside the overlay frame.
//
//go:embed icon.png
var iconPNG []byte

func getIcon() []byte {
	return iconPNG
}
