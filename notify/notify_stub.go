//go:build !windows

package notify

import "log"

// ShowBlockingError logs a blocking error message on non-Windows platforms.
func ShowBlockingError(title, message string) {
	log.Printf("%s: %s", title, message)
}

func showPlatformPopup(text string) error {
	log.Printf("Notice: %s", text)
	return nil
}
