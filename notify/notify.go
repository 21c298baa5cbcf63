package notify

import (
	"log"
	"runtime"
)

// ShowMessage displays a short transient message to the user (conversion
// failures, busy rejections). Long text is truncated.
func ShowMessage(text string) {
	displayText := text
	if len(text) > 200 {
		displayText = text[:200] + "..."
	}

	if runtime.GOOS == "windows" {
		go func() {
			if err := showPlatformPopup(displayText); err != nil {
				log.Printf("Failed to show notification: %v", err)
			}
		}()
		return
	}
	log.Printf("Notice: %s", displayText)
}

// Adapter satisfies the session's Notifier collaborator interface.
type Adapter struct{}

func (Adapter) Notify(msg string) { ShowMessage(msg) }
