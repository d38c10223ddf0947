package cli

import (
	"time"

	"github.com/atotto/clipboard"
)

// Clipboard places text on the clipboard and clears it after clearAfter.
type Clipboard interface {
	Set(text string, clearAfter time.Duration) error
}

type systemClipboard struct{}

func (systemClipboard) Set(text string, clearAfter time.Duration) error {
	if err := clipboard.WriteAll(text); err != nil {
		return err
	}
	time.AfterFunc(clearAfter, func() {
		// leave it alone if the user copied something else meanwhile
		if cur, err := clipboard.ReadAll(); err == nil && cur == text {
			_ = clipboard.WriteAll("")
		}
	})
	return nil
}
