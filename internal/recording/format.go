package recording

import "fmt"

// FormatElapsed renders whole seconds as minutes and zero-padded seconds,
// e.g. 3 -> "0:03", 125 -> "2:05".
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
