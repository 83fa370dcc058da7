// Package timecode formats millisecond durations for display.
package timecode

import "fmt"

// FormatMillis renders ms as zero-padded mm:ss. Minutes are not wrapped at 60.
// Partial seconds are truncated; negative values render as 00:00.
func FormatMillis(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}

// FormatProgress renders "position / duration".
func FormatProgress(positionMillis, durationMillis int64) string {
	return FormatMillis(positionMillis) + " / " + FormatMillis(durationMillis)
}
