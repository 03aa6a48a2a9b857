package bot

import (
	"fmt"
	"time"

	"lights-watch/internal/models"
)

// RenderStatusChange builds the transition notification text: what happened,
// when (Kyiv time), how long the previous state lasted, plus an optional
// advisory detail from the outage source.
func RenderStatusChange(lightOn bool, when time.Time, duration time.Duration, detail string) string {
	kyiv, _ := time.LoadLocation("Europe/Kyiv")
	ts := when.In(kyiv).Format("15:04 02.01")

	var msg string
	if lightOn {
		msg = fmt.Sprintf(msgNotifyOn, ts, models.FormatDuration(duration))
	} else {
		msg = fmt.Sprintf(msgNotifyOff, ts, models.FormatDuration(duration))
	}
	if detail != "" {
		msg += "\n\n" + detail
	}
	return msg
}
