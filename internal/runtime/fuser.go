package runtime

import (
	"fmt"
	"strings"

	"github.com/normanking/axon/internal/inputs"
)

// fuser folds a tick's perception into a single prompt for the
// reasoning backend. It returns the empty string when there is nothing
// new to think about, which skips the reasoning step for that tick.
type fuser struct{}

// Fuse renders sensor events and the results of previously dispatched
// actions into one prompt. Events carry their source sensor and
// timestamp so the backend can weigh recency.
func (fuser) Fuse(events []sensorEvents, results []string) string {
	if len(events) == 0 && len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for _, se := range events {
		for _, ev := range se.events {
			fmt.Fprintf(&b, "[%s @ %s] %s\n", se.sensor, ev.At.Format("15:04:05"), ev.Text)
		}
	}
	if len(results) > 0 {
		b.WriteString("\nRecent action results:\n")
		for _, r := range results {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nWhat should you do now?")
	return b.String()
}

// sensorEvents pairs a sensor name with the events drained from it.
type sensorEvents struct {
	sensor string
	events []inputs.Event
}
