package tweets

import (
	"fmt"
	"strings"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/store"
)

// buildPrompt renders the batch request. Narrative triggers (origin,
// birthdays in the span, finale) are context for the model, not control
// flow.
func (p *Planner) buildPrompt(plan PlanContext, length int) (system, user string) {
	firstDay := p.clock.Day(plan.NextCount)
	lastDay := p.clock.Day(plan.NextCount + length - 1)

	var b strings.Builder
	fmt.Fprintf(&b, "Write %d posts covering simulated days %d through %d.\n", length, firstDay, lastDay)
	fmt.Fprintf(&b, "The persona is %.2f years old on %s.\n\n",
		p.clock.Age(plan.NextCount), p.clock.Date(plan.NextCount).Format("2006-01-02"))

	if triggers := p.describeTriggers(plan.NextCount, length); triggers != "" {
		b.WriteString(triggers)
		b.WriteString("\n")
	}

	b.WriteString("Current life phase:\n")
	b.WriteString(plan.Phase.Describe())
	b.WriteString("\n")

	if plan.Digest != nil {
		b.WriteString("Story so far and near-term direction:\n")
		writeDigestTracks(&b, plan.Digest)
		b.WriteString("\n")
	}

	if recent := tailRecords(plan.Timeline, 5); len(recent) > 0 {
		b.WriteString("Most recent posts, oldest first:\n")
		for _, record := range recent {
			fmt.Fprintf(&b, "- (%s) %s\n", record.SimulatedDate, record.Content)
		}
		b.WriteString("\n")
	}

	if plan.Tech != nil {
		if year := plan.Tech.LatestEpochYear(); year > 0 {
			if epoch, ok := plan.Tech.Epoch(year); ok {
				fmt.Fprintf(&b, "Technology of the era (epoch %d):\n", year)
				for _, tech := range epoch.MainstreamTechnologies {
					fmt.Fprintf(&b, "- %s\n", tech.Name)
				}
				b.WriteString("\n")
			}
		}
	}

	fmt.Fprintf(&b, `Format: start each post with a line containing exactly [Day N] where N is the simulated day number, then the post text on the following lines. Produce exactly %d sections. No other markers, no numbering, no commentary.`, length)

	system = "You are ghostwriting first-person social media posts for a simulated persona. " +
		"Posts are short, specific and grounded in the persona's ongoing life. " +
		"Never prefix posts with editorial labels and never repeat an earlier post verbatim."
	return system, b.String()
}

func writeDigestTracks(b *strings.Builder, digest *store.Digest) {
	tracks := []struct {
		name  string
		track store.DigestTrack
	}{
		{"professional", digest.Professional}, {"personal", digest.Personal},
		{"family", digest.Family}, {"social", digest.Social},
		{"reflections", digest.Reflections}, {"foundation", digest.Foundation},
	}
	for _, entry := range tracks {
		for _, line := range entry.track.HistoricalSummary {
			fmt.Fprintf(b, "- [%s, so far] %s\n", entry.name, line)
		}
		for _, line := range entry.track.Projected {
			fmt.Fprintf(b, "- [%s, ahead] %s\n", entry.name, line)
		}
	}
}

func tailRecords(records []store.TweetRecord, n int) []store.TweetRecord {
	if len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

func (p *Planner) describeTriggers(nextCount, length int) string {
	var lines []string
	if nextCount == 0 {
		lines = append(lines, "This is the very first post: open the story.")
	}
	for i := 0; i < length; i++ {
		count := nextCount + i
		if p.clock.IsBirthday(count) {
			lines = append(lines, fmt.Sprintf("The post for day %d falls on the persona's birthday, turning %d.",
				p.clock.Day(count), int(p.clock.Age(count))))
		}
	}
	if p.clock.IsTerminal(nextCount) {
		lines = append(lines, "This is the final post of the narrative: write a farewell that closes the story.")
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
