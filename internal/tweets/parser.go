package tweets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Candidate is one parsed batch entry before cleanup and validation.
type Candidate struct {
	Day     int
	Content string
}

// ParseError distinguishes a malformed batch from transport failures so
// retry handling can tell them apart.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse batch: " + e.Reason
}

var dayMarker = regexp.MustCompile(`^\s*\[Day (\d+)\]\s*$`)

// ParseBatch splits a generated batch into day-marked candidates. Text
// before the first marker is discarded; a batch without any marker is a
// parse failure.
func ParseBatch(response string) ([]Candidate, error) {
	var candidates []Candidate
	var current *Candidate
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(body.String())
		if current.Content != "" {
			candidates = append(candidates, *current)
		}
		current = nil
		body.Reset()
	}

	for _, line := range strings.Split(response, "\n") {
		if match := dayMarker.FindStringSubmatch(line); match != nil {
			flush()
			day, err := strconv.Atoi(match[1])
			if err != nil {
				return nil, &ParseError{Reason: fmt.Sprintf("bad day marker %q", line)}
			}
			current = &Candidate{Day: day}
			continue
		}
		if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	if len(candidates) == 0 {
		return nil, &ParseError{Reason: "no day markers found"}
	}
	return candidates, nil
}
