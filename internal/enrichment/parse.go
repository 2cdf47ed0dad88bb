package enrichment

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Result is the structured triage proposed for a ticket. The zero value
// means the generator output could not be used.
type Result struct {
	Priority      string     `json:"priority,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	HelpNotes     string     `json:"helpNotes,omitempty"`
	RelatedSkills []string   `json:"relatedSkills,omitempty"`
}

// Empty reports whether r carries no usable field.
func (r Result) Empty() bool {
	return r.Priority == "" && r.Deadline == nil && r.HelpNotes == "" && len(r.RelatedSkills) == 0
}

// wireResult mirrors the generator's JSON. The deadline stays a string so a
// malformed date drops only that field.
type wireResult struct {
	Priority      string   `json:"priority"`
	Deadline      string   `json:"deadline"`
	HelpNotes     string   `json:"helpNotes"`
	RelatedSkills []string `json:"relatedSkills"`
}

var fencedJSON = regexp.MustCompile("```\\s*json\\s*\\n([\\s\\S]*?)\\n\\s*```")

// Parse extracts a Result from generator output, which is either a bare
// JSON object or one wrapped in a ```json fence. Anything unparsable yields
// the empty Result; Parse never fails.
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)
	if match := fencedJSON.FindStringSubmatch(text); match != nil {
		text = strings.TrimSpace(match[1])
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return Result{}
	}

	result := Result{
		Priority:  strings.TrimSpace(wire.Priority),
		HelpNotes: strings.TrimSpace(wire.HelpNotes),
	}
	for _, skill := range wire.RelatedSkills {
		if skill = strings.TrimSpace(skill); skill != "" {
			result.RelatedSkills = append(result.RelatedSkills, skill)
		}
	}
	if deadline, ok := parseDeadline(wire.Deadline); ok {
		result.Deadline = &deadline
	}
	return result
}

func parseDeadline(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
