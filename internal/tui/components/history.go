package components

import "strings"

// maxHistory bounds the number of remembered input lines.
const maxHistory = 100

// History is a shell-like list of previously sent lines. Navigating away
// from the line being edited keeps it as a draft that Newer returns to.
type History struct {
	entries []string
	index   int // -1 while editing the draft
	draft   string
}

func NewHistory() *History {
	return &History{index: -1}
}

// Add appends line unless it is blank or repeats the newest entry, and
// resets navigation.
func (h *History) Add(line string) {
	h.index = -1
	h.draft = ""

	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if len(h.entries) > maxHistory {
		h.entries = h.entries[len(h.entries)-maxHistory:]
	}
}

// Older steps back one entry. current is the text being edited, saved as
// the draft on the first step.
func (h *History) Older(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.index == -1:
		h.draft = current
		h.index = len(h.entries) - 1
	case h.index > 0:
		h.index--
	}
	return h.entries[h.index], true
}

// Newer steps forward one entry, ending at the saved draft.
func (h *History) Newer() (string, bool) {
	if h.index == -1 {
		return "", false
	}
	if h.index < len(h.entries)-1 {
		h.index++
		return h.entries[h.index], true
	}
	h.index = -1
	draft := h.draft
	h.draft = ""
	return draft, true
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}
