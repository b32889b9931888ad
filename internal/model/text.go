package model

import "strings"

// CleanText returns the canonical form of a free-text column: trailing
// spaces trimmed, leading and trailing blank lines dropped, blank runs
// collapsed to one, the indent shared by every line removed and a blank line
// kept before each "---" rule. It is the form a page renders and parses back
// unchanged.
func CleanText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		if strings.TrimSpace(line) == "---" && !blank {
			out = append(out, "")
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	var indent string
	for i, line := range out {
		if line == "" {
			continue
		}
		lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if i == 0 {
			indent = lead
		} else {
			indent = commonPrefix(indent, lead)
		}
	}
	if indent != "" {
		for i, line := range out {
			out[i] = strings.TrimPrefix(line, indent)
		}
	}
	return strings.Join(out, "\n")
}

func commonPrefix(a, b string) string {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return a[:n]
}

// SingleLine folds s onto one line with single spaces.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
