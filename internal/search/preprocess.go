package search

import (
	"strings"
)

// FlattenMarkdown turns generated Markdown (summaries, study guides, notes)
// into plain lines suitable for tokenizing: heading and list markers are
// dropped, table rows become one line of cells and separator rows vanish.
//
// Notes:
//   - Avoids emitting a leading blank line.
//   - Collapses runs of blank lines to one.
func FlattenMarkdown(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	wroteBlank := true // start true to avoid a leading blank

	writeLine := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		b.WriteString(line)
		b.WriteByte('\n')
		wroteBlank = false
	}

	for _, raw := range strings.Split(s, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			if !wroteBlank {
				b.WriteByte('\n')
				wroteBlank = true
			}
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			cols := strings.Split(strings.Trim(line, "|"), "|")
			allSep := true
			cleaned := make([]string, 0, len(cols))
			for _, c := range cols {
				cell := strings.TrimSpace(c)
				if cell != "" {
					cleaned = append(cleaned, cell)
				}
				tmp := strings.ReplaceAll(cell, ":", "")
				tmp = strings.ReplaceAll(tmp, "-", "")
				if strings.TrimSpace(tmp) != "" {
					allSep = false
				}
			}
			if allSep || len(cleaned) == 0 {
				continue
			}
			writeLine(strings.Join(cleaned, " "))
			continue
		}

		writeLine(stripMarkers(line))
	}
	return strings.TrimRight(b.String(), "\n")
}

func stripMarkers(line string) string {
	line = strings.TrimLeft(line, "#>")
	line = strings.TrimSpace(line)
	for _, p := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, p) {
			line = line[len(p):]
			break
		}
	}
	// ordered list: "12. item"
	if i := strings.Index(line, ". "); i > 0 && i <= 3 && isDigits(line[:i]) {
		line = line[i+2:]
	}
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(line)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
