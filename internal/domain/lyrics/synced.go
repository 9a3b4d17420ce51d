// Package lyrics parses time-synchronized lyrics and looks up the line
// that should be on screen at a given playback position.
package lyrics

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedLine indicates a line that does not match "[mm:ss.xx] text".
var ErrMalformedLine = errors.New("malformed synchronized lyrics line")

// ParseError reports the first line that could not be parsed.
type ParseError struct {
	Line int    // 1-based line number
	Text string // raw line
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Index is a time-indexed line table.
type Index struct {
	// Timestamps holds each distinct timestamp in seconds, in file order.
	Timestamps []float64
	// Lines maps a timestamp to its text. A repeated timestamp keeps the
	// last line seen.
	Lines map[float64]string
}

var lineRe = regexp.MustCompile(`^\[(\d+):(\d{1,2}(?:\.\d+)?)\] ?(.*)$`)

// ParseSynced parses text in "[mm:ss.xx] line" format. Blank lines are
// skipped; any other line that does not match aborts parsing with a
// *ParseError.
func ParseSynced(text string) (*Index, error) {
	idx := &Index{Lines: make(map[float64]string)}

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		ts, line, err := parseLine(raw)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: raw, Err: err}
		}

		if _, seen := idx.Lines[ts]; !seen {
			idx.Timestamps = append(idx.Timestamps, ts)
		}
		idx.Lines[ts] = line
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read synchronized lyrics: %w", err)
	}

	return idx, nil
}

func parseLine(raw string) (float64, string, error) {
	m := lineRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, "", ErrMalformedLine
	}

	minutes, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", fmt.Errorf("%w: minutes: %v", ErrMalformedLine, err)
	}
	seconds, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: seconds: %v", ErrMalformedLine, err)
	}
	if seconds >= 60 {
		return 0, "", fmt.Errorf("%w: seconds out of range", ErrMalformedLine)
	}

	return float64(minutes)*60 + seconds, m[3], nil
}

// ClosestTimestamp returns the largest timestamp not after current, or 0
// when none qualifies.
func ClosestTimestamp(current float64, timestamps []float64) float64 {
	closest := 0.0
	for _, ts := range timestamps {
		if ts <= current && ts > closest {
			closest = ts
		}
	}
	return closest
}

// LineAt returns the line on screen at the given playback position.
func (i *Index) LineAt(current float64) string {
	if i == nil {
		return ""
	}
	return i.Lines[ClosestTimestamp(current, i.Timestamps)]
}
