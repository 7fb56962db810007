// Package progress turns the line-oriented output of the remote overwrite
// protocol into structured events. Every line maps to exactly one tag of a
// closed set, or falls through to the generic log tag so nothing is lost.
package progress

import (
	"regexp"
	"strconv"
	"strings"
)

// Tag classifies one remote output line.
type Tag int

const (
	// TagLog is the fallthrough for lines the protocol does not recognize.
	TagLog Tag = iota
	TagProgress
	TagLowSpace
	TagWriteError
	TagPassDone
)

func (t Tag) String() string {
	switch t {
	case TagProgress:
		return "progress"
	case TagLowSpace:
		return "lowspace"
	case TagWriteError:
		return "write_error"
	case TagPassDone:
		return "pass_done"
	default:
		return "log"
	}
}

// Line is one classified remote output line. Numeric fields are populated
// only for the tags that carry them.
type Line struct {
	Tag          Tag
	Pass         int
	WrittenBytes int64
	TargetBytes  int64
	AvailBytes   int64
	Raw          string
}

// ANSI CSI sequences (colors, cursor movement) as emitted by toybox and
// vendor shells. They must never reach the pattern matching below.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// StripANSI removes terminal control sequences from a line.
func StripANSI(s string) string {
	if !strings.ContainsRune(s, '\x1b') {
		return s
	}
	return ansiPattern.ReplaceAllString(s, "")
}

// Classify maps a raw remote output line to a tagged Line. The protocol
// lines are "<TAG> key=value ...", anything else becomes TagLog.
func Classify(raw string) Line {
	clean := strings.TrimSpace(StripANSI(raw))
	line := Line{Tag: TagLog, Raw: clean}

	tag, rest, _ := strings.Cut(clean, " ")
	switch tag {
	case "PROGRESS":
		line.Tag = TagProgress
	case "LOWSPACE":
		line.Tag = TagLowSpace
	case "WRITE_ERROR":
		line.Tag = TagWriteError
	case "PASS_DONE":
		line.Tag = TagPassDone
	default:
		return line
	}

	for _, field := range strings.Fields(rest) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		switch key {
		case "pass":
			line.Pass = int(n)
		case "written_mb":
			line.WrittenBytes = n * 1024 * 1024
		case "target_mb":
			line.TargetBytes = n * 1024 * 1024
		case "avail_kb":
			line.AvailBytes = n * 1024
		}
	}
	return line
}

// Stream lazily converts raw output lines into classified lines, preserving
// arrival order. It is not restartable: once the input channel closes the
// output channel closes too.
func Stream(in <-chan string) <-chan Line {
	out := make(chan Line)
	go func() {
		defer close(out)
		for raw := range in {
			out <- Classify(raw)
		}
	}()
	return out
}
