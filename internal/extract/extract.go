// Package extract recovers structured JSON objects from free-form model
// output. Extraction is total: it never returns an error, only a Result
// whose OK flag reports whether any strategy produced a parseable object.
//
// Strategies are tried in a fixed order and the first success wins:
//
//  1. fenced: parse ```json fenced blocks in order of appearance
//  2. balanced: parse the first top-level balanced {...} span
//  3. repair: apply the textual repair chain to the best candidate span
//     and parse again
//  4. line_window: scan newline-delimited chunks for any parseable span
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy identifies which ladder rung produced a result.
type Strategy string

const (
	StrategyFenced     Strategy = "fenced"
	StrategyBalanced   Strategy = "balanced"
	StrategyRepair     Strategy = "repair"
	StrategyLineWindow Strategy = "line_window"
	StrategyNone       Strategy = "none"
)

// Result is the outcome of one extraction attempt.
type Result struct {
	Object   map[string]any `json:"object"`
	OK       bool           `json:"ok"`
	Strategy Strategy       `json:"strategy"`
}

var fencedBlockRe = regexp.MustCompile("```json\\s*([\\s\\S]*?)```")

// Extract runs the strategy ladder over text. On total failure it returns
// an empty object with OK false.
func Extract(text string) Result {
	failed := Result{Object: map[string]any{}, OK: false, Strategy: StrategyNone}

	text = strings.TrimSpace(text)
	if text == "" {
		return failed
	}

	// Strategy 1: fenced blocks, first parseable wins.
	candidates := fencedBlocks(text)
	for _, candidate := range candidates {
		if obj, ok := parseObject(candidate); ok {
			return Result{Object: obj, OK: true, Strategy: StrategyFenced}
		}
	}

	// Strategy 2: first top-level balanced span.
	span := balancedSpan(text)
	if span != "" {
		if obj, ok := parseObject(span); ok {
			return Result{Object: obj, OK: true, Strategy: StrategyBalanced}
		}
	}

	// Strategy 3: repair the best candidate span and retry. Candidate
	// preference mirrors the scan order: fenced block, balanced span,
	// whole text.
	best := text
	if span != "" {
		best = span
	}
	if len(candidates) > 0 {
		best = candidates[0]
	}
	if obj, ok := parseObject(Repair(best)); ok {
		return Result{Object: obj, OK: true, Strategy: StrategyRepair}
	}

	// Strategy 4: line-window scan, independent of the earlier spans.
	if obj, ok := lineWindowScan(text); ok {
		return Result{Object: obj, OK: true, Strategy: StrategyLineWindow}
	}

	return failed
}

// fencedBlocks returns the contents of all ```json fenced blocks in order
// of appearance.
func fencedBlocks(text string) []string {
	matches := fencedBlockRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// balancedSpan returns the first top-level balanced {...} span in text,
// or "" when braces never balance.
func balancedSpan(text string) string {
	depth := 0
	start := -1
	for i, r := range text {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// lineWindowScan slides a window over newline-delimited chunks looking
// for any substring that starts with '{' and ends with the matching '}'.
func lineWindowScan(text string) (map[string]any, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		idx := strings.Index(line, "{")
		if idx == -1 {
			continue
		}
		window := line[idx:]
		for j := i; j < len(lines); j++ {
			if j > i {
				window += "\n" + lines[j]
			}
			span := balancedSpan(window)
			if span == "" {
				continue
			}
			if obj, ok := parseObject(span); ok {
				return obj, true
			}
			// The balanced span from this start point did not parse.
			// Advance to the next starting line.
			break
		}
	}
	return nil, false
}

// parseObject attempts a strict JSON parse into an object.
func parseObject(candidate string) (map[string]any, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || candidate[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
