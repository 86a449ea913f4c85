package engine

import (
	"encoding/json"
	"strings"

	"github.com/redev-labs/complex-scanner/internal/model"
)

// ParseOutcome tags the result of parsing one engine response.
type ParseOutcome int

const (
	// ParseOK means a payload was extracted.
	ParseOK ParseOutcome = iota
	// ParseNoData means the response carries no structured data. Not an
	// error: engines legitimately answer in prose when they find nothing.
	ParseNoData
	// ParseMalformed means structured data was present but unreadable.
	ParseMalformed
)

// ParseResult is the tagged outcome of parsing one engine response.
type ParseResult struct {
	Outcome ParseOutcome
	Payload model.EnginePayload
}

// Parse extracts an engine payload from free-form response text. Strategies
// are tried in order: strict parse, fenced-block extraction, first balanced
// object span in prose. Anything without an object span is NoData.
func Parse(text string) ParseResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return ParseResult{Outcome: ParseNoData}
	}

	if p, ok := tryUnmarshal(text); ok {
		return ParseResult{Outcome: ParseOK, Payload: p}
	}

	if fenced := extractFenced(text); fenced != "" {
		if p, ok := tryUnmarshal(fenced); ok {
			return ParseResult{Outcome: ParseOK, Payload: p}
		}
		return ParseResult{Outcome: ParseMalformed}
	}

	if span := balancedObjectSpan(text); span != "" {
		if p, ok := tryUnmarshal(span); ok {
			return ParseResult{Outcome: ParseOK, Payload: p}
		}
		return ParseResult{Outcome: ParseMalformed}
	}

	return ParseResult{Outcome: ParseNoData}
}

func tryUnmarshal(text string) (model.EnginePayload, bool) {
	var p model.EnginePayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return model.EnginePayload{}, false
	}
	return p, true
}

// extractFenced pulls the body of a leading markdown code fence.
func extractFenced(text string) string {
	idx := strings.Index(text, "```")
	if idx < 0 {
		return ""
	}
	body := text[idx+3:]
	body = strings.TrimPrefix(body, "json")
	end := strings.Index(body, "```")
	if end < 0 {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(body[:end])
}

// balancedObjectSpan returns the first balanced {...} span in the text,
// respecting string literals and escapes.
func balancedObjectSpan(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escape = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
