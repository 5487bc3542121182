// Package sqltool provides the SQL execution gateway and the result
// normalizer that converts the heterogeneous textual result shapes
// produced by the database layer into canonical row maps.
package sqltool

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Row is a single normalized result row, keyed by column name.
type Row = map[string]any

// restaurantColumns is the positional column mapping used when a result
// arrives as a bare tuple list with no header information.
var restaurantColumns = []string{
	"id",
	"name",
	"address",
	"latitude",
	"longitude",
	"station_name",
	"video_id",
	"video_url",
}

// Normalize converts raw query-result text into an ordered slice of row maps.
// It accepts three shapes: a pipe-delimited text table, a literal list of
// tuples, and JSON (optionally wrapped in a "results" key). Anything it
// cannot parse yields an empty slice, never an error.
func Normalize(raw string) []Row {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if rows, ok := parseJSONResult(raw); ok {
		return rows
	}

	if strings.Contains(raw, "|") && strings.Contains(raw, "-") {
		return parsePipeTable(raw)
	}

	if rows, ok := parseTupleList(raw); ok {
		return rows
	}

	return nil
}

// parsePipeTable parses a header/separator/data text table. Data lines whose
// token count does not match the header are skipped without failing the rest.
func parsePipeTable(raw string) []Row {
	lines := strings.Split(raw, "\n")
	if len(lines) < 3 {
		return nil
	}

	headers := splitPipeLine(lines[0])
	if len(headers) == 0 {
		return nil
	}

	var rows []Row
	for _, line := range lines[2:] {
		if !strings.Contains(line, "|") {
			continue
		}
		values := splitPipeLine(line)
		if len(values) != len(headers) {
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			row[h] = values[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func splitPipeLine(line string) []string {
	var out []string
	for _, tok := range strings.Split(line, "|") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// parseJSONResult handles JSON payloads. A "results" key is unwrapped; a
// string value under "results" gets one further pass through the tuple-list
// parser.
func parseJSONResult(raw string) ([]Row, bool) {
	if !strings.HasPrefix(raw, "{") && !strings.HasPrefix(raw, "[") {
		return nil, false
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil {
		inner, ok := envelope["results"]
		if !ok {
			return nil, true
		}

		var rows []Row
		if err := json.Unmarshal(inner, &rows); err == nil {
			return rows, true
		}

		var nested string
		if err := json.Unmarshal(inner, &nested); err == nil {
			if rows, ok := parseTupleList(nested); ok {
				return rows, true
			}
			return nil, true
		}
		return nil, true
	}

	var rows []Row
	if err := json.Unmarshal([]byte(raw), &rows); err == nil {
		return rows, true
	}
	return nil, false
}

// parseTupleList parses a tuple-list literal such as
// [(5, 'Name', 'Addr', ...), (6, ...)] into rows using the fixed restaurant
// column order. Positions past the known columns become column_<i>.
func parseTupleList(raw string) ([]Row, bool) {
	tuples, ok := scanTupleList(raw)
	if !ok || len(tuples) == 0 {
		return nil, ok
	}

	rows := make([]Row, 0, len(tuples))
	for _, tup := range tuples {
		row := make(Row, len(tup))
		for i, v := range tup {
			if i < len(restaurantColumns) {
				row[restaurantColumns[i]] = v
			} else {
				row[fmt.Sprintf("column_%d", i)] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, true
}

// scanTupleList is a small literal scanner: it evaluates only list/tuple
// syntax with string, number and null atoms. It never executes anything,
// which keeps tool output from becoming an injection vector.
func scanTupleList(raw string) ([][]any, bool) {
	s := &literalScanner{input: raw}
	s.skipSpace()
	if !s.consume('[') {
		return nil, false
	}

	var tuples [][]any
	s.skipSpace()
	if s.consume(']') {
		return tuples, true
	}

	for {
		tup, ok := s.scanTuple()
		if !ok {
			return nil, false
		}
		tuples = append(tuples, tup)

		s.skipSpace()
		if s.consume(',') {
			s.skipSpace()
			// Trailing comma before the closing bracket is legal.
			if s.consume(']') {
				break
			}
			continue
		}
		if s.consume(']') {
			break
		}
		return nil, false
	}

	s.skipSpace()
	if !s.done() {
		return nil, false
	}
	return tuples, true
}

type literalScanner struct {
	input string
	pos   int
}

func (s *literalScanner) done() bool { return s.pos >= len(s.input) }

func (s *literalScanner) peek() byte {
	if s.done() {
		return 0
	}
	return s.input[s.pos]
}

func (s *literalScanner) consume(c byte) bool {
	if !s.done() && s.input[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

func (s *literalScanner) skipSpace() {
	for !s.done() && unicode.IsSpace(rune(s.input[s.pos])) {
		s.pos++
	}
}

func (s *literalScanner) scanTuple() ([]any, bool) {
	s.skipSpace()
	if !s.consume('(') {
		return nil, false
	}

	var values []any
	s.skipSpace()
	if s.consume(')') {
		return values, true
	}

	for {
		v, ok := s.scanAtom()
		if !ok {
			return nil, false
		}
		values = append(values, v)

		s.skipSpace()
		if s.consume(',') {
			s.skipSpace()
			if s.consume(')') {
				return values, true
			}
			continue
		}
		if s.consume(')') {
			return values, true
		}
		return nil, false
	}
}

func (s *literalScanner) scanAtom() (any, bool) {
	s.skipSpace()
	switch c := s.peek(); {
	case c == '\'' || c == '"':
		return s.scanString(c)
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return s.scanNumber()
	default:
		return s.scanKeyword()
	}
}

func (s *literalScanner) scanString(quote byte) (any, bool) {
	s.pos++ // opening quote
	var sb strings.Builder
	for !s.done() {
		c := s.input[s.pos]
		if c == '\\' && s.pos+1 < len(s.input) {
			s.pos++
			sb.WriteByte(s.input[s.pos])
			s.pos++
			continue
		}
		if c == quote {
			s.pos++
			return sb.String(), true
		}
		sb.WriteByte(c)
		s.pos++
	}
	return nil, false
}

func (s *literalScanner) scanNumber() (any, bool) {
	start := s.pos
	if c := s.peek(); c == '-' || c == '+' {
		s.pos++
	}
	isFloat := false
	for !s.done() {
		c := s.input[s.pos]
		if c >= '0' && c <= '9' {
			s.pos++
			continue
		}
		if c == '.' || c == 'e' || c == 'E' {
			isFloat = true
			s.pos++
			continue
		}
		break
	}
	text := s.input[start:s.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, false
	}
	return n, true
}

func (s *literalScanner) scanKeyword() (any, bool) {
	start := s.pos
	for !s.done() {
		c := s.input[s.pos]
		if !unicode.IsLetter(rune(c)) {
			break
		}
		s.pos++
	}
	switch s.input[start:s.pos] {
	case "None", "null":
		return nil, true
	case "True", "true":
		return true, true
	case "False", "false":
		return false, true
	}
	return nil, false
}
