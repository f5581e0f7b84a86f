package composition

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"reelforge/internal/services"
)

// exportName is the declaration the extractor looks for in the source file.
const exportName = "config"

// ExtractFile reads a source file and recovers its Descriptor.
func ExtractFile(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: read source: %w", services.ErrConfigExtraction, err)
	}
	return Extract(string(data))
}

// Extract scans source text for the exported config literal and parses its
// field values. The source is never evaluated; anything other than a plain
// object literal with string/number members is rejected.
func Extract(source string) (Descriptor, error) {
	tokens := tokenize(source)

	idx, err := findConfigExport(tokens)
	if err != nil {
		return Descriptor{}, err
	}

	fields, err := parseObjectLiteral(tokens, idx)
	if err != nil {
		return Descriptor{}, err
	}

	return buildDescriptor(fields)
}

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenNumber
	tokenPunct
	tokenTemplate
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(source string) []token {
	var tokens []token
	runes := []rune(source)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			i++
		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i += 2
		case r == '\'' || r == '"':
			text, next := scanString(runes, i, r)
			tokens = append(tokens, token{kind: tokenString, text: text})
			i = next
		case r == '`':
			text, next := scanString(runes, i, '`')
			tokens = append(tokens, token{kind: tokenTemplate, text: text})
			i = next
		case r >= '0' && r <= '9' || (r == '.' && i+1 < len(runes) && runes[i+1] >= '0' && runes[i+1] <= '9'):
			start := i
			for i < len(runes) && isNumberRune(runes[i], i > start && (runes[i-1] == 'e' || runes[i-1] == 'E')) {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[start:i])})
		case isIdentStart(r):
			start := i
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: string(runes[start:i])})
		default:
			tokens = append(tokens, token{kind: tokenPunct, text: string(r)})
			i++
		}
	}
	return tokens
}

func scanString(runes []rune, start int, quote rune) (string, int) {
	var sb strings.Builder
	i := start + 1
	for i < len(runes) {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) {
			sb.WriteRune(runes[i+1])
			i += 2
			continue
		}
		if r == quote {
			return sb.String(), i + 1
		}
		// Template interpolation makes the value non-literal; keep the marker
		// so the parser can reject it.
		if quote == '`' && r == '$' && i+1 < len(runes) && runes[i+1] == '{' {
			sb.WriteString("${")
			i += 2
			continue
		}
		sb.WriteRune(r)
		i++
	}
	return sb.String(), i
}

func isNumberRune(r rune, afterExp bool) bool {
	if r >= '0' && r <= '9' || r == '.' || r == '_' || r == 'e' || r == 'E' {
		return true
	}
	return afterExp && (r == '+' || r == '-')
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentRune(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

// findConfigExport returns the token index of the opening brace of the config
// object literal, skipping an optional type annotation between the name and
// the assignment.
func findConfigExport(tokens []token) (int, error) {
	for i := 0; i+2 < len(tokens); i++ {
		if tokens[i].kind != tokenIdent || tokens[i].text != "export" {
			continue
		}
		next := tokens[i+1]
		if next.kind != tokenIdent || (next.text != "const" && next.text != "var" && next.text != "let") {
			continue
		}
		if tokens[i+2].kind != tokenIdent || tokens[i+2].text != exportName {
			continue
		}
		j := i + 3
		if j < len(tokens) && tokens[j].kind == tokenPunct && tokens[j].text == ":" {
			j = skipTypeAnnotation(tokens, j+1)
		}
		if j >= len(tokens) || tokens[j].kind != tokenPunct || tokens[j].text != "=" {
			return 0, notLiteralError("assignment not found")
		}
		j++
		if j >= len(tokens) || tokens[j].kind != tokenPunct || tokens[j].text != "{" {
			return 0, notLiteralError("value is not an object literal")
		}
		return j, nil
	}
	return 0, fmt.Errorf("%w: config export not found: expected `export const %s = { ... }`", services.ErrConfigExtraction, exportName)
}

// skipTypeAnnotation advances past a type annotation until the assignment
// operator at bracket depth zero.
func skipTypeAnnotation(tokens []token, start int) int {
	depth := 0
	for i := start; i < len(tokens); i++ {
		if tokens[i].kind != tokenPunct {
			continue
		}
		switch tokens[i].text {
		case "{", "(", "[", "<":
			depth++
		case "}", ")", "]", ">":
			depth--
		case "=":
			if depth == 0 {
				return i
			}
		}
	}
	return len(tokens)
}

type literalValue struct {
	kind tokenKind
	text string
}

// parseObjectLiteral consumes `{ key: literal, ... }` starting at the opening
// brace. Any member whose value is not a plain string or number literal makes
// the config non-literal and fails extraction.
func parseObjectLiteral(tokens []token, open int) (map[string]literalValue, error) {
	fields := make(map[string]literalValue)
	i := open + 1
	for i < len(tokens) {
		tok := tokens[i]
		if tok.kind == tokenPunct && tok.text == "}" {
			return fields, nil
		}
		if tok.kind == tokenPunct && tok.text == "," {
			i++
			continue
		}

		var key string
		switch tok.kind {
		case tokenIdent, tokenString:
			key = tok.text
		default:
			return nil, notLiteralError(fmt.Sprintf("unexpected token %q in config object", tok.text))
		}

		i++
		if i >= len(tokens) || tokens[i].kind != tokenPunct || tokens[i].text != ":" {
			return nil, notLiteralError(fmt.Sprintf("field %q is not a plain key/value pair", key))
		}
		i++
		if i >= len(tokens) {
			return nil, notLiteralError("config object is truncated")
		}

		value := tokens[i]
		negative := false
		if value.kind == tokenPunct && value.text == "-" && i+1 < len(tokens) && tokens[i+1].kind == tokenNumber {
			negative = true
			i++
			value = tokens[i]
		}

		switch value.kind {
		case tokenString:
			fields[key] = literalValue{kind: tokenString, text: value.text}
		case tokenTemplate:
			if strings.Contains(value.text, "${") {
				return nil, notLiteralError(fmt.Sprintf("field %q uses template interpolation", key))
			}
			fields[key] = literalValue{kind: tokenString, text: value.text}
		case tokenNumber:
			text := value.text
			if negative {
				text = "-" + text
			}
			fields[key] = literalValue{kind: tokenNumber, text: text}
		default:
			return nil, notLiteralError(fmt.Sprintf("field %q is not a string or number literal", key))
		}
		i++
	}
	return nil, notLiteralError("config object is missing its closing brace")
}

func buildDescriptor(fields map[string]literalValue) (Descriptor, error) {
	var desc Descriptor

	id, ok := fields["id"]
	if !ok {
		return desc, missingFieldError("id")
	}
	if id.kind != tokenString {
		return desc, fieldError("id", "must be a string")
	}
	desc.ID = id.text

	duration, err := numberField(fields, "durationInSeconds")
	if err != nil {
		return desc, err
	}
	desc.DurationInSeconds = duration

	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"fps", &desc.FPS},
		{"width", &desc.Width},
		{"height", &desc.Height},
	} {
		value, err := numberField(fields, field.name)
		if err != nil {
			return desc, err
		}
		if value != math.Trunc(value) {
			return desc, fieldError(field.name, "must be an integer")
		}
		*field.dst = int(value)
	}

	if err := desc.Validate(); err != nil {
		return desc, err
	}
	return desc, nil
}

func numberField(fields map[string]literalValue, name string) (float64, error) {
	value, ok := fields[name]
	if !ok {
		return 0, missingFieldError(name)
	}
	if value.kind != tokenNumber {
		return 0, fieldError(name, "must be a number")
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(value.text, "_", ""), 64)
	if err != nil {
		return 0, fieldError(name, fmt.Sprintf("has unparseable value %q", value.text))
	}
	return parsed, nil
}

func notLiteralError(detail string) error {
	return fmt.Errorf("%w: config export is not a plain literal: %s", services.ErrConfigExtraction, detail)
}
