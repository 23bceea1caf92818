package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Allowed leading commands when read-only mode is requested
var allowedCommands = map[string]bool{
	"SELECT": true,
	"WITH":   true,
}

// Commands rejected in read-only mode
var forbiddenCommands = []string{
	"DELETE", "DROP", "TRUNCATE", "INSERT", "UPDATE", "ALTER", "CREATE",
	"GRANT", "REVOKE", "EXECUTE", "EXEC", "CALL", "MERGE", "COPY",
}

// ValidateQuery checks the baseline every export needs: a non-empty, single
// SQL statement. The statement itself is arbitrary; the backend decides
// whether it is valid SQL.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query cannot be empty")
	}

	statements := splitStatements(stripComments(query))
	if len(statements) > 1 {
		return fmt.Errorf("only a single SQL statement is allowed")
	}
	if len(statements) == 0 {
		return fmt.Errorf("query cannot be empty")
	}
	return nil
}

// ValidateReadOnly rejects statements that modify data or schema. Opt-in:
// exports run arbitrary SQL unless the caller asks for this guard.
func ValidateReadOnly(query string) error {
	cleaned := stripComments(query)
	for _, stmt := range splitStatements(cleaned) {
		normalized := normalizeSQL(stmt)

		first := firstCommand(normalized)
		if first == "" {
			return fmt.Errorf("unable to identify SQL command (read-only mode)")
		}
		if !allowedCommands[first] {
			return fmt.Errorf("forbidden SQL command in read-only mode: %s (only SELECT and WITH are allowed)", first)
		}

		// Catch write commands hidden in CTEs or subqueries
		withoutLiterals := blankStringLiterals(normalized)
		for _, forbidden := range forbiddenCommands {
			pattern := fmt.Sprintf(`\b%s\b`, regexp.QuoteMeta(forbidden))
			if matched, _ := regexp.MatchString(pattern, withoutLiterals); matched {
				return fmt.Errorf("forbidden SQL command detected in read-only mode: %s", forbidden)
			}
		}
	}
	return nil
}

// stripComments removes -- and /* */ comments, leaving string literals
// untouched.
func stripComments(query string) string {
	var out strings.Builder
	var inLine, inBlock, inString bool
	var quote byte

	b := []byte(query)
	for i := 0; i < len(b); i++ {
		c := b[i]

		if inString {
			out.WriteByte(c)
			if c == quote {
				if i+1 < len(b) && b[i+1] == quote {
					out.WriteByte(b[i+1])
					i++
					continue
				}
				inString = false
			}
			continue
		}
		if inLine {
			if c == '\n' {
				inLine = false
				out.WriteByte(c) // keep newline for statement splitting
			}
			continue
		}
		if inBlock {
			if c == '*' && i+1 < len(b) && b[i+1] == '/' {
				inBlock = false
				i++
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			inString = true
			quote = c
			out.WriteByte(c)
		case c == '-' && i+1 < len(b) && b[i+1] == '-':
			inLine = true
			i++
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			inBlock = true
			i++
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// splitStatements splits on semicolons outside string literals and drops
// empty fragments.
func splitStatements(query string) []string {
	var statements []string
	var current strings.Builder
	var inString bool
	var quote byte

	b := []byte(query)
	for i := 0; i < len(b); i++ {
		c := b[i]

		if inString {
			current.WriteByte(c)
			if c == quote {
				if i+1 < len(b) && b[i+1] == quote {
					current.WriteByte(b[i+1])
					i++
					continue
				}
				inString = false
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			inString = true
			quote = c
			current.WriteByte(c)
		case c == ';':
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

var whitespaceRE = regexp.MustCompile(`\s+`)

func normalizeSQL(query string) string {
	return whitespaceRE.ReplaceAllString(strings.ToUpper(strings.TrimSpace(query)), " ")
}

func firstCommand(normalized string) string {
	parts := strings.Fields(normalized)
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimRight(parts[0], ";,()")
}

// blankStringLiterals replaces literal and quoted-identifier content with
// spaces so forbidden-command scanning cannot false-positive on strings.
func blankStringLiterals(query string) string {
	var out strings.Builder
	var inSingle, inDouble bool

	b := []byte(query)
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == '\'' && !inDouble:
			if inSingle && i+1 < len(b) && b[i+1] == '\'' {
				i++
				continue
			}
			inSingle = !inSingle
			out.WriteByte(' ')
		case c == '"' && !inSingle:
			if inDouble && i+1 < len(b) && b[i+1] == '"' {
				i++
				continue
			}
			inDouble = !inDouble
			out.WriteByte(' ')
		case inSingle || inDouble:
			out.WriteByte(' ')
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
