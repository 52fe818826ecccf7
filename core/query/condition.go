// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/relabs-tech/hikingclubs/core/apperrors"
)

// Operator is a comparison operator of a condition clause
type Operator string

// supported operators
const (
	OpEqual          Operator = "="
	OpLess           Operator = "<"
	OpGreater        Operator = ">"
	OpLessOrEqual    Operator = "<="
	OpGreaterOrEqual Operator = ">="
	OpNotEqual       Operator = "<>"
	OpLike           Operator = "LIKE"
)

// Connective joins two clauses
type Connective string

// supported connectives
const (
	And Connective = "AND"
	Or  Connective = "OR"
)

// Predicate is one validated clause. The value is not part of the predicate, it is
// bound under Placeholder.
type Predicate struct {
	Attribute   Attribute
	Operator    Operator
	Placeholder string
}

// Filter is a parsed condition string: Predicates joined by Connectives, where
// Connectives[i] sits between Predicates[i] and Predicates[i+1]. Params maps each
// placeholder to its bound value.
type Filter struct {
	Predicates  []Predicate
	Connectives []Connective
	Params      map[string]interface{}
}

// two character operators come first so that "<=" is not read as "<" followed by "="
var clausePattern = regexp.MustCompile(`^(\w+)\s*(<=|>=|<>|=|<|>|(?i:\bLIKE\b))\s*(\S.*)$`)

// ParseConditions parses a free text condition like
//
//	NumofTrailsCompleted >= 10 AND Name LIKE 'A%' OR ClubEmail = "c@x.com"
//
// into a filter over the hiker table. Attribute names must be on the hiker allow-list,
// values are always bound as parameters.
func ParseConditions(conditions string) (*Filter, error) {
	return parseConditions(HikerAttributes, conditions)
}

func parseConditions(allowList *AllowList, conditions string) (*Filter, error) {
	clauses, connectives, ok := splitClauses(conditions)
	if !ok {
		return nil, apperrors.Validation(apperrors.InvalidCondition, "Invalid condition: unterminated quote in %s", conditions)
	}

	filter := &Filter{
		Connectives: connectives,
		Params:      map[string]interface{}{},
	}
	for i, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return nil, apperrors.Validation(apperrors.InvalidCondition, "Invalid condition: empty clause at position %d", i+1)
		}
		match := clausePattern.FindStringSubmatch(clause)
		if match == nil {
			return nil, apperrors.Validation(apperrors.InvalidCondition, "Invalid condition: %s", clause)
		}
		name, operator, rawValue := match[1], Operator(strings.ToUpper(match[2])), strings.TrimSpace(match[3])
		if !wellQuoted(rawValue) {
			return nil, apperrors.Validation(apperrors.InvalidCondition, "Invalid condition: %s", clause)
		}

		attribute, ok := allowList.Lookup(name)
		if !ok {
			return nil, apperrors.Validation(apperrors.InvalidAttribute, "Invalid attribute: %s", name)
		}

		value, err := bindValue(attribute, operator, stripQuotes(rawValue))
		if err != nil {
			return nil, err
		}

		key := "param" + strconv.Itoa(i)
		filter.Predicates = append(filter.Predicates, Predicate{Attribute: attribute, Operator: operator, Placeholder: key})
		filter.Params[key] = value
	}
	return filter, nil
}

// bindValue converts the literal into the value bound for the attribute
func bindValue(attribute Attribute, operator Operator, literal string) (interface{}, error) {
	if attribute.kind != Integer || operator == OpLike {
		return literal, nil
	}
	// the column is a postgres INTEGER
	n, err := strconv.ParseInt(literal, 10, 32)
	if err != nil {
		return nil, apperrors.Validation(apperrors.InvalidCondition, "Invalid condition: %s expects an integer, got %q", attribute.name, literal)
	}
	return n, nil
}

// wellQuoted returns false for a value that starts with a quote but does not end with
// the same quote, e.g. `'a' ANDHikerEmail = b`
func wellQuoted(value string) bool {
	if len(value) == 0 || (value[0] != '\'' && value[0] != '"') {
		return true
	}
	return len(value) >= 2 && value[len(value)-1] == value[0]
}

// stripQuotes removes one leading and one trailing single or double quote
func stripQuotes(s string) string {
	if len(s) > 0 && (s[0] == '\'' || s[0] == '"') {
		s = s[1:]
	}
	if len(s) > 0 && (s[len(s)-1] == '\'' || s[len(s)-1] == '"') {
		s = s[:len(s)-1]
	}
	return s
}

// splitClauses splits s on whitespace delimited AND/OR tokens (case insensitive). A
// connective inside a quoted value does not split. A quote opens a value only at the
// start of a token or right after an operator, so apostrophes inside words do not.
// A connective at the very end yields an empty trailing clause. ok is false if a quote
// is never closed.
func splitClauses(s string) (clauses []string, connectives []Connective, ok bool) {
	var (
		quote byte
		start int
	)
	for i := 0; i < len(s); {
		c := s[i]
		if quote != 0 {
			if c == quote && (i+1 == len(s) || isSpace(s[i+1])) {
				quote = 0
			}
			i++
			continue
		}
		if (c == '\'' || c == '"') && (i == 0 || isSpace(s[i-1]) || isOperatorChar(s[i-1])) {
			quote = c
			i++
			continue
		}
		if !isSpace(c) {
			i++
			continue
		}
		j := i
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		if connective, n := connectiveAt(s[j:]); n > 0 {
			end := j + n
			if end == len(s) || isSpace(s[end]) {
				clauses = append(clauses, s[start:i])
				connectives = append(connectives, connective)
				for end < len(s) && isSpace(s[end]) {
					end++
				}
				start = end
				i = end
				continue
			}
		}
		i = j
	}
	clauses = append(clauses, s[start:])
	return clauses, connectives, quote == 0
}

func connectiveAt(s string) (Connective, int) {
	if len(s) >= 3 && strings.EqualFold(s[:3], "AND") {
		return And, 3
	}
	if len(s) >= 2 && strings.EqualFold(s[:2], "OR") {
		return Or, 2
	}
	return "", 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isOperatorChar(c byte) bool {
	return c == '=' || c == '<' || c == '>'
}

// render returns the boolean expression with parameters numbered from offset+1,
// following the predicate order
func (f *Filter) render(offset int) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(f.Predicates))
	for i, p := range f.Predicates {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(string(f.Connectives[i-1]))
			sb.WriteString(" ")
		}
		column := p.Attribute.column
		if p.Operator == OpLike && p.Attribute.kind == Integer {
			column = "CAST(" + column + " AS TEXT)"
		}
		args = append(args, f.Params[p.Placeholder])
		sb.WriteString(column)
		sb.WriteString(" ")
		sb.WriteString(string(p.Operator))
		sb.WriteString(" ")
		sb.WriteString(placeholder(offset + len(args)))
	}
	return sb.String(), args
}

// Where renders the filter as a WHERE clause body with its arguments
func (f *Filter) Where() (string, []interface{}) {
	return f.render(0)
}
