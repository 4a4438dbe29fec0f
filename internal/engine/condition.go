package engine

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// EvalCondition вычисляет булево выражение условия над контекстом pipeline.
//
// Грамматика намеренно закрытая — произвольный код не исполняется:
//
//	expr   := or
//	or     := and ("||" and)*
//	and    := unary ("&&" unary)*
//	unary  := "!" unary | cmp
//	cmp    := term (("==" | "!=" | "<" | "<=" | ">" | ">=") term)?
//	term   := number | string | true | false | nil |
//	          len "(" expr ")" | ident ("." ident)* | "(" expr ")"
//
// Идентификаторы разрешаются в контексте; точка — доступ к вложенным
// map'ам. Отсутствующий ключ даёт nil. Пустое условие истинно.
func EvalCondition(condition string, context map[string]any) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}

	tokens, err := lexCondition(condition)
	if err != nil {
		return false, err
	}

	p := &condParser{tokens: tokens, context: context}
	val, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if !p.atEnd() {
		return false, fmt.Errorf("%w: unexpected %q", ErrConditionSyntax, p.peek().text)
	}

	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrConditionType, val)
	}
	return b, nil
}

// --- Лексер ---

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp     // == != < <= > >= && || !
	tokLParen // (
	tokRParen // )
	tokDot    // .
)

type token struct {
	kind tokenKind
	text string
}

// lexCondition разбивает выражение на токены.
func lexCondition(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0

	for i < len(runes) {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++

		case r == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++

		case r == '.':
			tokens = append(tokens, token{tokDot, "."})
			i++

		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("%w: unterminated string", ErrConditionSyntax)
			}
			tokens = append(tokens, token{tokString, string(runes[i+1 : j])})
			i = j + 1

		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, string(runes[i:j])})
			i = j

		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, token{tokIdent, string(runes[i:j])})
			i = j

		default:
			// Двухсимвольные операторы проверяем первыми
			if i+1 < len(runes) {
				two := string(runes[i : i+2])
				switch two {
				case "==", "!=", "<=", ">=", "&&", "||":
					tokens = append(tokens, token{tokOp, two})
					i += 2
					continue
				}
			}
			switch r {
			case '<', '>', '!':
				tokens = append(tokens, token{tokOp, string(r)})
				i++
			default:
				return nil, fmt.Errorf("%w: unexpected character %q", ErrConditionSyntax, string(r))
			}
		}
	}

	return tokens, nil
}

// --- Парсер с немедленным вычислением ---

type condParser struct {
	tokens  []token
	pos     int
	context map[string]any
}

func (p *condParser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *condParser) peek() token {
	if p.atEnd() {
		return token{tokOp, "<eof>"}
	}
	return p.tokens[p.pos]
}

func (p *condParser) accept(kind tokenKind, text string) bool {
	if p.atEnd() {
		return false
	}
	t := p.tokens[p.pos]
	if t.kind == kind && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *condParser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOp, "||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lb, rb, err := bothBool(left, right)
		if err != nil {
			return nil, err
		}
		left = lb || rb
	}
	return left, nil
}

func (p *condParser) parseAnd() (any, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOp, "&&") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lb, rb, err := bothBool(left, right)
		if err != nil {
			return nil, err
		}
		left = lb && rb
	}
	return left, nil
}

func (p *condParser) parseUnary() (any, error) {
	if p.accept(tokOp, "!") {
		val, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: operand of ! is %T", ErrConditionType, val)
		}
		return !b, nil
	}
	return p.parseComparison()
}

func (p *condParser) parseComparison() (any, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	if p.atEnd() || p.peek().kind != tokOp {
		return left, nil
	}

	op := p.peek().text
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		p.pos++
	default:
		return left, nil
	}

	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	return compare(op, left, right)
}

func (p *condParser) parseTerm() (any, error) {
	if p.atEnd() {
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrConditionSyntax)
	}

	t := p.tokens[p.pos]

	switch t.kind {
	case tokLParen:
		p.pos++
		val, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokRParen, ")") {
			return nil, fmt.Errorf("%w: missing )", ErrConditionSyntax)
		}
		return val, nil

	case tokNumber:
		p.pos++
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrConditionSyntax, t.text)
		}
		return f, nil

	case tokString:
		p.pos++
		return t.text, nil

	case tokIdent:
		switch t.text {
		case "true":
			p.pos++
			return true, nil
		case "false":
			p.pos++
			return false, nil
		case "nil", "null":
			p.pos++
			return nil, nil
		case "len":
			// len(expr) — длина строки, слайса или map
			if p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].kind == tokLParen {
				p.pos += 2
				val, err := p.parseOr()
				if err != nil {
					return nil, err
				}
				if !p.accept(tokRParen, ")") {
					return nil, fmt.Errorf("%w: missing ) after len", ErrConditionSyntax)
				}
				return lengthOf(val)
			}
		}
		return p.parseFieldAccess()
	}

	return nil, fmt.Errorf("%w: unexpected %q", ErrConditionSyntax, t.text)
}

// parseFieldAccess разрешает идентификатор с точечным доступом в контексте.
func (p *condParser) parseFieldAccess() (any, error) {
	t := p.tokens[p.pos]
	p.pos++

	val, ok := p.context[t.text]
	if !ok {
		val = nil
	}

	for p.accept(tokDot, ".") {
		if p.atEnd() || p.peek().kind != tokIdent {
			return nil, fmt.Errorf("%w: expected field name after .", ErrConditionSyntax)
		}
		field := p.tokens[p.pos].text
		p.pos++

		m, ok := val.(map[string]any)
		if !ok {
			// Доступ к полю не-map значения даёт nil
			val = nil
			continue
		}
		val = m[field]
	}

	return val, nil
}

// --- Семантика операций ---

func bothBool(left, right any) (bool, bool, error) {
	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if !lok || !rok {
		return false, false, fmt.Errorf("%w: boolean operands required", ErrConditionType)
	}
	return lb, rb, nil
}

// compare сравнивает два значения.
// Числа приводятся к float64; == и != определены для любых типов.
func compare(op string, left, right any) (bool, error) {
	lf, lnum := toFloat(left)
	rf, rnum := toFloat(right)

	switch op {
	case "==":
		if lnum && rnum {
			return lf == rf, nil
		}
		return reflect.DeepEqual(left, right), nil
	case "!=":
		if lnum && rnum {
			return lf != rf, nil
		}
		return !reflect.DeepEqual(left, right), nil
	}

	// Порядковые сравнения: числа или строки
	if lnum && rnum {
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}

	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}

	return false, fmt.Errorf("%w: cannot order %T and %T", ErrConditionType, left, right)
}

// toFloat приводит числовые типы к float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// lengthOf возвращает длину строки, слайса или map как float64.
func lengthOf(v any) (any, error) {
	if v == nil {
		return float64(0), nil
	}
	switch val := v.(type) {
	case string:
		return float64(len(val)), nil
	case []any:
		return float64(len(val)), nil
	case map[string]any:
		return float64(len(val)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return float64(rv.Len()), nil
	}
	return nil, fmt.Errorf("%w: len of %T", ErrConditionType, v)
}
