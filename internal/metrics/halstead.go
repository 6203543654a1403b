package metrics

import (
	"math"
	"regexp"

	"github.com/DeusData/module-sentinel/internal/model"
)

var (
	stringLit    = regexp.MustCompile(`"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*'|` + "`[^`]*`")
	lineComment  = regexp.MustCompile(`(?m)(//|#).*$`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	tokenRe      = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*|\d+(?:\.\d+)?|<<=|>>=|->|::|\+\+|--|&&|\|\||==|!=|<=|>=|\+=|-=|\*=|/=|%=|&=|\|=|\^=|<<|>>|=>|[-+*/%=<>!&|^~?:;,.(){}\[\]]`)
)

// keywordOperators are identifiers that act as operators.
var keywordOperators = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true, "switch": true,
	"case": true, "default": true, "return": true, "break": true, "continue": true,
	"try": true, "catch": true, "throw": true, "new": true, "delete": true, "goto": true,
	"sizeof": true, "typeof": true, "instanceof": true, "in": true, "and": true, "or": true,
	"not": true, "is": true, "await": true, "yield": true, "co_await": true, "co_yield": true,
	"co_return": true, "def": true, "func": true, "function": true, "fn": true, "let": true,
	"var": true, "const": true, "static": true, "match": true, "when": true, "elif": true,
	"except": true, "finally": true, "raise": true, "lambda": true, "with": true, "go": true,
	"defer": true, "select": true, "range": true,
}

// Halstead tokenizes source text and derives the Halstead measures.
func Halstead(source string) model.HalsteadMetrics {
	operators := map[string]int{}
	operands := map[string]int{}

	text := blockComment.ReplaceAllString(source, " ")
	text = stringLit.ReplaceAllStringFunc(text, func(s string) string {
		operands["<str>"+s]++
		return " "
	})
	text = lineComment.ReplaceAllString(text, "")

	for _, tok := range tokenRe.FindAllString(text, -1) {
		c := tok[0]
		switch {
		case c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'):
			if keywordOperators[tok] {
				operators[tok]++
			} else {
				operands[tok]++
			}
		case c >= '0' && c <= '9':
			operands[tok]++
		default:
			operators[tok]++
		}
	}
	return HalsteadFromCounts(operators, operands)
}

// HalsteadFromCounts computes the measures from operator and operand tallies.
func HalsteadFromCounts(operators, operands map[string]int) model.HalsteadMetrics {
	h := model.HalsteadMetrics{
		DistinctOperators: len(operators),
		DistinctOperands:  len(operands),
	}
	for _, n := range operators {
		h.TotalOperators += n
	}
	for _, n := range operands {
		h.TotalOperands += n
	}
	h.Vocabulary = h.DistinctOperators + h.DistinctOperands
	h.Length = h.TotalOperators + h.TotalOperands
	if h.Vocabulary > 0 {
		h.Volume = float64(h.Length) * math.Log2(float64(h.Vocabulary))
	}
	if h.DistinctOperands > 0 {
		h.Difficulty = (float64(h.DistinctOperators) / 2) * (float64(h.TotalOperands) / float64(h.DistinctOperands))
	}
	h.Effort = h.Difficulty * h.Volume
	h.Time = h.Effort / 18
	h.Bugs = h.Volume / 3000
	return h
}
