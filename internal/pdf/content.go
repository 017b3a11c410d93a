package pdf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// contentOp is one operator of a decoded content stream. [Start, End) spans
// the operands and the operator, so an op can be replaced in place.
type contentOp struct {
	Name  string
	Args  []types.Object
	Start int
	End   int
}

func isContentSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isContentDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// scanRegular returns the end of the run of regular characters at i.
func scanRegular(s string, i int) int {
	for i < len(s) && !isContentSpace(s[i]) && !isContentDelim(s[i]) {
		i++
	}
	return i
}

// lexContent splits a content stream (or a CMap) into operators. Strings,
// names, arrays and dictionaries are parsed by pdfcpu. Numbers are scanned
// here: pdfcpu would read "0 0 1 RG" as the reference "0 1 R".
func lexContent(data []byte) ([]contentOp, error) {
	s := string(data)
	var (
		ops   []contentOp
		args  []types.Object
		start = -1
	)
	for i := 0; i < len(s); {
		c := s[i]
		if isContentSpace(c) {
			i++
			continue
		}
		if c == '%' {
			for i < len(s) && s[i] != '\n' && s[i] != '\r' {
				i++
			}
			continue
		}
		if start < 0 {
			start = i
		}

		switch {
		case c == '/' || c == '(' || c == '<' || c == '[':
			rest := s[i:]
			o, err := model.ParseObject(&rest)
			if err != nil {
				return nil, fmt.Errorf("content stream offset %d: %w", i, err)
			}
			args = append(args, o)
			i = len(s) - len(rest)

		case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
			j := scanRegular(s, i)
			// 与多数阅读器一致，畸形数字按 0 处理
			f, _ := strconv.ParseFloat(s[i:j], 64)
			args = append(args, types.Float(f))
			i = j

		case isContentDelim(c):
			i++

		default:
			j := scanRegular(s, i)
			word := s[i:j]
			i = j
			switch word {
			case "true", "false":
				args = append(args, types.Boolean(word == "true"))
				continue
			case "null":
				args = append(args, nil)
				continue
			case "BI":
				i = skipInlineImage(s, i)
			}
			ops = append(ops, contentOp{Name: word, Args: args, Start: start, End: i})
			args = nil
			start = -1
		}
	}
	return ops, nil
}

// skipInlineImage returns the offset just past the EI that closes the
// inline image whose BI ends at i.
func skipInlineImage(s string, i int) int {
	id := indexKeyword(s, i, "ID")
	if id < 0 {
		return len(s)
	}
	for j := id + 3; j < len(s); {
		k := strings.Index(s[j:], "EI")
		if k < 0 {
			break
		}
		k += j
		if isContentSpace(s[k-1]) && (k+2 == len(s) || isContentSpace(s[k+2])) {
			return k + 2
		}
		j = k + 2
	}
	return len(s)
}

// indexKeyword finds kw at or after from as a whole token.
func indexKeyword(s string, from int, kw string) int {
	for from < len(s) {
		k := strings.Index(s[from:], kw)
		if k < 0 {
			return -1
		}
		k += from
		before := k == 0 || isContentSpace(s[k-1]) || isContentDelim(s[k-1])
		after := k+len(kw) == len(s) || isContentSpace(s[k+len(kw)]) || isContentDelim(s[k+len(kw)])
		if before && after {
			return k
		}
		from = k + len(kw)
	}
	return -1
}

func argNumber(args []types.Object, i int) float64 {
	if i < 0 || i >= len(args) {
		return 0
	}
	switch v := args[i].(type) {
	case types.Float:
		return float64(v)
	case types.Integer:
		return float64(v)
	}
	return 0
}

// argNumbers returns the operands as numbers, or false if any is not one.
func argNumbers(args []types.Object) ([]float64, bool) {
	out := make([]float64, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case types.Float:
			out[i] = float64(v)
		case types.Integer:
			out[i] = float64(v)
		default:
			return nil, false
		}
	}
	return out, true
}

func argName(args []types.Object, i int) string {
	if i < 0 || i >= len(args) {
		return ""
	}
	if n, ok := args[i].(types.Name); ok {
		return string(n)
	}
	return ""
}

// stringBytes returns the bytes of a literal or hex string operand.
func stringBytes(o types.Object) ([]byte, bool) {
	switch v := o.(type) {
	case types.StringLiteral:
		b, err := types.Unescape(string(v))
		return b, err == nil
	case types.HexLiteral:
		h := string(v)
		if len(h)%2 == 1 {
			h += "0"
		}
		b, err := types.HexLiteral(h).Bytes()
		return b, err == nil
	}
	return nil, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
