package parser

import (
	"regexp"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
)

// Shared patterns for brace-delimited languages (JavaScript, PHP).
var (
	cCallPattern    = regexp.MustCompile(`([A-Za-z_$][\w$]*(?:(?:\.|->|::)[A-Za-z_$][\w$]*)*)\s*\(`)
	cCatchPattern   = regexp.MustCompile(`catch\s*(?:\(\s*([^)]*)\))?`)
	cReturnPattern  = regexp.MustCompile(`\breturn\b\s*([^;]*)`)
	cNumberPattern  = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	cBoolPattern    = regexp.MustCompile(`\b(?:true|false|TRUE|FALSE|True|False)\b`)
	cAttrPattern    = regexp.MustCompile(`([A-Za-z_$][\w$]*)(?:\.|->)[A-Za-z_$]`)
	cSubscript      = regexp.MustCompile(`([A-Za-z_$][\w$]*)\[`)
	cAugAssign      = regexp.MustCompile(`(\*\*=|<<=|>>=|\+=|-=|\*=|/=|%=|&=|\|=|\^=|\.=|\?\?=)`)
	cComparisonOp   = regexp.MustCompile(`(===|!==|==|!=|<=|>=|<|>|<=>)`)
	cLogicalOp      = regexp.MustCompile(`(&&|\|\||!)`)
	cBinaryOp       = regexp.MustCompile(`(\*\*|<<|>>|[+\-*/%&|^]|\.\s)`)
	cLambdaPattern  = regexp.MustCompile(`=>|\bfunction\s*\(|\bfn\s*\(`)
	cAssertPattern  = regexp.MustCompile(`\bassert\s*\(`)
	cFunctionalCall = regexp.MustCompile(`\b(?:map|filter|reduce|array_map|array_filter|array_reduce)\s*\(`)
	cYieldPattern   = regexp.MustCompile(`\byield\b`)
	cYieldFrom      = regexp.MustCompile(`\byield\s+from\b|\byield\*`)
)

// cKeywords are names excluded from call-target extraction.
var cKeywords = map[string]bool{
	"if": true, "for": true, "foreach": true, "while": true, "switch": true,
	"match": true, "catch": true, "return": true, "function": true,
	"fn": true, "typeof": true, "instanceof": true,
	"yield": true, "await": true, "do": true, "else": true, "elseif": true,
}

// extractCStyleFeatures builds the body feature set from cleaned lines
// of a brace-delimited language body.
func extractCStyleFeatures(body []string) *ir.BodyFeatures {
	f := ir.NewBodyFeatures()

	for _, line := range body {
		for _, kw := range []string{"if", "while", "switch", "try", "match"} {
			n := countWord(line, kw)
			f.ControlFlow[kw] += n
			if kw != "try" {
				f.DecisionPoints += n
			}
		}
		forCount := countWord(line, "for") + countWord(line, "foreach")
		f.ControlFlow["for"] += forCount
		f.DecisionPoints += forCount
		f.DecisionPoints += countWord(line, "case") + countWord(line, "catch")

		for _, m := range cCatchPattern.FindAllStringSubmatch(line, -1) {
			f.ExceptionHandlers = append(f.ExceptionHandlers, normalizeCatchShape(m[1]))
		}

		for _, m := range cReturnPattern.FindAllStringSubmatch(line, -1) {
			f.ReturnShapes[cReturnShape(strings.TrimSpace(m[1]))]++
		}

		f.YieldFromCount += len(cYieldFrom.FindAllString(line, -1))
		f.YieldCount += len(cYieldPattern.FindAllString(line, -1))

		for _, m := range cCallPattern.FindAllStringSubmatch(line, -1) {
			callee := m[1]
			head := callee
			if idx := strings.IndexAny(callee, ".-:"); idx >= 0 {
				head = callee[:idx]
			}
			if cKeywords[head] || cKeywords[callee] {
				continue
			}
			f.InternalCalls[normalizeCallee(callee)]++
		}

		f.Lambdas += len(cLambdaPattern.FindAllString(line, -1))
		f.FunctionalCalls += len(cFunctionalCall.FindAllString(line, -1))
		f.Assertions += len(cAssertPattern.FindAllString(line, -1))

		for _, m := range cAugAssign.FindAllStringSubmatch(line, -1) {
			f.AugmentedAssignments[m[1]]++
		}
		opLine := cAugAssign.ReplaceAllString(line, " ")
		for _, m := range cComparisonOp.FindAllStringSubmatch(opLine, -1) {
			f.ComparisonOps[m[1]]++
		}
		cmpStripped := cComparisonOp.ReplaceAllString(opLine, " ")
		for _, m := range cLogicalOp.FindAllStringSubmatch(cmpStripped, -1) {
			f.LogicalOps[m[1]]++
			if m[1] != "!" {
				f.DecisionPoints++
			}
		}
		binLine := cLogicalOp.ReplaceAllString(cmpStripped, " ")
		binLine = strings.ReplaceAll(binLine, "->", " ")
		binLine = strings.ReplaceAll(binLine, "=>", " ")
		for _, m := range cBinaryOp.FindAllStringSubmatch(binLine, -1) {
			f.BinaryOps[strings.TrimSpace(m[1])]++
		}

		classifyCAssignment(line, f)

		f.StringLiterals += strings.Count(line, `""`)
		f.NumericLiterals += len(cNumberPattern.FindAllString(line, -1))
		f.BooleanLiterals += len(cBoolPattern.FindAllString(line, -1))

		for _, m := range cAttrPattern.FindAllStringSubmatch(line, -1) {
			f.AttributeAccesses[strings.TrimPrefix(m[1], "$")]++
		}
		for _, m := range cSubscript.FindAllStringSubmatch(line, -1) {
			f.SubscriptAccesses[strings.TrimPrefix(m[1], "$")]++
		}
	}

	return f
}

func classifyCAssignment(line string, f *ir.BodyFeatures) {
	if cAugAssign.MatchString(line) {
		return
	}
	eq := indexTopLevel(line, '=')
	if eq < 0 {
		return
	}
	if eq+1 < len(line) && (line[eq+1] == '=' || line[eq+1] == '>') {
		return
	}
	if eq > 0 && (line[eq-1] == '!' || line[eq-1] == '<' || line[eq-1] == '>' || line[eq-1] == '=') {
		return
	}
	left := strings.TrimSpace(line[:eq])
	switch {
	case strings.HasPrefix(left, "[") || strings.HasPrefix(left, "{"):
		f.Assignments["unpack"]++
	case strings.Contains(left, ","):
		f.Assignments["multiple"]++
	case strings.Contains(left, ":"):
		f.Assignments["annotated"]++
	default:
		f.Assignments["simple"]++
	}
}

func cReturnShape(rest string) string {
	rest = strings.TrimSuffix(rest, ";")
	switch {
	case rest == "" || rest == "null" || rest == "undefined":
		return "bare"
	case strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]"),
		strings.HasPrefix(rest, "{") && strings.HasSuffix(rest, "}"):
		inner := rest[1 : len(rest)-1]
		commas := strings.Count(inner, ",")
		switch {
		case commas == 0:
			return "value"
		case commas == 1:
			return "tuple2"
		default:
			return "tuple3+"
		}
	default:
		return "value"
	}
}

func normalizeCatchShape(clause string) string {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return ""
	}
	// PHP style: "TypeA|TypeB $e"; JS style: "e" (untyped).
	if idx := strings.LastIndex(clause, "$"); idx >= 0 {
		clause = strings.TrimSpace(clause[:idx])
	} else if !strings.ContainsAny(clause, "|\\") && !strings.Contains(clause, " ") {
		// bare JS binding carries no type information
		return ""
	}
	return strings.ReplaceAll(clause, " ", "")
}

func normalizeCallee(callee string) string {
	callee = strings.ReplaceAll(callee, "->", ".")
	callee = strings.ReplaceAll(callee, "::", ".")
	return strings.TrimPrefix(callee, "$")
}

// stripCStyle removes comments and blanks string contents for // and
// /* */ commented, quote-delimited languages. Handles ', ", and
// backtick template literals. hashComments enables PHP-style # comments
// (left off for JavaScript, where # introduces private fields).
func stripCStyle(src string, hashComments bool) []string {
	lines := strings.Split(src, "\n")
	out := make([]string, len(lines))

	inBlock := false
	var inString byte
	for i, line := range lines {
		var b strings.Builder
		j := 0
		for j < len(line) {
			if inBlock {
				if idx := strings.Index(line[j:], "*/"); idx >= 0 {
					j += idx + 2
					inBlock = false
					continue
				}
				j = len(line)
				break
			}
			if inString != 0 {
				// Multi-line string (template literal / heredoc-ish).
				for j < len(line) {
					if line[j] == '\\' {
						j += 2
						continue
					}
					if line[j] == inString {
						inString = 0
						b.WriteString(`""`)
						j++
						break
					}
					j++
				}
				continue
			}
			c := line[j]
			if c == '/' && j+1 < len(line) {
				if line[j+1] == '/' {
					j = len(line)
					break
				}
				if line[j+1] == '*' {
					inBlock = true
					j += 2
					continue
				}
			}
			if c == '#' && hashComments && !strings.HasPrefix(line[j:], "#[") {
				j = len(line)
				break
			}
			if c == '\'' || c == '"' || c == '`' {
				end := j + 1
				closed := false
				for end < len(line) {
					if line[end] == '\\' {
						end += 2
						continue
					}
					if line[end] == c {
						closed = true
						break
					}
					end++
				}
				if closed {
					b.WriteString(`""`)
					j = end + 1
					continue
				}
				inString = c
				j = len(line)
				break
			}
			b.WriteByte(c)
			j++
		}
		out[i] = b.String()
	}
	return out
}
