package parser

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
)

// Pre-compiled patterns for Python declaration and body scanning.
var (
	pyDefPattern      = regexp.MustCompile(`^(async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	pyClassPattern    = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*(?:\(([^)]*)\))?\s*:`)
	pyDecoratorLine   = regexp.MustCompile(`^@\s*([A-Za-z_][\w.]*)`)
	pyImportPattern   = regexp.MustCompile(`^import\s+(.+)$`)
	pyFromPattern     = regexp.MustCompile(`^from\s+([\w.]+)\s+import\b`)
	pyExceptPattern   = regexp.MustCompile(`^except\s*(?:\(([^)]*)\)|([\w.]+(?:\s*,\s*[\w.]+)*))?`)
	pyCallPattern     = regexp.MustCompile(`([A-Za-z_][\w.]*)\s*\(`)
	pyLambdaPattern   = regexp.MustCompile(`\blambda\b`)
	pyNumberPattern   = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	pyBoolPattern     = regexp.MustCompile(`\b(?:True|False)\b`)
	pyAttrPattern     = regexp.MustCompile(`\b([A-Za-z_]\w*)\.[A-Za-z_]`)
	pySubscriptRef    = regexp.MustCompile(`\b([A-Za-z_]\w*)\[`)
	pyAugAssign       = regexp.MustCompile(`(\*\*=|//=|>>=|<<=|\+=|-=|\*=|/=|%=|&=|\|=|\^=)`)
	pyComparisonOp    = regexp.MustCompile(`(==|!=|<=|>=|<|>)`)
	pyBinaryOp        = regexp.MustCompile(`(\*\*|//|<<|>>|[+\-*/%&|^])`)
	pyUnaryOp         = regexp.MustCompile(`(?:^|[\s(\[{,=])([-+~])\w`)
	pyFunctionalCall  = regexp.MustCompile(`\b(?:map|filter|reduce)\s*\(`)
	pyConstantAssign  = regexp.MustCompile(`^([A-Z][A-Z0-9_]*)\s*(?::[^=]+)?=[^=]`)
	pyPropertyAssign  = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(:[^=]+)?=[^=]`)
	pyAnnotationOnly  = regexp.MustCompile(`^([A-Za-z_]\w*)\s*:\s*[^=]+$`)
	pyKeywordArgSplit = regexp.MustCompile(`^\s*[\w.]+\s*=`)
)

// pyKeywords are names that look like call targets but are statements.
var pyKeywords = map[string]bool{
	"if": true, "elif": true, "while": true, "for": true, "return": true,
	"yield": true, "assert": true, "del": true,
	"raise": true, "with": true, "match": true, "case": true,
	"def": true, "class": true, "lambda": true, "except": true,
	"and": true, "or": true, "not": true, "in": true, "is": true,
}

// Python returns the Python parser capability.
func Python() Parser {
	return Parser{
		Name:       "python",
		Extensions: []string{".py"},
		Parse:      parsePython,
	}
}

// pyLine is one preprocessed source line: comments removed, string
// literal contents blanked, indentation kept.
type pyLine struct {
	clean  string
	indent int
	blank  bool
}

// parsePython scans Python source into an IR using an indentation-aware
// line walk. It never fails: unrecoverable structure degrades the IR.
func parsePython(path string, src []byte) *ir.IR {
	out := ir.New(path)
	if len(src) == 0 {
		return out
	}

	lines := preprocessPython(string(src))

	module := &ir.Node{
		Kind:          ir.KindModule,
		QualifiedName: "module:" + moduleName(path),
		StartLine:     1,
		EndLine:       len(lines),
		Features:      ir.NewBodyFeatures(),
	}
	if err := out.Add(module); err != nil {
		out.Degraded = true
		out.DegradedDetail = err.Error()
		return out
	}

	w := &pyWalker{out: out, lines: lines, module: module}
	w.walk()

	module.Dependencies = sortedSet(w.deps)
	module.Features = extractPythonFeatures(w.moduleBody())
	module.BodyFingerprint = fingerprintLines(cleanedLines(lines))
	if err := out.Validate(); err != nil {
		out.Degraded = true
		out.DegradedDetail = err.Error()
	}
	return out
}

// pyScope is one open def or class on the walker stack.
type pyScope struct {
	node      *ir.Node
	indent    int
	bodyStart int
	// inline holds a body written on the def line itself.
	inline string
}

type pyWalker struct {
	out    *ir.IR
	lines  []pyLine
	module *ir.Node
	stack  []pyScope
	deps   map[string]bool

	// topLevelSpans records [start,end) line-index ranges of top-level
	// defs and classes so module features cover only module statements.
	topLevelSpans [][2]int

	pendingDecorators []string
}

// moduleBody returns the cleaned lines outside every top-level def and
// class span.
func (w *pyWalker) moduleBody() []string {
	var body []string
	for i, line := range w.lines {
		if line.blank || inSpans(i, w.topLevelSpans) {
			continue
		}
		body = append(body, strings.TrimSpace(line.clean))
	}
	return body
}

func inSpans(i int, spans [][2]int) bool {
	for _, s := range spans {
		if i >= s[0] && i < s[1] {
			return true
		}
	}
	return false
}

func (w *pyWalker) walk() {
	w.deps = make(map[string]bool)

	for i := 0; i < len(w.lines); i++ {
		line := w.lines[i]
		if line.blank {
			continue
		}
		w.closeScopes(line.indent, i)

		clean := strings.TrimSpace(line.clean)

		if m := pyImportPattern.FindStringSubmatch(clean); m != nil && len(w.stack) == 0 {
			w.recordImports(m[1])
			continue
		}
		if m := pyFromPattern.FindStringSubmatch(clean); m != nil && len(w.stack) == 0 {
			w.deps[m[1]] = true
			continue
		}
		if m := pyDecoratorLine.FindStringSubmatch(clean); m != nil {
			w.pendingDecorators = append(w.pendingDecorators, m[1])
			continue
		}
		if pyDefPattern.MatchString(clean) {
			header, consumed := joinContinuation(w.lines, i)
			w.openDef(header, line.indent, i, i+consumed+1)
			i += consumed
			continue
		}
		if m := pyClassPattern.FindStringSubmatch(clean); m != nil {
			w.openClass(m[1], m[2], line.indent, i)
			continue
		}
		w.pendingDecorators = nil
		w.recordMember(clean, line.indent, i)
	}
	w.closeScopes(0, len(w.lines))
}

// closeScopes pops every scope whose body ended before the given indent
// and finalizes its features.
func (w *pyWalker) closeScopes(indent, lineIdx int) {
	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		if indent > top.indent {
			break
		}
		w.finalize(top, lineIdx)
		w.stack = w.stack[:len(w.stack)-1]
	}
}

func (w *pyWalker) finalize(s pyScope, endIdx int) {
	s.node.EndLine = endIdx
	if s.node.Parent == w.module.QualifiedName {
		w.topLevelSpans = append(w.topLevelSpans, [2]int{s.node.StartLine - 1, endIdx})
	}
	if !s.node.IsCallable() {
		return
	}
	body := w.bodyLines(s)
	if len(body) == 0 && s.inline != "" {
		body = []string{s.inline}
	}
	s.node.Features = extractPythonFeatures(body)
	s.node.BodyFingerprint = fingerprintLines(body)
	if s.node.Features.IsGenerator() {
		s.node.Modifiers.Generator = true
	}
}

// bodyLines returns the cleaned, dedented body of a scope.
func (w *pyWalker) bodyLines(s pyScope) []string {
	var body []string
	for i := s.bodyStart; i < len(w.lines) && i <= s.node.EndLine; i++ {
		line := w.lines[i]
		if line.blank {
			continue
		}
		if line.indent <= s.indent {
			break
		}
		body = append(body, strings.TrimSpace(line.clean))
	}
	return body
}

func (w *pyWalker) parentQN() string {
	if len(w.stack) == 0 {
		return w.module.QualifiedName
	}
	return w.stack[len(w.stack)-1].node.QualifiedName
}

func (w *pyWalker) insideClass() bool {
	return len(w.stack) > 0 && w.stack[len(w.stack)-1].node.Kind == ir.KindClass
}

// addNode inserts a node, disambiguating shadowed names with a numeric
// suffix so IDs never collide.
func (w *pyWalker) addNode(n *ir.Node) {
	base := n.QualifiedName
	for attempt := 2; w.out.Add(n) != nil; attempt++ {
		n.QualifiedName = fmt.Sprintf("%s#%d", base, attempt)
	}
}

func (w *pyWalker) openDef(header string, indent, lineIdx, bodyStart int) {
	async := strings.HasPrefix(header, "async")
	m := pyDefPattern.FindStringSubmatchIndex(header)
	if m == nil {
		return
	}
	name := header[m[4]:m[5]]

	kind := ir.KindFunction
	prefix := "func:"
	if w.insideClass() {
		kind = ir.KindMethod
		prefix = "method:"
	}

	parent := w.parentQN()
	qn := prefix + name
	if parent != w.module.QualifiedName {
		qn = parent + "." + qn
	}

	node := &ir.Node{
		Kind:          kind,
		QualifiedName: qn,
		Parent:        parent,
		Decorators:    w.pendingDecorators,
		StartLine:     lineIdx + 1,
		Modifiers:     ir.Modifiers{Async: async},
		Signature:     parsePythonSignature(header),
	}
	node.Modifiers.Static = hasDecorator(node.Decorators, "staticmethod")
	node.Modifiers.Abstract = hasDecorator(node.Decorators, "abstractmethod")
	w.pendingDecorators = nil

	inline := ""
	if colon := strings.LastIndex(header, ":"); colon >= 0 && colon+1 < len(header) {
		inline = strings.TrimSpace(header[colon+1:])
	}

	w.addNode(node)
	w.stack = append(w.stack, pyScope{node: node, indent: indent, bodyStart: bodyStart, inline: inline})
}

func (w *pyWalker) openClass(name, baseList string, indent, lineIdx int) {
	parent := w.parentQN()
	qn := "class:" + name
	if parent != w.module.QualifiedName {
		qn = parent + "." + qn
	}

	node := &ir.Node{
		Kind:          ir.KindClass,
		QualifiedName: qn,
		Parent:        parent,
		Decorators:    w.pendingDecorators,
		Bases:         parsePythonBases(baseList),
		StartLine:     lineIdx + 1,
	}
	w.pendingDecorators = nil

	w.addNode(node)
	w.stack = append(w.stack, pyScope{node: node, indent: indent, bodyStart: lineIdx + 1})
}

// recordMember captures class properties and module constants from
// plain assignment lines.
func (w *pyWalker) recordMember(clean string, indent, lineIdx int) {
	if w.insideClass() {
		cls := w.stack[len(w.stack)-1]
		if indent <= cls.indent {
			return
		}
		name, typed := matchPropertyLine(clean)
		if name == "" {
			return
		}
		node := &ir.Node{
			Kind:          ir.KindProperty,
			QualifiedName: cls.node.QualifiedName + ".prop:" + name,
			Parent:        cls.node.QualifiedName,
			StartLine:     lineIdx + 1,
			EndLine:       lineIdx + 1,
			Modifiers:     ir.Modifiers{Typed: typed},
		}
		if strings.HasPrefix(name, "__") {
			node.Modifiers.Visibility = ir.VisibilityPrivate
		} else if strings.HasPrefix(name, "_") {
			node.Modifiers.Visibility = ir.VisibilityProtected
		} else {
			node.Modifiers.Visibility = ir.VisibilityPublic
		}
		w.addNode(node)
		return
	}
	if len(w.stack) == 0 {
		if m := pyConstantAssign.FindStringSubmatch(clean); m != nil {
			node := &ir.Node{
				Kind:          ir.KindConstant,
				QualifiedName: "const:" + m[1],
				Parent:        w.module.QualifiedName,
				StartLine:     lineIdx + 1,
				EndLine:       lineIdx + 1,
			}
			w.addNode(node)
		}
	}
}

func (w *pyWalker) recordImports(list string) {
	for _, part := range strings.Split(list, ",") {
		name := strings.TrimSpace(part)
		if idx := strings.Index(name, " as "); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		if name != "" {
			w.deps[name] = true
		}
	}
}

// matchPropertyLine returns the assigned name of a class-body property
// line and whether it carries a type annotation.
func matchPropertyLine(clean string) (string, bool) {
	if m := pyPropertyAssign.FindStringSubmatch(clean); m != nil {
		return m[1], m[2] != ""
	}
	if m := pyAnnotationOnly.FindStringSubmatch(clean); m != nil {
		return m[1], true
	}
	return "", false
}

// parsePythonBases splits a class base list, dropping keyword arguments
// such as metaclass=.
func parsePythonBases(list string) []string {
	var bases []string
	for _, part := range splitTopLevel(list, ',') {
		part = strings.TrimSpace(part)
		if part == "" || pyKeywordArgSplit.MatchString(part) {
			continue
		}
		bases = append(bases, part)
	}
	return bases
}

// parsePythonSignature extracts the canonical signature from a joined
// def header line.
func parsePythonSignature(header string) *ir.Signature {
	open := strings.Index(header, "(")
	if open < 0 {
		return &ir.Signature{}
	}
	depth := 0
	closeIdx := -1
	for i := open; i < len(header); i++ {
		switch header[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				closeIdx = i
			}
		}
		if closeIdx >= 0 {
			break
		}
	}
	if closeIdx < 0 {
		return &ir.Signature{}
	}

	sig := &ir.Signature{}
	for _, part := range splitTopLevel(header[open+1:closeIdx], ',') {
		part = strings.TrimSpace(part)
		if part == "" || part == "/" {
			continue
		}
		p := ir.Param{}
		if strings.HasPrefix(part, "**") {
			p.Variadic = true
			part = part[2:]
		} else if strings.HasPrefix(part, "*") {
			part = part[1:]
			if part == "" {
				continue // bare * separator
			}
			p.Variadic = true
		}
		if eq := indexTopLevel(part, '='); eq >= 0 {
			p.HasDefault = true
			part = part[:eq]
		}
		if colon := indexTopLevel(part, ':'); colon >= 0 {
			p.Type = strings.TrimSpace(part[colon+1:])
			part = part[:colon]
		}
		p.Name = strings.TrimSpace(part)
		if p.Name == "" {
			continue
		}
		sig.Params = append(sig.Params, p)
	}

	rest := header[closeIdx+1:]
	if arrow := strings.Index(rest, "->"); arrow >= 0 {
		ret := rest[arrow+2:]
		if colon := strings.LastIndex(ret, ":"); colon >= 0 {
			ret = ret[:colon]
		}
		sig.ReturnType = strings.TrimSpace(ret)
	}
	return sig
}

// joinContinuation joins a def header that spans multiple lines until
// its parentheses balance. Returns the joined header and how many extra
// lines were consumed.
func joinContinuation(lines []pyLine, start int) (string, int) {
	header := strings.TrimSpace(lines[start].clean)
	depth := bracketDepth(header)
	consumed := 0
	for i := start + 1; i < len(lines) && depth > 0; i++ {
		header += " " + strings.TrimSpace(lines[i].clean)
		depth = bracketDepth(header)
		consumed++
	}
	return header, consumed
}

func bracketDepth(s string) int {
	depth := 0
	for _, c := range s {
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
	}
	return depth
}

// preprocessPython blanks string literal contents, strips comments, and
// records indentation. Triple-quoted strings collapse to one literal.
func preprocessPython(src string) []pyLine {
	rawLines := strings.Split(src, "\n")
	out := make([]pyLine, len(rawLines))

	inTriple := false
	tripleQuote := ""
	for i, raw := range rawLines {
		clean, nowInTriple, quote := stripPythonLine(raw, inTriple, tripleQuote)
		inTriple = nowInTriple
		tripleQuote = quote

		out[i] = pyLine{
			clean:  clean,
			indent: indentWidth(raw),
			blank:  strings.TrimSpace(clean) == "",
		}
	}
	return out
}

// stripPythonLine removes comment text and blanks string contents from
// one line, threading triple-quote state across lines.
func stripPythonLine(line string, inTriple bool, tripleQuote string) (string, bool, string) {
	var b strings.Builder
	i := 0

	for i < len(line) {
		if inTriple {
			if idx := strings.Index(line[i:], tripleQuote); idx >= 0 {
				i += idx + 3
				inTriple = false
				b.WriteString(`""`)
				continue
			}
			return b.String(), true, tripleQuote
		}
		c := line[i]
		if c == '#' {
			break
		}
		if c == '\'' || c == '"' {
			q := string(c)
			if strings.HasPrefix(line[i:], q+q+q) {
				if idx := strings.Index(line[i+3:], q+q+q); idx >= 0 {
					i += 3 + idx + 3
					b.WriteString(`""`)
					continue
				}
				return b.String(), true, q + q + q
			}
			end := i + 1
			for end < len(line) {
				if line[end] == '\\' {
					end += 2
					continue
				}
				if line[end] == c {
					break
				}
				end++
			}
			b.WriteString(`""`)
			if end >= len(line) {
				break
			}
			i = end + 1
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), false, tripleQuote
}

func indentWidth(line string) int {
	width := 0
	for _, c := range line {
		switch c {
		case ' ':
			width++
		case '\t':
			width += 8
		default:
			return width
		}
	}
	return width
}

// extractPythonFeatures builds the body feature set from cleaned,
// trimmed body lines.
func extractPythonFeatures(body []string) *ir.BodyFeatures {
	f := ir.NewBodyFeatures()

	for _, line := range body {
		keyword := leadingWord(line)

		switch keyword {
		case "if", "elif":
			f.ControlFlow["if"]++
			f.DecisionPoints++
		case "for":
			f.ControlFlow["for"]++
			f.DecisionPoints++
		case "while":
			f.ControlFlow["while"]++
			f.DecisionPoints++
		case "try":
			f.ControlFlow["try"]++
		case "with":
			f.ControlFlow["with"]++
		case "match":
			if strings.HasSuffix(line, ":") {
				f.ControlFlow["match"]++
			}
		case "case":
			f.DecisionPoints++
		case "except":
			f.DecisionPoints++
			if m := pyExceptPattern.FindStringSubmatch(line); m != nil {
				shape := m[1]
				if shape == "" {
					shape = m[2]
				}
				f.ExceptionHandlers = append(f.ExceptionHandlers, normalizeTypeList(shape))
			}
		case "return":
			rest := strings.TrimSpace(strings.TrimPrefix(line, "return"))
			f.ReturnShapes[returnShape(rest)]++
		case "assert":
			f.Assertions++
		case "global":
			f.Globals = append(f.Globals, declaredNames(line, "global")...)
		case "nonlocal":
			f.Nonlocals = append(f.Nonlocals, declaredNames(line, "nonlocal")...)
		}

		f.YieldCount += strings.Count(line, "yield")
		f.YieldFromCount += strings.Count(line, "yield from")

		for _, m := range pyCallPattern.FindAllStringSubmatch(line, -1) {
			callee := m[1]
			head := callee
			if dot := strings.Index(callee, "."); dot >= 0 {
				head = callee[:dot]
			}
			if pyKeywords[head] {
				continue
			}
			f.InternalCalls[callee]++
		}

		countComprehensions(line, f.Comprehensions)
		f.Lambdas += len(pyLambdaPattern.FindAllString(line, -1))
		f.FunctionalCalls += len(pyFunctionalCall.FindAllString(line, -1))

		classifyAssignment(line, keyword, f)
		for _, m := range pyAugAssign.FindAllStringSubmatch(line, -1) {
			f.AugmentedAssignments[m[1]]++
		}

		opLine := pyAugAssign.ReplaceAllString(line, " ")
		for _, m := range pyComparisonOp.FindAllStringSubmatch(opLine, -1) {
			f.ComparisonOps[m[1]]++
		}
		f.ComparisonOps["in"] += countWord(opLine, "in")
		f.ComparisonOps["is"] += countWord(opLine, "is")
		binLine := pyComparisonOp.ReplaceAllString(opLine, " ")
		binLine = strings.ReplaceAll(binLine, "->", " ")
		for _, m := range pyBinaryOp.FindAllStringSubmatch(binLine, -1) {
			f.BinaryOps[m[1]]++
		}
		for _, m := range pyUnaryOp.FindAllStringSubmatch(line, -1) {
			f.UnaryOps[m[1]]++
		}
		f.LogicalOps["and"] += countWord(line, "and")
		f.LogicalOps["or"] += countWord(line, "or")
		f.LogicalOps["not"] += countWord(line, "not")
		f.DecisionPoints += countWord(line, "and") + countWord(line, "or")

		f.StringLiterals += strings.Count(line, `""`)
		f.NumericLiterals += len(pyNumberPattern.FindAllString(line, -1))
		f.BooleanLiterals += len(pyBoolPattern.FindAllString(line, -1))

		for _, m := range pyAttrPattern.FindAllStringSubmatch(line, -1) {
			f.AttributeAccesses[m[1]]++
		}
		for _, m := range pySubscriptRef.FindAllStringSubmatch(line, -1) {
			f.SubscriptAccesses[m[1]]++
		}
	}

	sort.Strings(f.Globals)
	sort.Strings(f.Nonlocals)
	return f
}

// classifyAssignment buckets a plain assignment line by shape.
func classifyAssignment(line, keyword string, f *ir.BodyFeatures) {
	switch keyword {
	case "if", "elif", "while", "for", "return", "yield", "assert",
		"import", "from", "def", "class", "global", "nonlocal", "del",
		"raise", "with", "except", "lambda":
		return
	}
	if pyAugAssign.MatchString(line) {
		return
	}
	eq := indexTopLevel(line, '=')
	if eq < 0 {
		return
	}
	if eq+1 < len(line) && line[eq+1] == '=' {
		return
	}
	if eq > 0 && (line[eq-1] == '!' || line[eq-1] == '<' || line[eq-1] == '>') {
		return
	}
	left := strings.TrimSpace(line[:eq])
	right := line[eq+1:]
	switch {
	case indexTopLevel(right, '=') >= 0 && !strings.Contains(right, "=="):
		f.Assignments["multiple"]++
	case strings.Contains(left, ","):
		f.Assignments["unpack"]++
	case strings.Contains(left, ":"):
		f.Assignments["annotated"]++
	default:
		f.Assignments["simple"]++
	}
}

// countComprehensions detects "for" used inside brackets and attributes
// each occurrence to the innermost open bracket kind.
func countComprehensions(line string, out map[string]int) {
	var stack []byte
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '(', '[', '{':
			stack = append(stack, line[i])
		case ')', ']', '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case 'f':
			if len(stack) == 0 || !wordAt(line, i, "for") {
				continue
			}
			switch stack[len(stack)-1] {
			case '[':
				out["list"]++
			case '{':
				if strings.LastIndex(line[:i], ":") > strings.LastIndexByte(line[:i], '{') {
					out["dict"]++
				} else {
					out["set"]++
				}
			case '(':
				out["generator"]++
			}
			i += 2
		}
	}
}

// wordAt reports whether word starts at position i as a standalone word.
func wordAt(line string, i int, word string) bool {
	if !strings.HasPrefix(line[i:], word) {
		return false
	}
	if i > 0 && isWordChar(line[i-1]) {
		return false
	}
	end := i + len(word)
	return end >= len(line) || !isWordChar(line[end])
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// returnShape classifies the expression of a return statement.
func returnShape(rest string) string {
	switch {
	case rest == "" || rest == "None":
		return "bare"
	default:
		commas := 0
		depth := 0
		for _, c := range rest {
			switch c {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			case ',':
				if depth == 0 {
					commas++
				}
			}
		}
		switch {
		case commas == 0:
			return "value"
		case commas == 1:
			return "tuple2"
		default:
			return "tuple3+"
		}
	}
}

func leadingWord(line string) string {
	for i := 0; i < len(line); i++ {
		if !isWordChar(line[i]) {
			return line[:i]
		}
	}
	return line
}

func declaredNames(line, keyword string) []string {
	rest := strings.TrimSpace(strings.TrimPrefix(line, keyword))
	var names []string
	for _, part := range strings.Split(rest, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func normalizeTypeList(list string) string {
	if list == "" {
		return ""
	}
	parts := strings.Split(list, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if idx := strings.Index(parts[i], " as "); idx >= 0 {
			parts[i] = strings.TrimSpace(parts[i][:idx])
		}
	}
	return strings.Join(parts, ",")
}

func countWord(line, word string) int {
	count := 0
	for i := 0; i+len(word) <= len(line); i++ {
		if wordAt(line, i, word) {
			count++
		}
	}
	return count
}

// splitTopLevel splits on sep occurrences outside brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// indexTopLevel returns the first index of c outside brackets, -1 if
// absent.
func indexTopLevel(s string, c byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if s[i] == c && depth == 0 {
				return i
			}
		}
	}
	return -1
}

func cleanedLines(lines []pyLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if !l.blank {
			out = append(out, strings.TrimSpace(l.clean))
		}
	}
	return out
}

// fingerprintLines hashes normalized body lines for the fast equality
// gate. Not authoritative for change detection.
func fingerprintLines(lines []string) uint64 {
	h := fnv.New64a()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

func hasDecorator(decorators []string, name string) bool {
	for _, d := range decorators {
		if d == name || strings.HasSuffix(d, "."+name) {
			return true
		}
	}
	return false
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
