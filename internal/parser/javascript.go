package parser

import (
	"regexp"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
)

var (
	jsImportFrom     = regexp.MustCompile(`^\s*import\b`)
	jsRequireCall    = regexp.MustCompile(`require\s*\(\s*""\s*\)`)
	jsFunctionDecl   = regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(async\s+)?function\s*(\*)?\s*([A-Za-z_$][\w$]*)\s*\(`)
	jsArrowDecl      = regexp.MustCompile(`^\s*(export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(async\s+)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*(?::\s*[^=]+)?=>`)
	jsClassDecl      = regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(abstract\s+)?class\s+([A-Za-z_$][\w$]*)(?:\s+extends\s+([\w$.]+))?`)
	jsInterfaceDecl  = regexp.MustCompile(`^\s*(export\s+)?interface\s+([A-Za-z_$][\w$]*)(?:\s+extends\s+([\w$.,\s]+))?`)
	jsEnumDecl       = regexp.MustCompile(`^\s*(export\s+)?(?:const\s+)?enum\s+([A-Za-z_$][\w$]*)`)
	jsMethodDecl     = regexp.MustCompile(`^\s*(?:(public|protected|private)\s+)?(static\s+)?(readonly\s+)?(async\s+)?(\*)?\s*(#?[A-Za-z_$][\w$]*)\s*\(([^)]*)\)`)
	jsPropertyDecl   = regexp.MustCompile(`^\s*(?:(public|protected|private)\s+)?(static\s+)?(readonly\s+)?(#?[A-Za-z_$][\w$]*)\s*(:\s*[^=;]+)?\s*[=;]`)
	jsDecoratorLine  = regexp.MustCompile(`^\s*@([A-Za-z_$][\w$.]*)`)
	jsSpecSourceQuot = regexp.MustCompile(`(?:from\s*|import\s*|require\s*\(\s*)(['"])([^'"]+)['"]`)
	jsKeywordMember  = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "catch": true,
		"return": true, "function": true, "new": true,
		"typeof": true, "do": true, "else": true, "try": true,
	}
)

// JavaScript returns the JavaScript/TypeScript parser capability.
func JavaScript() Parser {
	return Parser{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"},
		Parse:      parseJavaScript,
	}
}

func parseJavaScript(path string, src []byte) *ir.IR {
	out := ir.New(path)
	if len(src) == 0 {
		return out
	}

	raw := string(src)
	clean := stripCStyle(raw, false)

	module := &ir.Node{
		Kind:          ir.KindModule,
		QualifiedName: "module:" + moduleName(path),
		StartLine:     1,
		EndLine:       len(clean),
		Features:      ir.NewBodyFeatures(),
	}
	_ = out.Add(module)

	deps := make(map[string]bool)
	// Import sources come from the raw source: string contents are
	// blanked in the cleaned lines.
	for _, m := range jsSpecSourceQuot.FindAllStringSubmatch(raw, -1) {
		deps[m[2]] = true
	}
	module.Dependencies = sortedSet(deps)

	j := &jsWalker{out: out, lines: clean, module: module}
	j.walk()

	module.Features = extractCStyleFeatures(j.moduleLines)
	module.BodyFingerprint = fingerprintLines(nonBlank(clean))
	if err := out.Validate(); err != nil {
		out.Degraded = true
		out.DegradedDetail = err.Error()
	}
	return out
}

type jsWalker struct {
	out    *ir.IR
	lines  []string
	module *ir.Node

	moduleLines       []string
	pendingDecorators []string
}

func (j *jsWalker) walk() {
	for i := 0; i < len(j.lines); i++ {
		line := j.lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := jsDecoratorLine.FindStringSubmatch(line); m != nil {
			j.pendingDecorators = append(j.pendingDecorators, m[1])
			continue
		}
		if jsImportFrom.MatchString(line) || jsRequireCall.MatchString(line) {
			j.moduleLines = append(j.moduleLines, trimmed)
			continue
		}
		if m := jsClassDecl.FindStringSubmatch(line); m != nil {
			end := j.addClass(m, i)
			i = end
			continue
		}
		if m := jsInterfaceDecl.FindStringSubmatch(line); m != nil {
			end := j.addInterface(m, i)
			i = end
			continue
		}
		if m := jsEnumDecl.FindStringSubmatch(line); m != nil {
			end := j.addEnum(m, i)
			i = end
			continue
		}
		if m := jsFunctionDecl.FindStringSubmatch(line); m != nil {
			end := j.addFunction(m, i)
			i = end
			continue
		}
		if m := jsArrowDecl.FindStringSubmatch(line); m != nil {
			end := j.addArrow(m, i)
			i = end
			continue
		}
		j.pendingDecorators = nil
		j.moduleLines = append(j.moduleLines, trimmed)
	}
}

// braceSpan returns the index of the line closing the brace block that
// opens at or after start. When no brace opens on the start line the
// span is the single line.
func (j *jsWalker) braceSpan(start int) int {
	depth := 0
	opened := false
	for i := start; i < len(j.lines); i++ {
		for _, c := range j.lines[i] {
			switch c {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			return i
		}
		if !opened && i > start {
			// Declaration without a block on the following line.
			return start
		}
	}
	return len(j.lines) - 1
}

func (j *jsWalker) takeDecorators() []string {
	d := j.pendingDecorators
	j.pendingDecorators = nil
	return d
}

func (j *jsWalker) addDisambiguated(n *ir.Node) {
	base := n.QualifiedName
	for attempt := 2; j.out.Add(n) != nil; attempt++ {
		n.QualifiedName = base + "#" + string(rune('0'+attempt))
	}
}

func (j *jsWalker) addFunction(m []string, i int) int {
	end := j.braceSpan(i)
	body := bodyOf(j.lines, i+1, end)

	node := &ir.Node{
		Kind:          ir.KindFunction,
		QualifiedName: "func:" + m[5],
		Parent:        j.module.QualifiedName,
		Decorators:    j.takeDecorators(),
		StartLine:     i + 1,
		EndLine:       end + 1,
		Modifiers: ir.Modifiers{
			Async:     m[3] != "",
			Generator: m[4] == "*",
		},
		Signature: parseJSSignature(strings.Join(j.lines[i:min(end+1, i+5)], " ")),
		Features:  extractCStyleFeatures(body),
	}
	node.BodyFingerprint = fingerprintLines(body)
	if node.Features.IsGenerator() {
		node.Modifiers.Generator = true
	}
	j.addDisambiguated(node)
	return end
}

func (j *jsWalker) addArrow(m []string, i int) int {
	end := j.braceSpan(i)
	body := bodyOf(j.lines, i, end)

	node := &ir.Node{
		Kind:          ir.KindFunction,
		QualifiedName: "func:" + m[2],
		Parent:        j.module.QualifiedName,
		Decorators:    j.takeDecorators(),
		StartLine:     i + 1,
		EndLine:       end + 1,
		Modifiers:     ir.Modifiers{Async: m[3] != ""},
		Signature:     parseJSSignature(j.lines[i]),
		Features:      extractCStyleFeatures(body),
	}
	node.BodyFingerprint = fingerprintLines(body)
	j.addDisambiguated(node)
	return end
}

func (j *jsWalker) addClass(m []string, i int) int {
	end := j.braceSpan(i)
	name := m[4]

	node := &ir.Node{
		Kind:          ir.KindClass,
		QualifiedName: "class:" + name,
		Parent:        j.module.QualifiedName,
		Decorators:    j.takeDecorators(),
		StartLine:     i + 1,
		EndLine:       end + 1,
		Modifiers:     ir.Modifiers{Abstract: m[3] != ""},
	}
	if m[5] != "" {
		node.Bases = []string{m[5]}
	}
	j.addDisambiguated(node)
	j.scanClassBody(node, i+1, end)
	return end
}

func (j *jsWalker) addInterface(m []string, i int) int {
	end := j.braceSpan(i)
	node := &ir.Node{
		Kind:          ir.KindInterface,
		QualifiedName: "interface:" + m[2],
		Parent:        j.module.QualifiedName,
		StartLine:     i + 1,
		EndLine:       end + 1,
	}
	if m[3] != "" {
		for _, base := range strings.Split(m[3], ",") {
			node.Bases = append(node.Bases, strings.TrimSpace(base))
		}
	}
	j.addDisambiguated(node)
	return end
}

func (j *jsWalker) addEnum(m []string, i int) int {
	end := j.braceSpan(i)
	node := &ir.Node{
		Kind:          ir.KindEnum,
		QualifiedName: "enum:" + m[2],
		Parent:        j.module.QualifiedName,
		StartLine:     i + 1,
		EndLine:       end + 1,
	}
	j.addDisambiguated(node)

	for k := i + 1; k < end; k++ {
		trimmed := strings.TrimSpace(j.lines[k])
		if trimmed == "" {
			continue
		}
		caseName := trimmed
		if idx := strings.IndexAny(caseName, "=,"); idx >= 0 {
			caseName = caseName[:idx]
		}
		caseName = strings.TrimSpace(caseName)
		if caseName == "" || !isIdentifier(caseName) {
			continue
		}
		j.addDisambiguated(&ir.Node{
			Kind:          ir.KindEnumCase,
			QualifiedName: node.QualifiedName + ".case:" + caseName,
			Parent:        node.QualifiedName,
			StartLine:     k + 1,
			EndLine:       k + 1,
		})
	}
	return end
}

// scanClassBody extracts methods and properties between the class braces.
func (j *jsWalker) scanClassBody(cls *ir.Node, start, end int) {
	var memberDecorators []string
	for i := start; i <= end && i < len(j.lines); i++ {
		line := j.lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "{" || trimmed == "}" {
			continue
		}
		if m := jsDecoratorLine.FindStringSubmatch(line); m != nil {
			memberDecorators = append(memberDecorators, m[1])
			continue
		}
		if m := jsMethodDecl.FindStringSubmatch(line); m != nil && strings.Contains(line, "(") {
			name := m[6]
			if jsKeywordMember[strings.TrimPrefix(name, "#")] {
				continue
			}
			memberEnd := j.braceSpan(i)
			body := bodyOf(j.lines, i+1, memberEnd)
			node := &ir.Node{
				Kind:          ir.KindMethod,
				QualifiedName: cls.QualifiedName + ".method:" + strings.TrimPrefix(name, "#"),
				Parent:        cls.QualifiedName,
				Decorators:    memberDecorators,
				StartLine:     i + 1,
				EndLine:       memberEnd + 1,
				Modifiers: ir.Modifiers{
					Static:     m[2] != "",
					Readonly:   m[3] != "",
					Async:      m[4] != "",
					Generator:  m[5] == "*",
					Visibility: jsVisibility(m[1], name),
				},
				Signature: &ir.Signature{Params: parseJSParams(m[7])},
				Features:  extractCStyleFeatures(body),
			}
			node.BodyFingerprint = fingerprintLines(body)
			if node.Features.IsGenerator() {
				node.Modifiers.Generator = true
			}
			memberDecorators = nil
			j.addDisambiguated(node)
			if memberEnd > i {
				i = memberEnd
			}
			continue
		}
		if m := jsPropertyDecl.FindStringSubmatch(line); m != nil {
			name := m[4]
			if jsKeywordMember[strings.TrimPrefix(name, "#")] {
				continue
			}
			j.addDisambiguated(&ir.Node{
				Kind:          ir.KindProperty,
				QualifiedName: cls.QualifiedName + ".prop:" + strings.TrimPrefix(name, "#"),
				Parent:        cls.QualifiedName,
				Decorators:    memberDecorators,
				StartLine:     i + 1,
				EndLine:       i + 1,
				Modifiers: ir.Modifiers{
					Static:     m[2] != "",
					Readonly:   m[3] != "",
					Typed:      m[5] != "",
					Visibility: jsVisibility(m[1], name),
				},
			})
			memberDecorators = nil
		}
	}
}

func jsVisibility(explicit, name string) ir.Visibility {
	switch explicit {
	case "private":
		return ir.VisibilityPrivate
	case "protected":
		return ir.VisibilityProtected
	case "public":
		return ir.VisibilityPublic
	}
	if strings.HasPrefix(name, "#") || strings.HasPrefix(name, "_") {
		return ir.VisibilityPrivate
	}
	return ir.VisibilityPublic
}

// parseJSSignature extracts the parameter list from the first balanced
// parens of a declaration line and the TS return annotation if present.
func parseJSSignature(header string) *ir.Signature {
	open := strings.Index(header, "(")
	if open < 0 {
		// Single-parameter arrow without parens: const f = x => ...
		if arrow := strings.Index(header, "=>"); arrow >= 0 {
			if eq := strings.Index(header, "="); eq >= 0 && eq < arrow {
				param := strings.TrimSpace(header[eq+1 : arrow])
				param = strings.TrimPrefix(param, "async")
				param = strings.TrimSpace(param)
				if isIdentifier(param) {
					return &ir.Signature{Params: []ir.Param{{Name: param}}}
				}
			}
		}
		return &ir.Signature{}
	}
	depth := 0
	closeIdx := -1
	for i := open; i < len(header); i++ {
		switch header[i] {
		case '(':
			depth++
		case ')':
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
	sig := &ir.Signature{Params: parseJSParams(header[open+1 : closeIdx])}

	rest := header[closeIdx+1:]
	if colon := strings.Index(rest, ":"); colon >= 0 {
		ret := rest[colon+1:]
		for _, stop := range []string{"{", "=>", ";"} {
			if idx := strings.Index(ret, stop); idx >= 0 {
				ret = ret[:idx]
			}
		}
		sig.ReturnType = strings.TrimSpace(ret)
	}
	return sig
}

func parseJSParams(list string) []ir.Param {
	var params []ir.Param
	for _, part := range splitTopLevel(list, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p := ir.Param{}
		if strings.HasPrefix(part, "...") {
			p.Variadic = true
			part = part[3:]
		}
		if eq := indexTopLevel(part, '='); eq >= 0 {
			p.HasDefault = true
			part = part[:eq]
		}
		if colon := indexTopLevel(part, ':'); colon >= 0 {
			p.Type = strings.TrimSpace(part[colon+1:])
			part = part[:colon]
		}
		p.Name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "?"))
		if p.Name == "" {
			continue
		}
		params = append(params, p)
	}
	return params
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isWordChar(s[i]) && s[i] != '$' {
			return false
		}
	}
	return s[0] < '0' || s[0] > '9'
}

func bodyOf(lines []string, start, end int) []string {
	var body []string
	for i := start; i <= end && i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed != "" {
			body = append(body, trimmed)
		}
	}
	return body
}

func nonBlank(lines []string) []string {
	var out []string
	for _, l := range lines {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
