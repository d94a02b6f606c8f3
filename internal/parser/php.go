package parser

import (
	"regexp"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
)

var (
	phpNamespaceDecl = regexp.MustCompile(`^\s*namespace\s+([\w\\]+)\s*[;{]`)
	phpUseDecl       = regexp.MustCompile(`^\s*use\s+([\w\\]+)(?:\s+as\s+\w+)?\s*;`)
	phpClassDecl     = regexp.MustCompile(`^\s*(?:(abstract|final)\s+)?(class|interface|trait|enum)\s+(\w+)(?:\s*:\s*(\w+))?(?:\s+extends\s+([\w\\,\s]+?))?(?:\s+implements\s+([\w\\,\s]+?))?\s*\{?\s*$`)
	phpFunctionDecl  = regexp.MustCompile(`^\s*((?:(?:public|protected|private|static|abstract|final)\s+)*)function\s+&?(\w+)\s*\(`)
	phpPropertyDecl  = regexp.MustCompile(`^\s*(?:(public|protected|private)\s+)(?:(static)\s+)?(?:(readonly)\s+)?(\??[\w\\|&]+\s+)?\$(\w+)`)
	phpConstDecl     = regexp.MustCompile(`^\s*(?:(public|protected|private)\s+)?const\s+(?:[\w\\]+\s+)?(\w+)\s*=`)
	phpEnumCaseDecl  = regexp.MustCompile(`^\s*case\s+(\w+)\s*(?:=\s*[^;]+)?;`)
	phpAttributeLine = regexp.MustCompile(`^\s*#\[\s*([\w\\]+)`)
	phpOpenTag       = regexp.MustCompile(`<\?php|<\?=`)

	// Tier 3: line-oriented extraction of top-level names only.
	phpBareClass    = regexp.MustCompile(`(?m)^\s*(?:abstract\s+|final\s+)?(?:class|interface|trait|enum)\s+(\w+)`)
	phpBareFunction = regexp.MustCompile(`(?m)^\s*function\s+&?(\w+)\s*\(`)
)

// PHP returns the PHP parser capability. Parsing is tiered: a modern
// grammar scan for PHP 7.4+/8.x first, a legacy scan next, and a
// line-oriented name extractor as the final fallback. The producing
// tier is recorded in the IR degraded detail.
func PHP() Parser {
	return Parser{
		Name:       "php",
		Extensions: []string{".php"},
		Parse:      parsePHP,
	}
}

func parsePHP(path string, src []byte) *ir.IR {
	if len(src) == 0 {
		return ir.New(path)
	}

	if out, ok := parsePHPModern(path, src); ok {
		return out
	}
	if out, ok := parsePHPLegacy(path, src); ok {
		out.Degraded = true
		out.DegradedDetail = "legacy parser"
		return out
	}
	return parsePHPRegexFallback(path, src)
}

// parsePHPModern is the tier-1 grammar-based scan. It refuses (ok =
// false) when brace structure is unbalanced, letting a lower tier take
// over.
func parsePHPModern(path string, src []byte) (*ir.IR, bool) {
	clean := stripCStyle(string(src), true)
	if !balancedBraces(clean) {
		return nil, false
	}

	out := ir.New(path)
	module := &ir.Node{
		Kind:          ir.KindModule,
		QualifiedName: "module:" + moduleName(path),
		StartLine:     1,
		EndLine:       len(clean),
		Features:      ir.NewBodyFeatures(),
	}
	_ = out.Add(module)

	p := &phpWalker{out: out, lines: clean, module: module, modern: true}
	p.walk()

	module.Dependencies = sortedSet(p.deps)
	module.Features = extractCStyleFeatures(p.moduleLines)
	module.BodyFingerprint = fingerprintLines(nonBlank(clean))
	if err := out.Validate(); err != nil {
		return nil, false
	}
	return out, true
}

// parsePHPLegacy is the tier-2 scan: classes, functions, and methods
// only, without modern modifiers. It tolerates unbalanced braces by
// treating declaration spans as best effort.
func parsePHPLegacy(path string, src []byte) (*ir.IR, bool) {
	clean := stripCStyle(string(src), true)

	out := ir.New(path)
	module := &ir.Node{
		Kind:          ir.KindModule,
		QualifiedName: "module:" + moduleName(path),
		StartLine:     1,
		EndLine:       len(clean),
		Features:      ir.NewBodyFeatures(),
	}
	_ = out.Add(module)

	p := &phpWalker{out: out, lines: clean, module: module, modern: false}
	p.walk()

	module.Dependencies = sortedSet(p.deps)
	module.BodyFingerprint = fingerprintLines(nonBlank(clean))
	if err := out.Validate(); err != nil {
		return nil, false
	}
	// Legacy succeeds only if it recovered at least one declaration.
	return out, len(out.Nodes) > 1
}

// parsePHPRegexFallback is the tier-3 extractor: top-level class and
// function names only. Bodies are not recovered, which the differ
// treats as partially trusted (layers 3 and 4 are skipped).
func parsePHPRegexFallback(path string, src []byte) *ir.IR {
	out := ir.New(path)
	out.Degraded = true
	out.DegradedDetail = "regex fallback"

	module := &ir.Node{
		Kind:          ir.KindModule,
		QualifiedName: "module:" + moduleName(path),
		StartLine:     1,
	}
	_ = out.Add(module)

	text := string(src)
	seen := map[string]bool{}
	for _, m := range phpBareClass.FindAllStringSubmatch(text, -1) {
		qn := "class:" + m[1]
		if seen[qn] {
			continue
		}
		seen[qn] = true
		_ = out.Add(&ir.Node{Kind: ir.KindClass, QualifiedName: qn, Parent: module.QualifiedName})
	}
	for _, m := range phpBareFunction.FindAllStringSubmatch(text, -1) {
		qn := "func:" + m[1]
		if seen[qn] {
			continue
		}
		seen[qn] = true
		_ = out.Add(&ir.Node{Kind: ir.KindFunction, QualifiedName: qn, Parent: module.QualifiedName})
	}
	return out
}

func balancedBraces(lines []string) bool {
	depth := 0
	for _, line := range lines {
		for _, c := range line {
			switch c {
			case '{':
				depth++
			case '}':
				depth--
				if depth < 0 {
					return false
				}
			}
		}
	}
	return depth == 0
}

type phpWalker struct {
	out    *ir.IR
	lines  []string
	module *ir.Node
	modern bool

	deps        map[string]bool
	moduleLines []string

	pendingAttributes []string
}

func (p *phpWalker) walk() {
	p.deps = make(map[string]bool)

	for i := 0; i < len(p.lines); i++ {
		line := p.lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || phpOpenTag.MatchString(trimmed) {
			continue
		}

		if m := phpNamespaceDecl.FindStringSubmatch(line); m != nil {
			p.deps["namespace:"+m[1]] = true
			continue
		}
		if m := phpUseDecl.FindStringSubmatch(line); m != nil {
			p.deps[m[1]] = true
			continue
		}
		if p.modern {
			if m := phpAttributeLine.FindStringSubmatch(line); m != nil {
				p.pendingAttributes = append(p.pendingAttributes, m[1])
				continue
			}
		}
		if m := phpClassDecl.FindStringSubmatch(line); m != nil {
			i = p.addClassLike(m, i)
			continue
		}
		if m := phpFunctionDecl.FindStringSubmatch(line); m != nil {
			i = p.addFunction(m, i, p.module.QualifiedName, false)
			continue
		}
		p.pendingAttributes = nil
		p.moduleLines = append(p.moduleLines, trimmed)
	}
}

func (p *phpWalker) takeAttributes() []string {
	a := p.pendingAttributes
	p.pendingAttributes = nil
	return a
}

func (p *phpWalker) addDisambiguated(n *ir.Node) {
	base := n.QualifiedName
	for attempt := 2; p.out.Add(n) != nil; attempt++ {
		n.QualifiedName = base + "#" + string(rune('0'+attempt))
	}
}

func (p *phpWalker) braceSpan(start int) int {
	depth := 0
	opened := false
	for i := start; i < len(p.lines); i++ {
		for _, c := range p.lines[i] {
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
		// Allman style opens the brace on the following line; anything
		// later means there is no block at all.
		if !opened && i > start+1 {
			return start
		}
	}
	return len(p.lines) - 1
}

func (p *phpWalker) addClassLike(m []string, i int) int {
	end := p.braceSpan(i)

	var kind ir.NodeKind
	var prefix string
	switch m[2] {
	case "interface":
		kind, prefix = ir.KindInterface, "interface:"
	case "trait":
		kind, prefix = ir.KindTrait, "trait:"
	case "enum":
		kind, prefix = ir.KindEnum, "enum:"
	default:
		kind, prefix = ir.KindClass, "class:"
	}

	node := &ir.Node{
		Kind:          kind,
		QualifiedName: prefix + m[3],
		Parent:        p.module.QualifiedName,
		Decorators:    p.takeAttributes(),
		StartLine:     i + 1,
		EndLine:       end + 1,
		Modifiers:     ir.Modifiers{Abstract: m[1] == "abstract"},
	}
	for _, baseList := range []string{m[5], m[6]} {
		if baseList == "" {
			continue
		}
		for _, base := range strings.Split(baseList, ",") {
			node.Bases = append(node.Bases, strings.TrimSpace(base))
		}
	}
	p.addDisambiguated(node)
	p.scanClassBody(node, i+1, end)
	return end
}

func (p *phpWalker) scanClassBody(cls *ir.Node, start, end int) {
	for i := start; i <= end && i < len(p.lines); i++ {
		line := p.lines[i]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "{" || trimmed == "}" {
			continue
		}
		if p.modern {
			if m := phpAttributeLine.FindStringSubmatch(line); m != nil {
				p.pendingAttributes = append(p.pendingAttributes, m[1])
				continue
			}
		}
		if m := phpFunctionDecl.FindStringSubmatch(line); m != nil {
			i = p.addFunction(m, i, cls.QualifiedName, true)
			continue
		}
		if cls.Kind == ir.KindEnum {
			if m := phpEnumCaseDecl.FindStringSubmatch(line); m != nil {
				p.addDisambiguated(&ir.Node{
					Kind:          ir.KindEnumCase,
					QualifiedName: cls.QualifiedName + ".case:" + m[1],
					Parent:        cls.QualifiedName,
					StartLine:     i + 1,
					EndLine:       i + 1,
				})
				continue
			}
		}
		if !p.modern {
			continue
		}
		if m := phpConstDecl.FindStringSubmatch(line); m != nil {
			p.addDisambiguated(&ir.Node{
				Kind:          ir.KindConstant,
				QualifiedName: cls.QualifiedName + ".const:" + m[2],
				Parent:        cls.QualifiedName,
				StartLine:     i + 1,
				EndLine:       i + 1,
				Modifiers:     ir.Modifiers{Visibility: phpVisibility(m[1])},
			})
			continue
		}
		if m := phpPropertyDecl.FindStringSubmatch(line); m != nil {
			typeDecl := strings.TrimSpace(m[4])
			mods := ir.Modifiers{
				Visibility: phpVisibility(m[1]),
				Static:     m[2] != "",
				Readonly:   m[3] != "",
				Typed:      typeDecl != "",
				Nullable:   strings.HasPrefix(typeDecl, "?"),
			}
			applyPHPCompositeTypes(&mods, typeDecl)
			p.addDisambiguated(&ir.Node{
				Kind:          ir.KindProperty,
				QualifiedName: cls.QualifiedName + ".prop:" + m[5],
				Parent:        cls.QualifiedName,
				Decorators:    p.takeAttributes(),
				StartLine:     i + 1,
				EndLine:       i + 1,
				Modifiers:     mods,
			})
		}
	}
}

func (p *phpWalker) addFunction(m []string, i int, parentQN string, isMethod bool) int {
	header, consumed := joinPHPHeader(p.lines, i)
	mods := strings.Fields(m[1])

	// Abstract and interface methods end in a semicolon with no block.
	var end int
	var body []string
	if strings.Contains(header, ";") && !strings.Contains(header, "{") {
		end = i + consumed
	} else {
		end = p.braceSpan(i)
		body = bodyOf(p.lines, i+1+consumed, end)
	}

	kind := ir.KindFunction
	prefix := "func:"
	if isMethod {
		kind = ir.KindMethod
		prefix = "method:"
	}
	qn := prefix + m[2]
	if isMethod {
		qn = parentQN + "." + qn
	}

	node := &ir.Node{
		Kind:          kind,
		QualifiedName: qn,
		Parent:        parentQN,
		Decorators:    p.takeAttributes(),
		StartLine:     i + 1,
		EndLine:       end + 1,
		Modifiers: ir.Modifiers{
			Visibility: phpVisibility(modifierIn(mods, "public", "protected", "private")),
			Static:     modifierIn(mods, "static") != "",
			Abstract:   modifierIn(mods, "abstract") != "",
		},
		Signature: parsePHPSignature(header),
	}
	if p.modern && node.Signature.ReturnType != "" {
		applyPHPCompositeTypes(&node.Modifiers, node.Signature.ReturnType)
		node.Modifiers.Nullable = strings.HasPrefix(node.Signature.ReturnType, "?")
	}

	node.Features = extractCStyleFeatures(body)
	node.BodyFingerprint = fingerprintLines(body)
	if node.Features.IsGenerator() {
		node.Modifiers.Generator = true
	}

	p.addDisambiguated(node)
	if end > i {
		return end
	}
	return i
}

// modifierIn returns the first of the wanted modifiers present.
func modifierIn(mods []string, wanted ...string) string {
	for _, w := range wanted {
		for _, m := range mods {
			if m == w {
				return w
			}
		}
	}
	return ""
}

// joinPHPHeader joins a function header spanning lines until its
// parameter parens balance.
func joinPHPHeader(lines []string, start int) (string, int) {
	header := strings.TrimSpace(lines[start])
	consumed := 0
	for bracketDepth(stripBraces(header)) > 0 && start+consumed+1 < len(lines) {
		consumed++
		header += " " + strings.TrimSpace(lines[start+consumed])
	}
	return header, consumed
}

func stripBraces(s string) string {
	if idx := strings.Index(s, "{"); idx >= 0 {
		return s[:idx]
	}
	return s
}

// parsePHPSignature extracts parameters (including promoted
// constructor properties) and the return type.
func parsePHPSignature(header string) *ir.Signature {
	header = stripBraces(header)
	open := strings.Index(header, "(")
	if open < 0 {
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

	sig := &ir.Signature{}
	for _, part := range splitTopLevel(header[open+1:closeIdx], ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p := ir.Param{}
		if eq := indexTopLevel(part, '='); eq >= 0 {
			p.HasDefault = true
			part = strings.TrimSpace(part[:eq])
		}
		// Drop promotion modifiers.
		for _, mod := range []string{"public", "protected", "private", "readonly"} {
			part = strings.TrimSpace(strings.TrimPrefix(part, mod+" "))
		}
		if strings.Contains(part, "...") {
			p.Variadic = true
			part = strings.ReplaceAll(part, "...", "")
		}
		dollar := strings.LastIndex(part, "$")
		if dollar < 0 {
			continue
		}
		p.Name = strings.TrimSpace(strings.TrimPrefix(part[dollar:], "$"))
		p.Name = strings.TrimPrefix(p.Name, "&")
		if t := strings.TrimSpace(strings.TrimSuffix(part[:dollar], "&")); t != "" {
			p.Type = t
		}
		sig.Params = append(sig.Params, p)
	}

	rest := header[closeIdx+1:]
	if colon := strings.Index(rest, ":"); colon >= 0 {
		sig.ReturnType = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest[colon+1:]), ";"))
	}
	return sig
}

// applyPHPCompositeTypes records union and intersection members of a
// type declaration on the modifiers.
func applyPHPCompositeTypes(mods *ir.Modifiers, typeDecl string) {
	typeDecl = strings.TrimPrefix(strings.TrimSpace(typeDecl), "?")
	switch {
	case strings.Contains(typeDecl, "|"):
		parts := strings.Split(typeDecl, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		mods.UnionTypes = parts
	case strings.Contains(typeDecl, "&"):
		parts := strings.Split(typeDecl, "&")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		mods.IntersectionTypes = parts
	}
}

func phpVisibility(v string) ir.Visibility {
	switch v {
	case "private":
		return ir.VisibilityPrivate
	case "protected":
		return ir.VisibilityProtected
	default:
		return ir.VisibilityPublic
	}
}
