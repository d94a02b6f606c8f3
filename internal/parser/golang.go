package parser

import (
	"go/ast"
	goparser "go/parser"
	"go/token"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
)

// Go returns the Go parser capability, backed by go/parser.
func Go() Parser {
	return Parser{
		Name:       "go",
		Extensions: []string{".go"},
		Parse:      parseGo,
	}
}

func parseGo(path string, src []byte) *ir.IR {
	out := ir.New(path)
	if len(src) == 0 {
		return out
	}

	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, path, src, goparser.SkipObjectResolution)
	if err != nil {
		out.Degraded = true
		out.DegradedDetail = "go/parser: " + err.Error()
		if file == nil {
			return out
		}
	}

	g := &goBuilder{out: out, fset: fset, src: src}
	g.build(file)

	if verr := out.Validate(); verr != nil {
		out.Degraded = true
		out.DegradedDetail = verr.Error()
	}
	return out
}

type goBuilder struct {
	out  *ir.IR
	fset *token.FileSet
	src  []byte

	module *ir.Node
}

func (g *goBuilder) build(file *ast.File) {
	pkg := "main"
	if file.Name != nil {
		pkg = file.Name.Name
	}
	g.module = &ir.Node{
		Kind:          ir.KindModule,
		QualifiedName: "module:" + pkg,
		StartLine:     1,
		EndLine:       g.fset.Position(file.End()).Line,
		Features:      ir.NewBodyFeatures(),
	}
	_ = g.out.Add(g.module)

	deps := make(map[string]bool)
	for _, imp := range file.Imports {
		deps[strings.Trim(imp.Path.Value, `"`)] = true
	}
	g.module.Dependencies = sortedSet(deps)

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			g.addFunc(d)
		case *ast.GenDecl:
			g.addGenDecl(d)
		}
	}

	g.module.BodyFingerprint = fingerprintLines([]string{string(g.src)})
}

// ensureType returns the qualified name of a type node, creating a
// placeholder class when a method's receiver type is declared in
// another file.
func (g *goBuilder) ensureType(name string, kind ir.NodeKind) string {
	qn := "class:" + name
	if kind == ir.KindInterface {
		qn = "interface:" + name
	}
	if _, ok := g.out.Nodes[qn]; !ok {
		_ = g.out.Add(&ir.Node{
			Kind:          kind,
			QualifiedName: qn,
			Parent:        g.module.QualifiedName,
		})
	}
	return qn
}

func (g *goBuilder) addFunc(d *ast.FuncDecl) {
	name := d.Name.Name
	node := &ir.Node{
		Kind:      ir.KindFunction,
		Parent:    g.module.QualifiedName,
		Signature: g.funcSignature(d.Type),
		StartLine: g.fset.Position(d.Pos()).Line,
		EndLine:   g.fset.Position(d.End()).Line,
	}

	if d.Recv != nil && len(d.Recv.List) > 0 {
		recv := receiverTypeName(d.Recv.List[0].Type)
		parentQN := g.ensureType(recv, ir.KindClass)
		node.Kind = ir.KindMethod
		node.Parent = parentQN
		node.QualifiedName = parentQN + ".method:" + name
	} else {
		node.QualifiedName = "func:" + name
	}

	if d.Body != nil {
		node.Features = extractGoFeatures(d.Body)
		start := g.fset.Position(d.Body.Pos()).Offset
		end := g.fset.Position(d.Body.End()).Offset
		if start >= 0 && end <= len(g.src) && start < end {
			node.BodyFingerprint = fingerprintLines([]string{string(g.src[start:end])})
		}
	}

	g.addDisambiguated(node)
}

func (g *goBuilder) addGenDecl(d *ast.GenDecl) {
	switch d.Tok {
	case token.TYPE:
		for _, spec := range d.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			g.addTypeSpec(ts)
		}
	case token.CONST:
		for _, spec := range d.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for _, ident := range vs.Names {
				if ident.Name == "_" {
					continue
				}
				g.addDisambiguated(&ir.Node{
					Kind:          ir.KindConstant,
					QualifiedName: "const:" + ident.Name,
					Parent:        g.module.QualifiedName,
					StartLine:     g.fset.Position(ident.Pos()).Line,
					EndLine:       g.fset.Position(ident.End()).Line,
				})
			}
		}
	}
}

func (g *goBuilder) addTypeSpec(ts *ast.TypeSpec) {
	name := ts.Name.Name
	switch t := ts.Type.(type) {
	case *ast.StructType:
		qn := g.ensureType(name, ir.KindClass)
		cls := g.out.Nodes[qn]
		cls.StartLine = g.fset.Position(ts.Pos()).Line
		cls.EndLine = g.fset.Position(ts.End()).Line
		if t.Fields == nil {
			return
		}
		for _, field := range t.Fields.List {
			typed := field.Type != nil
			for _, ident := range field.Names {
				g.addDisambiguated(&ir.Node{
					Kind:          ir.KindProperty,
					QualifiedName: qn + ".prop:" + ident.Name,
					Parent:        qn,
					StartLine:     g.fset.Position(ident.Pos()).Line,
					EndLine:       g.fset.Position(ident.End()).Line,
					Modifiers: ir.Modifiers{
						Typed:      typed,
						Visibility: goVisibility(ident.Name),
					},
				})
			}
			// Embedded fields become bases: struct composition is the
			// closest analogue of inheritance.
			if len(field.Names) == 0 {
				cls.Bases = append(cls.Bases, typeString(field.Type))
			}
		}
	case *ast.InterfaceType:
		qn := g.ensureType(name, ir.KindInterface)
		iface := g.out.Nodes[qn]
		iface.StartLine = g.fset.Position(ts.Pos()).Line
		iface.EndLine = g.fset.Position(ts.End()).Line
		if t.Methods == nil {
			return
		}
		for _, m := range t.Methods.List {
			ft, ok := m.Type.(*ast.FuncType)
			if !ok {
				// Embedded interface.
				iface.Bases = append(iface.Bases, typeString(m.Type))
				continue
			}
			for _, ident := range m.Names {
				g.addDisambiguated(&ir.Node{
					Kind:          ir.KindMethod,
					QualifiedName: qn + ".method:" + ident.Name,
					Parent:        qn,
					Signature:     g.funcSignature(ft),
					StartLine:     g.fset.Position(ident.Pos()).Line,
					EndLine:       g.fset.Position(ident.End()).Line,
				})
			}
		}
	}
}

func (g *goBuilder) addDisambiguated(n *ir.Node) {
	base := n.QualifiedName
	for attempt := 2; g.out.Add(n) != nil; attempt++ {
		n.QualifiedName = base + "#" + string(rune('0'+attempt))
	}
}

func (g *goBuilder) funcSignature(ft *ast.FuncType) *ir.Signature {
	sig := &ir.Signature{}
	if ft.Params != nil {
		for _, field := range ft.Params.List {
			typeStr := typeString(field.Type)
			_, variadic := field.Type.(*ast.Ellipsis)
			if len(field.Names) == 0 {
				sig.Params = append(sig.Params, ir.Param{Name: "_", Type: typeStr, Variadic: variadic})
				continue
			}
			for _, ident := range field.Names {
				sig.Params = append(sig.Params, ir.Param{Name: ident.Name, Type: typeStr, Variadic: variadic})
			}
		}
	}
	if ft.Results != nil {
		var results []string
		for _, field := range ft.Results.List {
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				results = append(results, typeString(field.Type))
			}
		}
		sig.ReturnType = strings.Join(results, ", ")
	}
	return sig
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	default:
		return "unknown"
	}
}

func typeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + typeString(t.X)
	case *ast.SelectorExpr:
		return typeString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		return "[]" + typeString(t.Elt)
	case *ast.MapType:
		return "map[" + typeString(t.Key) + "]" + typeString(t.Value)
	case *ast.Ellipsis:
		return "..." + typeString(t.Elt)
	case *ast.FuncType:
		return "func"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.ChanType:
		return "chan " + typeString(t.Value)
	default:
		return "?"
	}
}

func goVisibility(name string) ir.Visibility {
	if name == "" {
		return ir.VisibilityPublic
	}
	if name[0] >= 'A' && name[0] <= 'Z' {
		return ir.VisibilityPublic
	}
	return ir.VisibilityPrivate
}

// extractGoFeatures walks a function body collecting the abstract
// feature set the differ compares.
func extractGoFeatures(body *ast.BlockStmt) *ir.BodyFeatures {
	f := ir.NewBodyFeatures()

	ast.Inspect(body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.IfStmt:
			f.ControlFlow["if"]++
			f.DecisionPoints++
		case *ast.ForStmt, *ast.RangeStmt:
			f.ControlFlow["for"]++
			f.DecisionPoints++
		case *ast.SwitchStmt, *ast.TypeSwitchStmt:
			f.ControlFlow["switch"]++
		case *ast.SelectStmt:
			f.ControlFlow["select"]++
		case *ast.GoStmt:
			f.ControlFlow["go"]++
		case *ast.DeferStmt:
			f.ControlFlow["defer"]++
		case *ast.CaseClause:
			f.DecisionPoints++
		case *ast.ReturnStmt:
			switch {
			case len(node.Results) == 0:
				f.ReturnShapes["bare"]++
			case len(node.Results) == 1:
				f.ReturnShapes["value"]++
			case len(node.Results) == 2:
				f.ReturnShapes["tuple2"]++
			default:
				f.ReturnShapes["tuple3+"]++
			}
		case *ast.CallExpr:
			if callee := calleeName(node.Fun); callee != "" {
				f.InternalCalls[callee]++
				if callee == "recover" {
					f.ExceptionHandlers = append(f.ExceptionHandlers, "recover")
				}
			}
		case *ast.FuncLit:
			f.Lambdas++
		case *ast.BinaryExpr:
			op := node.Op.String()
			switch node.Op {
			case token.EQL, token.NEQ, token.LSS, token.GTR, token.LEQ, token.GEQ:
				f.ComparisonOps[op]++
			case token.LAND, token.LOR:
				f.LogicalOps[op]++
				f.DecisionPoints++
			default:
				f.BinaryOps[op]++
			}
		case *ast.UnaryExpr:
			if node.Op == token.NOT {
				f.LogicalOps["!"]++
			} else {
				f.UnaryOps[node.Op.String()]++
			}
		case *ast.AssignStmt:
			if node.Tok == token.ASSIGN || node.Tok == token.DEFINE {
				if len(node.Lhs) > 1 {
					f.Assignments["unpack"]++
				} else {
					f.Assignments["simple"]++
				}
			} else {
				f.AugmentedAssignments[node.Tok.String()]++
			}
		case *ast.BasicLit:
			switch node.Kind {
			case token.STRING, token.CHAR:
				f.StringLiterals++
			case token.INT, token.FLOAT, token.IMAG:
				f.NumericLiterals++
			}
		case *ast.Ident:
			if node.Name == "true" || node.Name == "false" {
				f.BooleanLiterals++
			}
		case *ast.SelectorExpr:
			if base, ok := node.X.(*ast.Ident); ok {
				f.AttributeAccesses[base.Name]++
			}
		case *ast.IndexExpr:
			if base, ok := node.X.(*ast.Ident); ok {
				f.SubscriptAccesses[base.Name]++
			}
		}
		return true
	})

	return f
}

func calleeName(fun ast.Expr) string {
	switch t := fun.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		if base, ok := t.X.(*ast.Ident); ok {
			return base.Name + "." + t.Sel.Name
		}
		return t.Sel.Name
	default:
		return ""
	}
}
