package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcs-dev/svcs/internal/ir"
)

const goSample = `package web

import (
	"fmt"
	"net/http"
)

const MaxConns = 64

type Handler interface {
	Serve(w http.ResponseWriter) error
}

type Server struct {
	Addr string
	mu   int
}

func (s *Server) Start(port int) error {
	if port == 0 {
		return fmt.Errorf("no port")
	}
	go s.loop()
	return nil
}

func New(addrs ...string) *Server {
	return &Server{}
}
`

func TestParseGoStructure(t *testing.T) {
	t.Parallel()

	out := Go().Parse("server.go", []byte(goSample))
	require.NoError(t, out.Validate())
	assert.False(t, out.Degraded)

	module := out.Module()
	require.NotNil(t, module)
	assert.Equal(t, "module:web", module.QualifiedName)
	assert.Equal(t, []string{"fmt", "net/http"}, module.Dependencies)

	require.NotNil(t, out.Nodes["const:MaxConns"])

	iface := out.Nodes["interface:Handler"]
	require.NotNil(t, iface)
	assert.Equal(t, ir.KindInterface, iface.Kind)
	serve := out.Nodes["interface:Handler.method:Serve"]
	require.NotNil(t, serve)
	assert.Equal(t, "error", serve.Signature.ReturnType)

	cls := out.Nodes["class:Server"]
	require.NotNil(t, cls)
	assert.Equal(t, ir.KindClass, cls.Kind)

	addr := out.Nodes["class:Server.prop:Addr"]
	require.NotNil(t, addr)
	assert.Equal(t, ir.VisibilityPublic, addr.Modifiers.Visibility)
	assert.True(t, addr.Modifiers.Typed)

	mu := out.Nodes["class:Server.prop:mu"]
	require.NotNil(t, mu)
	assert.Equal(t, ir.VisibilityPrivate, mu.Modifiers.Visibility)
}

func TestParseGoMethodsAndFeatures(t *testing.T) {
	t.Parallel()

	out := Go().Parse("server.go", []byte(goSample))

	start := out.Nodes["class:Server.method:Start"]
	require.NotNil(t, start)
	assert.Equal(t, ir.KindMethod, start.Kind)
	assert.Equal(t, "class:Server", start.Parent)
	require.Len(t, start.Signature.Params, 1)
	assert.Equal(t, ir.Param{Name: "port", Type: "int"}, start.Signature.Params[0])
	assert.Equal(t, "error", start.Signature.ReturnType)

	require.NotNil(t, start.Features)
	assert.Equal(t, 1, start.Features.ControlFlow["if"])
	assert.Equal(t, 1, start.Features.ControlFlow["go"])
	assert.Equal(t, 2, start.Features.ReturnShapes["value"])
	assert.Equal(t, 1, start.Features.InternalCalls["fmt.Errorf"])
	assert.Equal(t, 1, start.Features.InternalCalls["s.loop"])
	assert.Equal(t, 1, start.Features.ComparisonOps["=="])

	fn := out.Nodes["func:New"]
	require.NotNil(t, fn)
	require.Len(t, fn.Signature.Params, 1)
	assert.True(t, fn.Signature.Params[0].Variadic)
}

func TestParseGoReceiverDeclaredElsewhere(t *testing.T) {
	t.Parallel()

	src := `package web

func (c *Client) Do() {}
`
	out := Go().Parse("client.go", []byte(src))
	require.NoError(t, out.Validate())

	// A placeholder class node is created so the parent invariant holds.
	require.NotNil(t, out.Nodes["class:Client"])
	require.NotNil(t, out.Nodes["class:Client.method:Do"])
}

func TestParseGoMalformedDegrades(t *testing.T) {
	t.Parallel()

	out := Go().Parse("broken.go", []byte("package web\n\nfunc Broken( {"))
	assert.True(t, out.Degraded)
	assert.Contains(t, out.DegradedDetail, "go/parser")
}

func TestParseGoEmpty(t *testing.T) {
	t.Parallel()

	out := Go().Parse("empty.go", nil)
	assert.Empty(t, out.Nodes)
	assert.False(t, out.Degraded)
}

func TestParseGoDeterminism(t *testing.T) {
	t.Parallel()

	a := Go().Parse("server.go", []byte(goSample))
	b := Go().Parse("server.go", []byte(goSample))
	assert.Equal(t, a.Names(), b.Names())
	for _, name := range a.Names() {
		assert.Equal(t, a.Nodes[name].Features, b.Nodes[name].Features, name)
	}
}
