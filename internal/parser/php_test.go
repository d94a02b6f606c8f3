package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcs-dev/svcs/internal/ir"
)

const phpSample = `<?php

namespace App\Auth;

use App\Models\User;
use Psr\Log\LoggerInterface;

#[Route("/login")]
class AuthController extends Controller implements Handler
{
    private readonly ?string $token;
    public const MAX_ATTEMPTS = 3;

    public function login(string $user, int $attempts = 3): bool|int
    {
        try {
            return $this->check($user);
        } catch (AuthError $e) {
            return false;
        }
    }

    abstract protected function check(string $user): bool;
}

enum Status: string
{
    case Active = 'active';
    case Disabled = 'disabled';
}

function helper($x)
{
    return $x + 1;
}
`

func TestParsePHPModernTier(t *testing.T) {
	t.Parallel()

	out := PHP().Parse("auth.php", []byte(phpSample))
	require.NoError(t, out.Validate())
	assert.False(t, out.Degraded)

	module := out.Module()
	require.NotNil(t, module)
	assert.Contains(t, module.Dependencies, "App\\Models\\User")
	assert.Contains(t, module.Dependencies, "Psr\\Log\\LoggerInterface")
	assert.Contains(t, module.Dependencies, "namespace:App\\Auth")

	cls := out.Nodes["class:AuthController"]
	require.NotNil(t, cls)
	assert.ElementsMatch(t, []string{"Controller", "Handler"}, cls.Bases)
	assert.Equal(t, []string{"Route"}, cls.Decorators)

	token := out.Nodes["class:AuthController.prop:token"]
	require.NotNil(t, token)
	assert.Equal(t, ir.VisibilityPrivate, token.Modifiers.Visibility)
	assert.True(t, token.Modifiers.Readonly)
	assert.True(t, token.Modifiers.Typed)
	assert.True(t, token.Modifiers.Nullable)

	require.NotNil(t, out.Nodes["class:AuthController.const:MAX_ATTEMPTS"])
}

func TestParsePHPMethodFacets(t *testing.T) {
	t.Parallel()

	out := PHP().Parse("auth.php", []byte(phpSample))

	login := out.Nodes["class:AuthController.method:login"]
	require.NotNil(t, login)
	assert.Equal(t, ir.VisibilityPublic, login.Modifiers.Visibility)
	require.Len(t, login.Signature.Params, 2)
	assert.Equal(t, ir.Param{Name: "user", Type: "string"}, login.Signature.Params[0])
	assert.Equal(t, ir.Param{Name: "attempts", Type: "int", HasDefault: true}, login.Signature.Params[1])
	assert.Equal(t, "bool|int", login.Signature.ReturnType)
	assert.Equal(t, []string{"bool", "int"}, login.Modifiers.UnionTypes)

	require.NotNil(t, login.Features)
	assert.Equal(t, 1, login.Features.ControlFlow["try"])
	assert.Equal(t, []string{"AuthError"}, login.Features.ExceptionHandlers)
	assert.Equal(t, 1, login.Features.InternalCalls["this.check"])

	check := out.Nodes["class:AuthController.method:check"]
	require.NotNil(t, check)
	assert.True(t, check.Modifiers.Abstract)
	assert.Equal(t, ir.VisibilityProtected, check.Modifiers.Visibility)
}

func TestParsePHPEnum(t *testing.T) {
	t.Parallel()

	out := PHP().Parse("auth.php", []byte(phpSample))

	enum := out.Nodes["enum:Status"]
	require.NotNil(t, enum)
	assert.Equal(t, ir.KindEnum, enum.Kind)
	require.NotNil(t, out.Nodes["enum:Status.case:Active"])
	require.NotNil(t, out.Nodes["enum:Status.case:Disabled"])
}

func TestParsePHPTopLevelFunction(t *testing.T) {
	t.Parallel()

	out := PHP().Parse("auth.php", []byte(phpSample))

	helper := out.Nodes["func:helper"]
	require.NotNil(t, helper)
	assert.Equal(t, ir.KindFunction, helper.Kind)
	require.Len(t, helper.Signature.Params, 1)
	assert.Equal(t, "x", helper.Signature.Params[0].Name)
	assert.Equal(t, 1, helper.Features.BinaryOps["+"])
}

func TestParsePHPLegacyTierOnUnbalancedBraces(t *testing.T) {
	t.Parallel()

	src := `<?php
class Half
{
    function open($a)
    {
        return $a;
`
	out := PHP().Parse("half.php", []byte(src))
	assert.True(t, out.Degraded)
	assert.Equal(t, "legacy parser", out.DegradedDetail)
	require.NotNil(t, out.Nodes["class:Half"])
}

func TestParsePHPRegexFallback(t *testing.T) {
	t.Parallel()

	// Unbalanced braces and no recoverable declarations: the final
	// tier still returns an IR.
	out := PHP().Parse("script.php", []byte("<?php\nif (true) { echo 'hello';\n"))
	assert.True(t, out.Degraded)
	assert.Equal(t, "regex fallback", out.DegradedDetail)
	require.NotNil(t, out.Module())
	assert.Nil(t, out.Module().Features)
}

func TestParsePHPEmpty(t *testing.T) {
	t.Parallel()

	out := PHP().Parse("empty.php", nil)
	assert.Empty(t, out.Nodes)
	assert.False(t, out.Degraded)
}

func TestParsePHPDeterminism(t *testing.T) {
	t.Parallel()

	a := PHP().Parse("auth.php", []byte(phpSample))
	b := PHP().Parse("auth.php", []byte(phpSample))
	assert.Equal(t, a.Names(), b.Names())
	for _, name := range a.Names() {
		assert.Equal(t, a.Nodes[name].Features, b.Nodes[name].Features, name)
	}
}
