package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcs-dev/svcs/internal/ir"
)

const jsSample = `import { api } from './api';
const legacy = require('./legacy');

export async function fetchUser(id) {
  const res = await api.get(id);
  return res.data;
}

export const add = (a, b = 0) => a + b;

function* pager(items) {
  for (const item of items) {
    yield item;
  }
}

class Store {
  #cache = new Map();
  static instances = 0;

  static create() {
    return new Store();
  }

  async load(key, fallback = null) {
    if (this.#cache.has(key)) {
      return this.#cache.get(key);
    }
    return fallback;
  }
}
`

func TestParseJavaScriptStructure(t *testing.T) {
	t.Parallel()

	out := JavaScript().Parse("store.js", []byte(jsSample))
	require.NoError(t, out.Validate())
	assert.False(t, out.Degraded)

	module := out.Module()
	require.NotNil(t, module)
	assert.Equal(t, "module:store", module.QualifiedName)
	assert.Equal(t, []string{"./api", "./legacy"}, module.Dependencies)

	fetch := out.Nodes["func:fetchUser"]
	require.NotNil(t, fetch)
	assert.True(t, fetch.Modifiers.Async)
	assert.False(t, fetch.Modifiers.Generator)
	require.Len(t, fetch.Signature.Params, 1)
	assert.Equal(t, "id", fetch.Signature.Params[0].Name)

	add := out.Nodes["func:add"]
	require.NotNil(t, add)
	require.Len(t, add.Signature.Params, 2)
	assert.True(t, add.Signature.Params[1].HasDefault)

	pager := out.Nodes["func:pager"]
	require.NotNil(t, pager)
	assert.True(t, pager.Modifiers.Generator)
	assert.Positive(t, pager.Features.YieldCount)
}

func TestParseJavaScriptClassMembers(t *testing.T) {
	t.Parallel()

	out := JavaScript().Parse("store.js", []byte(jsSample))

	cls := out.Nodes["class:Store"]
	require.NotNil(t, cls)
	assert.Equal(t, ir.KindClass, cls.Kind)

	cache := out.Nodes["class:Store.prop:cache"]
	require.NotNil(t, cache)
	assert.Equal(t, ir.VisibilityPrivate, cache.Modifiers.Visibility)

	instances := out.Nodes["class:Store.prop:instances"]
	require.NotNil(t, instances)
	assert.True(t, instances.Modifiers.Static)

	create := out.Nodes["class:Store.method:create"]
	require.NotNil(t, create)
	assert.True(t, create.Modifiers.Static)

	load := out.Nodes["class:Store.method:load"]
	require.NotNil(t, load)
	assert.True(t, load.Modifiers.Async)
	require.Len(t, load.Signature.Params, 2)
	assert.True(t, load.Signature.Params[1].HasDefault)
	require.NotNil(t, load.Features)
	assert.Equal(t, 1, load.Features.ControlFlow["if"])
}

func TestParseTypeScriptConstructs(t *testing.T) {
	t.Parallel()

	src := `export interface Repo extends Closeable {
  find(id: string): Entity;
}

export enum Level {
  Low,
  High = 10,
}

export class Cache extends Base {
  private readonly limit: number = 100;

  get(key: string): Entity | null {
    return this.entries[key];
  }
}
`
	out := JavaScript().Parse("cache.ts", []byte(src))
	require.NoError(t, out.Validate())

	repo := out.Nodes["interface:Repo"]
	require.NotNil(t, repo)
	assert.Equal(t, []string{"Closeable"}, repo.Bases)

	level := out.Nodes["enum:Level"]
	require.NotNil(t, level)
	require.NotNil(t, out.Nodes["enum:Level.case:Low"])
	require.NotNil(t, out.Nodes["enum:Level.case:High"])

	cache := out.Nodes["class:Cache"]
	require.NotNil(t, cache)
	assert.Equal(t, []string{"Base"}, cache.Bases)

	limit := out.Nodes["class:Cache.prop:limit"]
	require.NotNil(t, limit)
	assert.Equal(t, ir.VisibilityPrivate, limit.Modifiers.Visibility)
	assert.True(t, limit.Modifiers.Readonly)
	assert.True(t, limit.Modifiers.Typed)

	get := out.Nodes["class:Cache.method:get"]
	require.NotNil(t, get)
	require.Len(t, get.Signature.Params, 1)
	assert.Equal(t, "string", get.Signature.Params[0].Type)
}

func TestParseJavaScriptEmptyAndTotal(t *testing.T) {
	t.Parallel()

	out := JavaScript().Parse("empty.js", nil)
	assert.Empty(t, out.Nodes)

	garbage := JavaScript().Parse("junk.js", []byte("}}} not a program ((("))
	require.NotNil(t, garbage.Module())
}

func TestParseJavaScriptDeterminism(t *testing.T) {
	t.Parallel()

	a := JavaScript().Parse("store.js", []byte(jsSample))
	b := JavaScript().Parse("store.js", []byte(jsSample))
	assert.Equal(t, a.Names(), b.Names())
	for _, name := range a.Names() {
		assert.Equal(t, a.Nodes[name].Features, b.Nodes[name].Features, name)
	}
}
