package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/module-sentinel/internal/lang"
)

// parseKinds parses source and counts every node kind in the tree.
func parseKinds(t *testing.T, l lang.Language, source string) map[string]int {
	t.Helper()
	tree, err := Parse(l, []byte(source))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	root := tree.RootNode()
	require.NotNil(t, root)
	kinds := make(map[string]int)
	Walk(root, func(n *tree_sitter.Node) bool {
		kinds[n.Kind()]++
		return true
	})
	return kinds
}

func TestParseGo(t *testing.T) {
	kinds := parseKinds(t, lang.Go, `package main

func Hello() string {
	return "hello"
}

func Add(a, b int) int {
	return a + b
}
`)
	assert.Equal(t, 2, kinds["function_declaration"])
}

func TestParsePython(t *testing.T) {
	kinds := parseKinds(t, lang.Python, `def greet(name):
    return f"Hello, {name}"

class MyClass:
    def method(self):
        pass
`)
	assert.Equal(t, 2, kinds["function_definition"])
	assert.Equal(t, 1, kinds["class_definition"])
}

func TestParseKotlin(t *testing.T) {
	kinds := parseKinds(t, lang.Kotlin, `fun greet(name: String): String {
    return "Hello, $name"
}

class MyService {
    fun process(): Unit {}
}

object Singleton {
    fun instance(): Singleton = this
}
`)
	assert.Equal(t, 3, kinds["function_declaration"])
	assert.Equal(t, 1, kinds["class_declaration"])
	assert.Equal(t, 1, kinds["object_declaration"])
}

func TestAllLanguagesLoad(t *testing.T) {
	for _, l := range lang.AllLanguages() {
		_, err := GetLanguage(l)
		assert.NoError(t, err, "GetLanguage(%s)", l)
	}
}

func TestParseCSharp(t *testing.T) {
	kinds := parseKinds(t, lang.CSharp, `using System;

namespace MyApp {
    public class Greeter {
        public string Greet(string name) {
            return $"Hello, {name}";
        }

        private void Helper() {}
    }

    public enum Color { Red, Green, Blue }
}
`)
	assert.Equal(t, 1, kinds["class_declaration"])
	assert.Equal(t, 2, kinds["method_declaration"])
}

func TestParseCPP(t *testing.T) {
	kinds := parseKinds(t, lang.CPP, `namespace engine {
class Renderer {
public:
    void draw(int frames);
};

void Renderer::draw(int frames) {
    for (int i = 0; i < frames; ++i) {}
}
}
`)
	assert.Equal(t, 1, kinds["namespace_definition"])
	assert.Equal(t, 1, kinds["class_specifier"])
	assert.Equal(t, 1, kinds["function_definition"])
}

func TestNodeHelpers(t *testing.T) {
	source := []byte(`package main

func Hello() string {
	return "hello"
}
`)
	tree, err := Parse(lang.Go, source)
	require.NoError(t, err)
	defer tree.Close()

	var fn *tree_sitter.Node
	Walk(tree.RootNode(), func(n *tree_sitter.Node) bool {
		if n.Kind() == "function_declaration" {
			fn = n
			return false
		}
		return true
	})
	require.NotNil(t, fn, "function_declaration not found")
	assert.Equal(t, "Hello", FieldText(fn, "name", source))
	assert.Empty(t, FieldText(fn, "nonexistent", source))
	assert.Equal(t, 3, StartLine(fn))
	assert.Equal(t, 5, EndLine(fn))
	assert.Equal(t, 1, Column(fn))

	var ret *tree_sitter.Node
	Walk(fn, func(n *tree_sitter.Node) bool {
		if n.Kind() == "return_statement" {
			ret = n
		}
		return true
	})
	require.NotNil(t, ret, "return_statement not found")
	assert.True(t, HasAncestor(ret, []string{"function_declaration"}, nil))
	assert.False(t, HasAncestor(ret, []string{"function_declaration"}, []string{"block"}), "stop kind ends the search first")
	assert.Empty(t, NodeText(nil, source))
}
