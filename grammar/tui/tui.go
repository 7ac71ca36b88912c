// Package tui defines the built-in grammar for TUI markup: component
// declarations containing XML-like elements, text content, control forms
// and embedded Go expressions.
package tui

import (
	"fmt"
	"sync"

	"github.com/grindlemire/go-tui/grammar"
	"github.com/grindlemire/go-tui/grammar/build"
	"github.com/grindlemire/go-tui/lexer"
)

var language = sync.OnceValue(func() *grammar.Table {
	tbl, err := buildLanguage()
	if err != nil {
		panic(fmt.Sprintf("tui: building built-in grammar: %v", err))
	}
	return tbl
})

// Language returns the shared immutable table for the TUI grammar.
func Language() *grammar.Table {
	return language()
}

// Scanners returns the external scanners the TUI grammar needs: balanced
// brace expressions and control-form conditions. The returned slice is
// freshly allocated and safe to hand to one parser.
func Scanners() []lexer.Scanner {
	return []lexer.Scanner{exprScanner{}}
}

func buildLanguage() (*grammar.Table, error) {
	letter := []build.RuneRange{
		build.R('a', 'z'),
		build.R('A', 'Z'),
		build.R('_', '_'),
	}
	identTail := append([]build.RuneRange{build.R('0', '9')}, letter...)

	b := build.New("tui")

	b.Skip("ws", build.Rep1(build.Class(
		build.R(' ', ' '),
		build.R('\t', '\t'),
		build.R('\r', '\r'),
		build.R('\n', '\n'),
	)))
	b.Extra("comment", build.Seq(build.Lit("//"), build.Rep(build.Except(build.R('\n', '\n')))))

	b.Token("at_component", build.Lit("@component"))
	b.Token("at_if", build.Lit("@if"))
	b.Token("at_else", build.Lit("@else"))
	b.Token("at_for", build.Lit("@for"))
	b.Token("at_let", build.Lit("@let"))

	b.Token("ident", build.Seq(build.Class(letter...), build.Rep(build.Class(identTail...))))
	b.Token("string", build.Seq(
		build.Lit(`"`),
		build.Rep(build.Alt(
			build.Except(build.R('"', '"'), build.R('\\', '\\'), build.R('\n', '\n')),
			build.Seq(build.Lit(`\`), build.Any()),
		)),
		build.Lit(`"`),
	))

	// Runs of element content. Structural characters and whitespace end a
	// run; whitespace between runs is skipped, so multi-word content lexes
	// as one text token per word.
	b.Token("text", build.Rep1(build.Except(
		build.R('<', '<'),
		build.R('>', '>'),
		build.R('{', '{'),
		build.R('}', '}'),
		build.R('@', '@'),
		build.R('/', '/'),
		build.R('"', '"'),
		build.R(' ', ' '),
		build.R('\t', '\t'),
		build.R('\r', '\r'),
		build.R('\n', '\n'),
	)))

	b.Token("langle", build.Lit("<"))
	b.Token("langle_slash", build.Lit("</"))
	b.Token("rangle", build.Lit(">"))
	b.Token("slash_angle", build.Lit("/>"))
	b.Token("lparen", build.Lit("("))
	b.Token("rparen", build.Lit(")"))
	b.Token("lbrace", build.Lit("{"))
	b.Token("rbrace", build.Lit("}"))
	b.Token("comma", build.Lit(","))
	b.Token("equals", build.Lit("="))
	b.Token("dot", build.Lit("."))

	b.External("embedded_expr")
	b.External("control_expr")

	for _, anon := range []string{
		"at_component", "at_if", "at_else", "at_for", "at_let",
		"langle", "langle_slash", "rangle", "slash_angle",
		"lparen", "rparen", "lbrace", "rbrace", "comma", "equals", "dot",
	} {
		b.Hidden(anon)
	}

	b.Rule("source_file")
	b.Rule("source_file", "component_list")
	b.Rule("component_list", "component")
	b.Rule("component_list", "component_list", "component")
	b.Rule("component", "at_component", "ident", "param_group", "block")

	b.Rule("param_group", "lparen", "rparen")
	b.Rule("param_group", "lparen", "param_list", "rparen")
	b.Rule("param_list", "param")
	b.Rule("param_list", "param_list", "comma", "param")
	b.Rule("param", "ident", "type_ref")
	b.Rule("type_ref", "ident")
	b.Rule("type_ref", "ident", "dot", "ident")

	b.Rule("block", "lbrace", "rbrace")
	b.Rule("block", "lbrace", "node_list", "rbrace")
	b.Rule("node_list", "node")
	b.Rule("node_list", "node_list", "node")
	b.Rule("node", "element")
	b.Rule("node", "text")
	b.Rule("node", "embedded_expr")
	b.Rule("node", "if_stmt")
	b.Rule("node", "for_stmt")
	b.Rule("node", "let_stmt")

	b.Rule("element", "start_tag", "end_tag")
	b.Rule("element", "start_tag", "node_list", "end_tag")
	b.Rule("element", "self_closing_tag")
	b.Rule("start_tag", "langle", "ident", "rangle")
	b.Rule("start_tag", "langle", "ident", "attr_list", "rangle")
	b.Rule("self_closing_tag", "langle", "ident", "slash_angle")
	b.Rule("self_closing_tag", "langle", "ident", "attr_list", "slash_angle")
	b.Rule("end_tag", "langle_slash", "ident", "rangle")
	b.Rule("attr_list", "attribute")
	b.Rule("attr_list", "attr_list", "attribute")
	b.Rule("attribute", "ident")
	b.Rule("attribute", "ident", "equals", "string")
	b.Rule("attribute", "ident", "equals", "embedded_expr")

	b.Rule("if_stmt", "at_if", "control_expr", "block")
	b.Rule("if_stmt", "at_if", "control_expr", "block", "at_else", "block")
	b.Rule("if_stmt", "at_if", "control_expr", "block", "at_else", "if_stmt")
	b.Rule("for_stmt", "at_for", "control_expr", "block")
	b.Rule("let_stmt", "at_let", "ident", "equals", "control_expr")

	b.Hidden("component_list")
	b.Hidden("param_list")
	b.Hidden("node_list")
	b.Hidden("node")
	b.Hidden("attr_list")
	b.Hidden("type_ref")

	b.Recover("rbrace", "rangle", "at_component")
	b.Start("source_file")

	return b.Build()
}
