/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package router

import "strings"

type nodeKind uint8

const (
	kindStatic nodeKind = iota
	kindParam
	kindWildcard
)

// node is one segment of a per-method radix tree. Each node holds at most
// one param child and one wildcard child (both are named, so two
// different names at the same position would be ambiguous), plus any
// number of static children distinguished by their literal segment text.
type node struct {
	segment  string // literal text (static) or parameter name (param/wildcard)
	kind     nodeKind
	handler  Handler
	static   []*node
	param    *node
	wildcard *node
}

func newNode(kind nodeKind, segment string) *node {
	return &node{kind: kind, segment: segment}
}

func splitSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func classify(segment string) (kind nodeKind, name string) {
	if len(segment) >= 2 && segment[0] == '{' && segment[len(segment)-1] == '}' {
		return kindParam, segment[1 : len(segment)-1]
	}
	if len(segment) >= 1 && segment[0] == '*' {
		return kindWildcard, segment[1:]
	}
	return kindStatic, segment
}

// insert walks/creates the path from n down to the node for segments,
// attaching handler at the end. pos indexes into segments.
func (n *node) insert(segments []string, pos int, handler Handler) error {
	if pos == len(segments) {
		if n.handler != nil {
			return ErrorDuplicateRoute.Error(nil)
		}
		n.handler = handler
		return nil
	}

	kind, name := classify(segments[pos])
	last := pos == len(segments)-1

	switch kind {
	case kindWildcard:
		if !last {
			return ErrorConflictingWildcard.Error(nil)
		}
		if n.wildcard != nil && n.wildcard.segment != name {
			return ErrorConflictingWildcard.Error(nil)
		}
		if n.wildcard == nil {
			n.wildcard = newNode(kindWildcard, name)
		}
		return n.wildcard.insert(segments, pos+1, handler)

	case kindParam:
		if n.param != nil && n.param.segment != name {
			return ErrorConflictingParam.Error(nil)
		}
		if n.param == nil {
			n.param = newNode(kindParam, name)
		}
		return n.param.insert(segments, pos+1, handler)

	default:
		for _, c := range n.static {
			if c.segment == name {
				return c.insert(segments, pos+1, handler)
			}
		}
		child := newNode(kindStatic, name)
		n.static = append(n.static, child)
		return child.insert(segments, pos+1, handler)
	}
}

// match walks segments against the tree, preferring static over param
// over wildcard at every level (the precedence order required of the
// router), and returns the handler of an exact leaf match.
func (n *node) match(segments []string, pos int, params *Params) Handler {
	if pos == len(segments) {
		return n.handler
	}

	seg := segments[pos]

	for _, c := range n.static {
		if c.segment == seg {
			if h := c.match(segments, pos+1, params); h != nil {
				return h
			}
			break
		}
	}

	if n.param != nil {
		if h := n.param.match(segments, pos+1, params); h != nil {
			params.add(n.param.segment, seg)
			return h
		}
	}

	if n.wildcard != nil && n.wildcard.handler != nil {
		params.add(n.wildcard.segment, strings.Join(segments[pos:], "/"))
		return n.wildcard.handler
	}

	return nil
}
