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

import "sync"

// Handler is invoked with the captured path parameters of a matched
// route. The caller owns request/response representation; this package
// only resolves "which handler, with which parameters".
type Handler func(params *Params)

// Router is a set of per-method radix trees. It is safe for concurrent
// Match calls; Add must not race with Match or with another Add.
type Router struct {
	mu    sync.RWMutex
	trees map[string]*node
	count int
}

// New returns an empty Router.
func New() *Router {
	return &Router{trees: make(map[string]*node)}
}

// Add registers handler for method and path. Path patterns:
//   - static:    "/users"          — exact match
//   - parameter: "/users/{id}"     — matches /users/123, captures id=123
//   - wildcard:  "/files/*path"    — matches /files/a/b, captures path=a/b;
//     must be the final segment.
func (r *Router) Add(method, path string, handler Handler) error {
	if path == "" {
		return ErrorEmptyPath.Error(nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	root, ok := r.trees[method]
	if !ok {
		root = newNode(kindStatic, "")
		r.trees[method] = root
	}

	segments := splitSegments(path)
	if err := root.insert(segments, 0, handler); err != nil {
		return err
	}

	r.count++
	return nil
}

// Match resolves method and path to a handler, filling params with any
// captured path parameters. params is cleared by the caller via Reset
// before reuse; Match only appends to it. Returns nil if no route
// matches.
func (r *Router) Match(method, path string, params *Params) Handler {
	r.mu.RLock()
	root, ok := r.trees[method]
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	segments := splitSegments(path)
	return root.match(segments, 0, params)
}

// RouteCount returns the number of routes registered for method.
func (r *Router) RouteCount(method string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root, ok := r.trees[method]
	if !ok {
		return 0
	}

	n := 0
	countHandlers(root, &n)
	return n
}

// TotalRoutes returns the number of routes registered across all methods.
func (r *Router) TotalRoutes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func countHandlers(n *node, out *int) {
	if n.handler != nil {
		*out++
	}
	for _, c := range n.static {
		countHandlers(c, out)
	}
	if n.param != nil {
		countHandlers(n.param, out)
	}
	if n.wildcard != nil {
		countHandlers(n.wildcard, out)
	}
}
