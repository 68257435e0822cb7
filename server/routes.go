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

package server

import (
	liberr "github.com/nabbar/httpcore/errors"
	"github.com/nabbar/httpcore/router"
)

// RouteFunc is a single route's business logic: it receives the request,
// the path parameters router.Match captured for it, and the response
// callback. It is distinct from Handler so that a route registered by
// path pattern never has to re-parse req.Path itself.
type RouteFunc func(req *Request, params *router.Params, respond ResponseFunc)

// RouteTable accumulates method/path/RouteFunc registrations before any
// Dispatcher is built from it. A RouteTable is write-once-then-read-many:
// fill it during startup, then pass it to NewDispatcher for every worker.
// Keeping registration (RouteTable) separate from matching (Dispatcher)
// lets each worker build its own private *router.Router sharing no
// mutable state with any other worker's, which is how Dispatch below
// avoids any lock on its per-request pending fields.
type RouteTable struct {
	entries []routeEntry
}

type routeEntry struct {
	method string
	path   string
	fn     RouteFunc
}

// NewRouteTable returns an empty RouteTable.
func NewRouteTable() *RouteTable {
	return &RouteTable{}
}

// Add registers fn for method and path, using router.Router's path syntax
// (static, "{name}" parameter, "*name" trailing wildcard segments).
func (t *RouteTable) Add(method, path string, fn RouteFunc) {
	t.entries = append(t.entries, routeEntry{method: method, path: path, fn: fn})
}

// Dispatcher resolves a request to a registered RouteFunc and invokes it.
// One Dispatcher must be built per worker goroutine (see NewDispatcher):
// its pending field is mutated without synchronization between Match and
// the handler invocation, which is safe only because a Dispatcher is never
// touched by more than one goroutine at a time, matching the reactor's
// single-threaded-per-worker model from spec.md §5.
type Dispatcher struct {
	tree    *router.Router
	pending struct {
		req     *Request
		respond ResponseFunc
	}
}

// NewDispatcher builds a private *router.Router from table's entries. Each
// worker owns its own Dispatcher instance; the tree itself is immutable
// once built, so workers never contend on a shared lock to match a route,
// at the cost of duplicating the tree's small memory footprint per worker.
func NewDispatcher(table *RouteTable) (*Dispatcher, liberr.Error) {
	d := &Dispatcher{tree: router.New()}

	for _, e := range table.entries {
		fn := e.fn
		if err := d.tree.Add(e.method, e.path, func(p *router.Params) {
			fn(d.pending.req, p, d.pending.respond)
		}); err != nil {
			return nil, ErrorRouteConflict.Error(err)
		}
	}

	return d, nil
}

// Dispatch resolves req against the route table and, on a match, invokes
// the registered RouteFunc with the captured parameters. It reports
// whether a route matched; on false the caller is responsible for
// producing a RouterNotFound (404) response.
func (d *Dispatcher) Dispatch(req *Request, respond ResponseFunc) bool {
	d.pending.req = req
	d.pending.respond = respond

	var params router.Params
	h := d.tree.Match(req.Method, req.Path, &params)
	if h == nil {
		return false
	}

	h(&params)
	return true
}

// AsHandler adapts d into a Handler, falling back to notFound when no
// route matches. notFound may be nil, in which case an unmatched request
// gets a bare 404.
func (d *Dispatcher) AsHandler(notFound Handler) Handler {
	return func(req *Request, respond ResponseFunc) {
		if d.Dispatch(req, respond) {
			return
		}
		if notFound != nil {
			notFound(req, respond)
			return
		}
		respond(404, nil, []byte("not found"))
	}
}
