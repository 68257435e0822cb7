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

package router_test

import (
	librtr "github.com/nabbar/httpcore/router"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Router", func() {
	var r *librtr.Router

	BeforeEach(func() {
		r = librtr.New()
	})

	Describe("Add", func() {
		It("registers a static route", func() {
			Expect(r.Add("GET", "/health", func(p *librtr.Params) {})).To(Succeed())
			Expect(r.TotalRoutes()).To(Equal(1))
		})

		It("rejects an empty path", func() {
			Expect(r.Add("GET", "", func(p *librtr.Params) {})).ToNot(Succeed())
		})

		It("rejects a duplicate route", func() {
			h := func(p *librtr.Params) {}
			Expect(r.Add("GET", "/a", h)).To(Succeed())
			Expect(r.Add("GET", "/a", h)).ToNot(Succeed())
		})

		It("rejects a wildcard that is not the final segment", func() {
			h := func(p *librtr.Params) {}
			Expect(r.Add("GET", "/files/*path/extra", h)).ToNot(Succeed())
		})

		It("rejects two different param names at the same position", func() {
			h := func(p *librtr.Params) {}
			Expect(r.Add("GET", "/users/{id}", h)).To(Succeed())
			Expect(r.Add("GET", "/users/{name}", h)).ToNot(Succeed())
		})
	})

	Describe("Match", func() {
		It("matches a static route", func() {
			var called bool
			Expect(r.Add("GET", "/health", func(p *librtr.Params) { called = true })).To(Succeed())

			var params librtr.Params
			h := r.Match("GET", "/health", &params)
			Expect(h).ToNot(BeNil())
			h(&params)
			Expect(called).To(BeTrue())
		})

		It("returns nil for an unregistered method", func() {
			Expect(r.Add("GET", "/health", func(p *librtr.Params) {})).To(Succeed())

			var params librtr.Params
			Expect(r.Match("POST", "/health", &params)).To(BeNil())
		})

		It("captures a single path parameter", func() {
			Expect(r.Add("GET", "/users/{id}", func(p *librtr.Params) {})).To(Succeed())

			var params librtr.Params
			h := r.Match("GET", "/users/123", &params)
			Expect(h).ToNot(BeNil())

			v, ok := params.Get("id")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("123"))
		})

		It("prefers a static route over a parameter route at the same position", func() {
			var whichCalled string
			Expect(r.Add("GET", "/users/{id}", func(p *librtr.Params) { whichCalled = "param" })).To(Succeed())
			Expect(r.Add("GET", "/users/me", func(p *librtr.Params) { whichCalled = "static" })).To(Succeed())

			var params librtr.Params
			h := r.Match("GET", "/users/me", &params)
			Expect(h).ToNot(BeNil())
			h(&params)
			Expect(whichCalled).To(Equal("static"))
		})

		It("captures a trailing wildcard", func() {
			Expect(r.Add("GET", "/files/*path", func(p *librtr.Params) {})).To(Succeed())

			var params librtr.Params
			h := r.Match("GET", "/files/a/b/c", &params)
			Expect(h).ToNot(BeNil())

			v, ok := params.Get("path")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("a/b/c"))
		})

		It("prefers a parameter route over a wildcard route", func() {
			var whichCalled string
			Expect(r.Add("GET", "/files/*path", func(p *librtr.Params) { whichCalled = "wildcard" })).To(Succeed())
			Expect(r.Add("GET", "/files/{name}", func(p *librtr.Params) { whichCalled = "param" })).To(Succeed())

			var params librtr.Params
			h := r.Match("GET", "/files/report.pdf", &params)
			Expect(h).ToNot(BeNil())
			h(&params)
			Expect(whichCalled).To(Equal("param"))
		})

		It("returns nil when no route matches", func() {
			Expect(r.Add("GET", "/users/{id}", func(p *librtr.Params) {})).To(Succeed())

			var params librtr.Params
			Expect(r.Match("GET", "/orders/1", &params)).To(BeNil())
		})
	})

	Describe("RouteCount", func() {
		It("counts routes per method independently", func() {
			h := func(p *librtr.Params) {}
			Expect(r.Add("GET", "/a", h)).To(Succeed())
			Expect(r.Add("GET", "/b", h)).To(Succeed())
			Expect(r.Add("POST", "/a", h)).To(Succeed())

			Expect(r.RouteCount("GET")).To(Equal(2))
			Expect(r.RouteCount("POST")).To(Equal(1))
			Expect(r.RouteCount("DELETE")).To(Equal(0))
			Expect(r.TotalRoutes()).To(Equal(3))
		})
	})

	Describe("Params", func() {
		It("resets without losing its backing storage", func() {
			var params librtr.Params
			params.Reset()
			Expect(params.Len()).To(Equal(0))
		})
	})
})
