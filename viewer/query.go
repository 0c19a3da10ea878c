// Package viewer implements the Top-K query client: building a /top
// query string, driving it on an interval, and parsing the response
// grammar back into xk.Key rows (original_source/xltop.c's
// query_escape/query_add/make_top_query, translated).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package viewer

import (
	"fmt"
	"strings"

	"github.com/NVIDIA/xltop/core"
)

// escape percent-encodes every byte outside A-Za-z0-9.-~_ as %HH
// upper-case hex (spec.md §6's query-string encoding rule), the exact
// translation of query_escape — deliberately not url.QueryEscape,
// which encodes space as '+' rather than %20.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '.' || c == '-' || c == '~' || c == '_':
		return true
	}
	return false
}

func addField(b *strings.Builder, name, value string) {
	if b.Len() > 0 {
		b.WriteByte('&')
	}
	b.WriteString(escape(name))
	b.WriteByte('=')
	b.WriteString(escape(value))
}

// BuildQuery translates make_top_query: "x0=<type>:<name>&d0=<d0>&
// x1=<type>:<name>&d1=<d1>&limit=<limit>".
func BuildQuery(t0 core.Kind, x0 string, t1 core.Kind, x1 string, d [2]int, limit int) string {
	var b strings.Builder
	addField(&b, "x0", fmt.Sprintf("%s:%s", t0, x0))
	addField(&b, "d0", fmt.Sprintf("%d", d[0]))
	addField(&b, "x1", fmt.Sprintf("%s:%s", t1, x1))
	addField(&b, "d1", fmt.Sprintf("%d", d[1]))
	addField(&b, "limit", fmt.Sprintf("%d", limit))
	return b.String()
}
