// File: internal/syntax/html.go
package syntax

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// InlineScript is one <script> body lifted out of an HTML document. LineOffset
// is the 0-based line of the document on which the script body starts, so
// finding locations can be mapped back to the enclosing file.
type InlineScript struct {
	Source     []byte
	LineOffset int
}

// ExtractScripts returns the inline script bodies of an HTML document in
// order. Scripts with a src attribute are external and skipped, as are bodies
// under non-JavaScript types (JSON payloads, templates).
func ExtractScripts(doc []byte) []InlineScript {
	var scripts []InlineScript

	tokenizer := html.NewTokenizer(bytes.NewReader(doc))
	line := 0
	inScript := false

	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return scripts
		}

		raw := tokenizer.Raw()

		switch tokenType {
		case html.StartTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) == "script" {
				inScript = scriptableTag(tokenizer, hasAttr)
			}
		case html.TextToken:
			if inScript {
				body := make([]byte, len(raw))
				copy(body, raw)
				scripts = append(scripts, InlineScript{Source: body, LineOffset: line})
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "script" {
				inScript = false
			}
		}

		line += bytes.Count(raw, []byte{'\n'})
	}
}

// scriptableTag inspects a <script> start tag's attributes and reports
// whether its body should be analyzed as JavaScript.
func scriptableTag(tokenizer *html.Tokenizer, hasAttr bool) bool {
	analyzable := true
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = tokenizer.TagAttr()
		switch string(key) {
		case "src":
			return false
		case "type":
			analyzable = isJavaScriptType(string(val))
		}
	}
	return analyzable
}

func isJavaScriptType(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	}
	return false
}
