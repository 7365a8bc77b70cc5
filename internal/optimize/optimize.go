// Package optimize reduces raw HTML into compact text suitable for LLM
// prompts. Two strategies are provided: HTML walks a parsed tree and prunes
// it while keeping structure, Lightweight does regex substitution and strips
// all markup, trading fidelity for robustness on malformed input.
package optimize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MaxTextLength bounds Lightweight output so a whole page cannot blow the
// prompt token budget.
const MaxTextLength = 8000

// Options controls which reductions the tree mode applies.
type Options struct {
	RemoveMetaTags     bool
	RemoveScriptTags   bool
	RemoveStyleTags    bool
	RemoveEmptyTags    bool
	RemoveAttributes   bool
	PreserveAttributes []string
	RemoveComments     bool
	MinifyWhitespace   bool
}

// DefaultOptions enables every reduction and preserves the attributes that
// still carry meaning for a reader.
func DefaultOptions() Options {
	return Options{
		RemoveMetaTags:     true,
		RemoveScriptTags:   true,
		RemoveStyleTags:    true,
		RemoveEmptyTags:    true,
		RemoveAttributes:   true,
		PreserveAttributes: []string{"href", "src", "alt", "title"},
		RemoveComments:     true,
		MinifyWhitespace:   true,
	}
}

// voidTags are never pruned as "empty": they are self-closing and meaningful
// without children.
var voidTags = map[string]bool{
	"img": true, "br": true, "hr": true, "input": true, "area": true,
	"base": true, "col": true, "embed": true, "source": true,
	"track": true, "wbr": true,
}

// HTML reduces raw HTML using the tree strategy. Malformed input never
// produces an error; the parser repairs what it can and the rest degrades
// best-effort. The function is pure: no network, no state.
func HTML(raw string, opts Options) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		// goquery's parser recovers from almost anything; if it truly
		// cannot, fall back to the regex strategy.
		return Lightweight(raw)
	}

	unwanted := unwantedTags(opts)
	preserve := make(map[string]bool, len(opts.PreserveAttributes))
	for _, a := range opts.PreserveAttributes {
		preserve[strings.ToLower(a)] = true
	}

	body := doc.Find("body")
	for _, n := range body.Nodes {
		processNode(n, opts, unwanted, preserve)
	}

	out, err := body.Html()
	if err != nil {
		return ""
	}
	if opts.MinifyWhitespace {
		out = minifyWhitespace(out)
	}
	return out
}

// unwantedTags builds the removal set. noscript and template are always
// dropped: their content is never useful to a model.
func unwantedTags(opts Options) map[string]bool {
	tags := map[string]bool{"noscript": true, "template": true}
	if opts.RemoveMetaTags {
		tags["meta"] = true
		tags["link"] = true
		tags["title"] = true
	}
	if opts.RemoveScriptTags {
		tags["script"] = true
	}
	if opts.RemoveStyleTags {
		tags["style"] = true
	}
	return tags
}

// processNode prunes n's subtree in one depth-first pass. Children are
// processed before the emptiness check so that removing a child can make its
// parent newly empty within the same pass.
func processNode(n *html.Node, opts Options, unwanted, preserve map[string]bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.ElementNode:
			tag := strings.ToLower(c.Data)
			if unwanted[tag] {
				n.RemoveChild(c)
				break
			}
			if opts.RemoveAttributes {
				stripAttributes(c, preserve)
			}
			processNode(c, opts, unwanted, preserve)
			if opts.RemoveEmptyTags && isEmpty(c) {
				n.RemoveChild(c)
			}
		case html.CommentNode:
			if opts.RemoveComments {
				n.RemoveChild(c)
			}
		}
		c = next
	}
}

func stripAttributes(n *html.Node, preserve map[string]bool) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if preserve[strings.ToLower(a.Key)] {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// isEmpty reports whether an element carries no content: no element children
// (empty ones were already pruned bottom-up) and no non-blank text.
func isEmpty(n *html.Node) bool {
	if voidTags[strings.ToLower(n.Data)] {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		}
	}
	return true
}

var (
	interTagSpace = regexp.MustCompile(`>\s+<`)
	anySpace      = regexp.MustCompile(`\s+`)

	reDoctype  = regexp.MustCompile(`(?i)<!DOCTYPE[^>]*>`)
	reMeta     = regexp.MustCompile(`(?i)<meta[^>]*>`)
	reLink     = regexp.MustCompile(`(?i)<link[^>]*>`)
	reTitle    = regexp.MustCompile(`(?is)<title[^>]*>.*?</title>`)
	reScript   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reNoscript = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	reTemplate = regexp.MustCompile(`(?is)<template[^>]*>.*?</template>`)
	reComment  = regexp.MustCompile(`<!--[\s\S]*?-->`)
	reBody     = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)
	reAnyTag   = regexp.MustCompile(`<[^>]*>`)
)

// Lightweight reduces raw HTML to plain text by substitution alone: strip
// noise blocks, keep only the body region when one exists, replace every
// remaining tag with a space, collapse whitespace and cap the length at
// MaxTextLength.
func Lightweight(raw string) string {
	s := reDoctype.ReplaceAllString(raw, "")
	s = reMeta.ReplaceAllString(s, "")
	s = reLink.ReplaceAllString(s, "")
	s = reTitle.ReplaceAllString(s, "")
	s = reScript.ReplaceAllString(s, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reNoscript.ReplaceAllString(s, "")
	s = reComment.ReplaceAllString(s, "")
	s = reTemplate.ReplaceAllString(s, "")

	if m := reBody.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	s = reAnyTag.ReplaceAllString(s, " ")
	s = anySpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return Truncate(s, MaxTextLength)
}

// minifyWhitespace collapses inter-tag gaps and runs of whitespace to single
// spaces and trims the ends. Idempotent.
func minifyWhitespace(s string) string {
	s = interTagSpace.ReplaceAllString(s, "><")
	s = anySpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
