// Package interactive is C4: merges three independent signals about what a
// page lets a user do — the accessibility tree, implicit HTML roles, and
// observed event-listener hits — into one deduplicated, referenced list of
// Interactables.
//
// The selector-chain priority order (aria-label → name → placeholder →
// data-* → id → class → fallback) is grounded on
// abdullah-mukadam-browser-automation-go's pkg/semantic-extractor.go
// generateRobustSelector, adapted from a live-automation selector to a
// three-tier static locator chain.
package interactive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/htmlnorm"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/sanitize"
)

// Result is C4's contribution to one pipeline pass.
type Result struct {
	Interactables []model.Interactable
	AXDegraded    bool
	Warnings      []string
}

var recognizedAxRoles = map[string][]model.Affordance{
	"button":    {model.AffordanceClick},
	"link":      {model.AffordanceClick},
	"textbox":   {model.AffordanceType},
	"searchbox": {model.AffordanceType},
	"combobox":  {model.AffordanceSelect},
	"checkbox":  {model.AffordanceClick},
	"radio":     {model.AffordanceClick},
	"switch":    {model.AffordanceClick},
	"tab":       {model.AffordanceClick},
	"menuitem":  {model.AffordanceClick},
	"option":    {model.AffordanceClick},
	"slider":    {model.AffordanceType},
	"gridcell":  {model.AffordanceClick},
}

// candidate is a pre-merge Interactable plus the bookkeeping fields needed
// to dedupe and fill blanks across tiers.
type candidate struct {
	role        string
	name        string
	affordances []model.Affordance
	selector    model.SelectorChain
	options     []string
	parentXPath string
}

func dedupeKey(role, name, parentXPath string) string {
	return role + "\x1f" + name + "\x1f" + parentXPath
}

// Detect runs all three tiers and merges them into a deduplicated,
// referenced Interactable list. Refs follow tier order, not document order:
// AX-tree nodes first, then implicit-role DOM elements not already merged,
// then event-listener hits.
func Detect(doc *htmlnorm.Document, snapshot model.Snapshot) Result {
	var warnings []string
	order := []string{}
	merged := map[string]*candidate{}

	axDegraded := len(snapshot.AxTree) == 0
	if axDegraded {
		warnings = append(warnings, "AX_DEGRADED: accessibility tree was empty or unavailable; falling back to implicit-role and event-listener tiers only")
	} else {
		for _, node := range snapshot.AxTree {
			walkAxTree(node, "", &order, merged)
		}
	}

	walkImplicitRoles(doc.Root, "", &order, merged)

	applyListenerHits(doc.Root, snapshot.ListenerHits, &order, merged)

	out := make([]model.Interactable, 0, len(order))
	ref := 1
	for _, key := range order {
		c := merged[key]
		if c == nil {
			continue
		}
		out = append(out, model.Interactable{
			Ref:         ref,
			Role:        c.role,
			Name:        c.name,
			Affordances: c.affordances,
			Selector:    c.selector,
			Options:     c.options,
			Bucket:      classifyBucket(c.role, c.name),
			ParentXPath: c.parentXPath,
		})
		ref++
	}

	return Result{Interactables: out, AXDegraded: axDegraded, Warnings: warnings}
}

// addOrMerge inserts a new candidate or fills blank fields on an existing
// one. Tiers must call this in priority order: later tiers never overwrite
// a field an earlier tier already populated.
func addOrMerge(c candidate, order *[]string, merged map[string]*candidate) {
	key := dedupeKey(c.role, c.name, c.parentXPath)
	if existing, ok := merged[key]; ok {
		if len(existing.options) == 0 && len(c.options) > 0 {
			existing.options = c.options
		}
		if existing.selector.CSS == "" && c.selector.CSS != "" {
			existing.selector.CSS = c.selector.CSS
		}
		if len(existing.affordances) == 0 && len(c.affordances) > 0 {
			existing.affordances = c.affordances
		}
		return
	}
	cc := c
	merged[key] = &cc
	*order = append(*order, key)
}

// walkAxTree is tier 1: every accessibility node with a recognized role and
// a non-empty accessible name becomes an interactable candidate.
func walkAxTree(node model.AxNode, parentXPath string, order *[]string, merged map[string]*candidate) {
	role := strings.ToLower(node.Role)
	name := sanitize.Text(node.Name)
	if affs, ok := recognizedAxRoles[role]; ok && name != "" {
		addOrMerge(candidate{
			role:        role,
			name:        name,
			affordances: affs,
			selector: model.SelectorChain{
				RoleExactName:  fmt.Sprintf("role=%s[name=%q]", role, name),
				RoleFirstMatch: fmt.Sprintf("role=%s >> nth=0", role),
			},
			parentXPath: xpathParent(node.XPath),
		}, order, merged)
	}
	for _, child := range node.Children {
		walkAxTree(child, node.XPath, order, merged)
	}
}

// implicitRoleFor maps a tag (plus, for <input>, its type attribute) to the
// role it implies, and the affordance(s) that role grants.
func implicitRoleFor(n *html.Node) (role string, affs []model.Affordance, ok bool) {
	switch n.Data {
	case "button":
		return "button", []model.Affordance{model.AffordanceClick}, true
	case "a":
		if htmlnorm.Attr(n, "href") != "" {
			return "link", []model.Affordance{model.AffordanceClick}, true
		}
	case "select":
		return "combobox", []model.Affordance{model.AffordanceSelect}, true
	case "textarea":
		return "textbox", []model.Affordance{model.AffordanceType}, true
	case "input":
		switch strings.ToLower(htmlnorm.Attr(n, "type")) {
		case "checkbox":
			return "checkbox", []model.Affordance{model.AffordanceClick}, true
		case "radio":
			return "radio", []model.Affordance{model.AffordanceClick}, true
		case "range":
			return "slider", []model.Affordance{model.AffordanceType}, true
		case "search":
			return "searchbox", []model.Affordance{model.AffordanceType}, true
		case "submit", "button":
			return "button", []model.Affordance{model.AffordanceClick}, true
		case "hidden":
			return "", nil, false
		default:
			return "textbox", []model.Affordance{model.AffordanceType}, true
		}
	}
	return "", nil, false
}

// walkImplicitRoles is tier 2: DOM nodes whose tag implies a role, even if
// absent from the AX tree.
func walkImplicitRoles(n *html.Node, xpath string, order *[]string, merged map[string]*candidate) {
	if n.Type == html.ElementNode {
		childXPath := xpath + "/" + n.Data
		if role, affs, ok := implicitRoleFor(n); ok {
			name := accessibleName(n)
			if name != "" {
				c := candidate{
					role:        role,
					name:        name,
					affordances: affs,
					selector:    buildSelectorChain(n, role, name),
					parentXPath: xpath,
				}
				if role == "combobox" {
					c.options = selectOptions(n)
				}
				addOrMerge(c, order, merged)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walkImplicitRoles(child, childXPath, order, merged)
		}
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walkImplicitRoles(child, xpath, order, merged)
	}
}

// accessibleName approximates the accessible name: aria-label, then
// placeholder (for inputs), then sanitized inner text, then value.
func accessibleName(n *html.Node) string {
	if v := htmlnorm.Attr(n, "aria-label"); v != "" {
		return sanitize.Text(v)
	}
	if v := htmlnorm.Attr(n, "placeholder"); v != "" {
		return sanitize.Text(v)
	}
	if text := htmlnorm.TextContent(n); text != "" {
		return text
	}
	if v := htmlnorm.Attr(n, "value"); v != "" {
		return sanitize.Text(v)
	}
	return ""
}

func selectOptions(n *html.Node) []string {
	var opts []string
	var walk func(c *html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && c.Data == "option" {
			text := htmlnorm.TextContent(c)
			if text != "" {
				opts = append(opts, text)
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return opts
}

var dynamicTokenPattern = regexp.MustCompile(`\d{3,}|^[a-f0-9]{8,}$`)

// buildSelectorChain applies the aria-label → name → placeholder → data-* →
// id → class → role-first-match priority order.
func buildSelectorChain(n *html.Node, role, name string) model.SelectorChain {
	tag := n.Data
	css := ""
	switch {
	case htmlnorm.Attr(n, "aria-label") != "":
		css = fmt.Sprintf("%s[aria-label=%q]", tag, htmlnorm.Attr(n, "aria-label"))
	case htmlnorm.Attr(n, "name") != "":
		css = fmt.Sprintf("%s[name=%q]", tag, htmlnorm.Attr(n, "name"))
	case htmlnorm.Attr(n, "placeholder") != "":
		css = fmt.Sprintf("%s[placeholder=%q]", tag, htmlnorm.Attr(n, "placeholder"))
	default:
		css = dataAttrSelector(n, tag)
		if css == "" {
			if id := htmlnorm.Attr(n, "id"); id != "" && !dynamicTokenPattern.MatchString(id) {
				css = "#" + id
			} else if class := staticClass(htmlnorm.Attr(n, "class")); class != "" {
				css = tag + "." + class
			}
		}
	}
	return model.SelectorChain{
		RoleExactName:  fmt.Sprintf("role=%s[name=%q]", role, name),
		CSS:            css,
		RoleFirstMatch: fmt.Sprintf("role=%s >> nth=0", role),
	}
}

func dataAttrSelector(n *html.Node, tag string) string {
	for _, a := range n.Attr {
		if strings.HasPrefix(a.Key, "data-") && a.Val != "" && len(a.Val) < 50 && !dynamicTokenPattern.MatchString(a.Key) {
			return fmt.Sprintf("%s[%s=%q]", tag, a.Key, a.Val)
		}
	}
	return ""
}

func staticClass(classAttr string) string {
	for _, c := range strings.Fields(classAttr) {
		if !dynamicTokenPattern.MatchString(c) && len(c) < 40 {
			return c
		}
	}
	return ""
}

// applyListenerHits is tier 3: DOM nodes the driver reports as having click
// handlers are promoted to role=button with a best-effort name.
func applyListenerHits(root *html.Node, hits []model.ListenerHit, order *[]string, merged map[string]*candidate) {
	if len(hits) == 0 {
		return
	}
	byXPath := map[string]*html.Node{}
	indexXPaths(root, "", byXPath)

	for _, hit := range hits {
		if hit.Event != "click" {
			continue
		}
		n, ok := byXPath[hit.XPath]
		if !ok {
			continue
		}
		name := accessibleName(n)
		if name == "" {
			continue
		}
		addOrMerge(candidate{
			role:        "button",
			name:        name,
			affordances: []model.Affordance{model.AffordanceClick},
			selector:    buildSelectorChain(n, "button", name),
			parentXPath: xpathParent(hit.XPath),
		}, order, merged)
	}
}

func indexXPaths(n *html.Node, xpath string, out map[string]*html.Node) {
	if n.Type == html.ElementNode {
		xpath = xpath + "/" + n.Data
		out[xpath] = n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		indexXPaths(c, xpath, out)
	}
}

func xpathParent(xpath string) string {
	idx := strings.LastIndex(xpath, "/")
	if idx <= 0 {
		return ""
	}
	return xpath[:idx]
}

var paginationWords = regexp.MustCompile(`(?i)^(next|previous|prev|page \d+|menu|more|»|«)$`)
var primaryWords = regexp.MustCompile(`(?i)add to cart|buy now|checkout|submit|place order|subscribe|sign up|continue`)

// classifyBucket assigns the budget-aware priority class.
func classifyBucket(role, name string) model.Bucket {
	trimmed := strings.TrimSpace(name)
	switch {
	case role == "button" && primaryWords.MatchString(trimmed):
		return model.BucketPrimary
	case role == "gridcell" || role == "row":
		if trimmed == "" || isNumericOrdinal(trimmed) {
			return model.BucketTableNoise
		}
		return model.BucketNamed
	case paginationWords.MatchString(trimmed) || role == "tab":
		return model.BucketChrome
	case role == "textbox" || role == "searchbox" || role == "combobox" || role == "checkbox" || role == "radio" || role == "switch" || role == "slider":
		return model.BucketInputish
	case trimmed != "":
		return model.BucketNamed
	default:
		return model.BucketRest
	}
}

func isNumericOrdinal(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}
