// Package source implements the source-file adapter of spec.md §4.H: it
// lowers a Verilog/SystemVerilog module declaration into an *hdl.Module,
// extracting parameters and ports from both ANSI and non-ANSI port-list
// styles. Mirrors the teacher's internal/extractor: a tree-sitter grammar
// walk is attempted first, falling back to the regex-based extraction the
// teacher itself uses when no language is loaded.
package source

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	log "github.com/sirupsen/logrus"
	tree_sitter_verilog "github.com/tree-sitter-grammars/tree-sitter-verilog/bindings/go"

	"github.com/lenslan/topgen/internal/hdl"
	"github.com/lenslan/topgen/internal/width"
)

// Adapter extracts module declarations out of Verilog/SystemVerilog source
// text.
type Adapter struct {
	lang *sitter.Language
}

// New loads the Verilog grammar, the same way the teacher's extractor
// loads its VHDL grammar in New().
func New() (a *Adapter) {
	defer func() {
		// a grammar ABI mismatch panics inside the cgo binding; degrade to
		// the regex fallback rather than taking the whole process down.
		if recover() != nil {
			a = &Adapter{}
		}
	}()
	lang := sitter.NewLanguage(tree_sitter_verilog.Language())
	return &Adapter{lang: lang}
}

// ParseFile reads path and returns every module declaration it contains.
func (a *Adapter) ParseFile(path string) ([]*hdl.Module, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return a.Parse(path, content)
}

// Parse extracts every module declaration from content. name is used only
// for diagnostics. Falls back to regexExtract when no grammar is loaded or
// the grammar walk finds no module_declaration nodes — the same
// grammar-then-regex-fallback shape the teacher's Extract/extractSimple
// pair uses.
func (a *Adapter) Parse(name string, content []byte) ([]*hdl.Module, error) {
	if a.lang == nil {
		return regexExtract(content)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(a.lang)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		log.WithField("file", name).Warn("tree-sitter parse failed, falling back to regex extraction")
		return regexExtract(content)
	}
	defer tree.Close()

	modules := a.walkTree(tree.RootNode(), content)
	if len(modules) == 0 {
		return regexExtract(content)
	}
	return modules, nil
}

func (a *Adapter) walkTree(node *sitter.Node, source []byte) []*hdl.Module {
	var modules []*hdl.Module
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if strings.Contains(n.Type(), "module_declaration") {
			if m := a.extractModule(n, source); m != nil {
				modules = append(modules, m)
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return modules
}

func (a *Adapter) extractModule(node *sitter.Node, source []byte) *hdl.Module {
	text := nodeText(node, source)
	return lowerModuleText(text)
}

func nodeText(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(source)
}

// --- regex-based extraction, grounded in the teacher's extractSimple fallback ---

var (
	moduleHeaderRE = regexp.MustCompile(`(?s)\bmodule\s+([A-Za-z_]\w*)\s*(#\s*\((.*?)\))?\s*\((.*?)\)\s*;`)
	endmoduleRE    = regexp.MustCompile(`\bendmodule\b`)
	bodyParamRE    = regexp.MustCompile(`(?m)\b(?:parameter|localparam)\s+([^;]+);`)
)

// regexExtract splits source into per-module chunks by "module ... (
// ... ) ; ... endmodule" and lowers each with lowerModuleText, the same
// line-oriented-pattern idiom the teacher's extractSimple uses for VHDL.
func regexExtract(content []byte) ([]*hdl.Module, error) {
	text := string(content)
	var modules []*hdl.Module
	searchFrom := 0
	for {
		loc := moduleHeaderRE.FindStringSubmatchIndex(text[searchFrom:])
		if loc == nil {
			break
		}
		headerStart := searchFrom
		endLoc := endmoduleRE.FindStringIndex(text[searchFrom+loc[1]:])
		chunkEnd := len(text)
		if endLoc != nil {
			chunkEnd = searchFrom + loc[1] + endLoc[1]
		}
		chunk := text[headerStart : chunkEnd]
		if m := lowerModuleText(chunk); m != nil {
			modules = append(modules, m)
		}
		if endLoc == nil {
			break
		}
		searchFrom = chunkEnd
	}
	return modules, nil
}

// lowerModuleText parses one module's textual declaration (header through
// its port list; body beyond the port list is ignored, per spec.md §4.H)
// into an *hdl.Module.
func lowerModuleText(text string) *hdl.Module {
	m := moduleHeaderRE.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	name := m[1]
	paramBlock := m[3]
	portBlock := m[4]

	mod := hdl.NewModule(name)

	env := map[string]int{}
	addParam := func(decl string) {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			return
		}
		p, ok := lowerParameter(decl, env)
		if !ok {
			return
		}
		mod.AddParameterList([]hdl.Parameter{p})
		env[p.Name] = p.Value.Resolve(mod.Parameters)
	}
	for _, decl := range splitTopLevel(paramBlock) {
		addParam(decl)
	}
	// non-ANSI (and some ANSI) modules declare parameters as separate
	// body statements instead of inside the #(...) header list. Only the
	// text after the header is scanned, so header parameters aren't added
	// a second time.
	body := text[strings.Index(text, m[0])+len(m[0]):]
	for _, bm := range bodyParamRE.FindAllStringSubmatch(body, -1) {
		for _, decl := range splitTopLevel(bm[1]) {
			addParam(decl)
		}
	}

	ports := lowerPortList(portBlock, text)
	for _, p := range ports {
		mod.AddPort(p)
	}

	return mod
}

// lowerParameter lowers "[parameter|localparam] [type] NAME = EXPR" into an
// hdl.Parameter. A bare identifier EXPR that names an earlier parameter
// becomes a ReferenceValue; anything else is evaluated with the same
// width-expression calculator ports use, matching spec.md §4.H's "identifiers
// become Symbolic, literals become Resolved" rule lifted to parameter values.
func lowerParameter(decl string, env map[string]int) (hdl.Parameter, bool) {
	decl = strings.TrimPrefix(decl, "parameter")
	decl = strings.TrimPrefix(decl, "localparam")
	decl = strings.TrimSpace(decl)
	// drop an optional type/packed-dimension token ("integer NAME = ...",
	// "[7:0] NAME = ...") by keeping only the text from the last run of
	// whitespace before "=" backwards to the identifier itself.
	eq := strings.Index(decl, "=")
	if eq < 0 {
		return hdl.Parameter{}, false
	}
	lhs := strings.TrimSpace(decl[:eq])
	rhs := strings.TrimSpace(decl[eq+1:])
	fields := strings.Fields(lhs)
	if len(fields) == 0 {
		return hdl.Parameter{}, false
	}
	name := fields[len(fields)-1]
	if !identifierRE.MatchString(name) {
		return hdl.Parameter{}, false
	}

	if identifierRE.MatchString(rhs) {
		if _, ok := env[rhs]; ok {
			return hdl.Parameter{Name: name, Value: hdl.ReferenceValue(rhs)}, true
		}
	}

	n, err := lowerConstantInt(rhs, env)
	if err != nil {
		log.WithField("parameter", name).Warnf("unsupported parameter expression %q: %v", rhs, err)
		return hdl.Parameter{Name: name, Value: hdl.LiteralValue(0)}, true
	}
	return hdl.Parameter{Name: name, Value: hdl.LiteralValue(n)}, true
}

var identifierRE = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// lowerConstantInt evaluates a literal/arithmetic constant expression
// against env, reusing width's expression evaluator so "W + 4"-style
// parameter values resolve the same way port-width expressions do.
func lowerConstantInt(expr string, env map[string]int) (int, error) {
	if n, ok := parseSizedLiteral(expr); ok {
		return n, nil
	}
	evaluated, err := width.Evaluate(width.Symbolic(expr), env)
	if err != nil {
		return 0, err
	}
	return evaluated.N(), nil
}

var sizedLiteralRE = regexp.MustCompile(`^(\d+)?'([bodh])([0-9a-fA-F_]+)$`)

func parseSizedLiteral(s string) (int, bool) {
	m := sizedLiteralRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	digits := strings.ReplaceAll(m[3], "_", "")
	radix := 10
	switch m[2] {
	case "b":
		radix = 2
	case "o":
		radix = 8
	case "h":
		radix = 16
	case "d":
		radix = 10
	}
	n, err := strconv.ParseInt(digits, radix, 64)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

var (
	dirKeywordRE   = regexp.MustCompile(`^(input|output|inout)\b`)
	bracketRangeRE = regexp.MustCompile(`\[([^\]]+):([^\]]+)\]`)
	minusOneRE     = regexp.MustCompile(`^(.+?)\s*-\s*1$`)
)

// lowerPortList lowers a module's port list. When any entry in portBlock
// itself carries a direction keyword, the list is ANSI-style and fully
// self-describing; otherwise it is a bare identifier list and the
// directions/widths are found by scanning body for matching
// input/output/inout declarations, per spec.md §4.H.
func lowerPortList(portBlock, fullText string) []*hdl.Port {
	entries := splitTopLevel(portBlock)
	ansi := false
	for _, e := range entries {
		if dirKeywordRE.MatchString(strings.TrimSpace(e)) {
			ansi = true
			break
		}
	}

	if ansi {
		var ports []*hdl.Port
		var lastDir, lastWidth string
		for _, e := range entries {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			dir, w, name, ok := lowerAnsiPortEntry(e, lastDir, lastWidth)
			if !ok {
				continue
			}
			lastDir, lastWidth = dir, w
			ports = append(ports, hdl.NewPort(directionOf(dir), name, lowerWidthBrackets(w)))
		}
		return ports
	}

	return lowerNonAnsiPorts(entries, fullText)
}

// lowerAnsiPortEntry lowers one ANSI port-list entry. An entry without a
// direction keyword repeats the previous entry's direction and width, per
// Verilog's carry-forward rule for comma-separated port declarations; an
// entry with its own direction keyword starts a new declaration.
func lowerAnsiPortEntry(entry, lastDir, lastWidth string) (dir, w, name string, ok bool) {
	fields := strings.Fields(entry)
	if len(fields) == 0 {
		return "", "", "", false
	}

	dir = lastDir
	widthText := lastWidth
	i := 0
	if dirKeywordRE.MatchString(fields[0]) {
		dir = fields[0]
		widthText = ""
		i++
	}
	if i < len(fields) && (fields[i] == "wire" || fields[i] == "reg" || fields[i] == "logic") {
		i++
	}
	if i < len(fields) {
		// collapse any remaining fields that form a bracketed range back
		// into one token before looking at the tail.
		rest := strings.Join(fields[i:], " ")
		if m := bracketRangeRE.FindStringIndex(rest); m != nil && m[0] == 0 {
			widthText = rest[m[0]:m[1]]
			rest = strings.TrimSpace(rest[m[1]:])
		}
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return "", "", "", false
		}
		name = strings.Fields(rest)[0]
	}
	if dir == "" || name == "" {
		return "", "", "", false
	}
	return dir, widthText, name, true
}

// lowerNonAnsiPorts handles "module M(a, b, c); input wire [7:0] a; ..."
// style: the port-list entries are bare names, and fullText's body carries
// a separate direction declaration for each.
func lowerNonAnsiPorts(entries []string, fullText string) []*hdl.Port {
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e != "" {
			order = append(order, e)
		}
	}

	decls := map[string]*hdl.Port{}
	declRE := regexp.MustCompile(`(?m)\b(input|output|inout)\s+(wire\s+|reg\s+|logic\s+)?(\[[^\]]+\])?\s*([A-Za-z_]\w*(?:\s*,\s*[A-Za-z_]\w*)*)\s*;`)
	for _, m := range declRE.FindAllStringSubmatch(fullText, -1) {
		dir := m[1]
		widthText := strings.TrimSpace(m[3])
		names := strings.Split(m[4], ",")
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			w := width.Resolved(1)
			if widthText != "" {
				w = lowerWidthBrackets(widthText)
			}
			decls[n] = hdl.NewPort(directionOf(dir), n, w)
		}
	}

	var ports []*hdl.Port
	for _, name := range order {
		if p, ok := decls[name]; ok {
			ports = append(ports, p)
		} else {
			log.WithField("port", name).Warn("non-ANSI port has no matching direction declaration")
		}
	}
	return ports
}

func directionOf(s string) hdl.Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input":
		return hdl.DirIn
	case "output":
		return hdl.DirOut
	case "inout":
		return hdl.DirInOut
	default:
		return hdl.DirUnknown
	}
}

// lowerWidthBrackets lowers a "[hi:lo]" bracket into the bit-count Width a
// Port expects: "[H:0]" with an integer H becomes Resolved(H+1); the
// idiomatic "[N-1:0]" form collapses to Symbolic("N") so ToPortDecl's
// BracketRange rendering ("N-1:0") reproduces the original text; any other
// "[hi:0]" becomes Symbolic("hi + 1"), and any other bound pair falls back
// to a generic "(hi) - (lo) + 1" expression.
func lowerWidthBrackets(bracket string) width.Width {
	bracket = strings.TrimSpace(bracket)
	if bracket == "" {
		return width.Resolved(1)
	}
	m := bracketRangeRE.FindStringSubmatch(bracket)
	if m == nil {
		return width.Symbolic(bracket)
	}
	hi := strings.TrimSpace(m[1])
	lo := strings.TrimSpace(m[2])

	if lo == "0" {
		if n, err := strconv.Atoi(hi); err == nil {
			return width.Resolved(n + 1)
		}
		if m := minusOneRE.FindStringSubmatch(hi); m != nil {
			return width.Symbolic(strings.TrimSpace(m[1]))
		}
		return width.Symbolic(fmt.Sprintf("%s + 1", hi))
	}
	return width.Symbolic(fmt.Sprintf("(%s) - (%s) + 1", hi, lo))
}

// splitTopLevel splits a comma list while ignoring commas nested inside
// parentheses or brackets (default-value expressions, packed dimensions).
func splitTopLevel(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}
