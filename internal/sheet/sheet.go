// Package sheet implements the spreadsheet adapter of spec.md §4.G: it
// translates between a workbook's rows/columns and the module/port
// objects internal/hdl defines. One worksheet per module — the first
// sheet is the top module, subsequent sheets are its direct child
// instances — bit-exact on column positions and header literals per
// spec.md §4.G/§6, including the "Assing-Logic" spelling.
package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lenslan/topgen/internal/hdl"
	"github.com/lenslan/topgen/internal/hdlerr"
	"github.com/lenslan/topgen/internal/width"
)

// Header literals, bit-exact per spec.md §4.G/§6.
const (
	rowModuleInstName = 0
	rowParameterLabel = 1

	colLabel = 0
	colValue = 1

	headerPortName    = "Port-name"
	headerInOut       = "InOut"
	headerWidth       = "Width"
	headerWireName    = "Wire-name"
	headerPortComment = "Port-comment"
	headerGuardName   = "Guard-name"

	assignLogicHeader = "Assing-Logic"
)

var identifierRE = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// Adapter reads and writes topgen workbooks.
type Adapter struct{}

// New returns a spreadsheet adapter.
func New() *Adapter { return &Adapter{} }

// Write emits one worksheet for top and one per direct child instance,
// in that order, to path.
func (a *Adapter) Write(path string, top *hdl.Module) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(top.Name); err != nil {
		return fmt.Errorf("creating sheet for top module %s: %w", top.Name, err)
	}
	if err := a.writeModuleSheet(f, top.Name, top.InstanceName, top.Parameters, top.Ports); err != nil {
		return fmt.Errorf("writing top sheet %s: %w", top.Name, err)
	}

	for _, inst := range top.Instances {
		child := inst.Inner
		// The sheet name carries the module name (Read takes it back as
		// such); the instance name lives in row 0.
		sheetName := child.Name
		if _, err := f.NewSheet(sheetName); err != nil {
			return fmt.Errorf("creating sheet for instance %s: %w", sheetName, err)
		}
		if err := a.writeModuleSheet(f, sheetName, child.InstanceName, child.Parameters, child.Ports); err != nil {
			return fmt.Errorf("writing sheet %s: %w", sheetName, err)
		}
	}

	// excelize starts every new workbook with a default "Sheet1"; drop it
	// once our own sheets exist.
	if top.Name != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	return f.SaveAs(path)
}

func (a *Adapter) writeModuleSheet(f *excelize.File, sheetName, instanceName string, params []hdl.Parameter, ports []hdl.Wrap[*hdl.Port]) error {
	setCell(f, sheetName, colLabel, rowModuleInstName, "Module Inst Name")
	setCell(f, sheetName, colValue, rowModuleInstName, instanceName)

	setCell(f, sheetName, colLabel, rowParameterLabel, "Parameter:")

	row := rowParameterLabel + 1
	for _, p := range params {
		setCell(f, sheetName, colLabel, row, p.Name)
		setCell(f, sheetName, colValue, row, p.Value.Resolve(params))
		row++
	}

	headerRow := row
	headers := []string{headerPortName, headerInOut, headerWidth, headerWireName, headerPortComment, headerGuardName}
	for col, h := range headers {
		setCell(f, sheetName, col, headerRow, h)
	}

	portRow := headerRow + 1
	for _, wp := range ports {
		p := wp.Inner
		setCell(f, sheetName, 0, portRow, p.Name)
		setCell(f, sheetName, 1, portRow, p.Dir.String())
		setCell(f, sheetName, 2, portRow, p.Width.N())
		setCell(f, sheetName, 3, portRow, stripBraces(p.GetSignalString()))
		setCell(f, sheetName, 4, portRow, p.Info)
		setCell(f, sheetName, 5, portRow, strings.Join(wp.Guards(), ", "))
		portRow++
	}

	setCell(f, sheetName, 0, portRow, assignLogicHeader)

	topLeft, err := excelize.CoordinatesToCellName(1, headerRow+2)
	if err != nil {
		return err
	}
	return f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		Split:       false,
		XSplit:      0,
		YSplit:      headerRow + 1,
		TopLeftCell: topLeft,
		ActivePane:  "bottomLeft",
	})
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return
	}
	_ = f.SetCellValue(sheet, cell, value)
}

// stripBraces removes the outer "{" "}" of a concatenation rendering,
// leaving the bare fragment list spec.md §4.G's "signal string with
// braces stripped" describes; a non-concatenation string passes through
// unchanged.
func stripBraces(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s[1 : len(s)-1]
	}
	return s
}

// Read loads a workbook: the first sheet becomes the returned top
// module, every later sheet becomes one of its child instances (added
// unguarded; per-instance guard wrapping is not sheet-representable,
// only per-port guards are, per spec.md §4.G).
func (a *Adapter) Read(path string, ctx *hdl.Context) (*hdl.Module, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	top, err := a.readModuleSheet(f, sheets[0], sheets[0], ctx)
	if err != nil {
		return nil, err
	}

	for _, name := range sheets[1:] {
		child, err := a.readModuleSheet(f, name, name, ctx)
		if err != nil {
			return nil, err
		}
		top.AddInstance(child)
	}

	return top, nil
}

func (a *Adapter) readModuleSheet(f *excelize.File, sheetName, moduleName string, ctx *hdl.Context) (*hdl.Module, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheetName, err)
	}

	m := hdl.NewModule(moduleName)
	if len(rows) > rowModuleInstName {
		m.InstanceName = cellAt(rows, rowModuleInstName, colValue)
	}

	row := rowParameterLabel + 1
	for row < len(rows) {
		label := cellAt(rows, row, colLabel)
		if label == headerPortName || label == "" {
			break
		}
		if !identifierRE.MatchString(label) {
			return nil, &hdlerr.IllegalIdentifier{Token: label}
		}
		value, err := strconv.Atoi(cellAt(rows, row, colValue))
		if err != nil {
			return nil, fmt.Errorf("sheet %s parameter %s: %w", sheetName, label, err)
		}
		m.AddParameterList([]hdl.Parameter{{Name: label, Value: hdl.LiteralValue(value)}})
		row++
	}

	// row now sits on the header row (or ran off the end of the sheet).
	row++
	for row < len(rows) {
		name := cellAt(rows, row, 0)
		if name == "" || name == assignLogicHeader {
			break
		}
		if !identifierRE.MatchString(name) {
			return nil, &hdlerr.IllegalIdentifier{Token: name}
		}
		dir := parseDirection(cellAt(rows, row, 1))
		w, err := strconv.Atoi(cellAt(rows, row, 2))
		if err != nil {
			return nil, fmt.Errorf("sheet %s port %s: %w", sheetName, name, err)
		}
		info := cellAt(rows, row, 4)
		guards := splitGuards(cellAt(rows, row, 5))

		p := hdl.NewPort(dir, name, width.Resolved(w))
		p.Info = info
		if err := populateSignals(p, ctx, cellAt(rows, row, 3)); err != nil {
			return nil, fmt.Errorf("sheet %s port %s: %w", sheetName, name, err)
		}

		if len(guards) > 0 {
			m.AddGuardedPort(p, guards)
		} else {
			m.AddPort(p)
		}
		row++
	}

	return m, nil
}

func cellAt(rows [][]string, row, col int) string {
	if row < 0 || row >= len(rows) {
		return ""
	}
	if col < 0 || col >= len(rows[row]) {
		return ""
	}
	return strings.TrimSpace(rows[row][col])
}

func parseDirection(s string) hdl.Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input", "in":
		return hdl.DirIn
	case "output", "out":
		return hdl.DirOut
	case "inout":
		return hdl.DirInOut
	default:
		return hdl.DirUnknown
	}
}

func splitGuards(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Token regexes for a signal-name cell, matched in this order (spec.md
// §4.G): a sliced wire reference, a sized numeric literal, or a bare
// name.
var (
	slicedTokenRE = regexp.MustCompile(`^([A-Za-z_]\w*)\[(\d+)(?::(\d+))?\]$`)
	literalTokenRE = regexp.MustCompile(`^(\d+)'([bodh])([0-9a-fA-F]+)$`)
	bareTokenRE    = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// populateSignals tokenizes a signal-name cell by "," whitespace, and
// newlines, classifies each token, and appends the resulting fragment
// to p, registering wires as it goes.
func populateSignals(p *hdl.Port, ctx *hdl.Context, cell string) error {
	tokens := tokenizeSignalCell(cell)
	for _, tok := range tokens {
		switch {
		case slicedTokenRE.MatchString(tok):
			m := slicedTokenRE.FindStringSubmatch(tok)
			hi, _ := strconv.Atoi(m[2])
			lo := hi
			if m[3] != "" {
				lo, _ = strconv.Atoi(m[3])
			}
			if lo > hi {
				lo, hi = hi, lo
			}
			p.AddSliced(ctx, m[1], lo, hi+1)
		case literalTokenRE.MatchString(tok):
			m := literalTokenRE.FindStringSubmatch(tok)
			bits, _ := strconv.Atoi(m[1])
			radix := radixOf(m[2])
			value, err := strconv.ParseUint(m[3], radix, 64)
			if err != nil {
				return fmt.Errorf("bad sized literal %q: %w", tok, err)
			}
			p.AddLiteral(value, bits)
		case bareTokenRE.MatchString(tok):
			p.AddUndefined(tok)
		default:
			return &hdlerr.IllegalIdentifier{Token: tok}
		}
	}
	return nil
}

func radixOf(r string) int {
	switch r {
	case "b":
		return 2
	case "o":
		return 8
	case "d":
		return 10
	case "h":
		return 16
	default:
		return 10
	}
}

func tokenizeSignalCell(cell string) []string {
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == '\t' || r == ' '
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
