package hdl

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Module is a named collection of parameters, ports, and child
// instances (spec.md §3, §4.E). Instances are shared, mutable pointers
// so the same child definition can be re-evaluated in place once a
// parameter environment becomes available.
type Module struct {
	Name         string
	InstanceName string
	Parameters   []Parameter
	Ports        []Wrap[*Port]
	Instances    []Wrap[*Module]
}

// NewModule returns an empty module named name.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// AddPort appends a single unguarded port.
func (m *Module) AddPort(p *Port) {
	m.Ports = append(m.Ports, Raw(p))
}

// AddGuardedPort appends a port wrapped in the given guard names.
func (m *Module) AddGuardedPort(p *Port, guards []string) {
	m.Ports = append(m.Ports, WithGuards(p, guards))
}

// AddPorts appends every port in ps, unguarded.
func (m *Module) AddPorts(ps []*Port) {
	for _, p := range ps {
		m.AddPort(p)
	}
}

// AddParameterList appends params to the module's parameter list.
func (m *Module) AddParameterList(params []Parameter) {
	m.Parameters = append(m.Parameters, params...)
}

// AddInstance appends an unguarded child instance.
func (m *Module) AddInstance(child *Module) {
	m.Instances = append(m.Instances, Raw(child))
}

// AddGuardedInstance appends a child instance wrapped in guards.
func (m *Module) AddGuardedInstance(child *Module, guards []string) {
	m.Instances = append(m.Instances, WithGuards(child, guards))
}

// FindInstanceByModuleName returns the first instance whose underlying
// module name matches, or nil.
func (m *Module) FindInstanceByModuleName(name string) *Module {
	for _, inst := range m.Instances {
		if inst.Inner.Name == name {
			return inst.Inner
		}
	}
	return nil
}

// SetDefaultInstanceName assigns prefix + module name when no instance
// name has been supplied yet. An empty prefix falls back to "u_", the
// convention spec.md §4.E describes.
func (m *Module) SetDefaultInstanceName(prefix string) {
	if prefix == "" {
		prefix = "u_"
	}
	if m.InstanceName == "" {
		m.InstanceName = prefix + m.Name
	}
}

// SetDefaultPortWires connects every port to itself and runs its
// health check, the default top-level wiring spec.md §4.E describes.
func (m *Module) SetDefaultPortWires(ctx *Context) error {
	for _, p := range m.Ports {
		p.Inner.ConnectSelf()
		if err := p.Inner.CheckHealth(ctx); err != nil {
			return fmt.Errorf("module %s: %w", m.Name, err)
		}
	}
	return nil
}

func portKey(p Wrap[*Port]) string {
	return p.Inner.key()
}

func instanceKey(inst Wrap[*Module]) string {
	return inst.Inner.Name
}

// DiffPortsWith returns the ports present in other but not in m, keyed
// by (direction, name, width) equality.
func (m *Module) DiffPortsWith(other *Module) []Wrap[*Port] {
	return diffRows(m.Ports, other.Ports, portKey)
}

// SamePortsWith returns the ports of other that also exist in m, under
// the same equality key.
func (m *Module) SamePortsWith(other *Module) []Wrap[*Port] {
	return sameRows(m.Ports, other.Ports, portKey)
}

// DiffInstancesWith returns the instances present in other but not in
// m, keyed by instantiated module name.
func (m *Module) DiffInstancesWith(other *Module) []Wrap[*Module] {
	return diffRows(m.Instances, other.Instances, instanceKey)
}

// UpdateLiteralPorts propagates a parameter environment into every
// port's width.
func (m *Module) UpdateLiteralPorts(params map[string]int) error {
	for _, p := range m.Ports {
		if err := p.Inner.UpdateLiteralWidth(params); err != nil {
			return err
		}
	}
	return nil
}

// FinalCheck runs the module's close-out sequence: if the inference
// collector has pending unknowns, solve once, then re-run every
// instance's ports' health checks so resolved fragments propagate, then
// run the wire registry's health check.
func (m *Module) FinalCheck(ctx *Context) []error {
	var errs []error
	if ctx.Infer.Pending() {
		if err := ctx.Infer.Solve(); err != nil {
			log.WithField("module", m.Name).Error(err)
			errs = append(errs, err)
		}
	}
	for _, inst := range m.Instances {
		for _, p := range inst.Inner.Ports {
			if err := p.Inner.CheckHealth(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	errs = append(errs, ctx.Reg.Check()...)
	return errs
}

// ToInstText emits `MODULE #(.P(V), …) u_INST (\n  .port(sig),\n  …\n);`,
// eliding the parameter block when the module has none.
func (m *Module) ToInstText() []string {
	return Raw(m).Render(renderInstText)
}

func renderInstText(m *Module) []string {
	var lines []string
	header := fmt.Sprintf("%s ", m.Name)
	if len(m.Parameters) > 0 {
		parts := make([]string, len(m.Parameters))
		for i, pr := range m.Parameters {
			parts[i] = fmt.Sprintf(".%s(%d)", pr.Name, pr.Value.Resolve(m.Parameters))
		}
		header += fmt.Sprintf("#(%s) ", strings.Join(parts, ", "))
	}
	header += fmt.Sprintf("%s (", m.InstanceName)
	lines = append(lines, header)
	for i, p := range m.Ports {
		isLast := i == len(m.Ports)-1
		for _, l := range p.Render(func(port *Port) []string {
			return []string{port.ToInstBinding(isLast)}
		}) {
			lines = append(lines, "    "+l)
		}
	}
	lines = append(lines, ");")
	return lines
}

// ToModuleText emits the full module body: port declarations, internal
// wire declarations (from the wire registry), assign lines, child
// instances, and `endmodule`.
func (m *Module) ToModuleText(ctx *Context) []string {
	var lines []string
	lines = append(lines, fmt.Sprintf("module %s (", m.Name))
	for i, p := range m.Ports {
		isLast := i == len(m.Ports)-1
		for _, l := range p.Render(func(port *Port) []string {
			return []string{port.ToPortDecl(isLast)}
		}) {
			lines = append(lines, "    "+l)
		}
	}
	lines = append(lines, ");")

	for _, wire := range ctx.Reg.ListInternalWires() {
		if wire.Width == 1 {
			lines = append(lines, fmt.Sprintf("  wire %s;", wire.Name))
		} else {
			lines = append(lines, fmt.Sprintf("  wire [%d:0] %s;", wire.Width-1, wire.Name))
		}
	}

	for _, p := range m.Ports {
		if line, ok := p.Inner.ToAssignLine(); ok {
			lines = append(lines, "  "+line)
		}
	}

	for _, inst := range m.Instances {
		instLines := inst.Render(func(child *Module) []string {
			return child.ToInstText()
		})
		for _, l := range instLines {
			lines = append(lines, "  "+l)
		}
		lines = append(lines, "")
	}

	lines = append(lines, "endmodule")
	return lines
}
