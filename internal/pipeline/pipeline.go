// Package pipeline wires the core connectivity model (internal/hdl,
// internal/registry, internal/infer) to its external collaborators (the
// directory walker, internal/source, internal/sheet) the way spec.md §1
// and §6 describe: gen-sheet walks a directory and writes a workbook,
// from-sheet reads a workbook and emits a top module, from-file runs
// both in sequence. None of this orchestration is part of the core spec
// (spec.md §1 calls the directory walker an external collaborator); it
// exists so the CLI in cmd/topgen has something complete to call.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/lenslan/topgen/internal/config"
	"github.com/lenslan/topgen/internal/hdl"
	"github.com/lenslan/topgen/internal/hdlerr"
	"github.com/lenslan/topgen/internal/registry"
	"github.com/lenslan/topgen/internal/sheet"
	"github.com/lenslan/topgen/internal/source"
	"github.com/lenslan/topgen/internal/width"
)

// SheetPath returns the workbook path for topDir, per spec.md §6: "the
// sheet lives at <parent>/<dirname>.xlsx".
func SheetPath(topDir string) string {
	return siblingPath(topDir, ".xlsx")
}

// SourcePath returns the emitted top-module source path for topDir, per
// spec.md §6: "the emitted top source lives at <parent>/<dirname>.v".
func SourcePath(topDir string) string {
	return siblingPath(topDir, ".v")
}

func siblingPath(dir, ext string) string {
	parent := filepath.Dir(dir)
	name := filepath.Base(dir)
	return filepath.Join(parent, name+ext)
}

// GenSheet walks topDir (spec.md §6 directory convention: the directory
// name is the top module name, subdirectories are child modules that
// are themselves top modules recursively, a sibling <name>.v/.sv file
// next to a child subdirectory is that child's source) and writes the
// resulting workbook to SheetPath(topDir).
func GenSheet(cfg *config.Config, topDir string) error {
	ctx := hdl.NewContextWithConfig(cfg.InoutDualRegister())
	top, err := buildModuleTree(cfg, ctx, topDir)
	if err != nil {
		return err
	}

	top.SetDefaultInstanceName(cfg.InstancePrefix)
	synthesizeTopPorts(ctx, top)

	if errs := top.FinalCheck(ctx); len(errs) > 0 {
		for _, e := range errs {
			log.WithField("module", top.Name).Error(e)
		}
		if err := enforceStrictUnsolvable(cfg, top.Name, errs); err != nil {
			return err
		}
	}

	path := SheetPath(topDir)
	if err := sheet.New().Write(path, top); err != nil {
		return fmt.Errorf("gen-sheet %s: %w", topDir, err)
	}
	log.WithField("sheet", path).Info("wrote workbook")
	return nil
}

// buildModuleTree recursively discovers topDir's children: every
// subdirectory is a child module, sourced from the sibling .v/.sv file
// of the same base name living in topDir (spec.md §6), parsed by
// internal/source, wired to itself by default, and added as an
// instance. Subdirectories are visited in lexical order so repeated
// runs produce a stable instance ordering.
func buildModuleTree(cfg *config.Config, ctx *hdl.Context, topDir string) (*hdl.Module, error) {
	name := filepath.Base(topDir)
	top := hdl.NewModule(name)

	entries, err := os.ReadDir(topDir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", topDir, err)
	}

	var childDirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		childDir := filepath.Join(topDir, e.Name())
		if cfg.ShouldIgnoreFile(childDir) {
			log.WithField("dir", childDir).Debug("skipping ignored directory")
			continue
		}
		childDirs = append(childDirs, e.Name())
	}
	sort.Strings(childDirs)

	for _, childName := range childDirs {
		childDir := filepath.Join(topDir, childName)

		srcPath, ok := findSiblingSource(cfg, topDir, childName)
		if !ok {
			log.WithField("module", childName).Warn("no sibling source file found; skipping instance")
			continue
		}
		if cfg.ShouldIgnoreFile(srcPath) {
			log.WithField("file", srcPath).Debug("skipping ignored source file")
			continue
		}

		modules, err := source.New().ParseFile(srcPath)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", srcPath, err)
		}
		child := pickModule(modules, childName)
		if child == nil {
			log.WithField("file", srcPath).Warn("no module declaration found")
			continue
		}

		if hasSubdirectories(childDir) {
			// childDir is a top module of its own: its traversal starts
			// from an empty registry and collector, not this one's.
			if _, err := buildModuleTree(cfg, hdl.NewContextWithConfig(ctx.InoutDual), childDir); err != nil {
				return nil, err
			}
		}

		env := hdl.Environment(child.Parameters)
		if err := child.UpdateLiteralPorts(env); err != nil {
			return nil, fmt.Errorf("module %s: %w", child.Name, err)
		}
		child.SetDefaultInstanceName(cfg.InstancePrefix)
		if err := child.SetDefaultPortWires(ctx); err != nil {
			return nil, fmt.Errorf("module %s: %w", child.Name, err)
		}

		top.AddInstance(child)
	}

	return top, nil
}

func hasSubdirectories(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			return true
		}
	}
	return false
}

// findSiblingSource locates <parentDir>/<baseName>.<suffix> for every
// suffix cfg treats as source, preferring the first configured suffix
// that exists.
func findSiblingSource(cfg *config.Config, parentDir, baseName string) (string, bool) {
	for _, suffix := range cfg.SourceSuffixes {
		candidate := filepath.Join(parentDir, baseName+suffix)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// pickModule returns the parsed module named name, or the sole parsed
// module when there is exactly one, or the first one otherwise.
func pickModule(modules []*hdl.Module, name string) *hdl.Module {
	if len(modules) == 0 {
		return nil
	}
	for _, m := range modules {
		if m.Name == name {
			return m
		}
	}
	return modules[0]
}

// synthesizeTopPorts turns every leftover (undriven/unloaded) wire left
// in ctx.Reg after wiring every child instance into a top-level port,
// per spec.md §4.B's ListUnbalanced/§2 "leftover signals become
// top-level ports": an Undriven wire becomes an input, an Unloaded wire
// becomes an output.
func synthesizeTopPorts(ctx *hdl.Context, top *hdl.Module) {
	for _, u := range ctx.Reg.ListUnbalanced() {
		dir := hdl.DirOut
		if u.Direction == registry.DirectionInput {
			dir = hdl.DirIn
		}
		p := hdl.NewPort(dir, u.Name, width.Resolved(u.Width))
		p.RegisterAsWire(ctx)
		top.AddPort(p)
	}
	sort.Slice(top.Ports, func(i, j int) bool {
		return top.Ports[i].Inner.Name < top.Ports[j].Inner.Name
	})
}

// FromSheet reads the workbook at SheetPath(topDir) and writes the
// synthesizable top module to SourcePath(topDir), per spec.md §6.
func FromSheet(cfg *config.Config, topDir string) error {
	ctx := hdl.NewContextWithConfig(cfg.InoutDualRegister())
	sheetPath := SheetPath(topDir)

	top, err := sheet.New().Read(sheetPath, ctx)
	if err != nil {
		return fmt.Errorf("from-sheet %s: %w", topDir, err)
	}

	// Sheet rows already carry each port's signal bindings (populateSignals
	// registered them while reading); only the health check still needs to
	// run, never ConnectSelf, which would add a second, spurious binding.
	for _, inst := range top.Instances {
		for _, p := range inst.Inner.Ports {
			if err := p.Inner.CheckHealth(ctx); err != nil {
				return fmt.Errorf("instance %s: %w", inst.Inner.Name, err)
			}
		}
	}
	// The top module's own ports are the design's boundary: one with no
	// explicit fragment (a blank Wire-name cell) is its own wire, the same
	// RegisterAsWire treatment GenSheet gave it when synthesizing it from a
	// leftover registry entry — never an ordinary driver/load registration,
	// which would also emit a spurious internal `wire` declaration for it.
	for _, p := range top.Ports {
		if len(p.Inner.Signals) <= 1 {
			p.Inner.RegisterAsWire(ctx)
			continue
		}
		if err := p.Inner.CheckHealth(ctx); err != nil {
			return fmt.Errorf("module %s: %w", top.Name, err)
		}
	}

	if errs := top.FinalCheck(ctx); len(errs) > 0 {
		for _, e := range errs {
			log.WithField("module", top.Name).Error(e)
		}
		if err := enforceStrictUnsolvable(cfg, top.Name, errs); err != nil {
			return err
		}
	}

	lines := top.ToModuleText(ctx)
	outPath := SourcePath(topDir)
	if err := os.WriteFile(outPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	log.WithField("source", outPath).Info("wrote module")
	return nil
}

// FromFile runs GenSheet followed by FromSheet, per spec.md §6's
// `from-file` subcommand.
func FromFile(cfg *config.Config, topDir string) error {
	if err := GenSheet(cfg, topDir); err != nil {
		return err
	}
	return FromSheet(cfg, topDir)
}

// enforceStrictUnsolvable turns an Unsolvable error found among errs
// into a fatal one when cfg.Inference.StrictUnsolvable is set, instead
// of leaving it as a logged-and-continue warning.
func enforceStrictUnsolvable(cfg *config.Config, topName string, errs []error) error {
	if !cfg.Inference.StrictUnsolvable {
		return nil
	}
	for _, e := range errs {
		var uns *hdlerr.Unsolvable
		if errors.As(e, &uns) {
			return fmt.Errorf("module %s: %w", topName, uns)
		}
	}
	return nil
}
