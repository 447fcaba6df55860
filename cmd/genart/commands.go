package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"math/rand/v2"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/genart"
	"github.com/gogpu/genart/sheet"
	"github.com/gogpu/genart/store"
)

// printer formats counts with digit grouping.
var printer = message.NewPrinter(language.English)

// formulaFlags are the flags every command that reads a formula accepts.
type formulaFlags struct {
	code *string
	gimp *string
}

func addFormulaFlags(fs *flag.FlagSet) formulaFlags {
	return formulaFlags{
		code: fs.String("code", "", "formula share code"),
		gimp: fs.String("gimp", "", "path of a 288-byte binary formula"),
	}
}

// load returns the formula named by exactly one of -code and -gimp.
func (ff formulaFlags) load() (genart.Formula, error) {
	switch {
	case *ff.code != "" && *ff.gimp != "":
		return genart.Formula{}, errors.New("use only one of -code and -gimp")
	case *ff.code != "":
		return genart.DecodeShareCode(strings.TrimSpace(*ff.code))
	case *ff.gimp != "":
		b, err := os.ReadFile(*ff.gimp)
		if err != nil {
			return genart.Formula{}, err
		}
		return genart.UnmarshalGimp(b)
	}
	return genart.Formula{}, errors.New("a formula is required: pass -code or -gimp")
}

// newRand returns a seeded source, or nil for the global source when seed
// is zero.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (a *app) printCode(f genart.Formula) error {
	code, err := genart.EncodeShareCode(f)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, code)
	return nil
}

func (a *app) random(fs *flag.FlagSet, args []string) error {
	seed := fs.Uint64("seed", 0, "random seed (0 for a random one)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	return a.printCode(genart.RandomFormula(newRand(*seed)))
}

func (a *app) mutate(fs *flag.FlagSet, args []string) error {
	ff := addFormulaFlags(fs)
	n := fs.Int("n", 1, "number of mutants")
	seed := fs.Uint64("seed", 0, "random seed (0 for a random one)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	base, err := ff.load()
	if err != nil {
		return err
	}
	rng := newRand(*seed)
	for range max(*n, 1) {
		if err := a.printCode(genart.Mutate(base, rng)); err != nil {
			return err
		}
	}
	return nil
}

// renderFlags configure the renderer.
type renderFlags struct {
	oversampling *int
	workers      *int
	cpu          *bool
}

func addRenderFlags(fs *flag.FlagSet) renderFlags {
	return renderFlags{
		oversampling: fs.Int("k", 1, "oversampling: k x k samples per pixel"),
		workers:      fs.Int("workers", 0, "render goroutines (0 for GOMAXPROCS)"),
		cpu:          fs.Bool("cpu", false, "render on the CPU even if a GPU is available"),
	}
}

func (rf renderFlags) renderer() *genart.Renderer {
	opts := []genart.RenderOption{
		genart.WithOversampling(*rf.oversampling),
		genart.WithWorkers(*rf.workers),
	}
	if *rf.cpu {
		opts = append(opts, genart.WithoutAccelerator())
	} else if err := enableGPU(); err != nil {
		genart.Logger().Warn("GPU not available", "err", err)
	}
	return genart.NewRenderer(opts...)
}

func (a *app) render(fs *flag.FlagSet, args []string) error {
	ff := addFormulaFlags(fs)
	rf := addRenderFlags(fs)
	width := fs.Int("width", 512, "image width")
	height := fs.Int("height", 512, "image height")
	output := fs.String("o", "genart.png", "output PNG file")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	f, err := ff.load()
	if err != nil {
		return err
	}

	r := rf.renderer()
	defer r.Close()

	p := genart.Compile(f)
	pm, err := r.Render(a.ctx, p, *width, *height)
	if err != nil {
		return err
	}
	if err := pm.SavePNG(*output); err != nil {
		return err
	}
	pixels := *width * *height
	k := r.Oversampling()
	live := p.Liveness()
	printer.Fprintf(a.stdout, "%s: %d pixels, %d samples, %d live steps\n",
		*output, pixels, pixels*k*k, live.LiveCount())
	return nil
}

func (a *app) export(fs *flag.FlagSet, args []string) error {
	ff := addFormulaFlags(fs)
	output := fs.String("o", "formula.gimp", "output file")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	f, err := ff.load()
	if err != nil {
		return err
	}
	return os.WriteFile(*output, genart.MarshalGimp(f), 0o644)
}

func (a *app) importGimp(fs *flag.FlagSet, args []string) error {
	ff := addFormulaFlags(fs)
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if *ff.gimp == "" && fs.NArg() == 1 {
		*ff.gimp = fs.Arg(0)
	}
	f, err := ff.load()
	if err != nil {
		return err
	}
	return a.printCode(f)
}

func (a *app) sheet(fs *flag.FlagSet, args []string) error {
	ff := addFormulaFlags(fs)
	rf := addRenderFlags(fs)
	n := fs.Int("n", genart.DefaultPreviewCount, "number of mutants")
	cols := fs.Int("cols", sheet.DefaultColumns, "cells per row")
	cell := fs.Int("cell", sheet.DefaultCellSize, "cell size in pixels")
	seed := fs.Uint64("seed", 0, "random seed (0 for a random one)")
	output := fs.String("o", "sheet.png", "output PNG file")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	f, err := ff.load()
	if err != nil {
		return err
	}

	s := genart.NewSession(genart.WithRand(newRand(*seed)), genart.WithPreviewCount(*n))
	s.SetCurrent(f)
	previews := s.Previews()

	r := rf.renderer()
	defer r.Close()

	img, err := sheet.Render(a.ctx, r, previews, sheet.Options{Columns: *cols, CellSize: *cell})
	if err != nil {
		return err
	}
	out, err := os.Create(*output)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	for i, p := range previews {
		code, err := genart.EncodeShareCode(p.Formula())
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%d %s\n", i+1, code)
	}
	return nil
}

func (a *app) openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, errors.New("-db is required")
	}
	return store.Open(a.ctx, path)
}

func (a *app) save(fs *flag.FlagSet, args []string) error {
	ff := addFormulaFlags(fs)
	db := fs.String("db", "", "archive database path")
	parent := fs.Int64("parent", 0, "id of the formula this one was mutated from")
	note := fs.String("note", "", "free-form note")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	f, err := ff.load()
	if err != nil {
		return err
	}
	st, err := a.openStore(*db)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.Save(a.ctx, f, *parent, *note)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, id)
	return nil
}

func (a *app) printRecord(rec store.Record) error {
	code, err := genart.EncodeShareCode(rec.Formula)
	if err != nil {
		return err
	}
	parent := "-"
	if rec.ParentID != 0 {
		parent = fmt.Sprint(rec.ParentID)
	}
	fmt.Fprintf(a.stdout, "%d\t%s\t%s\t%s\t%s\n",
		rec.ID, parent, rec.Created.Format("2006-01-02 15:04"), rec.Note, code)
	return nil
}

func (a *app) list(fs *flag.FlagSet, args []string) error {
	db := fs.String("db", "", "archive database path")
	limit := fs.Int("limit", 20, "maximum number of formulas (0 for all)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	st, err := a.openStore(*db)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.List(a.ctx, *limit)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := a.printRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) lineage(fs *flag.FlagSet, args []string) error {
	db := fs.String("db", "", "archive database path")
	id := fs.Int64("id", 0, "formula id")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	st, err := a.openStore(*db)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.Lineage(a.ctx, *id)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := a.printRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) describe(fs *flag.FlagSet, args []string) error {
	ff := addFormulaFlags(fs)
	if err := a.parse(fs, args); err != nil {
		return err
	}
	f, err := ff.load()
	if err != nil {
		return err
	}
	p := genart.Compile(f)
	live := p.Liveness()
	norm := p.Formula()

	var seeded []string
	for r, ok := range live.Seeded {
		if ok {
			seeded = append(seeded, fmt.Sprintf("r%d", r))
		}
	}
	fmt.Fprintf(a.stdout, "fingerprint %016x\n", p.Fingerprint())
	printer.Fprintf(a.stdout, "live steps  %d of %d\n", live.LiveCount(), genart.StepCount)
	fmt.Fprintf(a.stdout, "seeded      %s\n", strings.Join(seeded, " "))
	for i := range genart.StepCount {
		mark := " "
		if live.Step[i] {
			mark = "*"
		}
		fmt.Fprintf(a.stdout, "%s %02d %s\n", mark, i, norm.Step(i))
	}
	return nil
}
