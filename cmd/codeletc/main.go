// Command codeletc compiles codelet programs: an operator graph bound
// against a hardware architecture graph, run through the full
// transformation pipeline, and emitted as operations-text and JSON
// artifacts per codelet.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeletc/compiler"
	"codeletc/hag"
	"codeletc/serialize"
	"codeletc/transform"
)

// programFile is the on-disk shape of one compile request: a HAG, a
// set of reusable codelet templates keyed by the operator name they
// bind, and the operator nodes to instantiate against them.
type programFile struct {
	HAG       hagSpecFile                        `json:"hag"`
	Templates map[string]codeletTemplateFile      `json:"templates"`
	Nodes     []operatorNodeFile                  `json:"nodes"`
	Mode      string                              `json:"mode"` // "strict" or "filtered"
	Filter    []string                            `json:"filter,omitempty"`
}

type hagSpecFile struct {
	Root  hagNodeFile   `json:"root"`
	Edges []hagEdgeFile `json:"edges"`
}

type hagNodeFile struct {
	Name         string        `json:"name"`
	Kind         string        `json:"kind"`
	Capacity     int64         `json:"capacity,omitempty"`
	DimsM        int           `json:"dims_m,omitempty"`
	DimsN        int           `json:"dims_n,omitempty"`
	Capabilities []string      `json:"capabilities,omitempty"`
	Children     []hagNodeFile `json:"children,omitempty"`
}

type hagEdgeFile struct {
	Src           string         `json:"src"`
	Dst           string         `json:"dst"`
	BandwidthBits int64          `json:"bandwidth_bits"`
	Attrs         map[string]any `json:"attrs,omitempty"`
}

type codeletTemplateFile struct {
	OpName     string         `json:"op_name"`
	Dims       []string       `json:"dims"`
	DataPath   []string       `json:"data_path"`
	Target     string         `json:"target"`
	InputRole  string         `json:"input_role"`
	OutputRole string         `json:"output_role"`
	Params     map[string]any `json:"params,omitempty"`
}

type tensorFile struct {
	Name      string `json:"name"`
	Shape     []int  `json:"shape"`
	DtypeBits int    `json:"hag_dtype,omitempty"`
}

type operatorNodeFile struct {
	OpName  string         `json:"op_name"`
	Inputs  []tensorFile   `json:"inputs"`
	Outputs []tensorFile   `json:"outputs"`
	Kwargs  map[string]any `json:"kwargs,omitempty"`
}

func nodeKindOf(s string) hag.NodeKind {
	switch s {
	case "storage":
		return hag.KindStorage
	case "compute":
		return hag.KindCompute
	case "communication":
		return hag.KindCommunication
	default:
		return hag.KindComposite
	}
}

func toHAGSpec(f hagSpecFile) compiler.HAGSpec {
	var convert func(n hagNodeFile) compiler.HAGNodeSpec
	convert = func(n hagNodeFile) compiler.HAGNodeSpec {
		children := make([]compiler.HAGNodeSpec, len(n.Children))
		for i, c := range n.Children {
			children[i] = convert(c)
		}
		return compiler.HAGNodeSpec{
			Name: n.Name, Kind: nodeKindOf(n.Kind), Capacity: n.Capacity,
			DimsM: n.DimsM, DimsN: n.DimsN, Capabilities: n.Capabilities, Children: children,
		}
	}
	edges := make([]compiler.HAGEdgeSpec, len(f.Edges))
	for i, e := range f.Edges {
		edges[i] = compiler.HAGEdgeSpec{Src: e.Src, Dst: e.Dst, BandwidthBits: e.BandwidthBits, Attrs: e.Attrs}
	}
	return compiler.HAGSpec{Root: convert(f.Root), Edges: edges}
}

func toTemplate(f codeletTemplateFile) *compiler.CodeletTemplate {
	return &compiler.CodeletTemplate{
		OpName: f.OpName, Dims: f.Dims, DataPath: f.DataPath, Target: f.Target,
		InputRole: f.InputRole, OutputRole: f.OutputRole, Params: f.Params,
	}
}

func toOperatorNode(f operatorNodeFile) compiler.OperatorNode {
	convert := func(ts []tensorFile) []compiler.Tensor {
		out := make([]compiler.Tensor, len(ts))
		for i, t := range ts {
			out[i] = compiler.Tensor{Name: t.Name, Shape: t.Shape, DtypeBits: t.DtypeBits}
		}
		return out
	}
	return compiler.OperatorNode{OpName: f.OpName, Inputs: convert(f.Inputs), Outputs: convert(f.Outputs), Kwargs: f.Kwargs}
}

type summaryRow struct {
	Program  string
	Codelets int
	Failed   int
	Elapsed  time.Duration
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	inputDir := "./programs"
	outputDir := "./artifacts"
	if len(os.Args) > 1 {
		inputDir = os.Args[1]
	}
	if len(os.Args) > 2 {
		outputDir = os.Args[2]
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "codeletc: creating output directory: %v\n", err)
		os.Exit(1)
	}

	files, err := filepath.Glob(filepath.Join(inputDir, "*.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "codeletc: globbing input programs: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "codeletc: no program files found in %s\n", inputDir)
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("  codeletc - codelet compiler driver")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Found %d program files\n\n", len(files))

	var rows []summaryRow
	for i, path := range files {
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, ".json")
		fmt.Printf("[%d/%d] Processing: %s\n", i+1, len(files), base)

		start := time.Now()
		row, err := compileOne(path, filepath.Join(outputDir, name), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n\n", err)
			continue
		}
		row.Program = name
		row.Elapsed = time.Since(start)
		rows = append(rows, row)

		fmt.Printf("  codelets: %d  failed: %d  time: %v\n\n", row.Codelets, row.Failed, row.Elapsed)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("  SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-30s %12s %12s %12s\n", "Program", "Codelets", "Failed", "Time")
	for _, r := range rows {
		fmt.Printf("%-30s %12d %12d %12v\n", r.Program, r.Codelets, r.Failed, r.Elapsed)
	}
	fmt.Printf("\nTotal programs completed: %d/%d\n", len(rows), len(files))
}

func compileOne(path, outDir string, logger *slog.Logger) (summaryRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return summaryRow{}, fmt.Errorf("reading program: %w", err)
	}
	var pf programFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return summaryRow{}, fmt.Errorf("parsing program: %w", err)
	}

	g, err := compiler.BuildGraph(toHAGSpec(pf.HAG))
	if err != nil {
		return summaryRow{}, fmt.Errorf("building HAG: %w", err)
	}

	ctx := compiler.NewContext(filepath.Base(path), g, logger)

	prog := &compiler.Program{Pipeline: transform.RunPipeline}
	for i, nf := range pf.Nodes {
		node := toOperatorNode(nf)
		tf, ok := pf.Templates[node.OpName]
		if !ok {
			return summaryRow{}, fmt.Errorf("node %d: no template registered for operator %q", i, node.OpName)
		}
		cdlt, err := compiler.Instantiate(ctx, toTemplate(tf), node, g, i)
		if err != nil {
			return summaryRow{}, fmt.Errorf("instantiating node %d (%s): %w", i, node.OpName, err)
		}
		prog.Codelets = append(prog.Codelets, cdlt)
	}

	mode := compiler.ModeStrict
	var filter map[string]bool
	if pf.Mode == "filtered" {
		mode = compiler.ModeFiltered
		filter = make(map[string]bool, len(pf.Filter))
		for _, id := range pf.Filter {
			filter[id] = true
		}
	}

	result, err := prog.Compile(ctx, g, mode, filter)
	if err != nil {
		return summaryRow{}, err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return summaryRow{}, fmt.Errorf("creating artifact directory: %w", err)
	}

	failed := 0
	for _, cr := range result.Codelets {
		if cr.Err != nil {
			failed++
			continue
		}
	}
	for _, cdlt := range prog.Codelets {
		jsonData, err := serialize.MarshalJSON(cdlt)
		if err != nil {
			return summaryRow{}, fmt.Errorf("marshaling codelet %s: %w", cdlt.ID, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, cdlt.ID+".json"), jsonData, 0644); err != nil {
			return summaryRow{}, fmt.Errorf("writing codelet %s json: %w", cdlt.ID, err)
		}

		textFile, err := os.Create(filepath.Join(outDir, cdlt.ID+".txt"))
		if err != nil {
			return summaryRow{}, fmt.Errorf("creating codelet %s text artifact: %w", cdlt.ID, err)
		}
		err = serialize.WriteOperationsText(textFile, cdlt)
		textFile.Close()
		if err != nil {
			return summaryRow{}, fmt.Errorf("writing codelet %s text: %w", cdlt.ID, err)
		}
	}

	return summaryRow{Codelets: len(prog.Codelets), Failed: failed}, nil
}
