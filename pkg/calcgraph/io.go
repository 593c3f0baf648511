package calcgraph

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dealmodel/dealmodel/pkg/cellref"
)

// Definition is the YAML description of a model's cells, used by the CLI
// and tests to build a Graph without a workbook.
//
//	sheet: Model
//	cells:
//	  - cell: B1
//	    value: 100
//	  - cell: B2
//	    formula: "=B1*1.05"
type Definition struct {
	Sheet string           `yaml:"sheet"`
	Cells []CellDefinition `yaml:"cells"`
}

// CellDefinition describes one cell. A cell with a formula is a formula
// node; a cell with only a value is an input node.
type CellDefinition struct {
	Sheet   string `yaml:"sheet,omitempty"`
	Cell    string `yaml:"cell"`
	Formula string `yaml:"formula,omitempty"`
	Value   any    `yaml:"value,omitempty"`
}

// LoadDefinition reads a graph definition from disk.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing graph definition: %w", err)
	}
	return &def, nil
}

// SaveDefinition writes a graph definition to disk as YAML.
func SaveDefinition(path string, def *Definition) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for graph definition: %w", err)
	}

	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshaling graph definition: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing graph definition: %w", err)
	}
	return nil
}

// Build parses every cell and its formula dependencies into a new Graph.
// Input values are stored on their nodes; formula nodes start
// uncalculated.
func (d *Definition) Build() (*Graph, error) {
	g := New()
	for i, c := range d.Cells {
		sheet := c.Sheet
		if sheet == "" {
			sheet = d.Sheet
		}
		ref, err := cellref.Parse(sheet, c.Cell)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}

		deps := ParseFormulaDependencies(c.Formula, ref.Sheet)
		g.AddCell(ref, c.Formula, deps, nil)
		if c.Formula == "" && c.Value != nil {
			if err := g.SetValue(ref, c.Value); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// Definition exports the graph back into its YAML form, in node ID order.
func (g *Graph) Definition(sheet string) *Definition {
	def := &Definition{Sheet: sheet}
	for _, id := range g.IDs() {
		n := g.nodes[id]
		c := CellDefinition{Cell: n.Ref.Address, Formula: n.Formula}
		if n.Ref.Sheet != sheet {
			c.Sheet = n.Ref.Sheet
		}
		if n.IsInput() {
			c.Value = n.Value
		}
		def.Cells = append(def.Cells, c)
	}
	return def
}
