// Package export writes one-way JSON snapshots of genomes and population
// state for external dashboards. Nothing here is read back during a run.
package export

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"brood/internal/genome"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed genome.schema.json
var genomeSchema []byte

const (
	genomeDir = "genomes"
	stateFile = "state.json"
)

// Exporter writes documents under dir. uriPrefix is prepended to
// "<agent>.json" to form the ledger-facing genome URI.
type Exporter struct {
	dir       string
	uriPrefix string
	schema    *jsonschema.Schema
}

func New(dir, uriPrefix string) (*Exporter, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("export dir cannot be empty")
	}
	if err := os.MkdirAll(filepath.Join(dir, genomeDir), 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	schema, err := compileGenomeSchema()
	if err != nil {
		return nil, err
	}
	return &Exporter{dir: dir, uriPrefix: uriPrefix, schema: schema}, nil
}

func compileGenomeSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("genome.schema.json", bytes.NewReader(genomeSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("genome.schema.json")
}

func (e *Exporter) Dir() string { return e.dir }

// URI returns the storage URI recorded on the ledger for agent.
func (e *Exporter) URI(agent string) string {
	return e.uriPrefix + fileName(agent)
}

// Validate checks a genome document against the embedded schema.
func (e *Exporter) Validate(g genome.Genome) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return e.ValidateJSON(raw)
}

// ValidateJSON checks raw genome JSON against the embedded schema.
func (e *Exporter) ValidateJSON(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode genome document: %w", err)
	}
	if err := e.schema.Validate(doc); err != nil {
		return fmt.Errorf("genome document invalid: %w", err)
	}
	return nil
}

// WriteGenome validates g and writes genomes/<agent>.json, returning the URI.
func (e *Exporter) WriteGenome(g genome.Genome) (string, error) {
	if strings.TrimSpace(g.AgentName) == "" {
		return "", fmt.Errorf("genome has no agent name")
	}
	if err := e.Validate(g); err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, genomeDir, fileName(g.AgentName))
	if err := writeJSON(path, g); err != nil {
		return "", err
	}
	return e.URI(g.AgentName), nil
}

// WriteState replaces state.json with v.
func (e *Exporter) WriteState(v any) error {
	return writeJSON(filepath.Join(e.dir, stateFile), v)
}

// fileName keeps agent names from escaping the genome directory.
func fileName(agent string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(agent))
	if name == "" || name == "." || name == ".." {
		name = "_"
	}
	return name + ".json"
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
