// Package catalog loads optional skill template overrides from YAML and keeps
// them current while the file changes on disk.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"brood/internal/genome"
	"brood/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrUnknownSkill is returned when the override file names a skill id that
// is not part of the builtin catalog.
var ErrUnknownSkill = errors.New("unknown skill template")

//go:embed overrides.schema.json
var overridesSchema []byte

// TemplateOverride 映射 skill_templates 中的单个条目。
type TemplateOverride struct {
	CostPerRound *float64          `yaml:"cost_per_round" json:"cost_per_round,omitempty"`
	Params       map[string]float64 `yaml:"params" json:"params,omitempty"`
}

// FileConfig 映射覆盖文件。
type FileConfig struct {
	SkillTemplates   map[string]TemplateOverride `yaml:"skill_templates" json:"skill_templates,omitempty"`
	BaseCostPerRound *float64                    `yaml:"base_cost_per_round" json:"base_cost_per_round,omitempty"`
}

// Snapshot is one loaded version of the catalog.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Catalog  genome.Catalog
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry serves the current catalog. Reloads only affect genomes created
// after they land.
type Registry struct {
	path   string
	base   genome.Catalog
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// Static returns a registry that never reloads, serving c.
func Static(c genome.Catalog) *Registry {
	return &Registry{base: c, snapshot: Snapshot{Version: 1, LoadedAt: time.Now(), Catalog: c}}
}

// NewRegistry reads path, applies it over base and watches it for changes.
func NewRegistry(path string, base genome.Catalog) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("catalog registry requires path")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog overrides failed: %w", err)
	}
	r := &Registry{path: path, base: base, v: v, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("catalog reload failed, keeping version %d: %v", r.Snapshot().Version, err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Catalog returns the current catalog.
func (r *Registry) Catalog() genome.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.Catalog
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// OnChange registers fn for future reloads.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := r.readFile()
	if err != nil {
		return err
	}
	next, err := Apply(r.base, cfg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Catalog:  next,
	}
	r.mu.Unlock()
	logger.Infof("Catalog registry loaded %d overrides from %s", len(cfg.SkillTemplates), filepath.Base(r.path))
	return nil
}

// Apply merges cfg over base. Unknown skill ids fail with ErrUnknownSkill.
func Apply(base genome.Catalog, cfg FileConfig) (genome.Catalog, error) {
	overrides := make(map[genome.SkillID]genome.Override, len(cfg.SkillTemplates))
	for raw, tpl := range cfg.SkillTemplates {
		id := genome.SkillID(strings.TrimSpace(raw))
		if !id.Valid() {
			return genome.Catalog{}, fmt.Errorf("%w: %s", ErrUnknownSkill, raw)
		}
		overrides[id] = genome.Override{CostPerRound: tpl.CostPerRound, Params: tpl.Params}
	}
	next, err := base.WithOverrides(overrides)
	if err != nil {
		return genome.Catalog{}, fmt.Errorf("%w: %v", ErrUnknownSkill, err)
	}
	if cfg.BaseCostPerRound != nil {
		next.BaseCostPerRound = *cfg.BaseCostPerRound
	}
	return next, nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("catalog listener")
			cb(snap)
		}(fn)
	}
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("overrides.schema.json", bytes.NewReader(overridesSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("overrides.schema.json")
}

func (r *Registry) readFile() (FileConfig, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read catalog overrides failed: %w", err)
	}
	return Decode(raw, r.schema)
}

// Decode strictly parses an override document and validates it against
// schema when one is given.
func Decode(raw []byte, schema *jsonschema.Schema) (FileConfig, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, fmt.Errorf("parse catalog overrides failed: %w", err)
	}
	if schema == nil {
		return cfg, nil
	}
	doc, err := toJSONDoc(cfg)
	if err != nil {
		return FileConfig{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return FileConfig{}, fmt.Errorf("catalog overrides invalid: %w", err)
	}
	return cfg, nil
}

func toJSONDoc(cfg FileConfig) (any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
