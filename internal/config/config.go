package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 前缀的环境变量可覆盖少量常用键，例如 BROOD_EVOLUTION_ROUNDS。
const EnvPrefix = "BROOD"

var envKeys = []string{
	"app.log_level",
	"app.log_format",
	"app.http_addr",
	"market.active_source",
	"evolution.rounds",
	"evolution.round_interval",
	"evolution.rand_seed",
	"ledger.enabled",
	"ledger.driver",
	"storage.db_path",
	"storage.export_dir",
}

// Load 读取配置文件（支持 include 递归合并与环境变量覆盖），应用默认值并校验。
func Load(path string) (*Config, error) {
	files, err := newIncludeResolver().resolve(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		settings, err := readSettings(file)
		if err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
		delete(settings, "include")
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, fmt.Errorf("merging config file failed (%s): %w", file, err)
		}
	}
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	keys := make(keySet)
	markKeys("", v.AllSettings(), keys)
	cfg.applyDefaults(keys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func readSettings(path string) (map[string]any, error) {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return nil, err
	}
	return tmp.AllSettings(), nil
}

// includeResolver 展开 include 列表，被包含文件排在包含者之前，后合并者覆盖先合并者。
type includeResolver struct {
	done     map[string]bool
	visiting map[string]bool
	order    []string
}

func newIncludeResolver() *includeResolver {
	return &includeResolver{done: map[string]bool{}, visiting: map[string]bool{}}
}

func (r *includeResolver) resolve(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := r.visit(filepath.Clean(abs)); err != nil {
		return nil, err
	}
	return r.order, nil
}

func (r *includeResolver) visit(path string) error {
	if r.visiting[path] {
		return fmt.Errorf("include cycle detected: %s", path)
	}
	if r.done[path] {
		return nil
	}
	r.visiting[path] = true
	settings, err := readSettings(path)
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	includes, err := includeList(settings["include"])
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := r.visit(filepath.Clean(inc)); err != nil {
			return err
		}
	}
	delete(r.visiting, path)
	r.done[path] = true
	r.order = append(r.order, path)
	return nil
}

func includeList(raw any) ([]string, error) {
	var items []any
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		items = []any{val}
	case []string:
		for _, s := range val {
			items = append(items, s)
		}
	case []any:
		items = val
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// markKeys 记录所有显式出现的叶子路径，列表本身算作一个叶子。
func markKeys(prefix string, node any, dest keySet) {
	var children map[string]any
	switch val := node.(type) {
	case map[string]any:
		children = val
	case map[any]any:
		children = make(map[string]any, len(val))
		for k, v := range val {
			if s, ok := k.(string); ok {
				children[s] = v
			}
		}
	default:
		dest.mark(prefix)
		return
	}
	for k, v := range children {
		name := strings.ToLower(strings.TrimSpace(k))
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		markKeys(name, v, dest)
	}
}
