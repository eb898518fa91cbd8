package matcher

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// Config is the matcher definition file: simple matchers plus named
// composite expressions over them.
type Config struct {
	// Workers bounds concurrent leaf evaluation in composite expressions.
	Workers     int                `yaml:"workers"`
	Matchers    []MatcherConfig    `yaml:"matchers"`
	Expressions []ExpressionConfig `yaml:"expressions"`
}

// ROIConfig mirrors frame.ROI in the YAML schema.
type ROIConfig struct {
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	W          float64 `yaml:"w"`
	H          float64 `yaml:"h"`
	Normalized bool    `yaml:"normalized"`
}

// toROI converts to the frame package representation.
func (r *ROIConfig) toROI() frame.ROI {
	if r == nil {
		return frame.ROI{}
	}
	return frame.ROI{X: r.X, Y: r.Y, W: r.W, H: r.H, Normalized: r.Normalized}
}

// MatcherConfig declares one simple matcher. Type selects the kind; the
// remaining fields apply per kind.
type MatcherConfig struct {
	Name string     `yaml:"name"`
	Type string     `yaml:"type"`
	ROI  *ROIConfig `yaml:"roi"`
	Mask string     `yaml:"mask"`

	// template and edge
	Template string `yaml:"template"`

	// template, hsv, rgb
	Threshold float64 `yaml:"threshold"`

	// hsv bounds as [h, s, v]
	Lower []int `yaml:"lower"`
	Upper []int `yaml:"upper"`

	// rgb target as [b, g, r]
	Color []int `yaml:"color"`

	// hash
	Digest string `yaml:"digest"`

	// uniform
	HueStdDev float64 `yaml:"hue_stddev"`

	// brightness
	MaxLuma float64 `yaml:"max_luma"`

	// edge
	MaxDistance float64 `yaml:"max_distance"`
}

// ExpressionConfig names one composite expression tree.
type ExpressionConfig struct {
	Name string `yaml:"name"`
	Expr *Expr  `yaml:"expr"`
}

// UnmarshalYAML accepts either a bare matcher name (ref shorthand) or a
// single-key mapping of and/or/not/ref.
func (e *Expr) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		e.Op = OpRef
		e.Ref = name
		return nil
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return fmt.Errorf("expression node must have exactly one of and/or/not/ref")
		}
		key := value.Content[0].Value
		val := value.Content[1]
		switch ExprOp(key) {
		case OpRef:
			e.Op = OpRef
			return val.Decode(&e.Ref)
		case OpNot:
			child := &Expr{}
			if err := val.Decode(child); err != nil {
				return err
			}
			e.Op = OpNot
			e.Children = []*Expr{child}
			return nil
		case OpAnd, OpOr:
			var children []*Expr
			if err := val.Decode(&children); err != nil {
				return err
			}
			e.Op = ExprOp(key)
			e.Children = children
			return nil
		}
		return fmt.Errorf("unknown expression op %q", key)
	}
	return fmt.Errorf("expression node must be a name or a mapping")
}

// LoadConfig parses a matcher definition file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading matcher config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing matcher config: %w", err)
	}
	return &cfg, nil
}

// Build constructs the registry from a parsed configuration. Template and
// mask paths are resolved relative to baseDir.
func Build(cfg *Config, baseDir string) (*Registry, error) {
	simple := make(map[string]Matcher, len(cfg.Matchers))
	for _, mc := range cfg.Matchers {
		if mc.Name == "" {
			return nil, fmt.Errorf("matcher without a name")
		}
		if _, dup := simple[mc.Name]; dup {
			return nil, fmt.Errorf("duplicate matcher name %q", mc.Name)
		}
		m, err := buildMatcher(mc, baseDir)
		if err != nil {
			return nil, fmt.Errorf("matcher %q: %w", mc.Name, err)
		}
		simple[mc.Name] = m
	}

	expressions := make(map[string]*Expr, len(cfg.Expressions))
	for _, ec := range cfg.Expressions {
		if ec.Name == "" {
			return nil, fmt.Errorf("expression without a name")
		}
		if ec.Expr == nil {
			return nil, fmt.Errorf("expression %q has no body", ec.Name)
		}
		if _, dup := simple[ec.Name]; dup {
			return nil, fmt.Errorf("expression %q collides with a matcher name", ec.Name)
		}
		if _, dup := expressions[ec.Name]; dup {
			return nil, fmt.Errorf("duplicate expression name %q", ec.Name)
		}
		expressions[ec.Name] = ec.Expr
	}

	return NewRegistry(simple, expressions, cfg.Workers)
}

// LoadRegistry is the one-call form: parse the file and build the registry,
// resolving image paths relative to the config file's directory.
func LoadRegistry(path string) (*Registry, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return Build(cfg, filepath.Dir(path))
}

func buildMatcher(mc MatcherConfig, baseDir string) (Matcher, error) {
	roi := mc.ROI.toROI()

	var mask *Mask
	if mc.Mask != "" {
		m, err := LoadMask(resolvePath(baseDir, mc.Mask))
		if err != nil {
			return nil, err
		}
		mask = m
	}

	switch mc.Type {
	case "template":
		tmpl, err := frame.Load(resolvePath(baseDir, mc.Template))
		if err != nil {
			return nil, err
		}
		return NewTemplateMatcher(tmpl, mask, roi, mc.Threshold)
	case "hsv":
		lower, err := hsvBound(mc.Lower)
		if err != nil {
			return nil, fmt.Errorf("lower: %w", err)
		}
		upper, err := hsvBound(mc.Upper)
		if err != nil {
			return nil, fmt.Errorf("upper: %w", err)
		}
		return &HSVMatcher{ROI: roi, Lower: lower, Upper: upper, Threshold: mc.Threshold, Mask: mask}, nil
	case "rgb":
		if len(mc.Color) != 3 {
			return nil, fmt.Errorf("rgb matcher needs color [b, g, r]")
		}
		b, g, r, err := colorBytes(mc.Color)
		if err != nil {
			return nil, err
		}
		return &RGBMatcher{ROI: roi, B: b, G: g, R: r, Threshold: mc.Threshold, Mask: mask}, nil
	case "hash":
		return NewHashMatcher(roi, mc.Digest)
	case "uniform":
		return &UniformMatcher{ROI: roi, HueStdDev: mc.HueStdDev, Mask: mask}, nil
	case "brightness":
		return &BrightnessMatcher{ROI: roi, MaxLuma: mc.MaxLuma, Mask: mask}, nil
	case "edge":
		tmpl, err := frame.Load(resolvePath(baseDir, mc.Template))
		if err != nil {
			return nil, err
		}
		return NewEdgeMatcher(tmpl, roi, mc.MaxDistance)
	}
	return nil, fmt.Errorf("unknown matcher type %q", mc.Type)
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func hsvBound(v []int) (HSVBound, error) {
	if len(v) != 3 {
		return HSVBound{}, fmt.Errorf("need [h, s, v]")
	}
	if v[0] < 0 || v[0] > 179 || v[1] < 0 || v[1] > 255 || v[2] < 0 || v[2] > 255 {
		return HSVBound{}, fmt.Errorf("bounds out of range: %v", v)
	}
	return HSVBound{H: byte(v[0]), S: byte(v[1]), V: byte(v[2])}, nil
}

func colorBytes(v []int) (b, g, r byte, err error) {
	for _, c := range v {
		if c < 0 || c > 255 {
			return 0, 0, 0, fmt.Errorf("color component out of range: %v", v)
		}
	}
	return byte(v[0]), byte(v[1]), byte(v[2]), nil
}
