package manuscript

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/logging"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/reconcile"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/refs"
)

// Config contains all configuration options of a conversion
type Config struct {
	// Languages lists the metadata language suffixes filled into the template, in order.
	Languages []string `yaml:"languages"`
	// Template is a reference .docx file or an unpacked template directory. Empty selects the
	// built-in house template.
	Template string `yaml:"template"`
	// MetaKey is the front matter mapping that holds the paper metadata. When the front matter
	// has no such key the whole front matter is used.
	MetaKey string `yaml:"meta_key"`
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string `yaml:"log_level"`
	// StrictStyles rejects body content whose styles are not known house styles.
	StrictStyles bool `yaml:"strict_styles"`
	// ListNumberingBase is the first numbering id allocated to generated lists.
	ListNumberingBase int `yaml:"list_numbering_base"`
	// DebugJSON writes the parsed document next to the source as <source>.json.
	DebugJSON bool `yaml:"debug_json"`
	// HeadingDepthThreshold is the Markdown heading depth numbered as a top-level section.
	HeadingDepthThreshold int `yaml:"heading_depth_threshold"`
	// MaxHeadingLevel renders deeper headings at this level.
	MaxHeadingLevel int `yaml:"max_heading_level"`
	// DefaultImageWidthCm is the width of images without size attributes.
	DefaultImageWidthCm float64 `yaml:"default_image_width_cm"`
	// Styles binds generated styles to house styles.
	Styles StyleConfig `yaml:"styles"`

	// Logger receives conversion diagnostics. Nil builds a stderr logger at LogLevel.
	Logger *logging.Logger `yaml:"-"`
}

// StyleConfig names the house styles a conversion maps onto.
type StyleConfig struct {
	// Renames maps generated style ids to house style names.
	Renames map[string]string `yaml:"renames"`
	// AlwaysRemove lists generated style ids dropped from the output.
	AlwaysRemove []string `yaml:"always_remove"`
	// Required lists house styles carried over even if nothing uses them yet.
	Required []string `yaml:"required"`
	// PassThrough lists style names allowed in the body as they are when StrictStyles is set.
	PassThrough []string `yaml:"pass_through"`
	// OrderedList and BulletList bind generated lists to a house style and abstract numbering.
	OrderedList ListStyle `yaml:"ordered_list"`
	BulletList  ListStyle `yaml:"bullet_list"`
	// Bibliography styles the {{{links}}} entries; its numbering is a concrete numbering id.
	Bibliography ListStyle `yaml:"bibliography"`
	// Author styles the author and organization lines.
	Author string `yaml:"author"`
	// AuthorDetail styles the per-author details paragraphs.
	AuthorDetail string `yaml:"author_detail"`
}

// ListStyle pairs a paragraph style name with a numbering id of the template.
type ListStyle struct {
	Style     string `yaml:"style"`
	Numbering string `yaml:"numbering"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Languages:             []string{"ru", "en"},
		MetaKey:               "ispras_templates",
		LogLevel:              "info",
		ListNumberingBase:     reconcile.DefaultNumberingBase,
		DebugJSON:             true,
		HeadingDepthThreshold: refs.DefaultDepthThreshold,
		MaxHeadingLevel:       3,
		DefaultImageWidthCm:   10,
		Styles:                DefaultStyles(),
	}
}

// DefaultStyles returns the bindings for the built-in house template.
func DefaultStyles() StyleConfig {
	return StyleConfig{
		Renames: map[string]string{
			"Heading1":       "ispSubHeader-1 level",
			"Heading2":       "ispSubHeader-2 level",
			"Heading3":       "ispSubHeader-3 level",
			"Author":         "ispAuthor",
			"AbstractTitle":  "ispAnotation",
			"Abstract":       "ispAnotation",
			"BlockText":      "ispText_main",
			"BodyText":       "ispText_main",
			"FirstParagraph": "ispText_main",
			"Normal":         "Normal",
			"SourceCode":     "ispListing",
			"VerbatimChar":   "ispListing Знак",
			"ImageCaption":   "ispPicture_sign",
		},
		AlwaysRemove: []string{"Heading4", "Heading5", "Heading6", "Heading7", "Heading8", "Heading9"},
		Required: []string{
			"ispSubHeader-1 level", "ispSubHeader-2 level", "ispSubHeader-3 level",
			"ispAuthor", "ispAnotation", "ispText_main", "ispList", "ispListing",
			"ispListing Знак", "ispLitList", "ispPicture_sign", "ispNumList", "Normal",
		},
		PassThrough:  []string{"Compact", "Hyperlink", "Table"},
		OrderedList:  ListStyle{Style: "ispNumList", Numbering: "33"},
		BulletList:   ListStyle{Style: "ispList1", Numbering: "43"},
		Bibliography: ListStyle{Style: "ispLitList", Numbering: "80"},
		Author:       "ispAuthor",
		AuthorDetail: "ispText_main",
	}
}

// LoadConfig reads a YAML configuration file. Keys missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// ConfigFromEnvironment creates a configuration from environment variables. MANUSCRIPT_CONFIG
// names a YAML file loaded first; the other variables override it.
func ConfigFromEnvironment() (*Config, error) {
	config := DefaultConfig()

	// MANUSCRIPT_CONFIG
	if val := os.Getenv("MANUSCRIPT_CONFIG"); val != "" {
		loaded, err := LoadConfig(val)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	// MANUSCRIPT_TEMPLATE
	if val := os.Getenv("MANUSCRIPT_TEMPLATE"); val != "" {
		config.Template = val
	}

	// MANUSCRIPT_LOG_LEVEL
	if val := os.Getenv("MANUSCRIPT_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	// MANUSCRIPT_LANGUAGES
	if val := os.Getenv("MANUSCRIPT_LANGUAGES"); val != "" {
		var langs []string
		for _, lang := range strings.Split(val, ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				langs = append(langs, lang)
			}
		}
		config.Languages = langs
	}

	// MANUSCRIPT_STRICT_STYLES
	if val := os.Getenv("MANUSCRIPT_STRICT_STYLES"); val != "" {
		config.StrictStyles = parseBool(val)
	}

	// MANUSCRIPT_LIST_NUMBERING_BASE
	if val := os.Getenv("MANUSCRIPT_LIST_NUMBERING_BASE"); val != "" {
		if base, err := strconv.Atoi(val); err == nil {
			config.ListNumberingBase = base
		}
	}

	return config, nil
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields.
// Boolean options are taken from overrides as they are.
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()

	if overrides == nil {
		return defaults
	}

	config := *overrides

	if len(config.Languages) == 0 {
		config.Languages = defaults.Languages
	}
	if config.MetaKey == "" {
		config.MetaKey = defaults.MetaKey
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.ListNumberingBase == 0 {
		config.ListNumberingBase = defaults.ListNumberingBase
	}
	if config.HeadingDepthThreshold == 0 {
		config.HeadingDepthThreshold = defaults.HeadingDepthThreshold
	}
	if config.MaxHeadingLevel == 0 {
		config.MaxHeadingLevel = defaults.MaxHeadingLevel
	}
	if config.DefaultImageWidthCm == 0 {
		config.DefaultImageWidthCm = defaults.DefaultImageWidthCm
	}

	s, d := &config.Styles, defaults.Styles
	if s.Renames == nil {
		s.Renames = d.Renames
	}
	if s.AlwaysRemove == nil {
		s.AlwaysRemove = d.AlwaysRemove
	}
	if s.Required == nil {
		s.Required = d.Required
	}
	if s.PassThrough == nil {
		s.PassThrough = d.PassThrough
	}
	if s.OrderedList == (ListStyle{}) {
		s.OrderedList = d.OrderedList
	}
	if s.BulletList == (ListStyle{}) {
		s.BulletList = d.BulletList
	}
	if s.Bibliography == (ListStyle{}) {
		s.Bibliography = d.Bibliography
	}
	if s.Author == "" {
		s.Author = d.Author
	}
	if s.AuthorDetail == "" {
		s.AuthorDetail = d.AuthorDetail
	}

	return &config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Languages) == 0 {
		return errors.New("at least one language is required")
	}
	for _, lang := range c.Languages {
		if _, err := language.Parse(lang); err != nil {
			return fmt.Errorf("invalid language %q: %w", lang, err)
		}
	}

	validLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warn":    true,
		"warning": true,
		"error":   true,
		"off":     true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.ListNumberingBase <= 0 {
		return errors.New("list numbering base must be positive")
	}

	if c.HeadingDepthThreshold < 1 {
		return errors.New("heading depth threshold must be at least 1")
	}

	if c.MaxHeadingLevel < 1 || c.MaxHeadingLevel > 9 {
		return errors.New("max heading level must be between 1 and 9")
	}

	if c.DefaultImageWidthCm < 0 {
		return errors.New("default image width cannot be negative")
	}

	for name, list := range map[string]ListStyle{
		"ordered_list": c.Styles.OrderedList,
		"bullet_list":  c.Styles.BulletList,
		"bibliography": c.Styles.Bibliography,
	} {
		if list.Style == "" || list.Numbering == "" {
			return fmt.Errorf("styles.%s needs both a style and a numbering id", name)
		}
	}

	return nil
}

// logger returns the configured logger or a stderr logger at LogLevel.
func (c *Config) logger() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.New(os.Stderr, logging.ParseLevel(c.LogLevel))
}

// reconcileOptions translates the style bindings for the reconciler.
func (c *Config) reconcileOptions(log *logging.Logger) reconcile.Options {
	return reconcile.Options{
		RequiredStyles: c.Styles.Required,
		Renames:        c.Styles.Renames,
		AlwaysRemove:   c.Styles.AlwaysRemove,
		Lists: map[reconcile.ListKind]reconcile.ListRule{
			reconcile.OrderedList: {Style: c.Styles.OrderedList.Style, AbstractNumID: c.Styles.OrderedList.Numbering},
			reconcile.BulletList:  {Style: c.Styles.BulletList.Style, AbstractNumID: c.Styles.BulletList.Numbering},
		},
		NumberingBase: c.ListNumberingBase,
		Logger:        log,
	}
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
