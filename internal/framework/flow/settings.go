package flow

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/cvette/pmflow/internal/framework"
)

// Application tokens control the X-Flow-Powered header.
const (
	TokenOff             = "Off"
	TokenApplicationName = "ApplicationName"
	TokenMajorVersion    = "MajorVersion"
	TokenMinorVersion    = "MinorVersion"
)

var ErrInvalidSettings = errors.New("invalid settings")

//go:embed settings.schema.json
var settingsSchemaJSON []byte

var settingsSchema = gojsonschema.NewBytesLoader(settingsSchemaJSON)

// Settings are the application settings, read from a YAML file.
type Settings struct {
	Http    HttpSettings    `yaml:"http"`
	Session SessionSettings `yaml:"session"`
	Routes  []RouteSettings `yaml:"routes"`

	raw framework.MapSettings
}

type HttpSettings struct {
	// BaseUri overrides the base URI of every request.
	BaseUri string `yaml:"baseUri"`

	// ApplicationToken selects what X-Flow-Powered reveals.
	ApplicationToken string `yaml:"applicationToken"`
}

type SessionSettings struct {
	Name   string         `yaml:"name"`
	Cookie CookieSettings `yaml:"cookie"`
}

type CookieSettings struct {
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	Secure   bool   `yaml:"secure"`
	HttpOnly *bool  `yaml:"httpOnly"`

	// Lifetime is the cookie lifetime in seconds; 0 makes it a
	// browser-session cookie.
	Lifetime int `yaml:"lifetime"`
}

// RouteSettings describes a route answered with a static response.
type RouteSettings struct {
	Name        string            `yaml:"name"`
	Path        string            `yaml:"path"`
	Methods     []string          `yaml:"methods"`
	Status      int               `yaml:"status"`
	ContentType string            `yaml:"contentType"`
	Body        string            `yaml:"body"`
	Headers     map[string]string `yaml:"headers"`
}

// DefaultSettings returns the settings used when no file is configured.
func DefaultSettings() *Settings {
	s := &Settings{raw: framework.MapSettings{}}
	s.applyDefaults()
	return s
}

// LoadSettings reads and validates a settings file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	return ParseSettings(data)
}

// ParseSettings parses and validates YAML settings.
func ParseSettings(data []byte) (*Settings, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	if err := validateSettings(raw); err != nil {
		return nil, err
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	settings.raw = framework.MapSettings(raw)
	settings.applyDefaults()

	return &settings, nil
}

func validateSettings(raw map[string]any) error {
	res, err := gojsonschema.Validate(settingsSchema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	if res.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(msgs, "; "))
}

func (s *Settings) applyDefaults() {
	if s.Http.ApplicationToken == "" {
		s.Http.ApplicationToken = TokenMinorVersion
	}
	if s.Session.Cookie.Path == "" {
		s.Session.Cookie.Path = "/"
	}
	if s.Session.Cookie.HttpOnly == nil {
		httpOnly := true
		s.Session.Cookie.HttpOnly = &httpOnly
	}
}

// Get implements framework.Settings over the raw settings tree.
func (s *Settings) Get(path string) (any, bool) {
	return s.raw.Get(path)
}

var _ framework.Settings = (*Settings)(nil)
