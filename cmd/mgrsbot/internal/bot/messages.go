// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLang is the catalog used when none is selected.
const DefaultLang = "en"

// ErrUnknownLang is returned by [LoadMessages] for a language without a
// catalog.
var ErrUnknownLang = errors.New("unknown language")

//go:embed messages/*.yaml
var messagesFS embed.FS

// Messages is the catalog of texts the bot sends.
type Messages struct {
	Menu             string `yaml:"menu"`
	ToMGRSButton     string `yaml:"to_mgrs_button"`
	ToGoogleButton   string `yaml:"to_google_button"`
	BackButton       string `yaml:"back_button"`
	AskLink          string `yaml:"ask_link"`
	AskMGRS          string `yaml:"ask_mgrs"`
	SelectMode       string `yaml:"select_mode"`
	MGRSResult       string `yaml:"mgrs_result"` // Markdown, {mgrs}
	LinkResult       string `yaml:"link_result"` // {link}
	NotFound         string `yaml:"not_found"`
	NotFoundResolved string `yaml:"not_found_resolved"`
	ResolveFailed    string `yaml:"resolve_failed"`
	InvalidMGRS      string `yaml:"invalid_mgrs"`
	InternalError    string `yaml:"internal_error"`
	Help             string `yaml:"help"`
}

// Langs returns the languages of the embedded catalogs.
func Langs() []string {
	entries, _ := messagesFS.ReadDir("messages")
	var langs []string
	for _, e := range entries {
		langs = append(langs, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	slices.Sort(langs)
	return langs
}

// LoadMessages returns the embedded catalog for lang. Keys missing from it
// fall back to English. If overridePath is not empty, keys in that YAML file
// replace the loaded ones.
func LoadMessages(lang, overridePath string) (*Messages, error) {
	m := new(Messages)
	if err := decodeEmbedded(DefaultLang, m); err != nil {
		return nil, err
	}
	if lang != "" && lang != DefaultLang {
		if !slices.Contains(Langs(), lang) {
			return nil, fmt.Errorf("%w %q, available: %s", ErrUnknownLang, lang, strings.Join(Langs(), ", "))
		}
		if err := decodeEmbedded(lang, m); err != nil {
			return nil, err
		}
	}
	if overridePath != "" {
		b, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, err
		}
		if err := decode(b, m); err != nil {
			return nil, fmt.Errorf("%s: %w", overridePath, err)
		}
	}
	if missing := m.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("messages: empty keys: %s", strings.Join(missing, ", "))
	}
	return m, nil
}

func decodeEmbedded(lang string, m *Messages) error {
	b, err := messagesFS.ReadFile("messages/" + lang + ".yaml")
	if err != nil {
		return err
	}
	if err := decode(b, m); err != nil {
		return fmt.Errorf("messages/%s.yaml: %w", lang, err)
	}
	return nil
}

// decode overlays the keys present in b onto m. Unknown keys are an error.
func decode(b []byte, m *Messages) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (m *Messages) missing() []string {
	var keys []string
	v := reflect.ValueOf(m).Elem()
	for i := range v.NumField() {
		if v.Field(i).String() == "" {
			keys = append(keys, v.Type().Field(i).Tag.Get("yaml"))
		}
	}
	return keys
}

func (m *Messages) mgrsResult(ref string) string {
	return strings.ReplaceAll(m.MGRSResult, "{mgrs}", ref)
}

func (m *Messages) linkResult(link string) string {
	return strings.ReplaceAll(m.LinkResult, "{link}", link)
}
