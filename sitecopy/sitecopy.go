// Package sitecopy holds the site's static editorial copy: navigation,
// the hero used when the CMS has none, the about page, form messages and the
// fallback labels shown for missing fields.
package sitecopy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed copy.yaml
var defaultYAML []byte

// Link is a labelled href.
type Link struct {
	Label string `yaml:"label"`
	Href  string `yaml:"href"`
}

// Section is a headed block of prose.
type Section struct {
	Heading string `yaml:"heading"`
	Body    string `yaml:"body"`
}

// Copy is the full set of editorial strings.
type Copy struct {
	Nav  []Link `yaml:"nav"`
	Hero struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Primary     Link   `yaml:"primary"`
		Secondary   Link   `yaml:"secondary"`
	} `yaml:"hero"`
	About struct {
		Title    string    `yaml:"title"`
		Intro    string    `yaml:"intro"`
		Sections []Section `yaml:"sections"`
	} `yaml:"about"`
	Contact struct {
		Title   string `yaml:"title"`
		Intro   string `yaml:"intro"`
		Success string `yaml:"success"`
		Failure string `yaml:"failure"`
	} `yaml:"contact"`
	Newsletter struct {
		Title   string `yaml:"title"`
		Body    string `yaml:"body"`
		Privacy string `yaml:"privacy"`
		Success string `yaml:"success"`
		Failure string `yaml:"failure"`
	} `yaml:"newsletter"`
	Fallbacks Fallbacks `yaml:"fallbacks"`
}

// Fallbacks are substituted when a CMS field is missing or empty.
type Fallbacks struct {
	PostTitle           string `yaml:"post_title"`
	ReadTime            string `yaml:"read_time"`
	CategoryIcon        string `yaml:"category_icon"`
	CategoryDescription string `yaml:"category_description"`
	TagName             string `yaml:"tag_name"`
	NoPosts             string `yaml:"no_posts"`
	NoCategories        string `yaml:"no_categories"`
	NoResults           string `yaml:"no_results"`
}

// Default returns the embedded copy.
func Default() Copy {
	c, err := decode(Copy{}, defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("sitecopy: embedded copy.yaml: %v", err))
	}
	return c
}

// Parse overlays data on the embedded copy. Keys missing from data keep
// their default value; unknown keys are an error.
func Parse(data []byte) (Copy, error) {
	return decode(Default(), data)
}

// Load reads an override file. An empty path yields the embedded copy.
func Load(path string) (Copy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Copy{}, fmt.Errorf("sitecopy: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return Copy{}, fmt.Errorf("sitecopy: %s: %w", path, err)
	}
	return c, nil
}

func decode(base Copy, data []byte) (Copy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&base); err != nil && !errors.Is(err, io.EOF) {
		return Copy{}, err
	}
	return base, nil
}
