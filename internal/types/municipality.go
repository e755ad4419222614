// Package types holds the core entities of the crawl/classification/resolution
// pipeline. Enums are closed string-typed sum types, never class hierarchies.
package types

// MunicipalitySeed is an immutable input describing one German municipality to crawl.
type MunicipalitySeed struct {
	Key                string `yaml:"key" json:"key"`
	Name               string `yaml:"name" json:"name"`
	County             string `yaml:"county" json:"county"`
	State              string `yaml:"state" json:"state"`
	OfficialWebsiteURL string `yaml:"official_website_url,omitempty" json:"official_website_url,omitempty"`
}
