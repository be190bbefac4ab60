package importer

// SeedEntry is one bookmark of a marky seed file
type SeedEntry struct {
	Title       string   `yaml:"title"`
	URL         string   `yaml:"url"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Favorite    bool     `yaml:"favorite"`
}

// SeedFile is the root structure of a marky seed file: a plain list
type SeedFile []SeedEntry

// HomepageEntry represents a single bookmark entry in a Homepage
// bookmarks.yaml
type HomepageEntry struct {
	Icon        string `yaml:"icon"`
	Abbr        string `yaml:"abbr"`
	Href        string `yaml:"href"`
	Description string `yaml:"description"`
}

// HomepageCategory represents a category with its bookmarks
// The YAML structure is: - CategoryName: { - BookmarkName: [{ icon, abbr, href }] }
// Each bookmark name maps to a list (array) with a single entry containing the properties
type HomepageCategory map[string][]map[string][]HomepageEntry

// HomepageFile is the root structure for a Homepage bookmarks.yaml
type HomepageFile []HomepageCategory
