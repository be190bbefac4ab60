package importer

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// stripTemplateVariables removes Homepage template variables from YAML
// Example: {{HOMEPAGE_VAR_ADGUARD_URL}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}

// ParseYAML reads either a marky seed list or a Homepage bookmarks.yaml.
// The format is told apart by whether list items carry a "url" key.
func ParseYAML(data []byte) ([]domain.Fields, error) {
	data = stripTemplateVariables(data)

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return []domain.Fields{}, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("bookmarks yaml must be a list, got %s", kindName(doc.Kind))
	}

	if isSeedList(doc) {
		var seed SeedFile
		if err := doc.Decode(&seed); err != nil {
			return nil, fmt.Errorf("failed to decode seed file: %w", err)
		}
		return MapSeed(seed), nil
	}

	var homepage HomepageFile
	if err := doc.Decode(&homepage); err != nil {
		return nil, fmt.Errorf("failed to decode homepage bookmarks: %w", err)
	}
	return MapHomepage(homepage), nil
}

func isSeedList(seq *yaml.Node) bool {
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		for i := 0; i+1 < len(item.Content); i += 2 {
			if item.Content[i].Value == "url" {
				return true
			}
		}
		return false
	}
	return false
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return fmt.Sprintf("kind %d", k)
}

// MapSeed converts seed entries to bookmark fields, in file order
func MapSeed(seed SeedFile) []domain.Fields {
	fields := make([]domain.Fields, 0, len(seed))
	for _, e := range seed {
		tags := e.Tags
		if tags == nil {
			tags = []string{}
		}
		fields = append(fields, domain.Fields{
			Title:       e.Title,
			URL:         e.URL,
			Description: e.Description,
			Tags:        tags,
			Favorite:    e.Favorite,
		})
	}
	return fields
}

// MapHomepage converts Homepage categories to bookmark fields. The
// bookmark name becomes the title and the category becomes the only tag.
// Entries without href are skipped.
func MapHomepage(config HomepageFile) []domain.Fields {
	fields := make([]domain.Fields, 0)

	for _, category := range config {
		// maps have no order; sort for a stable import
		categories := make([]string, 0, len(category))
		for name := range category {
			categories = append(categories, name)
		}
		sort.Strings(categories)

		for _, categoryName := range categories {
			for _, bookmarkMap := range category[categoryName] {
				names := make([]string, 0, len(bookmarkMap))
				for name := range bookmarkMap {
					names = append(names, name)
				}
				sort.Strings(names)

				for _, bookmarkName := range names {
					entryList := bookmarkMap[bookmarkName]
					// Each bookmark has a list with a single entry
					if len(entryList) == 0 || entryList[0].Href == "" {
						continue
					}
					entry := entryList[0]

					description := entry.Description
					if description == "" && entry.Abbr != "" {
						description = "abbr: " + entry.Abbr
					}

					fields = append(fields, domain.Fields{
						Title:       bookmarkName,
						URL:         entry.Href,
						Description: description,
						Tags:        []string{categoryName},
					})
				}
			}
		}
	}

	return fields
}
