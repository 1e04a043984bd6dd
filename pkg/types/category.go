package types

import (
	"strings"
	"unicode"
)

type Category struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"isActive"`
}

type SubCategory struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	CategoryId string `json:"categoryId"`
	IsActive   bool   `json:"isActive"`
}

func (c *Category) MatchesSlug(slug string) bool {
	return slugMatches(c.Slug, c.Name, slug)
}

func (c *SubCategory) MatchesSlug(slug string) bool {
	return slugMatches(c.Slug, c.Name, slug)
}

func slugMatches(own, name, slug string) bool {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return false
	}
	if own != "" {
		return strings.EqualFold(own, slug)
	}
	return strings.EqualFold(Slugify(name), slug)
}

// Slugify turns a display name into a url segment, "Gold Rings" -> "gold-rings".
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// TaxonomyChange announces an edited category or subcategory.
type TaxonomyChange struct {
	Kind string `json:"kind"`
	Id   string `json:"id"`
}
