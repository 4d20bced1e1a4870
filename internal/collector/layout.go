package collector

import "time"

// Layout holds the ordered selector lists used to read a catalog. Every list
// is a fallback chain: the first selector that matches wins.
type Layout struct {
	Cards           []string `mapstructure:"cards" yaml:"cards"`
	Price           []string `mapstructure:"price" yaml:"price"`
	Name            []string `mapstructure:"name" yaml:"name"`
	Description     []string `mapstructure:"description" yaml:"description"`
	Pagination      []string `mapstructure:"pagination" yaml:"pagination"`
	PaginationEntry []string `mapstructure:"pagination_entry" yaml:"pagination_entry"`
	PaginationLink  []string `mapstructure:"pagination_link" yaml:"pagination_link"`

	DetailRoot        []string `mapstructure:"detail_root" yaml:"detail_root"`
	DetailName        []string `mapstructure:"detail_name" yaml:"detail_name"`
	DetailPrice       []string `mapstructure:"detail_price" yaml:"detail_price"`
	DetailDescription []string `mapstructure:"detail_description" yaml:"detail_description"`

	// Banners are site-level headings that must never be taken for a
	// product name. Compared case-insensitively.
	Banners []string `mapstructure:"banners" yaml:"banners"`
}

// DefaultLayout returns the selectors for the webscraper.io e-commerce test
// catalog.
func DefaultLayout() Layout {
	price := []string{"h4.price", "h4.pull-right.price", ".price"}
	return Layout{
		Cards:           []string{"div.thumbnail"},
		Price:           price,
		Name:            []string{"a.title", "h4 a"},
		Description:     []string{"p.description", ".description", ".caption p"},
		Pagination:      []string{"ul.pagination"},
		PaginationEntry: []string{"li"},
		PaginationLink:  []string{"a"},

		DetailRoot: []string{"body"},
		// The caption heading that is not the price comes first so a page
		// banner or the price figure is not read as the name.
		DetailName:        []string{".caption h4:not(.pull-right):not(.price)", ".caption h4", "h4.title", ".title"},
		DetailPrice:       price,
		DetailDescription: []string{"#description", "p.description", ".description", ".caption p"},

		Banners: []string{"test sites", "test site"},
	}
}

// Selectors returns every selector of the layout keyed by field, for
// validation.
func (l Layout) Selectors() map[string][]string {
	return map[string][]string{
		"cards":              l.Cards,
		"price":              l.Price,
		"name":               l.Name,
		"description":        l.Description,
		"pagination":         l.Pagination,
		"pagination_entry":   l.PaginationEntry,
		"pagination_link":    l.PaginationLink,
		"detail_root":        l.DetailRoot,
		"detail_name":        l.DetailName,
		"detail_price":       l.DetailPrice,
		"detail_description": l.DetailDescription,
	}
}

const (
	DefaultCardWait       = 15 * time.Second
	DefaultTransitionWait = 10 * time.Second
	DefaultDetailWait     = 10 * time.Second
)
