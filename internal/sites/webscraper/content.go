package webscraper

import (
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	jsoniter "github.com/json-iterator/go"

	"shopcrawl/internal/collector"
	"shopcrawl/internal/output"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProductContent holds collected products and implements scraper.Content.
type ProductContent struct {
	sourceURL string
	products  []collector.Product
	runTS     string
}

// NewProductContent creates a ProductContent. runTS is appended to text
// rows when non-empty.
func NewProductContent(sourceURL string, products []collector.Product, runTS string) *ProductContent {
	if products == nil {
		products = []collector.Product{}
	}
	return &ProductContent{sourceURL: sourceURL, products: products, runTS: runTS}
}

// Products returns a copy of the collected products.
func (c *ProductContent) Products() []collector.Product {
	out := make([]collector.Product, len(c.products))
	copy(out, c.products)
	return out
}

// ToText prints one tab separated line per product: price, name,
// description and the run timestamp when set.
func (c *ProductContent) ToText() (string, error) {
	var sb strings.Builder
	for _, p := range c.products {
		sb.WriteString(p.Price + "\t" + p.Name + "\t" + p.Description)
		if c.runTS != "" {
			sb.WriteString("\t" + c.runTS)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (c *ProductContent) ToCSV() (string, error) {
	return output.FormatDelimited(c.products, ',')
}

func (c *ProductContent) ToTSV() (string, error) {
	return output.FormatDelimited(c.products, '\t')
}

func (c *ProductContent) ToJSON() ([]byte, error) {
	type jsonOutput struct {
		Source       string              `json:"source"`
		RunTimestamp string              `json:"run_timestamp,omitempty"`
		Count        int                 `json:"count"`
		Products     []collector.Product `json:"products"`
	}
	return json.MarshalIndent(jsonOutput{
		Source:       c.sourceURL,
		RunTimestamp: c.runTS,
		Count:        len(c.products),
		Products:     c.products,
	}, "", "  ")
}

func (c *ProductContent) ToHTML() (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<h1>Products from %s</h1>\n", html.EscapeString(c.sourceURL)))
	sb.WriteString(fmt.Sprintf("<p>%d products</p>\n", len(c.products)))
	sb.WriteString("<table>\n<thead><tr><th>Name</th><th>Price</th><th>Description</th></tr></thead>\n<tbody>\n")
	for _, p := range c.products {
		sb.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(p.Name), html.EscapeString(p.Price), html.EscapeString(p.Description)))
	}
	sb.WriteString("</tbody>\n</table>\n")
	return sb.String(), nil
}

// ToMarkdown converts the HTML rendering with GitHub style tables.
func (c *ProductContent) ToMarkdown() (string, error) {
	page, err := c.ToHTML()
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.Table())
	markdown, err := converter.ConvertString(page)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return markdown + "\n", nil
}
