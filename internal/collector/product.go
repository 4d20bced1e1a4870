package collector

// Product is one collected listing entry. Fields are free text and may be
// empty when the page did not expose them.
type Product struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// merge returns p with every empty field filled from fallback.
func (p Product) merge(fallback Product) Product {
	if p.Name == "" {
		p.Name = fallback.Name
	}
	if p.Price == "" {
		p.Price = fallback.Price
	}
	if p.Description == "" {
		p.Description = fallback.Description
	}
	return p
}

// Accumulator collects products in document order up to a fixed cap.
type Accumulator struct {
	items []Product
	max   int
}

// NewAccumulator creates an Accumulator holding at most max products.
func NewAccumulator(max int) *Accumulator {
	if max < 0 {
		max = 0
	}
	return &Accumulator{max: max}
}

// Add appends p and reports whether it was accepted.
func (a *Accumulator) Add(p Product) bool {
	if a.Full() {
		return false
	}
	a.items = append(a.items, p)
	return true
}

// Full reports whether the cap has been reached.
func (a *Accumulator) Full() bool {
	return len(a.items) >= a.max
}

// Len returns the number of collected products.
func (a *Accumulator) Len() int {
	return len(a.items)
}

// Products returns a copy of the collected products, truncated to the cap.
func (a *Accumulator) Products() []Product {
	n := len(a.items)
	if n > a.max {
		n = a.max
	}
	out := make([]Product, n)
	copy(out, a.items[:n])
	return out
}
