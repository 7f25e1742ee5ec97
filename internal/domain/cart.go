package domain

// ProductRef is what the cart needs to know about a product when it is added.
type ProductRef struct {
	SKU   string  `json:"sku"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CartLine is one product in the cart. There is at most one line per SKU.
type CartLine struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// Subtotal returns UnitPrice × Quantity.
func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Cart is the in-progress sale of one operator session. Lines keep the order
// in which SKUs were first added. A Cart is not safe for concurrent use; the
// owning session serializes access.
type Cart struct {
	lines   []CartLine
	index   map[string]int
	version uint64
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{index: make(map[string]int)}
}

// AddItem adds one unit of p. A SKU already in the cart has its quantity
// incremented and keeps the name and price captured when it was first added.
func (c *Cart) AddItem(p ProductRef) {
	if i, ok := c.index[p.SKU]; ok {
		c.lines[i].Quantity++
	} else {
		c.index[p.SKU] = len(c.lines)
		c.lines = append(c.lines, CartLine{
			SKU:       p.SKU,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  1,
		})
	}
	c.version++
}

// RemoveItem deletes the whole line for sku. Unknown SKUs are ignored.
func (c *Cart) RemoveItem(sku string) {
	i, ok := c.index[sku]
	if !ok {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	delete(c.index, sku)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].SKU] = j
	}
	c.version++
}

// Total is the sum of unit price × quantity over all lines.
func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.lines {
		total += l.Subtotal()
	}
	return total
}

// Clear empties the cart.
func (c *Cart) Clear() {
	if len(c.lines) == 0 {
		return
	}
	c.lines = nil
	c.index = make(map[string]int)
	c.version++
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// ItemCount returns the number of units across all lines.
func (c *Cart) ItemCount() int {
	var n int
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Quantity returns the units of sku in the cart, or 0.
func (c *Cart) Quantity(sku string) int {
	if i, ok := c.index[sku]; ok {
		return c.lines[i].Quantity
	}
	return 0
}

// Version changes on every mutation that alters the cart.
func (c *Cart) Version() uint64 {
	return c.version
}

// CartView is the read model returned to the terminal UI.
type CartView struct {
	Lines     []CartLine `json:"lines"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"item_count"`
}

// View snapshots the cart.
func (c *Cart) View() CartView {
	return CartView{
		Lines:     c.Lines(),
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}
}
