package chat

const MaxPageSize = 100

// Page is an offset-based pagination window. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// Normalized clamps the page into valid bounds, using def as the size when unset.
func (p Page) Normalized(def int) Page {
	if p.Number <= 0 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = def
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Bounds returns the [start, end) slice window over total items.
func (p Page) Bounds(total int) (int, int) {
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Size
	if end > total || p.Size <= 0 {
		end = total
	}
	return start, end
}
