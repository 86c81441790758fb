package chem_consolidator

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// DocumentCounts maps canonical names to aggregate counts.  Iteration order is
// first-insertion order, stable for the life of the value.
type DocumentCounts struct {
	index  map[CanonicalName]int
	names  []CanonicalName
	counts []int
}

// SpeciesCount is one entry of a DocumentCounts.
type SpeciesCount struct {
	Name  CanonicalName `json:"name"`
	Count int           `json:"count"`
}

// NewDocumentCounts returns an empty table.
func NewDocumentCounts() *DocumentCounts {
	return &DocumentCounts{index: make(map[CanonicalName]int)}
}

// Add sums n into the entry for name, creating it if needed.  Sums past
// math.MaxInt saturate.
func (c *DocumentCounts) Add(name CanonicalName, n int) {
	if i, ok := c.index[name]; ok {
		if n > math.MaxInt-c.counts[i] {
			c.counts[i] = math.MaxInt
			return
		}
		c.counts[i] += n
		return
	}
	c.index[name] = len(c.names)
	c.names = append(c.names, name)
	c.counts = append(c.counts, n)
}

// Get returns the count for name.
func (c *DocumentCounts) Get(name CanonicalName) (int, bool) {
	if c == nil {
		return 0, false
	}
	i, ok := c.index[name]
	if !ok {
		return 0, false
	}
	return c.counts[i], true
}

// Len returns the number of distinct species.
func (c *DocumentCounts) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Names returns species in insertion order.
func (c *DocumentCounts) Names() []CanonicalName {
	if c == nil {
		return nil
	}
	out := make([]CanonicalName, len(c.names))
	copy(out, c.names)
	return out
}

// Total returns the sum of all counts.
func (c *DocumentCounts) Total() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Entries returns species in insertion order.
func (c *DocumentCounts) Entries() []SpeciesCount {
	if c == nil {
		return nil
	}
	out := make([]SpeciesCount, len(c.names))
	for i, name := range c.names {
		out[i] = SpeciesCount{Name: name, Count: c.counts[i]}
	}
	return out
}

// Sorted returns species by descending count, ties broken by name.
func (c *DocumentCounts) Sorted() []SpeciesCount {
	out := c.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ToMap returns a plain map copy.
func (c *DocumentCounts) ToMap() map[CanonicalName]int {
	out := make(map[CanonicalName]int, c.Len())
	for _, e := range c.Entries() {
		out[e.Name] = e.Count
	}
	return out
}

// MarshalJSON encodes the table as an object in insertion order.
func (c *DocumentCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(e.Name))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(e.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object.  Key order follows the JSON text.
func (c *DocumentCounts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = DocumentCounts{index: make(map[CanonicalName]int)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var n int
		if err := dec.Decode(&n); err != nil {
			return err
		}
		c.Add(CanonicalName(key), n)
	}
	_, err := dec.Token()
	return err
}
