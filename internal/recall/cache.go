package recall

import (
	"strings"

	"github.com/sells-group/recall-cli/internal/model"
)

// placeholders are portal strings that mean "no recall information", not a
// recall number. Matched case-insensitively after trimming.
var placeholders = map[string]bool{
	"no recall information": true,
	"no open recalls":       true,
	"no recalls":            true,
	"none":                  true,
	"n/a":                   true,
	"-":                     true,
	"--":                    true,
}

// IsPlaceholder reports whether a recall-number value carries no information.
func IsPlaceholder(number string) bool {
	return number == "" || placeholders[strings.ToLower(strings.TrimSpace(number))]
}

// Cache indexes the recall numbers discovered in Phase 1: the set of unique
// numbers to resolve, and for each number the VINs that share it. After
// Phase 3 it fans each resolution back out to every sharing VIN, so all VINs
// observe the same EaInfo value and the registry is asked about each number
// exactly once per run.
type Cache struct {
	order    []string
	vins     map[string][]*model.VinScrapeResult
	resolved map[string]model.EaInfo
}

// Build collects the unique, non-placeholder recall numbers across all
// successful Phase 1 results, preserving first-discovery order.
func Build(results []*model.VinScrapeResult) *Cache {
	c := &Cache{
		vins:     make(map[string][]*model.VinScrapeResult),
		resolved: make(map[string]model.EaInfo),
	}

	for _, r := range results {
		if !r.Primary.Success {
			continue
		}
		seen := make(map[string]bool) // a VIN can list the same number twice
		for _, entry := range r.Primary.Recalls {
			num := strings.TrimSpace(entry.Number)
			if IsPlaceholder(num) || seen[num] {
				continue
			}
			seen[num] = true
			if _, ok := c.vins[num]; !ok {
				c.order = append(c.order, num)
			}
			c.vins[num] = append(c.vins[num], r)
		}
	}

	return c
}

// Numbers returns the unique recall numbers in first-discovery order.
func (c *Cache) Numbers() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// VINCount returns how many VINs share the given number.
func (c *Cache) VINCount(number string) int {
	return len(c.vins[number])
}

// Resolve records the registry's answer for one number. Later calls for the
// same number are ignored; the first resolution is the one every VIN sees.
func (c *Cache) Resolve(number string, info model.EaInfo) {
	if _, ok := c.resolved[number]; ok {
		return
	}
	c.resolved[number] = info
}

// Resolved reports whether the number already has an answer this run.
func (c *Cache) Resolved(number string) bool {
	_, ok := c.resolved[number]
	return ok
}

// Apply fans every resolution out to the VINs sharing its number. Numbers
// with no resolution (lookup failed, or Phase 3 skipped) get the explicit
// not-found value so downstream renders them as "NONE" rather than omitting
// them. Returns the count of numbers that resolved to an existing EA.
func (c *Cache) Apply() int {
	found := 0
	for _, num := range c.order {
		info, ok := c.resolved[num]
		if !ok {
			info = model.EaInfo{Number: num, Exists: false}
		}
		if info.Exists {
			found++
		}
		for _, r := range c.vins[num] {
			if r.RecallToEA == nil {
				r.RecallToEA = make(map[string]model.EaInfo)
			}
			r.RecallToEA[num] = info
		}
	}
	return found
}
