// Package catalog holds the laboratory reference catalog: which tests each section offers,
// what they cost, their reference ranges, and which tests are billed under a parent panel.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTestPrice is charged for tests the catalog has no price for.
const DefaultTestPrice = 300.0

// Registration/consultation charge created when a patient registers
const (
	RegistrationTestName   = "Patient Registration/Consultation"
	RegistrationSection    = "CONSULTATION"
	DefaultRegistrationFee = 150.0
)

// Catalog is the read-only lookup the workflow engine prices and classifies against.
type Catalog interface {
	// Price returns the catalog price of a test.
	Price(section, testName string) (float64, bool)

	// Range returns the reference range of a test.
	Range(section, testName string) (Range, bool)

	// ParentOf returns the parent test a component is billed under.
	ParentOf(section, testName string) (string, bool)

	// Components lists the component tests billed under parent, in catalog order.
	Components(section, parent string) []string

	// RegistrationFee is the flat consultation charge for a new patient.
	RegistrationFee() float64

	// Sections lists the catalog contents in declaration order.
	Sections() []Section
}

// Section is a laboratory department and the tests it runs
type Section struct {
	Name  string `json:"name" yaml:"name"`
	Tests []Test `json:"tests" yaml:"tests"`
}

// Test is one orderable test or a component of a parent panel
type Test struct {
	Name   string   `json:"name" yaml:"name"`
	Price  *float64 `json:"price,omitempty" yaml:"price,omitempty"`
	Range  *Range   `json:"range,omitempty" yaml:"range,omitempty"`
	Parent string   `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Range is a reference range. Either bound may be open; NormalText covers qualitative tests.
type Range struct {
	Min        *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max        *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	NormalText string   `json:"normal_text,omitempty" yaml:"normal_text,omitempty"`
	Unit       string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// String renders the range the way it is printed on result forms.
func (r Range) String() string {
	var bounds string
	switch {
	case r.Min != nil && r.Max != nil:
		bounds = formatNumber(*r.Min) + "-" + formatNumber(*r.Max)
	case r.Min != nil:
		bounds = ">" + formatNumber(*r.Min)
	case r.Max != nil:
		bounds = "<" + formatNumber(*r.Max)
	default:
		bounds = r.NormalText
	}
	if r.Unit == "" || bounds == r.NormalText {
		return bounds
	}
	return bounds + " " + r.Unit
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// PriceOrDefault returns the catalog price or DefaultTestPrice for unpriced tests.
func PriceOrDefault(c Catalog, section, testName string) float64 {
	if price, ok := c.Price(section, testName); ok {
		return price
	}
	return DefaultTestPrice
}

// Static is an immutable in-memory Catalog.
type Static struct {
	sections        []Section
	tests           map[string]Test
	registrationFee float64
}

var _ Catalog = (*Static)(nil)

// New validates sections and builds a Static catalog.
func New(sections []Section, registrationFee float64) (*Static, error) {
	if registrationFee < 0 {
		return nil, fmt.Errorf("registration fee must not be negative")
	}

	c := &Static{
		sections:        sections,
		tests:           make(map[string]Test),
		registrationFee: registrationFee,
	}

	for _, section := range sections {
		if strings.TrimSpace(section.Name) == "" {
			return nil, fmt.Errorf("section name is required")
		}
		for _, test := range section.Tests {
			if strings.TrimSpace(test.Name) == "" {
				return nil, fmt.Errorf("section %s: test name is required", section.Name)
			}
			key := lookupKey(section.Name, test.Name)
			if _, dup := c.tests[key]; dup {
				return nil, fmt.Errorf("section %s: duplicate test %q", section.Name, test.Name)
			}
			if test.Price != nil && *test.Price < 0 {
				return nil, fmt.Errorf("section %s: test %q has a negative price", section.Name, test.Name)
			}
			if r := test.Range; r != nil && r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				return nil, fmt.Errorf("section %s: test %q has min above max", section.Name, test.Name)
			}
			c.tests[key] = test
		}
	}

	for _, section := range sections {
		for _, test := range section.Tests {
			if test.Parent == "" {
				continue
			}
			parent, ok := c.tests[lookupKey(section.Name, test.Parent)]
			if !ok {
				return nil, fmt.Errorf("section %s: component %q references unknown parent %q", section.Name, test.Name, test.Parent)
			}
			if parent.Parent != "" {
				return nil, fmt.Errorf("section %s: parent %q of %q is itself a component", section.Name, test.Parent, test.Name)
			}
		}
	}

	return c, nil
}

// Price implements Catalog. Components carry no price of their own.
func (c *Static) Price(section, testName string) (float64, bool) {
	test, ok := c.tests[lookupKey(section, testName)]
	if !ok || test.Price == nil {
		return 0, false
	}
	return *test.Price, true
}

// Range implements Catalog.
func (c *Static) Range(section, testName string) (Range, bool) {
	test, ok := c.tests[lookupKey(section, testName)]
	if !ok || test.Range == nil {
		return Range{}, false
	}
	return *test.Range, true
}

// ParentOf implements Catalog.
func (c *Static) ParentOf(section, testName string) (string, bool) {
	test, ok := c.tests[lookupKey(section, testName)]
	if !ok || test.Parent == "" {
		return "", false
	}
	return test.Parent, true
}

// Components implements Catalog.
func (c *Static) Components(section, parent string) []string {
	var names []string
	for _, s := range c.sections {
		if normalizeSection(s.Name) != normalizeSection(section) {
			continue
		}
		for _, test := range s.Tests {
			if test.Parent == parent {
				names = append(names, test.Name)
			}
		}
	}
	return names
}

// RegistrationFee implements Catalog.
func (c *Static) RegistrationFee() float64 {
	return c.registrationFee
}

// Sections implements Catalog.
func (c *Static) Sections() []Section {
	out := make([]Section, len(c.sections))
	copy(out, c.sections)
	return out
}

func lookupKey(section, testName string) string {
	return normalizeSection(section) + "\x00" + strings.TrimSpace(testName)
}

func normalizeSection(section string) string {
	return strings.ToUpper(strings.TrimSpace(section))
}
