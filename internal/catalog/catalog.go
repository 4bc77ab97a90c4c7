// Package catalog loads the design-token price table.
//
// The table is written in CUE and unified with a fixed schema, so a
// malformed override (negative price, zero tokens, missing id) is rejected
// at load time rather than mispricing a purchase later.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/shopspring/decimal"
)

//go:embed default.cue
var defaultSource []byte

const schemaSource = `
#Package: {
	id:      string & !=""
	name:    string & !=""
	tokens:  int & >0
	price:   number & >0
	popular: bool | *false
}

packages: [...#Package]
`

// ErrUnknownPackage is returned when no package sells the requested amount.
var ErrUnknownPackage = errors.New("catalog: no package for token amount")

// Package is one purchasable bundle of design tokens.
type Package struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Tokens  int             `json:"tokens"`
	Price   decimal.Decimal `json:"price"`
	Popular bool            `json:"popular,omitempty"`
}

// PerToken is the unit price rounded to cents.
func (p Package) PerToken() decimal.Decimal {
	return p.Price.Div(decimal.NewFromInt(int64(p.Tokens))).Round(2)
}

// Catalog is an immutable price table keyed by token amount.
type Catalog struct {
	packages []Package
	byTokens map[int]Package
}

// Default returns the built-in catalog: 5 for 9.99, 15 for 24.99, 50 for 69.99.
// The catalog is compiled once and shared; it is immutable.
var Default = sync.OnceValue(func() *Catalog {
	c, err := Parse("default.cue", defaultSource)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
})

// Load reads and validates a CUE catalog file.
func Load(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(path, src)
}

// Parse compiles src, unifies it with the package schema and builds the
// catalog. filename is used in error positions only.
func Parse(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling catalog schema: %w", err)
	}

	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling catalog: %s", cueerrors.Details(err, nil))
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid catalog: %s", cueerrors.Details(err, nil))
	}

	list, err := unified.LookupPath(cue.ParsePath("packages")).List()
	if err != nil {
		return nil, fmt.Errorf("iterating packages: %w", err)
	}

	c := &Catalog{byTokens: make(map[int]Package)}
	for list.Next() {
		pkg, err := decodePackage(list.Value())
		if err != nil {
			return nil, err
		}
		if prev, dup := c.byTokens[pkg.Tokens]; dup {
			return nil, fmt.Errorf("invalid catalog: packages %q and %q both sell %d tokens", prev.ID, pkg.ID, pkg.Tokens)
		}
		c.byTokens[pkg.Tokens] = pkg
		c.packages = append(c.packages, pkg)
	}

	if len(c.packages) == 0 {
		return nil, errors.New("invalid catalog: no packages defined")
	}
	return c, nil
}

func decodePackage(v cue.Value) (Package, error) {
	var p Package
	var err error

	if p.ID, err = v.LookupPath(cue.ParsePath("id")).String(); err != nil {
		return Package{}, fmt.Errorf("package id: %w", err)
	}
	if p.Name, err = v.LookupPath(cue.ParsePath("name")).String(); err != nil {
		return Package{}, fmt.Errorf("package %s name: %w", p.ID, err)
	}
	tokens, err := v.LookupPath(cue.ParsePath("tokens")).Int64()
	if err != nil {
		return Package{}, fmt.Errorf("package %s tokens: %w", p.ID, err)
	}
	p.Tokens = int(tokens)
	popular, _ := v.LookupPath(cue.ParsePath("popular")).Default()
	if p.Popular, err = popular.Bool(); err != nil {
		return Package{}, fmt.Errorf("package %s popular: %w", p.ID, err)
	}

	// Read the price through its literal text so 9.99 never passes
	// through a float.
	raw, err := v.LookupPath(cue.ParsePath("price")).MarshalJSON()
	if err != nil {
		return Package{}, fmt.Errorf("package %s price: %w", p.ID, err)
	}
	if p.Price, err = decimal.NewFromString(string(raw)); err != nil {
		return Package{}, fmt.Errorf("package %s price: %w", p.ID, err)
	}
	return p, nil
}

// Packages returns the packages in declaration order.
func (c *Catalog) Packages() []Package {
	return slices.Clone(c.packages)
}

// Lookup finds the package selling exactly tokens.
func (c *Catalog) Lookup(tokens int) (Package, bool) {
	p, ok := c.byTokens[tokens]
	return p, ok
}

// Price returns the cost of buying tokens, or ErrUnknownPackage.
func (c *Catalog) Price(tokens int) (decimal.Decimal, error) {
	p, ok := c.byTokens[tokens]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %d", ErrUnknownPackage, tokens)
	}
	return p.Price, nil
}

// Amounts lists the purchasable token amounts in declaration order.
func (c *Catalog) Amounts() []int {
	out := make([]int, len(c.packages))
	for i, p := range c.packages {
		out[i] = p.Tokens
	}
	return out
}
