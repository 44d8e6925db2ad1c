package lookup

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Field names one lookup.
type Field string

// Lookup fields.
const (
	FieldCID       Field = "cid"
	FieldCAS       Field = "cas"
	FieldIUPAC     Field = "iupac"
	FieldFormula   Field = "formula"
	FieldSynonyms  Field = "synonyms"
	FieldCompound  Field = "compound"
	FieldWikipedia Field = "wikipedia"
	FieldDrugBank  Field = "drugbank"
	FieldFuzzy     Field = "drugbank-fuzzy"
	FieldSearch    Field = "search"
	FieldHNMR      Field = "hnmr"
)

// Fields lists every field in display order.
var Fields = []Field{
	FieldCID, FieldCAS, FieldIUPAC, FieldFormula, FieldSynonyms,
	FieldCompound, FieldWikipedia, FieldDrugBank, FieldFuzzy,
	FieldSearch, FieldHNMR,
}

// ParseField parses a field name.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown lookup field %q", s)
}

// Offline reports whether the field is built without querying PubChem.
func (f Field) Offline() bool {
	switch f {
	case FieldFuzzy, FieldSearch, FieldHNMR:
		return true
	}
	return false
}

// Result is the answer to one lookup.
type Result struct {
	Field  Field
	Query  string
	CID    int64
	Value  string
	Values []string
}

// Lookup answers a single field for a line notation.
func (c *Client) Lookup(ctx context.Context, smiles string, f Field) (Result, error) {
	smiles = strings.TrimSpace(smiles)
	res := Result{Field: f, Query: smiles}
	if smiles == "" {
		return res, ErrNotFound
	}

	switch f {
	case FieldSearch:
		res.Value = SearchURL(smiles)
		return res, nil
	case FieldHNMR:
		res.Value = HNMRURL(smiles)
		return res, nil
	case FieldFuzzy:
		res.Value = DrugBankFuzzyURL(smiles)
		return res, nil
	}

	cid, err := c.CID(ctx, smiles)
	if err != nil {
		return res, err
	}
	res.CID = cid

	switch f {
	case FieldCID:
		res.Value = strconv.FormatInt(cid, 10)
	case FieldCompound:
		res.Value = CompoundURL(cid)
	case FieldCAS:
		res.Value, err = c.CAS(ctx, cid)
	case FieldIUPAC:
		res.Value, err = c.IUPACName(ctx, cid)
	case FieldFormula:
		res.Value, err = c.MolecularFormula(ctx, cid)
	case FieldSynonyms:
		res.Values, err = c.Synonyms(ctx, cid)
		if err == nil && len(res.Values) == 0 {
			err = ErrNotFound
		}
		if len(res.Values) > 0 {
			res.Value = res.Values[0]
		}
	case FieldWikipedia:
		res.Value, err = c.Wikipedia(ctx, smiles)
	case FieldDrugBank:
		res.Value, err = c.DrugBank(ctx, smiles)
	default:
		err = fmt.Errorf("unknown lookup field %q", f)
	}
	return res, err
}
