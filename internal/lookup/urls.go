package lookup

import (
	"net/url"
	"strconv"
)

// External pages. They are opened by the user, not fetched.
const (
	pubchemSite  = "https://pubchem.ncbi.nlm.nih.gov"
	nmrPredictor = "https://www.nmrdb.org/new_predictor/index.shtml"
	drugbankSite = "https://go.drugbank.com"
)

// CompoundURL returns the PubChem page of a compound.
func CompoundURL(cid int64) string {
	return pubchemSite + "/compound/" + strconv.FormatInt(cid, 10)
}

// SearchURL returns a PubChem search for a line notation.
func SearchURL(smiles string) string {
	return pubchemSite + "/#query=" + url.QueryEscape(smiles)
}

// HNMRURL returns the proton NMR predictor for a line notation.
func HNMRURL(smiles string) string {
	q := url.Values{}
	q.Set("v", "v2.157.0")
	q.Set("smiles", smiles)
	return nmrPredictor + "?" + q.Encode()
}

// DrugBankDrugURL returns the DrugBank page for a DrugBank ID.
func DrugBankDrugURL(id string) string {
	return drugbankSite + "/drugs/" + url.PathEscape(id)
}

// DrugBankExactURL returns a DrugBank search by CAS number.
func DrugBankExactURL(cas string) string {
	q := url.Values{}
	q.Set("searcher", "drugs")
	q.Set("query", cas)
	return drugbankSite + "/unearth/q?" + q.Encode()
}

// DrugBankFuzzyURL returns a DrugBank similarity search for a line
// notation.
func DrugBankFuzzyURL(smiles string) string {
	q := url.Values{}
	q.Set("structure", smiles)
	q.Set("method", "similarity")
	return drugbankSite + "/structures/search/small_molecule_drugs/structure?" + q.Encode()
}
