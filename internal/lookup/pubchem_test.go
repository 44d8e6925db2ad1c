package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	clocktesting "k8s.io/utils/clock/testing"
)

const ethanolRecord = `{
  "Record": {
    "RecordTitle": "Ethanol",
    "Section": [
      {"TOCHeading": "Names and Identifiers", "Section": [
        {"TOCHeading": "DrugBank ID", "Information": [
          {"Value": {"StringWithMarkup": [{"String": "DB00898"}]}}
        ]}
      ]},
      {"TOCHeading": "Associated Disorders and Diseases", "Section": [
        {"TOCHeading": "Wikipedia", "Information": [
          {"Name": "Wikipedia (de)", "URL": "https://de.wikipedia.org/wiki/Ethanol",
           "Value": {"StringWithMarkup": [{"String": "Ethanol"}]}},
          {"Name": "Wikipedia (en)", "URL": "https://en.wikipedia.org/wiki/Ethanol",
           "Value": {"StringWithMarkup": [{"String": "Ethanol"}]}}
        ]}
      ]}
    ]
  }
}`

type pubchemFake struct {
	mu   sync.Mutex
	hits map[string]int
	srv  *httptest.Server
	fail bool
}

func newPubchemFake(t *testing.T) *pubchemFake {
	t.Helper()
	f := &pubchemFake{hits: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/pug/compound/smiles/", func(w http.ResponseWriter, r *http.Request) {
		f.count(r)
		if f.failing() {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		smiles := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/rest/pug/compound/smiles/"), "/cids/JSON")
		switch smiles {
		case "CCO":
			w.Write([]byte(`{"IdentifierList":{"CID":[702]}}`))
		case "C1=CC=CC=C1(":
			w.Write([]byte(`{"IdentifierList":{"CID":[0]}}`))
		default:
			http.Error(w, `{"Fault":{"Code":"PUGREST.NotFound"}}`, http.StatusNotFound)
		}
	})
	mux.HandleFunc("/rest/pug/compound/cid/702/synonyms/JSON", func(w http.ResponseWriter, r *http.Request) {
		f.count(r)
		w.Write([]byte(`{"InformationList":{"Information":[{"CID":702,"Synonym":[
			"ethanol", " Ethanol ", "ethanol", "EC 200-578-6", "64-17-5", "", "Alcohol"]}]}}`))
	})
	mux.HandleFunc("/rest/pug/compound/cid/702/property/IUPACName/JSON", func(w http.ResponseWriter, r *http.Request) {
		f.count(r)
		w.Write([]byte(`{"PropertyTable":{"Properties":[{"CID":702,"IUPACName":"ethanol"}]}}`))
	})
	mux.HandleFunc("/rest/pug/compound/cid/702/property/MolecularFormula/JSON", func(w http.ResponseWriter, r *http.Request) {
		f.count(r)
		w.Write([]byte(`{"PropertyTable":{"Properties":[{"CID":702,"MolecularFormula":"C2H6O"}]}}`))
	})
	mux.HandleFunc("/rest/pug_view/data/compound/702/JSON/", func(w http.ResponseWriter, r *http.Request) {
		f.count(r)
		w.Write([]byte(ethanolRecord))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *pubchemFake) count(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[r.URL.Path]++
}

func (f *pubchemFake) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *pubchemFake) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *pubchemFake) hitsFor(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *pubchemFake) client(opts ...Option) *Client {
	opts = append([]Option{
		WithBaseURL(f.srv.URL + "/rest/pug"),
		WithViewURL(f.srv.URL + "/rest/pug_view"),
		WithHTTPClient(f.srv.Client()),
	}, opts...)
	return NewClient(opts...)
}

func TestClient_CIDCached(t *testing.T) {
	f := newPubchemFake(t)
	c := f.client()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cid, err := c.CID(ctx, "CCO")
		if err != nil {
			t.Fatalf("CID() error = %v", err)
		}
		if cid != 702 {
			t.Errorf("CID() = %d, want 702", cid)
		}
	}
	if got := f.hitsFor("/rest/pug/compound/smiles/CCO/cids/JSON"); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestClient_CIDNegativeCached(t *testing.T) {
	f := newPubchemFake(t)
	c := f.client()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.CID(ctx, "XX"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("CID() error = %v, want ErrNotFound", err)
		}
	}
	if got := f.hitsFor("/rest/pug/compound/smiles/XX/cids/JSON"); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}

	// An empty identifier list is a miss too.
	if _, err := c.CID(ctx, "C1=CC=CC=C1("); !errors.Is(err, ErrNotFound) {
		t.Errorf("CID() error = %v, want ErrNotFound", err)
	}
}

func TestClient_CIDTransportErrorNotCached(t *testing.T) {
	f := newPubchemFake(t)
	c := f.client()
	ctx := context.Background()

	f.setFail(true)
	_, err := c.CID(ctx, "CCO")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("CID() error = %v, want a 503 StatusError", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("a server failure must not read as not found")
	}

	f.setFail(false)
	if cid, err := c.CID(ctx, "CCO"); err != nil || cid != 702 {
		t.Errorf("CID() after recovery = %d, %v", cid, err)
	}
}

func TestClient_CacheExpiry(t *testing.T) {
	f := newPubchemFake(t)
	clk := clocktesting.NewFakePassiveClock(time.Now())
	c := f.client(WithClock(clk), WithCache(time.Minute, 8))
	ctx := context.Background()

	if _, err := c.CID(ctx, "CCO"); err != nil {
		t.Fatal(err)
	}
	clk.SetTime(clk.Now().Add(2 * time.Minute))
	if _, err := c.CID(ctx, "CCO"); err != nil {
		t.Fatal(err)
	}
	if got := f.hitsFor("/rest/pug/compound/smiles/CCO/cids/JSON"); got != 2 {
		t.Errorf("requests = %d, want 2 after expiry", got)
	}
}

func TestClient_Lookup(t *testing.T) {
	f := newPubchemFake(t)
	c := f.client()
	ctx := context.Background()

	tests := []struct {
		field Field
		want  string
	}{
		{FieldCID, "702"},
		{FieldCAS, "64-17-5"},
		{FieldIUPAC, "ethanol"},
		{FieldFormula, "C2H6O"},
		{FieldSynonyms, "ethanol"},
		{FieldCompound, "https://pubchem.ncbi.nlm.nih.gov/compound/702"},
		{FieldWikipedia, "https://en.wikipedia.org/wiki/Ethanol"},
		{FieldDrugBank, "https://go.drugbank.com/drugs/DB00898"},
		{FieldSearch, "https://pubchem.ncbi.nlm.nih.gov/#query=CCO"},
		{FieldHNMR, "https://www.nmrdb.org/new_predictor/index.shtml?smiles=CCO&v=v2.157.0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			res, err := c.Lookup(ctx, " CCO ", tt.field)
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if res.Value != tt.want {
				t.Errorf("Lookup() = %q, want %q", res.Value, tt.want)
			}
		})
	}
}

func TestClient_Synonyms(t *testing.T) {
	f := newPubchemFake(t)
	c := f.client()

	got, err := c.Synonyms(context.Background(), 702)
	if err != nil {
		t.Fatalf("Synonyms() error = %v", err)
	}
	want := []string{"ethanol", "Ethanol", "EC 200-578-6", "64-17-5", "Alcohol"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Synonyms() mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_LookupNotFound(t *testing.T) {
	f := newPubchemFake(t)
	c := f.client()

	for _, field := range []Field{FieldCAS, FieldWikipedia, FieldDrugBank} {
		if _, err := c.Lookup(context.Background(), "N#N", field); !errors.Is(err, ErrNotFound) {
			t.Errorf("Lookup(%s) error = %v, want ErrNotFound", field, err)
		}
	}
	if _, err := c.Lookup(context.Background(), "  ", FieldCID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(empty) error = %v, want ErrNotFound", err)
	}
}

func TestFindCAS(t *testing.T) {
	tests := []struct {
		name     string
		synonyms []string
		want     string
	}{
		{"first match", []string{"ethanol", "64-17-5", "1-23-4"}, "64-17-5"},
		{"EC numbers do not match", []string{"EC 200-578-6"}, ""},
		{"digits only", []string{"6417-5"}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindCAS(tt.synonyms); got != tt.want {
				t.Errorf("FindCAS() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseField(t *testing.T) {
	if f, err := ParseField(" IUPAC "); err != nil || f != FieldIUPAC {
		t.Errorf("ParseField() = %q, %v", f, err)
	}
	if _, err := ParseField("melting-point"); err == nil {
		t.Error("expected an error for an unknown field")
	}
}
