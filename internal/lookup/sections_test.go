package lookup

import (
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestFindWikipediaLink(t *testing.T) {
	tests := []struct {
		name     string
		sections string
		title    string
		synonyms []string
		want     string
	}{
		{
			name:     "no sections",
			sections: `[]`,
			want:     "",
		},
		{
			name: "exact title beats english host",
			sections: `[{"TOCHeading":"Wikipedia","Information":[
				{"URL":"https://en.wikipedia.org/wiki/Drug","Value":{"StringWithMarkup":[{"String":"Drug"}]}},
				{"URL":"https://fr.wikipedia.org/wiki/Fluox","Value":{"StringWithMarkup":[{"String":" FLUOXETINE "}]}}
			]}]`,
			title: "Fluoxetine",
			want:  "https://fr.wikipedia.org/wiki/Fluox",
		},
		{
			name: "synonym substring",
			sections: `[{"TOCHeading":"Wikipedia","Information":[
				{"URL":"https://de.wikipedia.org/wiki/A","Value":{"StringWithMarkup":[{"String":"Other"}]}},
				{"URL":"https://de.wikipedia.org/wiki/B","Value":{"StringWithMarkup":[{"String":"Prozac"}]}}
			]}]`,
			title:    "Fluoxetine",
			synonyms: []string{"prozac hydrochloride"},
			want:     "https://de.wikipedia.org/wiki/B",
		},
		{
			name: "name hint breaks ties",
			sections: `[{"TOCHeading":"Wikipedia","Information":[
				{"Name":"Wikipedia","URL":"https://x.org/1"},
				{"Name":"Wikipedia (en)","URL":"https://x.org/2"}
			]}]`,
			want: "https://x.org/2",
		},
		{
			name: "entries without url are skipped",
			sections: `[{"TOCHeading":"Wikipedia","Information":[{"Name":"Wikipedia (en)"}]},
				{"TOCHeading":"Other","Section":[
					{"TOCHeading":"Wikipedia","Information":[{"URL":"https://en.wikipedia.org/wiki/Nested"}]}
				]}]`,
			want: "https://en.wikipedia.org/wiki/Nested",
		},
		{
			name: "first section in document order wins",
			sections: `[{"TOCHeading":"A","Section":[
					{"TOCHeading":"Wikipedia","Information":[{"URL":"https://de.wikipedia.org/wiki/First"}]}
				]},
				{"TOCHeading":"Wikipedia","Information":[{"URL":"https://en.wikipedia.org/wiki/Second"}]}]`,
			want: "https://de.wikipedia.org/wiki/First",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindWikipediaLink(gjson.Parse(tt.sections), tt.title, tt.synonyms)
			if got != tt.want {
				t.Errorf("FindWikipediaLink() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindDrugBankID(t *testing.T) {
	sections := gjson.Parse(`[{"TOCHeading":"Names","Section":[
		{"TOCHeading":"DrugBank ID","Information":[
			{"Value":{"StringWithMarkup":[{"String":""}]}},
			{"URL":"https://go.drugbank.com/drugs/DB00472","Value":{"StringWithMarkup":[{"String":"DB00472"}]}}
		]}
	]}]`)

	id, link := FindDrugBankID(sections)
	if id != "DB00472" || link != "https://go.drugbank.com/drugs/DB00472" {
		t.Errorf("FindDrugBankID() = %q, %q", id, link)
	}

	if id, link := FindDrugBankID(gjson.Parse(`[]`)); id != "" || link != "" {
		t.Errorf("FindDrugBankID(empty) = %q, %q", id, link)
	}
}

func TestCache_MaxSize(t *testing.T) {
	c := NewCache[string, int](time.Hour, WithMaxSize[string, int](2))
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("b", 3)
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, overwriting must not evict", c.Size())
	}
	c.Set("c", 4)
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
	if v, ok := c.Get("c"); !ok || v != 4 {
		t.Errorf("Get(c) = %d, %v", v, ok)
	}
}
