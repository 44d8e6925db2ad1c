package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"k8s.io/utils/clock"

	"github.com/dshills/molsync/internal/logging"
)

// Default PubChem endpoints.
const (
	DefaultBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"
	DefaultViewURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug_view"
)

// casPattern matches CAS registry numbers among the synonyms.
var casPattern = regexp.MustCompile(`^\d+-\d{2}-\d$`)

// Client queries the PubChem REST API.
type Client struct {
	baseURL   string
	viewURL   string
	userAgent string
	http      *http.Client
	log       *logging.Logger

	// CIDs by line notation. Zero records a compound PubChem does not know.
	cids *Cache[string, int64]
}

// Option configures a Client.
type Option func(*clientSettings)

type clientSettings struct {
	baseURL   string
	viewURL   string
	userAgent string
	timeout   time.Duration
	cacheTTL  time.Duration
	cacheSize int
	http      *http.Client
	clock     clock.PassiveClock
	log       *logging.Logger
}

// WithBaseURL sets the PUG REST endpoint.
func WithBaseURL(u string) Option {
	return func(s *clientSettings) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithViewURL sets the PUG View endpoint.
func WithViewURL(u string) Option {
	return func(s *clientSettings) { s.viewURL = strings.TrimRight(u, "/") }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *clientSettings) { s.userAgent = ua }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *clientSettings) { s.timeout = d }
}

// WithCache sets the CID cache lifetime and size.
func WithCache(ttl time.Duration, size int) Option {
	return func(s *clientSettings) {
		s.cacheTTL = ttl
		s.cacheSize = size
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *clientSettings) { s.http = c }
}

// WithClock sets the clock used for cache expiry.
func WithClock(c clock.PassiveClock) Option {
	return func(s *clientSettings) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *clientSettings) { s.log = l }
}

// NewClient creates a PubChem client.
func NewClient(opts ...Option) *Client {
	s := clientSettings{
		baseURL:   DefaultBaseURL,
		viewURL:   DefaultViewURL,
		userAgent: "molsync",
		timeout:   10 * time.Second,
		cacheTTL:  time.Hour,
		cacheSize: 256,
		clock:     clock.RealClock{},
		log:       logging.Null(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.http == nil {
		s.http = &http.Client{Timeout: s.timeout}
	}

	return &Client{
		baseURL:   s.baseURL,
		viewURL:   s.viewURL,
		userAgent: s.userAgent,
		http:      s.http,
		log:       s.log.WithComponent("lookup"),
		cids: NewCache[string, int64](s.cacheTTL,
			WithMaxSize[string, int64](s.cacheSize),
			WithCacheClock[string, int64](s.clock)),
	}
}

// CID returns the PubChem compound ID for a line notation. Both hits and
// misses are cached; transport failures are not.
func (c *Client) CID(ctx context.Context, smiles string) (int64, error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return 0, ErrNotFound
	}
	if cid, ok := c.cids.Get(smiles); ok {
		if cid == 0 {
			return 0, ErrNotFound
		}
		return cid, nil
	}

	body, err := c.get(ctx, c.baseURL+"/compound/smiles/"+url.PathEscape(smiles)+"/cids/JSON")
	if errors.Is(err, ErrNotFound) {
		c.cids.Set(smiles, 0)
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	cid := gjson.GetBytes(body, "IdentifierList.CID.0").Int()
	c.cids.Set(smiles, cid)
	if cid == 0 {
		return 0, ErrNotFound
	}
	return cid, nil
}

// Synonyms returns the trimmed, de-duplicated synonyms of a compound in
// PubChem's order.
func (c *Client) Synonyms(ctx context.Context, cid int64) ([]string, error) {
	body, err := c.get(ctx, c.compoundURL(cid, "synonyms/JSON"))
	if err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]bool)
	gjson.GetBytes(body, "InformationList.Information.0.Synonym").ForEach(func(_, v gjson.Result) bool {
		s := strings.TrimSpace(v.String())
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
		return true
	})
	return out, nil
}

// CAS returns the CAS registry number of a compound.
func (c *Client) CAS(ctx context.Context, cid int64) (string, error) {
	synonyms, err := c.Synonyms(ctx, cid)
	if err != nil {
		return "", err
	}
	if cas := FindCAS(synonyms); cas != "" {
		return cas, nil
	}
	return "", ErrNotFound
}

// FindCAS returns the first synonym shaped like a CAS registry number.
func FindCAS(synonyms []string) string {
	for _, s := range synonyms {
		if casPattern.MatchString(s) && !strings.HasPrefix(s, "EC") {
			return s
		}
	}
	return ""
}

// IUPACName returns the IUPAC name of a compound.
func (c *Client) IUPACName(ctx context.Context, cid int64) (string, error) {
	return c.property(ctx, cid, "IUPACName")
}

// MolecularFormula returns the molecular formula of a compound.
func (c *Client) MolecularFormula(ctx context.Context, cid int64) (string, error) {
	return c.property(ctx, cid, "MolecularFormula")
}

func (c *Client) property(ctx context.Context, cid int64, name string) (string, error) {
	body, err := c.get(ctx, c.compoundURL(cid, "property/"+name+"/JSON"))
	if err != nil {
		return "", err
	}
	v := gjson.GetBytes(body, "PropertyTable.Properties.0."+name).String()
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// Record returns the full PubChem View record of a compound.
func (c *Client) Record(ctx context.Context, cid int64) (gjson.Result, error) {
	body, err := c.get(ctx, c.viewURL+"/data/compound/"+strconv.FormatInt(cid, 10)+"/JSON/")
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(body, "Record"), nil
}

// Wikipedia returns the best Wikipedia link for a line notation.
func (c *Client) Wikipedia(ctx context.Context, smiles string) (string, error) {
	cid, err := c.CID(ctx, smiles)
	if err != nil {
		return "", err
	}
	record, err := c.Record(ctx, cid)
	if err != nil {
		return "", err
	}
	// Synonyms only refine the score; a failure is not fatal.
	synonyms, err := c.Synonyms(ctx, cid)
	if err != nil {
		c.log.Debug("synonyms for %d: %v", cid, err)
	}

	link := FindWikipediaLink(record.Get("Section"), record.Get("RecordTitle").String(), synonyms)
	if link == "" {
		return "", ErrNotFound
	}
	return link, nil
}

// DrugBank returns the DrugBank page for a line notation. The DrugBank ID
// from the PubChem record is preferred; a search by CAS number is the
// fallback.
func (c *Client) DrugBank(ctx context.Context, smiles string) (string, error) {
	cid, err := c.CID(ctx, smiles)
	if err != nil {
		return "", err
	}
	record, err := c.Record(ctx, cid)
	if err != nil {
		return "", err
	}
	if _, link := FindDrugBankID(record.Get("Section")); link != "" {
		return link, nil
	}

	cas, err := c.CAS(ctx, cid)
	if err != nil {
		return "", err
	}
	return DrugBankExactURL(cas), nil
}

func (c *Client) compoundURL(cid int64, suffix string) string {
	return c.baseURL + "/compound/cid/" + strconv.FormatInt(cid, 10) + "/" + suffix
}

// get fetches a JSON document. A 404 is reported as ErrNotFound.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying pubchem: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		se := &StatusError{URL: u, StatusCode: resp.StatusCode}
		c.log.Debug("%v", se)
		if se.NotFound() {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, se)
		}
		return nil, se
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("pubchem returned invalid JSON from %s", u)
	}
	return body, nil
}
