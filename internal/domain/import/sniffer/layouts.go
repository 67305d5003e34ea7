package sniffer

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/echo-importer/internal/domain/import/normalizer"
)

// Layout describes a known export format as alias sets per canonical field.
// A layout matches a header row when every field it declares is found.
type Layout struct {
	Name             string   `yaml:"name"`
	Date             []string `yaml:"date"`
	Amount           []string `yaml:"amount"`
	Debit            []string `yaml:"debit"`
	Credit           []string `yaml:"credit"`
	Description      []string `yaml:"description"`
	Counterparty     []string `yaml:"counterparty"`
	PaymentReference []string `yaml:"payment_reference"`
	TransactionType  []string `yaml:"transaction_type"`
	Category         []string `yaml:"category"`
	Currency         []string `yaml:"currency"`
	DateFormat       string   `yaml:"date_format"`
	DecimalSeparator string   `yaml:"decimal_separator"`
}

type layoutField struct {
	name    string
	aliases []string
	target  *string
}

func (l *Layout) fields(m *normalizer.ColumnMap) []layoutField {
	return []layoutField{
		{"date", l.Date, &m.Date},
		{"amount", l.Amount, &m.Amount},
		{"debit", l.Debit, &m.Debit},
		{"credit", l.Credit, &m.Credit},
		{"description", l.Description, &m.Description},
		{"counterparty", l.Counterparty, &m.Counterparty},
		{"payment_reference", l.PaymentReference, &m.PaymentReference},
		{"transaction_type", l.TransactionType, &m.TransactionType},
		{"category", l.Category, &m.Category},
		{"currency", l.Currency, &m.Currency},
	}
}

func (l *Layout) declaredFields() int {
	n := 0
	for _, f := range l.fields(&normalizer.ColumnMap{}) {
		if len(f.aliases) > 0 {
			n++
		}
	}
	return n
}

// Validate checks that the layout can produce the required fields.
func (l *Layout) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("layout name is required")
	}
	if len(l.Date) == 0 {
		return fmt.Errorf("layout %q: date aliases are required", l.Name)
	}
	if len(l.Amount) == 0 && len(l.Debit) == 0 && len(l.Credit) == 0 {
		return fmt.Errorf("layout %q: amount or debit/credit aliases are required", l.Name)
	}
	switch l.DecimalSeparator {
	case "", ".", ",":
	default:
		return fmt.Errorf("layout %q: decimal separator must be \".\" or \",\"", l.Name)
	}
	return nil
}

// Match is the outcome of mapping a header row to canonical columns.
type Match struct {
	Layout   string
	Generic  bool
	Columns  normalizer.ColumnMap
	Warnings []string
}

// Registry holds the known layouts. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	layouts []Layout
}

// NewRegistry returns a registry preloaded with the built-in layouts.
func NewRegistry() *Registry {
	return &Registry{layouts: builtinLayouts()}
}

// Register adds a layout. Later registrations win ties against earlier ones
// with the same number of declared fields.
func (r *Registry) Register(l Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts = append(r.layouts, l)
	return nil
}

// Layouts returns the registered layout names in registration order.
func (r *Registry) Layouts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.layouts))
	for i, l := range r.layouts {
		names[i] = l.Name
	}
	return names
}

// layoutsFile is the YAML document accepted by LoadFile.
type layoutsFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// LoadFile registers every layout in a YAML file of the form
//
//	layouts:
//	  - name: my-bank
//	    date: ["Value Date"]
//	    amount: ["Amount (EUR)"]
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read layouts file: %w", err)
	}
	var doc layoutsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse layouts file: %w", err)
	}
	for _, l := range doc.Layouts {
		if err := r.Register(l); err != nil {
			return 0, err
		}
	}
	return len(doc.Layouts), nil
}

// Match maps headers to canonical columns using the most specific layout that
// fits. When none fits, columns are guessed by fuzzy header matching and each
// guess or gap is reported as a warning.
func (r *Registry) Match(headers []string) *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index := make(map[string]string, len(headers))
	for _, h := range headers {
		key := normalizeHeader(h)
		if _, seen := index[key]; !seen && key != "" {
			index[key] = h
		}
	}

	var best *Match
	bestScore := -1
	for i := range r.layouts {
		l := &r.layouts[i]
		cols, ok := l.resolve(index)
		if !ok {
			continue
		}
		if score := l.declaredFields(); score >= bestScore {
			bestScore = score
			best = &Match{Layout: l.Name, Columns: cols}
		}
	}
	if best != nil {
		fillOptional(&best.Columns, headers)
		return best
	}
	return matchGeneric(headers)
}

// optionalFields are filled from leftover headers when the matched layout
// does not declare them.
var optionalFields = map[string]bool{
	"description":       true,
	"counterparty":      true,
	"payment_reference": true,
	"transaction_type":  true,
	"category":          true,
	"currency":          true,
}

// fillOptional maps descriptive columns a layout left out, so a canonical
// export with an extra "Merchant" column still yields counterparties. Only
// exact or contained keyword hits count; fuzzy guesses stay in matchGeneric.
func fillOptional(cols *normalizer.ColumnMap, headers []string) {
	claimed := make(map[string]bool)
	for _, c := range []string{
		cols.Date, cols.Amount, cols.Debit, cols.Credit, cols.Description,
		cols.Counterparty, cols.PaymentReference, cols.TransactionType, cols.Category, cols.Currency,
	} {
		if c != "" {
			claimed[c] = true
		}
	}

	for _, field := range genericFields {
		target := field.target(cols)
		if !optionalFields[field.name] || *target != "" {
			continue
		}
		cands := rankHeaders(field.keywords, headers, claimed)
		if len(cands) == 0 || cands[0].distance >= fuzzyDistance {
			continue
		}
		*target = cands[0].header
		claimed[cands[0].header] = true
	}
}

func (l *Layout) resolve(index map[string]string) (normalizer.ColumnMap, bool) {
	cols := normalizer.ColumnMap{DateFormat: l.DateFormat}
	if l.DecimalSeparator != "" {
		cols.DecimalSeparator = rune(l.DecimalSeparator[0])
	}
	for _, f := range l.fields(&cols) {
		if len(f.aliases) == 0 {
			continue
		}
		found := ""
		for _, alias := range f.aliases {
			if h, ok := index[normalizeHeader(alias)]; ok {
				found = h
				break
			}
		}
		if found == "" {
			return normalizer.ColumnMap{}, false
		}
		*f.target = found
	}
	return cols, true
}

// ============================================================================
// Generic fallback
// ============================================================================

type genericField struct {
	name     string
	keywords []string
	required bool
	target   func(*normalizer.ColumnMap) *string
}

var genericFields = []genericField{
	{"date", []string{"booking date", "transaction date", "date", "data mov", "data", "fecha", "buchungsdatum", "datum", "value date", "posted"}, true,
		func(m *normalizer.ColumnMap) *string { return &m.Date }},
	{"amount", []string{"amount", "montante", "valor", "importe", "betrag", "value", "sum"}, false,
		func(m *normalizer.ColumnMap) *string { return &m.Amount }},
	{"debit", []string{"debit", "débito", "debito", "cargo", "withdrawal", "soll", "money out", "paid out"}, false,
		func(m *normalizer.ColumnMap) *string { return &m.Debit }},
	{"credit", []string{"credit", "crédito", "credito", "abono", "deposit", "haben", "money in", "paid in"}, false,
		func(m *normalizer.ColumnMap) *string { return &m.Credit }},
	{"description", []string{"description", "descrição", "descricao", "descripción", "memo", "details", "verwendungszweck", "narrative"}, false,
		func(m *normalizer.ColumnMap) *string { return &m.Description }},
	{"counterparty", []string{"merchant", "partner", "payee", "counterparty", "beneficiary", "name", "empfänger", "auftraggeber"}, false,
		func(m *normalizer.ColumnMap) *string { return &m.Counterparty }},
	{"payment_reference", []string{"reference", "referência", "referencia", "remittance"}, false,
		func(m *normalizer.ColumnMap) *string { return &m.PaymentReference }},
	{"transaction_type", []string{"type", "tipo", "transaction type", "buchungstext"}, false,
		func(m *normalizer.ColumnMap) *string { return &m.TransactionType }},
	{"category", []string{"category", "categoria", "kategorie"}, false,
		func(m *normalizer.ColumnMap) *string { return &m.Category }},
	{"currency", []string{"currency", "moeda", "moneda", "währung", "ccy"}, false,
		func(m *normalizer.ColumnMap) *string { return &m.Currency }},
}

// fuzzyDistance is the base score of a fuzzy hit; exact and substring hits
// score below it.
const fuzzyDistance = 1000

type candidate struct {
	header   string
	distance int
}

// matchGeneric assigns each canonical field the closest unclaimed header.
// Exact keyword equality beats substring containment, which beats a fuzzy
// subsequence match; ties between different headers are reported.
func matchGeneric(headers []string) *Match {
	m := &Match{Layout: "generic", Generic: true}
	m.Warnings = append(m.Warnings, "no known layout matched the header row; columns were guessed from header names")

	claimed := make(map[string]bool, len(headers))
	for _, field := range genericFields {
		cands := rankHeaders(field.keywords, headers, claimed)
		if len(cands) == 0 {
			continue
		}
		chosen := cands[0]
		*field.target(&m.Columns) = chosen.header
		claimed[chosen.header] = true

		var tied []string
		for _, c := range cands[1:] {
			if c.distance == chosen.distance {
				tied = append(tied, c.header)
			}
		}
		if len(tied) > 0 {
			m.Warnings = append(m.Warnings, fmt.Sprintf("ambiguous %s column: using %q over %s", field.name, chosen.header, quoteAll(tied)))
		}
	}

	if m.Columns.Amount != "" {
		m.Columns.Debit, m.Columns.Credit = "", ""
	}

	for _, field := range genericFields {
		if field.required && *field.target(&m.Columns) == "" {
			m.Warnings = append(m.Warnings, fmt.Sprintf("no %s column found", field.name))
		}
	}
	if !m.Columns.HasAmount() {
		m.Warnings = append(m.Warnings, "no amount or debit/credit column found")
	}
	if m.Columns.Description == "" && m.Columns.Counterparty == "" && m.Columns.PaymentReference == "" {
		m.Warnings = append(m.Warnings, "no description column found")
	}
	return m
}

// rankHeaders scores every unclaimed header against the keywords and returns
// them best first. Lower distance is better.
func rankHeaders(keywords []string, headers []string, claimed map[string]bool) []candidate {
	best := make(map[string]int)
	for _, h := range headers {
		if claimed[h] || strings.TrimSpace(h) == "" {
			continue
		}
		lower := strings.ToLower(strings.TrimSpace(h))
		for _, kw := range keywords {
			d := -1
			switch {
			case lower == kw:
				d = 0
			case strings.Contains(lower, kw):
				d = 100 + len(lower) - len(kw)
			case len(kw) >= 4 && fuzzy.MatchNormalizedFold(kw, lower):
				d = fuzzyDistance + fuzzy.LevenshteinDistance(kw, lower)
			}
			if d < 0 {
				continue
			}
			if prev, ok := best[h]; !ok || d < prev {
				best[h] = d
			}
		}
	}

	cands := make([]candidate, 0, len(best))
	for h, d := range best {
		cands = append(cands, candidate{header: h, distance: d})
	}
	order := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, ok := order[h]; !ok {
			order[h] = i
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].distance != cands[j].distance {
			return cands[i].distance < cands[j].distance
		}
		return order[cands[i].header] < order[cands[j].header]
	})
	return cands
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

// builtinLayouts lists the exports the importer recognizes out of the box.
// More specific layouts declare more fields and win over the canonical one.
func builtinLayouts() []Layout {
	return []Layout{
		{
			Name:        "canonical",
			Date:        []string{"Date", "Transaction Date"},
			Amount:      []string{"Amount"},
			Description: []string{"Description"},
		},
		{
			Name:             "george",
			Date:             []string{"Booking Date", "Buchungsdatum"},
			Counterparty:     []string{"Partner Name", "Partnername"},
			Amount:           []string{"Amount", "Betrag"},
			Currency:         []string{"Currency", "Währung"},
			PaymentReference: []string{"Payment Reference", "Zahlungsreferenz"},
			TransactionType:  []string{"Type", "Buchungstyp"},
			DateFormat:       "2006-01-02",
		},
		{
			Name:             "revolut",
			TransactionType:  []string{"Type"},
			Date:             []string{"Started Date"},
			Description:      []string{"Description"},
			Amount:           []string{"Amount"},
			Currency:         []string{"Currency"},
			DateFormat:       "2006-01-02 15:04:05",
			DecimalSeparator: ".",
		},
		{
			Name:             "n26",
			Date:             []string{"Booking Date", "Date"},
			Counterparty:     []string{"Partner Name", "Payee"},
			TransactionType:  []string{"Type", "Transaction type"},
			PaymentReference: []string{"Payment Reference"},
			Amount:           []string{"Amount (EUR)"},
			DecimalSeparator: ".",
		},
		{
			Name:             "cgd",
			Date:             []string{"Data mov.", "Data mov", "Data movimento"},
			Description:      []string{"Descrição", "Descricao"},
			Debit:            []string{"Débito", "Debito"},
			Credit:           []string{"Crédito", "Credito"},
			Category:         []string{"Categoria"},
			DateFormat:       "2-1-2006",
			DecimalSeparator: ",",
		},
	}
}
