// Package quote prices quotation drafts against the catalog and stores them.
package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"bot-crm/internal/nlu"
	"bot-crm/internal/repo"

	"github.com/google/uuid"
)

// ErrEmptyDraft is returned for a draft without models.
var ErrEmptyDraft = errors.New("quotation draft has no models")

// Catalog finds priced items.
type Catalog interface {
	Query(ctx context.Context, filter repo.ItemFilter) ([]repo.Item, error)
}

// Store persists quotations.
type Store interface {
	Insert(ctx context.Context, q *repo.Quotation) error
}

// Config holds pricing settings.
type Config struct {
	MarkupPercent float64
	TaxPercent    float64
	Location      *time.Location
}

// Draft is a confirmed quotation request.
type Draft struct {
	CustomerID   string
	CustomerName string
	Models       []nlu.ModelQty
}

// Document is the renderable view of a quotation.
type Document struct {
	Title    string    `json:"title"`
	Number   string    `json:"number"`
	Date     string    `json:"date"`
	Customer string    `json:"customer"`
	Lines    []DocLine `json:"lines"`
	Subtotal string    `json:"subtotal"`
	TaxLabel string    `json:"taxLabel"`
	Tax      string    `json:"tax"`
	Total    string    `json:"total"`
	Notes    []string  `json:"notes,omitempty"`
}

// DocLine is one rendered quotation line.
type DocLine struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Amount      string `json:"amount"`
}

// Result is what Generate returns.
type Result struct {
	Record   *repo.Quotation
	Document Document
}

// Generator builds quotations.
type Generator struct {
	catalog Catalog
	store   Store
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a generator.
func New(catalog Catalog, store Store, cfg Config, logger *slog.Logger) *Generator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Generator{
		catalog: catalog,
		store:   store,
		cfg:     cfg,
		logger:  logger.With("component", "quote"),
		now:     time.Now,
	}
}

// Generate prices every model at its last purchase price plus markup, adds
// tax, numbers and stores the quotation. Models missing from the catalog are
// kept at zero price and noted on the document.
func (g *Generator) Generate(ctx context.Context, d Draft) (*Result, error) {
	if len(d.Models) == 0 {
		return nil, ErrEmptyDraft
	}
	now := g.now().In(g.cfg.Location)
	q := &repo.Quotation{
		ID:           uuid.NewString(),
		Number:       NewNumber(now),
		CustomerID:   d.CustomerID,
		CustomerName: d.CustomerName,
		CreatedAt:    now,
	}

	var notes []string
	for _, m := range d.Models {
		line, err := g.priceLine(ctx, m)
		if err != nil {
			return nil, err
		}
		if line.UnitPrice == 0 {
			notes = append(notes, fmt.Sprintf("Price for %s on request.", m.Model))
		}
		q.Lines = append(q.Lines, line)
		q.Subtotal += line.Amount
	}
	q.Subtotal = round2(q.Subtotal)
	q.Tax = round2(q.Subtotal * g.cfg.TaxPercent / 100)
	q.Total = round2(q.Subtotal + q.Tax)

	if err := g.store.Insert(ctx, q); err != nil {
		return nil, fmt.Errorf("store quotation: %w", err)
	}
	g.logger.Info("quotation generated", "number", q.Number, "customer", q.CustomerName, "total", q.Total)

	return &Result{Record: q, Document: g.document(q, notes)}, nil
}

func (g *Generator) priceLine(ctx context.Context, m nlu.ModelQty) (repo.QuotationLine, error) {
	qty := m.Quantity
	if qty <= 0 {
		qty = 1
	}
	line := repo.QuotationLine{ProductID: m.ProductID, Model: m.Model, Quantity: qty}

	filter := nlu.ItemFilterFor(m.Model)
	if filter.Empty() {
		filter.Model = m.Model
	}
	items, err := g.catalog.Query(ctx, filter)
	if err != nil {
		return line, fmt.Errorf("price %s: %w", m.Model, err)
	}
	item := pick(items, m.ProductID)
	if item == nil {
		return line, nil
	}
	line.ProductID = item.ID
	line.UnitPrice = round2(item.LastPurchasePrice * (1 + g.cfg.MarkupPercent/100))
	line.Amount = round2(line.UnitPrice * float64(qty))
	return line, nil
}

func pick(items []repo.Item, productID string) *repo.Item {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if productID != "" && items[i].ID == productID {
			return &items[i]
		}
	}
	for i := range items {
		if items[i].ItemType == "machine" || items[i].ItemType == "" {
			return &items[i]
		}
	}
	return &items[0]
}

func (g *Generator) document(q *repo.Quotation, notes []string) Document {
	doc := Document{
		Title:    "Quotation",
		Number:   q.Number,
		Date:     q.CreatedAt.Format("02 Jan 2006"),
		Customer: q.CustomerName,
		Subtotal: FormatINR(q.Subtotal),
		TaxLabel: fmt.Sprintf("GST %s%%", trimFloat(g.cfg.TaxPercent)),
		Tax:      FormatINR(q.Tax),
		Total:    FormatINR(q.Total),
		Notes:    notes,
	}
	for _, l := range q.Lines {
		doc.Lines = append(doc.Lines, DocLine{
			Description: l.Model,
			Quantity:    l.Quantity,
			UnitPrice:   FormatINR(l.UnitPrice),
			Amount:      FormatINR(l.Amount),
		})
	}
	return doc
}

// NewNumber returns a quotation number like QT-20250410-1A2B3C4D.
func NewNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("QT-%s-%s", now.Format("20060102"), id[:8])
}

// FormatINR renders an amount with Indian digit grouping, e.g. Rs 1,23,456.50.
func FormatINR(v float64) string {
	neg := v < 0
	v = math.Abs(round2(v))
	whole := int64(v)
	paise := int64(math.Round((v - float64(whole)) * 100))
	if paise == 100 {
		whole++
		paise = 0
	}
	digits := fmt.Sprintf("%d", whole)
	if len(digits) > 3 {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		digits = strings.Join(groups, ",") + "," + tail
	}
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%sRs %s.%02d", sign, digits, paise)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
