package convo

import (
	"bot-crm/internal/nlu"
	"bot-crm/internal/quote"
	"bot-crm/internal/repo"
)

// ViewModel is the data behind a rendered block.
type ViewModel interface {
	ViewKind() string
}

// CustomerCard shows one customer.
type CustomerCard struct {
	Customer repo.Customer `json:"customer"`
	// Existing is set when a create request hit an existing record.
	Existing bool `json:"existing"`
	Created  bool `json:"created"`
}

func (CustomerCard) ViewKind() string { return "customer" }

// StockRow is one inventory line.
type StockRow struct {
	Item     repo.Item `json:"item"`
	LowStock bool      `json:"lowStock"`
}

// InventoryView lists stock matching a query, or suggestions when nothing
// matched.
type InventoryView struct {
	Brand       string     `json:"brand,omitempty"`
	Model       string     `json:"model,omitempty"`
	ItemType    string     `json:"itemType,omitempty"`
	Rows        []StockRow `json:"rows"`
	NotFound    bool       `json:"notFound"`
	Suggestions []StockRow `json:"suggestions,omitempty"`
}

func (InventoryView) ViewKind() string { return "inventory" }

// TaskCard shows a created task.
type TaskCard struct {
	Task repo.Task `json:"task"`
}

func (TaskCard) ViewKind() string { return "task" }

// QuotationPreview asks for confirmation before a quotation is generated.
type QuotationPreview struct {
	CustomerName  string         `json:"customerName"`
	CustomerFound bool           `json:"customerFound"`
	Models        []nlu.ModelQty `json:"models"`
}

func (QuotationPreview) ViewKind() string { return "quotation_preview" }

// QuotationDocumentView is a generated quotation.
type QuotationDocumentView struct {
	Document quote.Document `json:"document"`
	Record   repo.Quotation `json:"record"`
}

func (QuotationDocumentView) ViewKind() string { return "quotation" }

func stockRows(items []repo.Item) []StockRow {
	rows := make([]StockRow, len(items))
	for i, it := range items {
		rows[i] = StockRow{Item: it, LowStock: it.LowStock()}
	}
	return rows
}
