// Package nlu turns free chat text into structured business commands using
// rule-based slot extractors and an ordered matcher pipeline.
package nlu

import (
	"time"

	"bot-crm/internal/repo"
)

// Kind identifies a command variant.
type Kind string

const (
	KindPhoneLookup      Kind = "phone_lookup"
	KindCustomerCreate   Kind = "customer_create"
	KindTaskCreate       Kind = "task_create"
	KindInventoryQuery   Kind = "inventory_query"
	KindQuotationRequest Kind = "quotation_request"
)

// Slot names reported in missing-field sets.
const (
	SlotName         = "name"
	SlotPhone        = "phone"
	SlotTitle        = "title"
	SlotDueDate      = "dueDate"
	SlotCustomerName = "customerName"
	SlotModels       = "models"
)

// Command is the tagged union produced by the extractors. Implementations are
// PhoneLookup, CustomerCreate, TaskCreate, InventoryQuery and QuotationRequest.
type Command interface {
	Kind() Kind
	IsValid() bool
	MissingFields() []string
}

// PhoneLookup asks for the customer owning a mobile number.
type PhoneLookup struct {
	Phone string `json:"phone"`
}

func (PhoneLookup) Kind() Kind              { return KindPhoneLookup }
func (c PhoneLookup) IsValid() bool         { return c.Phone != "" }
func (PhoneLookup) MissingFields() []string { return nil }

// CustomerCreate registers a new customer.
type CustomerCreate struct {
	Name     string   `json:"name,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Location string   `json:"location,omitempty"`
	Product  string   `json:"product,omitempty"`
	Valid    bool     `json:"valid"`
	Missing  []string `json:"missing,omitempty"`
}

func (CustomerCreate) Kind() Kind                { return KindCustomerCreate }
func (c CustomerCreate) IsValid() bool           { return c.Valid }
func (c CustomerCreate) MissingFields() []string { return c.Missing }

// Validate recomputes Valid and Missing.
func (c CustomerCreate) Validate() CustomerCreate {
	c.Missing = nil
	if c.Name == "" {
		c.Missing = append(c.Missing, SlotName)
	}
	if c.Phone == "" {
		c.Missing = append(c.Missing, SlotPhone)
	}
	c.Valid = len(c.Missing) == 0
	return c
}

// TaskCreate schedules a task or follow-up.
type TaskCreate struct {
	Title    string     `json:"title,omitempty"`
	Assignee string     `json:"assignee,omitempty"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
	FollowUp bool       `json:"followUp"`
	Valid    bool       `json:"valid"`
	Missing  []string   `json:"missing,omitempty"`
}

func (TaskCreate) Kind() Kind                { return KindTaskCreate }
func (c TaskCreate) IsValid() bool           { return c.Valid }
func (c TaskCreate) MissingFields() []string { return c.Missing }

// Validate recomputes Valid and Missing. A task needs a due date and either a
// title or an assignee.
func (c TaskCreate) Validate() TaskCreate {
	c.Missing = nil
	if c.Title == "" && c.Assignee == "" {
		c.Missing = append(c.Missing, SlotTitle)
	}
	if c.DueDate == nil {
		c.Missing = append(c.Missing, SlotDueDate)
	}
	c.Valid = len(c.Missing) == 0
	return c
}

// InventoryQuery asks for stock of catalog items. MatchedItems is filled by
// the engine after the catalog lookup.
type InventoryQuery struct {
	Brand        string      `json:"brand,omitempty"`
	Model        string      `json:"model,omitempty"`
	ItemType     string      `json:"itemType,omitempty"`
	MatchedItems []repo.Item `json:"matchedItems,omitempty"`
}

func (InventoryQuery) Kind() Kind              { return KindInventoryQuery }
func (c InventoryQuery) IsValid() bool         { return !c.Filter().Empty() || len(c.MatchedItems) > 0 }
func (InventoryQuery) MissingFields() []string { return nil }

// Filter converts the query into a catalog filter.
func (c InventoryQuery) Filter() repo.ItemFilter {
	return repo.ItemFilter{Brand: c.Brand, Model: c.Model, ItemType: c.ItemType}
}

// ModelQty is one requested model and its quantity.
type ModelQty struct {
	Model     string `json:"model"`
	ProductID string `json:"productId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// QuotationRequest drafts a quotation.
type QuotationRequest struct {
	CustomerName string     `json:"customerName,omitempty"`
	Models       []ModelQty `json:"models"`
	Valid        bool       `json:"valid"`
	Missing      []string   `json:"missing,omitempty"`
}

func (QuotationRequest) Kind() Kind                { return KindQuotationRequest }
func (c QuotationRequest) IsValid() bool           { return c.Valid }
func (c QuotationRequest) MissingFields() []string { return c.Missing }

// Validate recomputes Valid and Missing.
func (c QuotationRequest) Validate() QuotationRequest {
	c.Missing = nil
	if c.CustomerName == "" {
		c.Missing = append(c.Missing, SlotCustomerName)
	}
	if len(c.Models) == 0 {
		c.Missing = append(c.Missing, SlotModels)
	}
	c.Valid = len(c.Missing) == 0
	return c
}

// Merge fills the unresolved fields of prev with values from next. Fields
// already resolved in prev are kept. Commands of different kinds return prev
// unchanged.
func Merge(prev, next Command) Command {
	switch p := prev.(type) {
	case CustomerCreate:
		n, ok := next.(CustomerCreate)
		if !ok {
			return prev
		}
		p.Name = firstNonEmpty(p.Name, n.Name)
		p.Phone = firstNonEmpty(p.Phone, n.Phone)
		p.Location = firstNonEmpty(p.Location, n.Location)
		p.Product = firstNonEmpty(p.Product, n.Product)
		return p.Validate()
	case TaskCreate:
		n, ok := next.(TaskCreate)
		if !ok {
			return prev
		}
		p.Title = firstNonEmpty(p.Title, n.Title)
		p.Assignee = firstNonEmpty(p.Assignee, n.Assignee)
		if p.DueDate == nil {
			p.DueDate = n.DueDate
		}
		p.FollowUp = p.FollowUp || n.FollowUp
		return p.Validate()
	case QuotationRequest:
		n, ok := next.(QuotationRequest)
		if !ok {
			return prev
		}
		p.CustomerName = firstNonEmpty(p.CustomerName, n.CustomerName)
		if len(p.Models) == 0 {
			p.Models = append([]ModelQty(nil), n.Models...)
		}
		return p.Validate()
	case InventoryQuery:
		n, ok := next.(InventoryQuery)
		if !ok {
			return prev
		}
		p.Brand = firstNonEmpty(p.Brand, n.Brand)
		p.Model = firstNonEmpty(p.Model, n.Model)
		p.ItemType = firstNonEmpty(p.ItemType, n.ItemType)
		return p
	default:
		return prev
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
