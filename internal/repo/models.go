package repo

import "time"

// Customer is a record in the customer directory.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Location  string    `json:"location,omitempty"`
	Product   string    `json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCustomer carries the fields needed to create a customer.
type NewCustomer struct {
	Name     string
	Phone    string
	Location string
	Product  string
}

// Item is a catalog/inventory entry.
type Item struct {
	ID                string  `json:"id"`
	Brand             string  `json:"brand"`
	Model             string  `json:"model"`
	ItemType          string  `json:"item_type"`
	Name              string  `json:"name"`
	Quantity          int     `json:"quantity"`
	MinThreshold      int     `json:"min_threshold"`
	LastPurchasePrice float64 `json:"last_purchase_price"`
	LastVendor        string  `json:"last_vendor,omitempty"`
}

// LowStock reports whether the item is at or below its minimum threshold.
func (i Item) LowStock() bool {
	return i.Quantity <= i.MinThreshold
}

// Label is the display name of the item.
func (i Item) Label() string {
	if i.Name != "" {
		return i.Name
	}
	label := i.Brand
	if i.Model != "" {
		label += " " + i.Model
	}
	if i.ItemType != "" {
		label += " " + i.ItemType
	}
	return label
}

// ItemFilter narrows a catalog query. Empty fields are ignored.
type ItemFilter struct {
	Brand    string
	Model    string
	ItemType string
}

// Empty reports whether no criterion is set.
func (f ItemFilter) Empty() bool {
	return f.Brand == "" && f.Model == "" && f.ItemType == ""
}

// Task is a to-do or follow-up.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Assignee  string    `json:"assignee,omitempty"`
	DueDate   time.Time `json:"due_date"`
	FollowUp  bool      `json:"follow_up"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTask carries the fields needed to create a task.
type NewTask struct {
	Title    string
	Assignee string
	DueDate  time.Time
	FollowUp bool
}

// Quotation is a persisted quotation record.
type Quotation struct {
	ID           string          `json:"id"`
	Number       string          `json:"number"`
	CustomerID   string          `json:"customer_id,omitempty"`
	CustomerName string          `json:"customer_name"`
	Lines        []QuotationLine `json:"lines"`
	Subtotal     float64         `json:"subtotal"`
	Tax          float64         `json:"tax"`
	Total        float64         `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

// QuotationLine is one priced line of a quotation.
type QuotationLine struct {
	ProductID string  `json:"product_id,omitempty"`
	Model     string  `json:"model"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Amount    float64 `json:"amount"`
}

// MessageRecord is one logged chat message.
type MessageRecord struct {
	ConversationID string
	Direction      string
	Type           string
	Content        *string
}
