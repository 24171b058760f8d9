package convo

import (
	"fmt"
	"strings"

	"bot-crm/internal/nlu"
)

// RenderText flattens a message into plain chat text. Blocks with actions end
// with numbered hints; replying with the number triggers the action.
func RenderText(m Message) string {
	switch c := m.Content.(type) {
	case Text:
		return string(c)
	case Block:
		body := renderView(c.View)
		if len(c.Actions) == 0 {
			return body
		}
		hints := make([]string, len(c.Actions))
		for i, a := range c.Actions {
			hints[i] = fmt.Sprintf("%d for %s", i+1, a.Label)
		}
		return body + "\n\nReply " + strings.Join(hints, ", ") + "."
	default:
		return ""
	}
}

func renderView(v ViewModel) string {
	switch v := v.(type) {
	case CustomerCard:
		head := "Customer found:"
		switch {
		case v.Existing:
			head = "Customer already exists:"
		case v.Created:
			head = "Customer created:"
		}
		return head + "\n" + customerLines(v)
	case InventoryView:
		return renderInventory(v)
	case TaskCard:
		head := "Task created: "
		if v.Task.FollowUp {
			head = "Follow-up created: "
		}
		out := head + v.Task.Title + "\nDue: " + v.Task.DueDate.Format("Mon 02 Jan 2006, 03:04 PM")
		if v.Task.Assignee != "" {
			out += "\nAssigned to: " + v.Task.Assignee
		}
		return out
	case QuotationPreview:
		lines := make([]string, len(v.Models))
		for i, m := range v.Models {
			lines[i] = fmt.Sprintf("%d x %s", m.Quantity, m.Model)
		}
		out := "Quotation for " + v.CustomerName + ":\n- " + strings.Join(lines, "\n- ")
		if !v.CustomerFound {
			out += "\n" + v.CustomerName + " is not in the customer directory."
		}
		return out
	case QuotationDocumentView:
		d := v.Document
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s\nDate: %s\nCustomer: %s\n", d.Title, d.Number, d.Date, d.Customer)
		for _, l := range d.Lines {
			fmt.Fprintf(&b, "- %s x %d @ %s = %s\n", l.Description, l.Quantity, l.UnitPrice, l.Amount)
		}
		fmt.Fprintf(&b, "Subtotal: %s\n%s: %s\nTotal: %s", d.Subtotal, d.TaxLabel, d.Tax, d.Total)
		for _, n := range d.Notes {
			b.WriteString("\n" + n)
		}
		return b.String()
	default:
		return ""
	}
}

func customerLines(v CustomerCard) string {
	lines := []string{"Name: " + v.Customer.Name, "Phone: " + v.Customer.Phone}
	if v.Customer.Location != "" {
		lines = append(lines, "Location: "+v.Customer.Location)
	}
	if v.Customer.Product != "" {
		lines = append(lines, "Product: "+v.Customer.Product)
	}
	return strings.Join(lines, "\n")
}

func renderInventory(v InventoryView) string {
	label := strings.TrimSpace(strings.Join(nonEmpty(v.Brand, v.Model, v.ItemType), " "))
	if !v.NotFound {
		return "Stock for " + label + ":\n" + formatStockList(v.Rows)
	}
	out := "No items found for " + label + "."
	if len(v.Suggestions) > 0 {
		out += "\nSimilar items:\n" + formatStockList(v.Suggestions)
	}
	return out
}

func nonEmpty(vals ...string) []string {
	var res []string
	for _, v := range vals {
		if v != "" {
			res = append(res, v)
		}
	}
	return res
}

// clarificationPrompt names every missing field.
func clarificationPrompt(missing []string) string {
	labels := make([]string, len(missing))
	for i, f := range missing {
		labels[i] = fieldLabel(f)
	}
	switch len(labels) {
	case 0:
		return "Please add a few more details."
	case 1:
		return "Please share the " + labels[0] + "."
	default:
		return "Please share the " + strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1] + "."
	}
}

func fieldLabel(slot string) string {
	switch slot {
	case nlu.SlotName:
		return "customer name"
	case nlu.SlotPhone:
		return "10-digit mobile number"
	case nlu.SlotTitle:
		return "task description or assignee"
	case nlu.SlotDueDate:
		return "due date"
	case nlu.SlotCustomerName:
		return "customer name for the quotation"
	case nlu.SlotModels:
		return "models and quantities"
	default:
		return slot
	}
}
