package convo

import "bot-crm/internal/nlu"

// templateReply returns the canned reply for a classifier bucket, or "" when
// the message should go to the AI assistant.
func templateReply(c nlu.Category) string {
	switch c {
	case nlu.CategoryHelp:
		return helpMessage()
	case nlu.CategoryQuotation:
		return "To draft a quotation, name the customer and the models, e.g. \"Quotation for Ravi Sharma for 2 Kyocera 2554ci\"."
	case nlu.CategoryTask:
		return "To create a task, include what and when, e.g. \"Task call Ravi tomorrow at 11am\" or \"Follow up with Mehta on Friday\"."
	case nlu.CategoryInventory:
		return "To check stock, mention the brand, model or item type, e.g. \"Stock of Ricoh 2014 toner\"."
	case nlu.CategoryInvoice:
		return "Invoices and billing are handled on the billing screen. I can help with customers, tasks, stock and quotations here."
	case nlu.CategoryReport:
		return "Reports are available on the dashboard. Here I can look up customers, create tasks, check stock and draft quotations."
	case nlu.CategoryCustomer:
		return "Send a 10-digit mobile number to look up a customer, or \"Add customer <name> from <city>, <mobile>\" to create one."
	default:
		return ""
	}
}

func helpMessage() string {
	return "I can help with:\n" +
		"- Customer lookup: send a mobile number\n" +
		"- New customer: \"Add customer Ravi Sharma from Pune, 9876543210\"\n" +
		"- Tasks: \"Remind me to call Mehta tomorrow at 4pm\"\n" +
		"- Stock: \"Kyocera 2554ci toner stock\"\n" +
		"- Quotations: \"Quotation for Ravi Sharma for 2 Kyocera 2554ci\"\n" +
		"Type \"use secondary\" or \"use primary\" to switch AI providers, or \"cancel\" to drop a pending request."
}
