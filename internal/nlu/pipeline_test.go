package nlu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time { return refTime }

func TestPipelinePhoneShortCircuits(t *testing.T) {
	p := NewPipeline(fixedClock)
	for _, in := range []string{"9876543210", "6000000000", "quote 9876543210", "stock? 7012345678", "task 8888888888", "New client enquiry 9876543210"} {
		res := p.Match(in)
		require.True(t, res.Matched, in)
		assert.Equal(t, "phone", res.Matcher, in)
		assert.IsType(t, PhoneLookup{}, res.Command, in)
	}
}

func TestPipelineCustomerDirectiveBeatsPhone(t *testing.T) {
	res := NewPipeline(fixedClock).Match("Add new customer Ravi Sharma from Bhopal, 9876543210")
	require.True(t, res.Matched)
	assert.Equal(t, KindCustomerCreate, res.Command.Kind())
	assert.True(t, res.Command.IsValid())
}

func TestPipelineScenarios(t *testing.T) {
	p := NewPipeline(fixedClock)

	res := p.Match("Generate quotation for 2 Kyocera 2554ci")
	require.True(t, res.Matched)
	assert.Equal(t, KindQuotationRequest, res.Command.Kind())
	assert.False(t, res.Command.IsValid())
	assert.Equal(t, []string{SlotCustomerName}, res.Command.MissingFields())

	res = p.Match("Check stock for Ricoh 2014 toner")
	require.True(t, res.Matched)
	assert.Equal(t, InventoryQuery{Brand: "Ricoh", Model: "2014", ItemType: "toner"}, res.Command)

	res = p.Match("What's the weather today?")
	assert.False(t, res.Matched)
	assert.Nil(t, res.Command)
	assert.Equal(t, CategoryUnknown, Classify("What's the weather today?"))
}

func TestPipelineOrderIsListOrder(t *testing.T) {
	p := NewPipelineWith(fixedClock, QuotationMatcher{}, PhoneMatcher{})
	res := p.Match("quote 9876543210 for Ravi Sharma")
	require.True(t, res.Matched)
	assert.Equal(t, "quotation", res.Matcher)
}

func TestPipelineIsDeterministic(t *testing.T) {
	p := NewPipeline(fixedClock)
	in := "remind me to call Ravi tomorrow at 10 AM"
	assert.Equal(t, p.Match(in), p.Match(in))
}

func TestClassify(t *testing.T) {
	cases := map[string]Category{
		"help":                         CategoryHelp,
		"send me the invoice for June": CategoryInvoice,
		"sales report this month":      CategoryReport,
		"how do I make a quotation":    CategoryQuotation,
		"customer list":                CategoryCustomer,
		"tell me a joke":               CategoryUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, Classify(in), in)
	}
}
