package convo

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bot-crm/internal/ai"
	"bot-crm/internal/metrics"
	"bot-crm/internal/quote"
	"bot-crm/internal/repo"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// Thursday 10 April 2025, 09:00 IST.
var refTime = time.Date(2025, time.April, 10, 9, 0, 0, 0, ist)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDirectory struct {
	mu        sync.Mutex
	customers []repo.Customer
	creates   []repo.NewCustomer
	err       error
}

func (f *fakeDirectory) LookupByPhone(_ context.Context, phone string) (*repo.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.customers {
		if f.customers[i].Phone == phone {
			c := f.customers[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) SearchByName(_ context.Context, name string) ([]repo.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var res []repo.Customer
	for _, c := range f.customers {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(name)) {
			res = append(res, c)
		}
	}
	return res, nil
}

func (f *fakeDirectory) Create(_ context.Context, in repo.NewCustomer) (*repo.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.creates = append(f.creates, in)
	for i := range f.customers {
		if f.customers[i].Phone == in.Phone {
			c := f.customers[i]
			return &c, repo.ErrDuplicate
		}
	}
	c := repo.Customer{
		ID:       "cust-" + in.Phone,
		Name:     in.Name,
		Phone:    in.Phone,
		Location: in.Location,
		Product:  in.Product,
	}
	f.customers = append(f.customers, c)
	return &c, nil
}

type fakeCatalog struct {
	items   []repo.Item
	queries []repo.ItemFilter
	err     error
}

func (f *fakeCatalog) Query(_ context.Context, filter repo.ItemFilter) ([]repo.Item, error) {
	f.queries = append(f.queries, filter)
	if f.err != nil {
		return nil, f.err
	}
	var res []repo.Item
	for _, it := range f.items {
		if filter.Brand != "" && !strings.EqualFold(it.Brand, filter.Brand) {
			continue
		}
		if filter.ItemType != "" && !strings.EqualFold(it.ItemType, filter.ItemType) {
			continue
		}
		if filter.Model != "" && !strings.Contains(strings.ToLower(it.Model), strings.ToLower(filter.Model)) {
			continue
		}
		res = append(res, it)
	}
	return res, nil
}

type fakeTasks struct {
	created []repo.NewTask
}

func (f *fakeTasks) Create(_ context.Context, in repo.NewTask) (*repo.Task, error) {
	f.created = append(f.created, in)
	return &repo.Task{
		ID:       "task-1",
		Title:    in.Title,
		Assignee: in.Assignee,
		DueDate:  in.DueDate,
		FollowUp: in.FollowUp,
		Status:   "open",
	}, nil
}

type fakeQuotes struct {
	drafts []quote.Draft
	err    error
}

func (f *fakeQuotes) Generate(_ context.Context, d quote.Draft) (*quote.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.drafts = append(f.drafts, d)
	rec := &repo.Quotation{ID: "q-1", Number: "QT-20250410-0000ABCD", CustomerID: d.CustomerID, CustomerName: d.CustomerName}
	return &quote.Result{
		Record:   rec,
		Document: quote.Document{Title: "Quotation", Number: rec.Number, Customer: d.CustomerName, Total: "Rs 0.00"},
	}, nil
}

type fakeAssistant struct {
	replies []ai.Reply
	queries []ai.Query
}

func (f *fakeAssistant) Ask(_ context.Context, q ai.Query) ai.Reply {
	f.queries = append(f.queries, q)
	if len(f.replies) == 0 {
		return ai.Reply{Status: ai.StatusFailed, Text: "no reply configured"}
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r
}

type fakeLog struct {
	mu      sync.Mutex
	records []repo.MessageRecord
}

func (f *fakeLog) InsertMessage(_ context.Context, rec repo.MessageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

type harness struct {
	engine    *Engine
	directory *fakeDirectory
	catalog   *fakeCatalog
	tasks     *fakeTasks
	quotes    *fakeQuotes
	assistant *fakeAssistant
	log       *fakeLog
	metrics   *metrics.Metrics
}

func newHarness(cfg Config) *harness {
	h := &harness{
		directory: &fakeDirectory{},
		catalog:   &fakeCatalog{},
		tasks:     &fakeTasks{},
		quotes:    &fakeQuotes{},
		assistant: &fakeAssistant{},
		log:       &fakeLog{},
		metrics:   metrics.New("test"),
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return refTime }
	}
	h.engine = New(Deps{
		Customers: h.directory,
		Catalog:   h.catalog,
		Tasks:     h.tasks,
		Quotes:    h.quotes,
		Assistant: h.assistant,
		Log:       h.log,
	}, NewSessions(time.Hour, h.metrics), cfg, discardLogger(), h.metrics)
	return h
}

func (h *harness) say(conversationID, text string) Response {
	return h.engine.Handle(context.Background(), conversationID, Input{Text: text})
}

func (h *harness) press(conversationID, action string) Response {
	return h.engine.Handle(context.Background(), conversationID, Input{Action: action})
}

func (h *harness) state(conversationID string) State {
	sess, release := h.engine.sessions.Acquire(conversationID)
	defer release()
	return sess.State
}
