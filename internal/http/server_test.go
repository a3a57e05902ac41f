package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tesouraria/internal/gateway"
	"tesouraria/internal/intake"
	"tesouraria/internal/log"
	"tesouraria/internal/services"
	sheetsmem "tesouraria/internal/sheets/memory"
	"tesouraria/internal/statement"
	"tesouraria/internal/storage/memory"
)

var brt = time.FixedZone("BRT", -3*3600)

type fakeFetcher struct {
	payments map[string]gateway.Payment
}

func (f *fakeFetcher) FetchPayment(_ context.Context, id string) (gateway.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return gateway.Payment{}, &gateway.StatusError{StatusCode: http.StatusNotFound}
	}
	return p, nil
}

type testEnv struct {
	server *Server
	store  *memory.Store
	sheets *sheetsmem.Store
}

type envOption func(*Deps, *Options)

func withFetcher(f intake.PaymentFetcher) envOption {
	return func(d *Deps, _ *Options) {
		d.Guard = intake.NewGuard(f, d.Store.(*memory.Store), nil, log.Discard(), time.Second)
	}
}

func withOptions(o Options) envOption {
	return func(_ *Deps, opts *Options) { *opts = o }
}

func newTestEnv(t *testing.T, options ...envOption) *testEnv {
	t.Helper()
	store := memory.New(brt)
	sheets := sheetsmem.New(brt)
	logger := log.Discard()
	agg := services.NewAggregator(store, brt, logger)

	deps := Deps{
		Ledger:     services.NewLedgerService(store, nil, brt, logger),
		Aggregator: agg,
		Reports:    services.NewReportService(agg, statement.NewCompiler(brt), logger),
		Store:      store,
		Logger:     logger,
	}
	opts := Options{}
	for _, o := range options {
		o(&deps, &opts)
	}
	if deps.Guard == nil {
		deps.Guard = intake.NewGuard(nil, store, nil, logger, time.Second)
	}

	srv := NewServer(":0", deps, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{server: srv, store: store, sheets: sheets}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func approvedPayment(id, amount, first, last string) gateway.Payment {
	at := time.Now()
	return gateway.Payment{
		ID:                json.Number(id),
		Status:            gateway.StatusApproved,
		TransactionAmount: decimal.RequireFromString(amount),
		DateCreated:       at,
		DateApproved:      &at,
		Payer:             gateway.Payer{FirstName: first, LastName: last},
	}
}

// seedMarch records 500.00 in and 120.00 out in March 2025.
func seedMarch(t *testing.T, e *testEnv) {
	t.Helper()
	for _, body := range []string{
		`{"name":"Joao Da Silva","amount":"300.00","type":"dizimo","date":"2025-03-10"}`,
		`{"name":"Caixa","amount":200,"type":"oferta","date":"2025-03-20"}`,
	} {
		if rec := e.do(t, http.MethodPost, "/api/transactions/manual", body); rec.Code != http.StatusCreated {
			t.Fatalf("manual transaction: %d %s", rec.Code, rec.Body)
		}
	}
	rec := e.do(t, http.MethodPost, "/api/expenses",
		`{"description":"Energia","category":"Contas","amount":"120.00","date":"2025-03-12"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expense: %d %s", rec.Code, rec.Body)
	}
}

func TestWebhookNotConfigured(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/webhooks/mercadopago", `{"type":"payment","data":{"id":"1"}}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestWebhookRecordsOnce(t *testing.T) {
	fetcher := &fakeFetcher{payments: map[string]gateway.Payment{
		"123": approvedPayment("123", "100.00", "Joao", "Silva"),
	}}
	e := newTestEnv(t, withFetcher(fetcher))

	tests := []struct {
		path string
		want intake.Outcome
	}{
		{"/webhooks/mercadopago", intake.OutcomeRecorded},
		{"/webhook/mercadopago", intake.OutcomeDuplicateIgnored},
	}
	for _, tt := range tests {
		rec := e.do(t, http.MethodPost, tt.path, `{"type":"payment","data":{"id":123}}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.path, rec.Code)
		}
		if got := decode[webhookResponse](t, rec).Status; got != tt.want {
			t.Errorf("%s: status = %s, want %s", tt.path, got, tt.want)
		}
	}

	rec := e.do(t, http.MethodGet, "/api/transactions?status=pending", "")
	txs := decode[[]map[string]any](t, rec)
	if len(txs) != 1 || txs[0]["payer_name"] != "Joao Silva" || txs[0]["amount"] != "100.00" {
		t.Fatalf("pending = %v", txs)
	}
}

func TestWebhookAcknowledgesJunk(t *testing.T) {
	e := newTestEnv(t, withFetcher(&fakeFetcher{}))

	tests := []struct {
		name string
		body string
		want intake.Outcome
	}{
		{"malformed body", `{not json`, intake.OutcomeIgnored},
		{"non payment", `{"type":"merchant_order","data":{"id":"9"}}`, intake.OutcomeIgnored},
		{"unknown payment", `{"type":"payment","data":{"id":"404"}}`, intake.OutcomeUpstreamFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/webhooks/mercadopago", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := decode[webhookResponse](t, rec).Status; got != tt.want {
				t.Errorf("outcome = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWebhookBypassesRateLimit(t *testing.T) {
	e := newTestEnv(t, withFetcher(&fakeFetcher{}), withOptions(Options{APIRateLimit: 1}))

	for i := 0; i < 5; i++ {
		rec := e.do(t, http.MethodPost, "/webhooks/mercadopago", `{}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: %d, want 200", i, rec.Code)
		}
		if rec.Header().Get("Retry-After") != "" {
			t.Fatalf("delivery %d carried Retry-After", i)
		}
	}
	if rec := e.do(t, http.MethodPost, "/webhook/mercadopago", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("legacy path: %d, want 200", rec.Code)
	}

	if rec := e.do(t, http.MethodGet, "/api/members", ""); rec.Code != http.StatusOK {
		t.Fatalf("first members: %d", rec.Code)
	}
	rec := e.do(t, http.MethodGet, "/api/members", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second members: %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestConfirmTransaction(t *testing.T) {
	fetcher := &fakeFetcher{payments: map[string]gateway.Payment{
		"1": approvedPayment("1", "50.00", "Ana", "Lima"),
		"2": approvedPayment("2", "70.00", "Rui", "Costa"),
	}}
	e := newTestEnv(t, withFetcher(fetcher))
	for _, id := range []string{"1", "2"} {
		e.do(t, http.MethodPost, "/webhooks/mercadopago", `{"type":"payment","data":{"id":"`+id+`"}}`)
	}
	pending := decode[[]map[string]any](t, e.do(t, http.MethodGet, "/api/transactions?status=pending", ""))
	if len(pending) != 2 {
		t.Fatalf("pending = %d", len(pending))
	}

	rec := e.do(t, http.MethodPost, "/api/transactions/1/confirm", `{"type":"dizimo"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]any](t, rec); got["status"] != "confirmed" || got["category"] != "tithe" {
		t.Errorf("confirmed = %v", got)
	}

	if rec := e.do(t, http.MethodPost, "/api/transactions/1/confirm", `{"type":"oferta"}`); rec.Code != http.StatusConflict {
		t.Errorf("second confirm: %d, want 409", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/transactions/99/confirm", `{"type":"oferta"}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing: %d, want 404", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/api/transactions/2/confirm", `{"type":"gift"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad category: %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/transactions", `{"action":"confirm","id":2,"type":"oferta"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("legacy confirm: %d %s", rec.Code, rec.Body)
	}
	pending = decode[[]map[string]any](t, e.do(t, http.MethodGet, "/api/transactions?status=pending", ""))
	if len(pending) != 0 {
		t.Errorf("pending after confirm = %v", pending)
	}
}

func TestTransactionActionValidation(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown action", `{"action":"refund"}`, http.StatusBadRequest},
		{"confirm without id", `{"action":"confirm","type":"dizimo"}`, http.StatusBadRequest},
		{"manual without amount", `{"action":"manual_add","name":"Ana","type":"dizimo"}`, http.StatusBadRequest},
		{"manual", `{"action":"manual_add","name":"Ana","amount":10,"type":"dizimo"}`, http.StatusCreated},
		{"empty body", ``, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.body == "" {
				req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(""))
				rec = httptest.NewRecorder()
				e.server.Handler.ServeHTTP(rec, req)
			} else {
				rec = e.do(t, http.MethodPost, "/api/transactions", tt.body)
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	if rec := e.do(t, http.MethodGet, "/api/transactions?status=lost", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status filter: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/transactions?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: %d", rec.Code)
	}
}

func TestMembers(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/members", `{"code":"M01","full_name":"Maria Souza","birth_date":"1980-05-02"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	id := int64(decode[map[string]any](t, rec)["id"].(float64))

	if rec := e.do(t, http.MethodPost, "/api/members", `{"code":"M01","full_name":"Outra"}`); rec.Code != http.StatusConflict {
		t.Errorf("duplicate code: %d, want 409", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/members", `{"code":"","full_name":"Sem Codigo"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty code: %d, want 400", rec.Code)
	}
	if field := decode[errorBody](t, rec).Field; field != "code" {
		t.Errorf("field = %q", field)
	}

	members := decode[[]map[string]any](t, e.do(t, http.MethodGet, "/api/members", ""))
	if len(members) != 1 || members[0]["birth_date"] != "1980-05-02" {
		t.Fatalf("members = %v", members)
	}

	if rec := e.do(t, http.MethodDelete, "/api/members?id="+jsonInt(id), ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/members/"+jsonInt(id), ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete again: %d, want 404", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/members/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: %d, want 400", rec.Code)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestExpenses(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"description":"Aluguel","category":"Fixas","amount":"800.00","date":"2025-03-05"}`, http.StatusCreated},
		{"zero amount", `{"description":"Nada","amount":0,"date":"2025-03-05"}`, http.StatusBadRequest},
		{"bad date", `{"description":"Agua","amount":10,"date":"05/03/2025"}`, http.StatusBadRequest},
		{"no description", `{"amount":10,"date":"2025-03-05"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.do(t, http.MethodPost, "/api/expenses", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	expenses := decode[[]map[string]any](t, e.do(t, http.MethodGet, "/api/expenses", ""))
	if len(expenses) != 1 {
		t.Fatalf("expenses = %v", expenses)
	}
	id := int64(expenses[0]["id"].(float64))
	if rec := e.do(t, http.MethodDelete, "/api/expenses/"+jsonInt(id), ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/expenses?id="+jsonInt(id), ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete again: %d, want 404", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(t, e)

	rec := e.do(t, http.MethodGet, "/api/summary?year=2025&month=3&previous_balance=1000", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: %d %s", rec.Code, rec.Body)
	}
	got := decode[map[string]any](t, rec)
	want := map[string]any{"inflow": "500.00", "outflow": "120.00", "previous_balance": "1000.00", "balance": "1380.00"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}

	for _, target := range []string{
		"/api/summary?year=2025&month=13",
		"/api/summary?month=3",
		"/api/summary?year=2025&month=3&previous_balance=abc",
	} {
		if rec := e.do(t, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: %d, want 400", target, rec.Code)
		}
	}
}

func TestDashboardCacheInvalidatedOnWrite(t *testing.T) {
	e := newTestEnv(t, withOptions(Options{SummaryCacheTTL: time.Hour}))

	first := decode[map[string]any](t, e.do(t, http.MethodGet, "/api/dashboard", ""))
	if first["net"] != "0.00" {
		t.Fatalf("empty dashboard = %v", first)
	}
	if _, ok := first["balance"]; ok {
		t.Error("snapshot must not carry a balance")
	}

	if rec := e.do(t, http.MethodPost, "/api/transactions/manual", `{"name":"Ana","amount":"25.00","type":"oferta"}`); rec.Code != http.StatusCreated {
		t.Fatalf("manual: %d %s", rec.Code, rec.Body)
	}

	second := decode[map[string]any](t, e.do(t, http.MethodGet, "/api/dashboard", ""))
	if second["inflow"] != "25.00" || second["net"] != "25.00" {
		t.Errorf("dashboard after write = %v", second)
	}
}

func TestManualTransactionUnknownMember(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/transactions/manual", `{"name":"Ana","member_id":999,"amount":"25.00","type":"oferta"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("manual with unknown member: %d %s, want 404", rec.Code, rec.Body)
	}
	if all := decode[[]map[string]any](t, e.do(t, http.MethodGet, "/api/transactions", "")); len(all) != 0 {
		t.Errorf("rejected entry was stored: %v", all)
	}
}

func TestReportFormats(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(t, e)
	body := `{"month":3,"year":2025,"prev_balance":1000}`

	rec := e.do(t, http.MethodPost, "/api/report/final?format=text", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("text: %d %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "(=) Saldo a Transportar: R$ 1380.00") {
		t.Errorf("text report missing closing balance:\n%s", rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "relatorio_3_2025.txt") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = e.do(t, http.MethodPost, "/api/reports", body)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Error("pdf body does not start with %PDF")
	}

	rec = e.do(t, http.MethodPost, "/api/reports", `{"month":3,"year":2025,"previous_balance":"1000.00","format":"json"}`)
	doc := decode[map[string]any](t, rec)
	if doc["summary"].(map[string]any)["balance"] != "1380.00" {
		t.Errorf("json summary = %v", doc["summary"])
	}

	for _, bad := range []string{
		`{"month":3,"year":2025}`,
		`{"month":0,"year":2025,"previous_balance":0}`,
		`{"month":3,"year":2025,"previous_balance":0,"format":"docx"}`,
	} {
		if rec := e.do(t, http.MethodPost, "/api/reports", bad); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: %d, want 400", bad, rec.Code)
		}
	}
}

func TestReportSheetsExport(t *testing.T) {
	e := newTestEnv(t)
	seedMarch(t, e)
	body := `{"month":3,"year":2025,"previous_balance":1000,"format":"sheets"}`

	if rec := e.do(t, http.MethodPost, "/api/reports", body); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("without exporter: %d, want 503", rec.Code)
	}

	e2 := newTestEnv(t, func(d *Deps, _ *Options) { d.Exporter = e.sheets })
	seedMarch(t, e2)
	rec := e2.do(t, http.MethodPost, "/api/reports", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body)
	}
	if got := decode[sheetsExportResponse](t, rec).Sheet; got != "mem:Relatorio 2025-03" {
		t.Errorf("sheet = %q", got)
	}
	if rows, ok := e.sheets.Tab("Relatorio 2025-03"); !ok || len(rows) == 0 {
		t.Error("tab not written")
	}
}

func TestHealthAndNotFound(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz: %d", rec.Code)
	}
	rec := e.do(t, http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Errorf("not found: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}
