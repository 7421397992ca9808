package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finanzas/internal/analysis"
	"finanzas/internal/audit"
	"finanzas/internal/auth"
	"finanzas/internal/llm"
	"finanzas/internal/ratelimit"
	"finanzas/internal/storage"
	"finanzas/internal/webhook"
)

type testEnv struct {
	ts     *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T, llmURL string) *testEnv {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	limits := ratelimit.NewMemoryStore()
	t.Cleanup(limits.Stop)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := NewServer(ServerOptions{
		Repo:     repo,
		Sessions: auth.NewManager(repo, time.Hour, false),
		Limits:   limits,
		Audit:    audit.NewRecorder(repo, logger),
		Webhook:  webhook.NewForwarder(""),
		LLM: llm.NewClient(llm.Config{
			BaseURL:   llmURL,
			APIKey:    "test-key",
			Model:     "test-model",
			MaxTokens: 1024,
			Timeout:   5 * time.Second,
		}),
		Aggregator: analysis.NewAggregator(repo),
		Logger:     logger,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &testEnv{ts: ts, client: &http.Client{Jar: jar}}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// doJSON issues a request, decodes the JSON response into out (when non-nil)
// and returns the status code.
func (e *testEnv) doJSON(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	resp := e.do(t, method, path, body)
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) signup(t *testing.T, email string, demoData bool) {
	t.Helper()
	status := e.doJSON(t, "POST", "/api/signup", map[string]any{
		"email":    email,
		"password": "secreto123",
		"name":     "Test",
		"demoData": demoData,
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", status)
	}
}

func (e *testEnv) createAccount(t *testing.T, name string, balance float64) string {
	t.Helper()
	var account struct {
		ID string `json:"id"`
	}
	status := e.doJSON(t, "POST", "/api/accounts", map[string]any{
		"name":    name,
		"type":    "corriente",
		"balance": balance,
	}, &account)
	if status != http.StatusCreated {
		t.Fatalf("create account status = %d, want 201", status)
	}
	return account.ID
}

func (e *testEnv) anyCategoryID(t *testing.T) string {
	t.Helper()
	var categories []struct {
		ID string `json:"id"`
	}
	status := e.doJSON(t, "GET", "/api/categories", nil, &categories)
	if status != http.StatusOK {
		t.Fatalf("list categories status = %d, want 200", status)
	}
	if len(categories) == 0 {
		t.Fatal("no categories available")
	}
	return categories[0].ID
}

func TestSignupLoginLogout(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	env.signup(t, "ana@example.com", false)

	if status := env.doJSON(t, "POST", "/api/signup", map[string]any{
		"email": "ana@example.com", "password": "secreto123", "name": "Ana",
	}, nil); status != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", status)
	}

	if status := env.doJSON(t, "POST", "/api/logout", nil, nil); status != http.StatusOK {
		t.Errorf("logout status = %d, want 200", status)
	}
	if status := env.doJSON(t, "GET", "/api/accounts", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("accounts after logout status = %d, want 401", status)
	}

	if status := env.doJSON(t, "POST", "/api/login", map[string]any{
		"email": "ana@example.com", "password": "incorrecta",
	}, nil); status != http.StatusUnauthorized {
		t.Errorf("bad password login status = %d, want 401", status)
	}
	if status := env.doJSON(t, "POST", "/api/login", map[string]any{
		"email": "ana@example.com", "password": "secreto123",
	}, nil); status != http.StatusOK {
		t.Errorf("login status = %d, want 200", status)
	}
	if status := env.doJSON(t, "GET", "/api/accounts", nil, nil); status != http.StatusOK {
		t.Errorf("accounts after login status = %d, want 200", status)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	var body errorBody
	status := env.doJSON(t, "GET", "/api/transactions", nil, &body)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if body.Error != msgUnauthorized {
		t.Errorf("error = %q, want %q", body.Error, msgUnauthorized)
	}
}

func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.signup(t, "ana@example.com", false)

	id := env.createAccount(t, "Cuenta corriente", 100)

	if status := env.doJSON(t, "POST", "/api/accounts", map[string]any{
		"name": "Cuenta corriente", "type": "ahorros",
	}, nil); status != http.StatusConflict {
		t.Errorf("duplicate name status = %d, want 409", status)
	}

	if status := env.doJSON(t, "PUT", "/api/accounts/"+id, map[string]any{
		"name": "Cuenta principal", "type": "corriente", "balance": 100,
	}, nil); status != http.StatusOK {
		t.Errorf("update status = %d, want 200", status)
	}

	var accounts []accountResponse
	if status := env.doJSON(t, "GET", "/api/accounts", nil, &accounts); status != http.StatusOK {
		t.Fatalf("list status = %d, want 200", status)
	}
	if len(accounts) != 1 || accounts[0].Name != "Cuenta principal" {
		t.Errorf("accounts = %+v", accounts)
	}

	if status := env.doJSON(t, "DELETE", "/api/accounts/"+id, nil, nil); status != http.StatusOK {
		t.Errorf("delete status = %d, want 200", status)
	}
	if status := env.doJSON(t, "DELETE", "/api/accounts/"+id, nil, nil); status != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", status)
	}
}

func TestCategoryManagement(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.signup(t, "ana@example.com", false)

	var created categoryResponse
	if status := env.doJSON(t, "POST", "/api/categories", map[string]any{
		"name": "Mascotas",
	}, &created); status != http.StatusCreated {
		t.Fatalf("create category status = %d, want 201", status)
	}

	if status := env.doJSON(t, "PUT", "/api/categories/"+created.ID, map[string]any{
		"name": "Animales",
	}, nil); status != http.StatusOK {
		t.Errorf("rename status = %d, want 200", status)
	}

	// The first listed category is predefined (they sort first) and immutable.
	predefinedID := env.anyCategoryID(t)
	if status := env.doJSON(t, "PUT", "/api/categories/"+predefinedID, map[string]any{
		"name": "Otra cosa",
	}, nil); status != http.StatusNotFound {
		t.Errorf("predefined rename status = %d, want 404", status)
	}
	if status := env.doJSON(t, "DELETE", "/api/categories/"+predefinedID, nil, nil); status != http.StatusNotFound {
		t.Errorf("predefined delete status = %d, want 404", status)
	}

	if status := env.doJSON(t, "DELETE", "/api/categories/"+created.ID, nil, nil); status != http.StatusOK {
		t.Errorf("delete status = %d, want 200", status)
	}
}

func TestTransactionAdjustsAccountBalance(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.signup(t, "ana@example.com", false)

	accountID := env.createAccount(t, "Cuenta corriente", 100)
	categoryID := env.anyCategoryID(t)

	var created transactionResponse
	status := env.doJSON(t, "POST", "/api/transactions", map[string]any{
		"accountId":   accountID,
		"categoryId":  categoryID,
		"date":        time.Now().Format("2006-01-02"),
		"amount":      25.50,
		"type":        "gasto",
		"description": "Compra",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create transaction status = %d, want 201", status)
	}
	if created.Amount != -25.50 {
		t.Errorf("stored amount = %v, want -25.50 (expenses are negative)", created.Amount)
	}
	if created.Account.ID != accountID {
		t.Errorf("account id = %s, want %s", created.Account.ID, accountID)
	}

	balance := func() float64 {
		var accounts []accountResponse
		if status := env.doJSON(t, "GET", "/api/accounts", nil, &accounts); status != http.StatusOK {
			t.Fatalf("list accounts status = %d", status)
		}
		return accounts[0].Balance
	}
	if got := balance(); got != 74.50 {
		t.Errorf("balance after expense = %v, want 74.50", got)
	}

	if status := env.doJSON(t, "DELETE", "/api/transactions/"+created.ID, nil, nil); status != http.StatusOK {
		t.Fatalf("delete transaction status = %d, want 200", status)
	}
	if got := balance(); got != 100 {
		t.Errorf("balance after delete = %v, want 100", got)
	}
}

func TestBudgetDecoration(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.signup(t, "ana@example.com", false)

	accountID := env.createAccount(t, "Cuenta corriente", 0)
	categoryID := env.anyCategoryID(t)
	month := time.Now().Format("2006-01")

	if status := env.doJSON(t, "POST", "/api/budgets", map[string]any{
		"categoryId": categoryID, "month": month, "amount": 200,
	}, nil); status != http.StatusCreated {
		t.Fatalf("create budget status = %d, want 201", status)
	}
	if status := env.doJSON(t, "POST", "/api/budgets", map[string]any{
		"categoryId": categoryID, "month": month, "amount": 300,
	}, nil); status != http.StatusConflict {
		t.Errorf("duplicate budget status = %d, want 409", status)
	}

	if status := env.doJSON(t, "POST", "/api/transactions", map[string]any{
		"accountId":   accountID,
		"categoryId":  categoryID,
		"date":        time.Now().Format("2006-01-02"),
		"amount":      50,
		"type":        "gasto",
		"description": "Compra",
	}, nil); status != http.StatusCreated {
		t.Fatalf("create transaction status = %d", status)
	}

	var budgets []budgetResponse
	if status := env.doJSON(t, "GET", "/api/budgets?month="+month, nil, &budgets); status != http.StatusOK {
		t.Fatalf("list budgets status = %d, want 200", status)
	}
	if len(budgets) != 1 {
		t.Fatalf("budgets = %d, want 1", len(budgets))
	}
	b := budgets[0]
	if b.Spent != 50 || b.Remaining != 150 || b.Percentage != 25 || b.Status != "ok" {
		t.Errorf("decoration = %+v, want spent 50 remaining 150 percentage 25 status ok", b)
	}

	if status := env.doJSON(t, "GET", "/api/budgets?month=junio", nil, nil); status != http.StatusBadRequest {
		t.Errorf("invalid month status = %d, want 400", status)
	}
}

func TestDashboardShape(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.signup(t, "ana@example.com", true)

	var dash struct {
		CurrentMonth struct {
			Income   float64 `json:"income"`
			Expenses float64 `json:"expenses"`
			Balance  float64 `json:"balance"`
		} `json:"currentMonth"`
		Accounts      []accountResponse `json:"accounts"`
		MonthlySeries []struct {
			Month    string  `json:"month"`
			Income   float64 `json:"income"`
			Expenses float64 `json:"expenses"`
		} `json:"monthlySeries"`
	}
	if status := env.doJSON(t, "GET", "/api/dashboard", nil, &dash); status != http.StatusOK {
		t.Fatalf("dashboard status = %d, want 200", status)
	}

	if len(dash.MonthlySeries) != 6 {
		t.Fatalf("monthly series length = %d, want 6", len(dash.MonthlySeries))
	}
	if last := dash.MonthlySeries[5].Month; last != time.Now().Format("2006-01") {
		t.Errorf("series ends at %q, want current month", last)
	}
	if len(dash.Accounts) != 1 {
		t.Errorf("accounts = %d, want 1 (demo data)", len(dash.Accounts))
	}
	// The demo seed spans the last 15 days, so the series as a whole always
	// carries activity even when the current month is nearly empty.
	var seriesTotal float64
	for _, p := range dash.MonthlySeries {
		seriesTotal += p.Income + p.Expenses
	}
	if seriesTotal == 0 {
		t.Error("monthly series has no activity despite demo data")
	}
	if dash.CurrentMonth.Balance != dash.CurrentMonth.Income-dash.CurrentMonth.Expenses {
		t.Errorf("balance %v != income %v - expenses %v",
			dash.CurrentMonth.Balance, dash.CurrentMonth.Income, dash.CurrentMonth.Expenses)
	}
}

func TestExportTransactionsCSV(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.signup(t, "ana@example.com", true)

	resp := env.do(t, "GET", "/api/export/transactions", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "transacciones_") {
		t.Errorf("content disposition = %q", cd)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if !strings.HasPrefix(lines[0], `"Fecha","Tipo","Categoría"`) {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) < 2 {
		t.Error("no data rows despite demo data")
	}
	// Amounts use the decimal comma.
	if !strings.Contains(string(body), `"-54,30"`) {
		t.Errorf("body missing comma-formatted amount:\n%s", body)
	}
}

func TestFeedbackWithoutSession(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	status := env.doJSON(t, "POST", "/api/feedback", map[string]any{
		"rating": 4, "message": "Muy útil",
	}, nil)
	if status != http.StatusCreated {
		t.Errorf("feedback status = %d, want 201", status)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	var body struct {
		Status string `json:"status"`
	}
	if status := env.doJSON(t, "GET", "/api/health", nil, &body); status != http.StatusOK {
		t.Fatalf("health status = %d, want 200", status)
	}
	if body.Status != "healthy" {
		t.Errorf("status field = %q, want healthy", body.Status)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")

	creds := map[string]any{"email": "ana@example.com", "password": "incorrecta"}
	for i := 0; i < 5; i++ {
		if status := env.doJSON(t, "POST", "/api/login", creds, nil); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, status)
		}
	}

	resp := env.do(t, "POST", "/api/login", creds)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("attempt 6 status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header not set on 429")
	}
}

func TestAnalysisRequiresTransactions(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	env.signup(t, "ana@example.com", false)

	var body errorBody
	status := env.doJSON(t, "POST", "/api/analysis/financial", nil, &body)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if !strings.Contains(body.Error, "3 transacciones") {
		t.Errorf("error = %q, want minimum-transactions message", body.Error)
	}
}

// streamEvents splits a text/plain analysis response into its decoded events.
func streamEvents(t *testing.T, body []byte) []analysis.Event {
	t.Helper()
	var events []analysis.Event
	for _, frame := range strings.Split(string(body), "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		payload, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			t.Fatalf("frame without data prefix: %q", frame)
		}
		var ev analysis.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("decode event %q: %v", payload, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestAnalysisStreamCompleted(t *testing.T) {
	doc := `{"insights":[{"type":"category_analysis","title":"Supermercado","description":"d","impact":"medium"}],` +
		`"recommendations":[{"title":"a","description":"d","potential_monthly_savings":20,` +
		`"potential_annual_savings":240,"difficulty":"easy","category":"Ocio"}]}`

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		// Deltas of a few characters each, the way providers actually chunk.
		for i := 0; i < len(doc); i += 7 {
			end := i + 7
			if end > len(doc) {
				end = len(doc)
			}
			chunk, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]string{"content": doc[i:end]}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)
	env.signup(t, "ana@example.com", true)

	resp := env.do(t, "POST", "/api/analysis/financial", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q, want text/plain", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	events := streamEvents(t, body)
	if len(events) == 0 {
		t.Fatal("no events in stream")
	}

	terminals := 0
	for _, ev := range events[:len(events)-1] {
		if ev.Status != "processing" {
			terminals++
		}
	}
	if terminals != 0 {
		t.Errorf("terminal events before end of stream: %d", terminals)
	}

	last := events[len(events)-1]
	if last.Status != "completed" || last.Progress != 100 {
		t.Fatalf("terminal event = %+v, want completed/100", last)
	}
	if last.Result == nil {
		t.Fatal("completed event has no result")
	}
	if last.Result.TotalMonthlyPotential != 20 || last.Result.TotalAnnualPotential != 240 {
		t.Errorf("totals = %v/%v, want 20/240",
			last.Result.TotalMonthlyPotential, last.Result.TotalAnnualPotential)
	}
}

func TestAnalysisStreamUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)
	env.signup(t, "ana@example.com", true)

	resp := env.do(t, "POST", "/api/analysis/financial", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (stream already started)", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	events := streamEvents(t, body)
	if len(events) != 1 {
		t.Fatalf("events = %d, want exactly 1", len(events))
	}
	if events[0].Status != "error" {
		t.Errorf("status = %q, want error", events[0].Status)
	}
	if events[0].Message != "El servicio de análisis no está disponible en este momento" {
		t.Errorf("message = %q", events[0].Message)
	}
}
