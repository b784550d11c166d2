package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarity-disputes/backend/internal/audit"
	"clarity-disputes/backend/internal/pipeline"
	"clarity-disputes/backend/internal/scoring"
	"clarity-disputes/backend/internal/store"
)

type testServer struct {
	store  *store.Memory
	stream *StreamHub
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := store.NewMemory()
	hub := NewStreamHub()
	rec := audit.NewRecorder(mem, hub)
	orch := pipeline.New(pipeline.Deps{Tickets: mem, Recorder: rec})
	srv, err := NewServer(Config{Store: mem, Recorder: rec, Pipeline: orch, Stream: hub})
	require.NoError(t, err)
	router, err := srv.Router()
	require.NoError(t, err)
	return &testServer{store: mem, stream: hub, router: router}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (ts *testServer) createTicket(t *testing.T) TicketDTO {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/tickets", CreateTicketRequest{
		Title:         "Unauthorized charge",
		Description:   "unauthorized subscription charge",
		CustomerEmail: "x@temp.com",
		DisputeValue:  900,
		Category:      "billing",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dto TicketDTO
	decode(t, w, &dto)
	return dto
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateTicketValidation(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/tickets", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/tickets", map[string]any{"title": "x", "customer_email": "nope", "dispute_value": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/tickets", map[string]any{"title": "x", "customer_email": "a@b.com", "dispute_value": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTicketLifecycle(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createTicket(t)
	assert.Equal(t, store.StatusPending, created.Status)
	assert.Equal(t, "billing", created.Category)

	w := ts.do(t, http.MethodPost, "/api/tickets/"+created.ID+"/process", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result pipeline.Result
	decode(t, w, &result)
	require.NotNil(t, result.Analysis)
	assert.Equal(t, created.ID, result.TicketID)
	assert.GreaterOrEqual(t, result.Analysis.RefundScore, 10)
	assert.LessOrEqual(t, result.Analysis.RefundScore, 95)
	// 900 exceeds both auto-resolution ceilings.
	assert.Equal(t, store.StatusPendingHumanReview, result.Status)

	w = ts.do(t, http.MethodGet, "/api/tickets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail TicketDetailResponse
	decode(t, w, &detail)
	assert.Equal(t, store.StatusPendingHumanReview, detail.Ticket.Status)
	assert.NotEqual(t, "null", string(detail.Ticket.AIProposal))
	require.GreaterOrEqual(t, len(detail.Negotiations), 2)
	assert.Equal(t, store.AgentPlanning, detail.Negotiations[0].AgentType)

	w = ts.do(t, http.MethodPost, "/api/tickets/"+created.ID+"/human-decision", pipeline.HumanDecisionInput{Decision: "approve", Comments: "fine"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/tickets/"+created.ID+"/process", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	decode(t, w, &result)
	require.NotNil(t, result.Error)
	assert.Equal(t, pipeline.KindAlreadyResolved, result.Error.Kind)

	w = ts.do(t, http.MethodGet, "/api/tickets/"+created.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []StateChangeDTO `json:"history"`
	}
	decode(t, w, &history)
	require.Len(t, history.History, 3)
	assert.Equal(t, store.StatusResolved, history.History[2].To)
}

func TestProcessMissingTicket(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/tickets/missing/process", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/tickets/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHumanDecisionRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	created := ts.createTicket(t)
	w := ts.do(t, http.MethodPost, "/api/tickets/"+created.ID+"/human-decision", map[string]any{"decision": "shrug"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndDashboard(t *testing.T) {
	ts := newTestServer(t)
	_, err := store.Seed(context.Background(), ts.store)
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/tickets?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list TicketsResponse
	decode(t, w, &list)
	assert.Equal(t, len(store.SampleTickets()), list.Total)

	w = ts.do(t, http.MethodGet, "/api/tickets?status=resolved", nil)
	decode(t, w, &list)
	assert.Equal(t, 0, list.Total)

	w = ts.do(t, http.MethodGet, "/api/analytics/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash struct {
		Overview store.Overview `json:"overview"`
	}
	decode(t, w, &dash)
	assert.Equal(t, len(store.SampleTickets()), dash.Overview.TotalTickets)
	assert.Equal(t, len(store.SampleTickets()), dash.Overview.PendingTickets)
}

func TestEthicsScore(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/ethics/score", EthicsScoreRequest{TicketDescription: "ok", ResolutionType: "Deny Refund", Amount: 20})
	require.Equal(t, http.StatusOK, w.Code)
	var report scoring.ComplianceReport
	decode(t, w, &report)
	assert.Equal(t, scoring.ScoreEthicalCompliance("ok", "Deny Refund", 20), report)
	assert.GreaterOrEqual(t, report.Score, 20)
	assert.LessOrEqual(t, report.Score, 95)
}

func TestImportTickets(t *testing.T) {
	ts := newTestServer(t)
	csvBody := "customer_email,amount,title,category,description\n" +
		"a@test.com,40,Late parcel,shipping,package arrived late\n" +
		"broken-row,abc,Bad,billing,x\n" +
		"b@test.com,$1200,Big charge,billing,unauthorized charge\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "tickets.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("process", "true"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tickets/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ImportResponse
	decode(t, w, &resp)
	assert.Equal(t, 3, resp.RowCount)
	assert.Equal(t, 2, resp.Created)
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, 2, resp.Processed)
	require.Len(t, resp.TicketIDs, 2)

	ticket, err := ts.store.GetTicket(context.Background(), resp.TicketIDs[1])
	require.NoError(t, err)
	assert.Equal(t, 1200.0, ticket.DisputeValue)
	assert.Equal(t, store.CategoryBilling, ticket.Category)
	assert.NotEqual(t, store.StatusPending, ticket.Status)
}

func TestImportRequiresFile(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/tickets/import", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseTicketCSVWithoutHeader(t *testing.T) {
	parsed, err := parseTicketCSV(strings.NewReader("Refund,item broken,c@test.com,15.5,product_defect\n"))
	require.NoError(t, err)
	require.Len(t, parsed.tickets, 1)
	assert.Equal(t, "Refund", parsed.tickets[0].Title)
	assert.Equal(t, 15.5, parsed.tickets[0].DisputeValue)
	assert.Equal(t, "product_defect", parsed.tickets[0].Category)
}

func TestStreamBroadcastsAuditEntries(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.stream.Clients() == 1 }, time.Second, 10*time.Millisecond)

	created := ts.createTicket(t)
	w := ts.do(t, http.MethodPost, "/api/tickets/"+created.ID+"/process", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event StreamEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "audit", event.Type)
	assert.Equal(t, created.ID, event.TicketID)
	require.NotNil(t, event.Entry)
	assert.Equal(t, store.AgentPlanning, event.Entry.AgentType)
}
