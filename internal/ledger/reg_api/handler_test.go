package reg_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"ms-registration/internal/ledger"
	"ms-registration/internal/ledger/reg_api"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

// fakeDB is a map-backed DBLayer so the handler can be exercised through
// a real ledger service.
type fakeDB struct {
	event       *models.Event
	ticket      *models.TicketType
	active      map[int64]*models.Registration // keyed by user id
	nextSeq     int64
	commitCalls int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		event: &models.Event{ID: 42, Title: "GopherCon", Status: models.EventRegistrationOpen},
		ticket: &models.TicketType{
			ID: 1, EventID: 42, Name: "General", Price: 25.0,
			AvailableQuantity: 100, SoldQuantity: 0,
		},
		active: make(map[int64]*models.Registration),
	}
}

func (f *fakeDB) ActiveRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	return f.active[userID], nil
}

func (f *fakeDB) LatestCancelledRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	return nil, nil
}

func (f *fakeDB) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	return f.event, nil
}

func (f *fakeDB) TicketTypeForEvent(ctx context.Context, eventID int64) (*models.TicketType, error) {
	return f.ticket, nil
}

func (f *fakeDB) CloseEventRegistration(ctx context.Context, eventID int64) error {
	f.event.Status = models.EventRegistrationClosed
	return nil
}

func (f *fakeDB) CommitRegister(ctx context.Context, reg *models.Registration) error {
	f.commitCalls++
	f.nextSeq++
	reg.ID = f.nextSeq
	reg.TicketNumber = fmt.Sprintf("42-%d", f.nextSeq)
	f.ticket.SoldQuantity++
	f.active[reg.UserID] = reg
	return nil
}

func (f *fakeDB) CommitCancel(ctx context.Context, reg *models.Registration) error {
	f.ticket.SoldQuantity--
	reg.Status = models.RegistrationCancelled
	reg.CancellationCount++
	delete(f.active, reg.UserID)
	return nil
}

func (f *fakeDB) UserTickets(ctx context.Context, userID int64) ([]models.UserTicket, error) {
	var tickets []models.UserTicket
	if reg, ok := f.active[userID]; ok {
		tickets = append(tickets, models.UserTicket{
			RegistrationID: reg.ID,
			EventID:        reg.EventID,
			EventTitle:     f.event.Title,
			TicketType:     f.ticket.Name,
			TicketNumber:   reg.TicketNumber,
			Status:         reg.Status,
		})
	}
	return tickets, nil
}

func setupTestHandler() (*reg_api.Handler, *fakeDB) {
	db := newFakeDB()
	log := logger.NewLogger("reg-api-test")
	svc := ledger.NewService(db, nil, nil, nil, nil, log)
	return reg_api.NewHandler(svc, log), db
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	assert.NoError(t, err)

	req := httptest.NewRequest("POST", "/", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestRegisterHandler(t *testing.T) {
	handler, db := setupTestHandler()

	w := postJSON(t, handler.Register, map[string]int64{"event_id": 42, "user_id": 7})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, db.commitCalls)

	var conf models.RegistrationConfirmation
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&conf))
	assert.Equal(t, int64(42), conf.EventID)
	assert.Equal(t, "General", conf.TicketType)
	assert.NotEmpty(t, conf.TicketNumber)
}

func TestRegisterHandlerDuplicate(t *testing.T) {
	handler, db := setupTestHandler()

	w := postJSON(t, handler.Register, map[string]int64{"event_id": 42, "user_id": 7})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, handler.Register, map[string]int64{"event_id": 42, "user_id": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, db.commitCalls)
}

func TestRegisterHandlerBadBody(t *testing.T) {
	handler, _ := setupTestHandler()

	req := httptest.NewRequest("POST", "/", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	handler.Register(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing event_id
	w = postJSON(t, handler.Register, map[string]int64{"user_id": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelHandlerNoActiveRegistration(t *testing.T) {
	handler, _ := setupTestHandler()

	w := postJSON(t, handler.Cancel, map[string]int64{"event_id": 42, "user_id": 7})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelHandler(t *testing.T) {
	handler, db := setupTestHandler()

	w := postJSON(t, handler.Register, map[string]int64{"event_id": 42, "user_id": 7})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, handler.Cancel, map[string]int64{"event_id": 42, "user_id": 7})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, db.ticket.SoldQuantity)

	var conf models.CancellationConfirmation
	assert.NoError(t, json.NewDecoder(w.Body).Decode(&conf))
	assert.NotZero(t, conf.RegistrationID)
}

func TestMyTicketsHandler(t *testing.T) {
	handler, _ := setupTestHandler()

	w := postJSON(t, handler.Register, map[string]int64{"event_id": 42, "user_id": 7})
	assert.Equal(t, http.StatusCreated, w.Code)

	r := chi.NewRouter()
	r.Get("/users/{userId}/tickets", handler.MyTickets)

	req := httptest.NewRequest("GET", "/users/7/tickets", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var tickets []models.UserTicket
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&tickets))
	assert.Len(t, tickets, 1)
	assert.Equal(t, "GopherCon", tickets[0].EventTitle)

	// Non-numeric user id is rejected before hitting the service.
	req = httptest.NewRequest("GET", "/users/not-a-number/tickets", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
