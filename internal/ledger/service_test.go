package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-registration/internal/ledger"
	"ms-registration/internal/models"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) ActiveRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	args := m.Called(userID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Registration), args.Error(1)
}

func (m *MockDBLayer) LatestCancelledRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	args := m.Called(userID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Registration), args.Error(1)
}

func (m *MockDBLayer) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	args := m.Called(eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockDBLayer) TicketTypeForEvent(ctx context.Context, eventID int64) (*models.TicketType, error) {
	args := m.Called(eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TicketType), args.Error(1)
}

func (m *MockDBLayer) CloseEventRegistration(ctx context.Context, eventID int64) error {
	args := m.Called(eventID)
	return args.Error(0)
}

func (m *MockDBLayer) CommitRegister(ctx context.Context, reg *models.Registration) error {
	args := m.Called(reg)
	return args.Error(0)
}

func (m *MockDBLayer) CommitCancel(ctx context.Context, reg *models.Registration) error {
	args := m.Called(reg)
	return args.Error(0)
}

func (m *MockDBLayer) UserTickets(ctx context.Context, userID int64) ([]models.UserTicket, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserTicket), args.Error(1)
}

type MockSubmitLock struct {
	mock.Mock
}

func (m *MockSubmitLock) LockSubmission(eventID, userID int64) (bool, error) {
	args := m.Called(eventID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubmitLock) UnlockSubmission(eventID, userID int64) error {
	args := m.Called(eventID, userID)
	return args.Error(0)
}

type MockKafkaPublisher struct {
	mock.Mock
}

func (m *MockKafkaPublisher) PublishRegistrationCreated(evt models.RegistrationEvent) error {
	args := m.Called(evt)
	return args.Error(0)
}

func (m *MockKafkaPublisher) PublishRegistrationCancelled(evt models.RegistrationEvent) error {
	args := m.Called(evt)
	return args.Error(0)
}

type MockActivityRecorder struct {
	mock.Mock
}

func (m *MockActivityRecorder) Record(userID int64, action string) {
	m.Called(userID, action)
}

func openEvent(id int64) *models.Event {
	return &models.Event{ID: id, Title: "GopherCon", Status: models.EventRegistrationOpen}
}

func newTestService(db *MockDBLayer, lock *MockSubmitLock, kafka *MockKafkaPublisher, activity *MockActivityRecorder) *ledger.Service {
	return ledger.NewService(db, lock, kafka, activity, nil, nil)
}

// Tests start here
func TestRegisterSuccess(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSubmitLock)
	mockKafka := new(MockKafkaPublisher)
	mockActivity := new(MockActivityRecorder)

	svc := newTestService(mockDB, mockLock, mockKafka, mockActivity)

	mockLock.On("LockSubmission", int64(42), int64(7)).Return(true, nil)
	mockLock.On("UnlockSubmission", int64(42), int64(7)).Return(nil)
	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("LatestCancelledRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("GetEvent", int64(42)).Return(openEvent(42), nil)
	mockDB.On("TicketTypeForEvent", int64(42)).Return(&models.TicketType{
		ID: 1, EventID: 42, Name: "General", Price: 25.0, AvailableQuantity: 100, SoldQuantity: 10,
	}, nil)
	mockDB.On("CommitRegister", mock.MatchedBy(func(reg *models.Registration) bool {
		return reg.UserID == 7 && reg.EventID == 42 && reg.Status == models.RegistrationApproved
	})).Run(func(args mock.Arguments) {
		reg := args.Get(0).(*models.Registration)
		reg.ID = 99
		reg.TicketNumber = "42-11"
	}).Return(nil)
	mockActivity.On("Record", int64(7), "register_for_event").Return()
	mockKafka.On("PublishRegistrationCreated", mock.MatchedBy(func(evt models.RegistrationEvent) bool {
		return evt.RegistrationID == 99 && evt.Action == "registration_created"
	})).Return(nil)

	conf, err := svc.Register(context.Background(), 7, 42)

	assert.NoError(t, err)
	assert.Equal(t, int64(99), conf.ID)
	assert.Equal(t, "42-11", conf.TicketNumber)
	assert.Equal(t, "General", conf.TicketType)
	assert.Equal(t, models.RegistrationApproved, conf.Status)

	mockDB.AssertExpectations(t)
	mockLock.AssertExpectations(t)
	mockKafka.AssertExpectations(t)
	mockActivity.AssertExpectations(t)
}

func TestRegisterAlreadyRegistered(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSubmitLock)

	svc := newTestService(mockDB, mockLock, new(MockKafkaPublisher), new(MockActivityRecorder))

	mockLock.On("LockSubmission", int64(42), int64(7)).Return(true, nil)
	mockLock.On("UnlockSubmission", int64(42), int64(7)).Return(nil)
	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(&models.Registration{
		ID: 5, UserID: 7, EventID: 42, Status: models.RegistrationApproved,
	}, nil)

	conf, err := svc.Register(context.Background(), 7, 42)

	assert.ErrorIs(t, err, ledger.ErrAlreadyRegistered)
	assert.Nil(t, conf)

	// Repeating the call must not touch the inventory either time.
	conf, err = svc.Register(context.Background(), 7, 42)
	assert.ErrorIs(t, err, ledger.ErrAlreadyRegistered)
	assert.Nil(t, conf)

	mockDB.AssertNotCalled(t, "CommitRegister", mock.Anything)
	mockDB.AssertExpectations(t)
}

func TestRegisterLockContention(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSubmitLock)

	svc := newTestService(mockDB, mockLock, new(MockKafkaPublisher), new(MockActivityRecorder))

	mockLock.On("LockSubmission", int64(42), int64(7)).Return(false, nil)

	conf, err := svc.Register(context.Background(), 7, 42)

	assert.ErrorIs(t, err, ledger.ErrAlreadyRegistered)
	assert.Nil(t, conf)
	mockDB.AssertNotCalled(t, "ActiveRegistration", mock.Anything, mock.Anything)
	mockLock.AssertNotCalled(t, "UnlockSubmission", mock.Anything, mock.Anything)
}

func TestRegisterCancellationLimit(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSubmitLock)

	svc := newTestService(mockDB, mockLock, new(MockKafkaPublisher), new(MockActivityRecorder))

	mockLock.On("LockSubmission", int64(42), int64(7)).Return(true, nil)
	mockLock.On("UnlockSubmission", int64(42), int64(7)).Return(nil)
	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("LatestCancelledRegistration", int64(7), int64(42)).Return(&models.Registration{
		ID: 5, UserID: 7, EventID: 42, Status: models.RegistrationCancelled,
		CancellationCount: models.MaxCancellations,
	}, nil)

	conf, err := svc.Register(context.Background(), 7, 42)

	assert.ErrorIs(t, err, ledger.ErrCancellationLimit)
	assert.Nil(t, conf)
	mockDB.AssertNotCalled(t, "GetEvent", mock.Anything)
}

func TestRegisterNotOpen(t *testing.T) {
	for _, status := range []models.EventStatus{models.EventDraft, models.EventRegistrationClosed, models.EventCompleted} {
		mockDB := new(MockDBLayer)
		mockLock := new(MockSubmitLock)

		svc := newTestService(mockDB, mockLock, new(MockKafkaPublisher), new(MockActivityRecorder))

		mockLock.On("LockSubmission", int64(42), int64(7)).Return(true, nil)
		mockLock.On("UnlockSubmission", int64(42), int64(7)).Return(nil)
		mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(nil, nil)
		mockDB.On("LatestCancelledRegistration", int64(7), int64(42)).Return(nil, nil)
		mockDB.On("GetEvent", int64(42)).Return(&models.Event{ID: 42, Status: status}, nil)

		conf, err := svc.Register(context.Background(), 7, 42)

		assert.ErrorIs(t, err, ledger.ErrRegistrationNotOpen)
		assert.Nil(t, conf)
		mockDB.AssertNotCalled(t, "CommitRegister", mock.Anything)
	}
}

func TestRegisterSoldOutClosesEvent(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSubmitLock)

	svc := newTestService(mockDB, mockLock, new(MockKafkaPublisher), new(MockActivityRecorder))

	mockLock.On("LockSubmission", int64(42), int64(7)).Return(true, nil)
	mockLock.On("UnlockSubmission", int64(42), int64(7)).Return(nil)
	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("LatestCancelledRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("GetEvent", int64(42)).Return(openEvent(42), nil)
	mockDB.On("TicketTypeForEvent", int64(42)).Return(&models.TicketType{
		ID: 1, EventID: 42, AvailableQuantity: 50, SoldQuantity: 50,
	}, nil)
	mockDB.On("CloseEventRegistration", int64(42)).Return(nil)

	conf, err := svc.Register(context.Background(), 7, 42)

	assert.ErrorIs(t, err, ledger.ErrSoldOut)
	assert.Nil(t, conf)
	mockDB.AssertCalled(t, "CloseEventRegistration", int64(42))
	mockDB.AssertNotCalled(t, "CommitRegister", mock.Anything)
}

func TestRegisterLosesRaceForLastTicket(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSubmitLock)

	svc := newTestService(mockDB, mockLock, new(MockKafkaPublisher), new(MockActivityRecorder))

	mockLock.On("LockSubmission", int64(42), int64(7)).Return(true, nil)
	mockLock.On("UnlockSubmission", int64(42), int64(7)).Return(nil)
	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("LatestCancelledRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("GetEvent", int64(42)).Return(openEvent(42), nil)
	// The read sees one ticket left, but another commit takes it first.
	mockDB.On("TicketTypeForEvent", int64(42)).Return(&models.TicketType{
		ID: 1, EventID: 42, AvailableQuantity: 50, SoldQuantity: 49,
	}, nil)
	mockDB.On("CommitRegister", mock.Anything).Return(ledger.ErrSoldOut)
	mockDB.On("CloseEventRegistration", int64(42)).Return(nil)

	conf, err := svc.Register(context.Background(), 7, 42)

	assert.ErrorIs(t, err, ledger.ErrSoldOut)
	assert.Nil(t, conf)
	mockDB.AssertCalled(t, "CloseEventRegistration", int64(42))
}

func TestRegisterReusesCancelledRow(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSubmitLock)
	mockKafka := new(MockKafkaPublisher)
	mockActivity := new(MockActivityRecorder)

	svc := newTestService(mockDB, mockLock, mockKafka, mockActivity)

	cancelled := &models.Registration{
		ID: 5, UserID: 7, EventID: 42, TicketTypeID: 1,
		TicketNumber:      "42-3",
		Status:            models.RegistrationCancelled,
		CancellationCount: 1,
		SubmissionTime:    time.Now().Add(-time.Hour),
	}

	mockLock.On("LockSubmission", int64(42), int64(7)).Return(true, nil)
	mockLock.On("UnlockSubmission", int64(42), int64(7)).Return(nil)
	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("LatestCancelledRegistration", int64(7), int64(42)).Return(cancelled, nil)
	mockDB.On("GetEvent", int64(42)).Return(openEvent(42), nil)
	mockDB.On("TicketTypeForEvent", int64(42)).Return(&models.TicketType{
		ID: 1, EventID: 42, Name: "General", AvailableQuantity: 100, SoldQuantity: 10, FreeRegistration: true,
	}, nil)
	mockDB.On("CommitRegister", mock.MatchedBy(func(reg *models.Registration) bool {
		// The same row comes back: id kept, counter untouched, active again.
		return reg.ID == 5 && reg.CancellationCount == 1 && reg.Status == models.RegistrationApproved
	})).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Registration).TicketNumber = "42-12"
	}).Return(nil)
	mockActivity.On("Record", int64(7), "register_for_event").Return()
	mockKafka.On("PublishRegistrationCreated", mock.Anything).Return(nil)

	conf, err := svc.Register(context.Background(), 7, 42)

	assert.NoError(t, err)
	assert.Equal(t, int64(5), conf.ID)
	assert.Equal(t, "42-12", conf.TicketNumber)

	mockDB.AssertExpectations(t)
}

func TestRegisterSurvivesKafkaFailure(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockSubmitLock)
	mockKafka := new(MockKafkaPublisher)
	mockActivity := new(MockActivityRecorder)

	svc := newTestService(mockDB, mockLock, mockKafka, mockActivity)

	mockLock.On("LockSubmission", int64(42), int64(7)).Return(true, nil)
	mockLock.On("UnlockSubmission", int64(42), int64(7)).Return(nil)
	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("LatestCancelledRegistration", int64(7), int64(42)).Return(nil, nil)
	mockDB.On("GetEvent", int64(42)).Return(openEvent(42), nil)
	mockDB.On("TicketTypeForEvent", int64(42)).Return(&models.TicketType{
		ID: 1, EventID: 42, Name: "General", AvailableQuantity: 100, SoldQuantity: 10,
	}, nil)
	mockDB.On("CommitRegister", mock.Anything).Return(nil)
	mockActivity.On("Record", int64(7), "register_for_event").Return()
	mockKafka.On("PublishRegistrationCreated", mock.Anything).Return(errors.New("broker down"))

	conf, err := svc.Register(context.Background(), 7, 42)

	// The registration commits regardless of downstream notification.
	assert.NoError(t, err)
	assert.NotNil(t, conf)
}

func TestLastTicketRace(t *testing.T) {
	// Capacity 1: the first user takes the last ticket and the event
	// closes; the second user is turned away before any mutation.
	mockDB := new(MockDBLayer)
	mockLock := new(MockSubmitLock)
	mockKafka := new(MockKafkaPublisher)
	mockActivity := new(MockActivityRecorder)

	svc := newTestService(mockDB, mockLock, mockKafka, mockActivity)

	mockLock.On("LockSubmission", int64(42), mock.Anything).Return(true, nil)
	mockLock.On("UnlockSubmission", int64(42), mock.Anything).Return(nil)
	mockDB.On("ActiveRegistration", mock.Anything, int64(42)).Return(nil, nil)
	mockDB.On("LatestCancelledRegistration", mock.Anything, int64(42)).Return(nil, nil)

	mockDB.On("GetEvent", int64(42)).Return(openEvent(42), nil).Once()
	mockDB.On("TicketTypeForEvent", int64(42)).Return(&models.TicketType{
		ID: 1, EventID: 42, Name: "General", AvailableQuantity: 1, SoldQuantity: 0,
	}, nil).Once()
	mockDB.On("CommitRegister", mock.Anything).Return(nil).Once()
	mockActivity.On("Record", int64(7), "register_for_event").Return()
	mockKafka.On("PublishRegistrationCreated", mock.Anything).Return(nil)

	conf, err := svc.Register(context.Background(), 7, 42)
	assert.NoError(t, err)
	assert.NotNil(t, conf)

	// The commit closed the event; the second attempt sees that.
	mockDB.On("GetEvent", int64(42)).Return(&models.Event{
		ID: 42, Title: "GopherCon", Status: models.EventRegistrationClosed,
	}, nil).Once()

	conf, err = svc.Register(context.Background(), 8, 42)
	assert.ErrorIs(t, err, ledger.ErrRegistrationNotOpen)
	assert.Nil(t, conf)

	mockDB.AssertNumberOfCalls(t, "CommitRegister", 1)
}

func TestCancelSuccess(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockKafka := new(MockKafkaPublisher)
	mockActivity := new(MockActivityRecorder)

	svc := newTestService(mockDB, new(MockSubmitLock), mockKafka, mockActivity)

	active := &models.Registration{
		ID: 5, UserID: 7, EventID: 42, TicketTypeID: 1,
		TicketNumber: "42-3", Status: models.RegistrationApproved,
	}

	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(active, nil)
	mockDB.On("GetEvent", int64(42)).Return(openEvent(42), nil)
	mockDB.On("CommitCancel", active).Return(nil)
	mockActivity.On("Record", int64(7), "cancel_registration").Return()
	mockKafka.On("PublishRegistrationCancelled", mock.MatchedBy(func(evt models.RegistrationEvent) bool {
		return evt.RegistrationID == 5 && evt.Action == "registration_cancelled"
	})).Return(nil)

	conf, err := svc.Cancel(context.Background(), 7, 42)

	assert.NoError(t, err)
	assert.Equal(t, int64(5), conf.RegistrationID)

	mockDB.AssertExpectations(t)
	mockKafka.AssertExpectations(t)
}

func TestCancelWithoutActiveRegistration(t *testing.T) {
	mockDB := new(MockDBLayer)

	svc := newTestService(mockDB, new(MockSubmitLock), new(MockKafkaPublisher), new(MockActivityRecorder))

	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(nil, nil)

	conf, err := svc.Cancel(context.Background(), 7, 42)

	assert.ErrorIs(t, err, ledger.ErrNoActiveRegistration)
	assert.Nil(t, conf)
	mockDB.AssertNotCalled(t, "CommitCancel", mock.Anything)
}

func TestCancelLosesRaceToAnotherCancel(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockKafka := new(MockKafkaPublisher)
	mockActivity := new(MockActivityRecorder)

	svc := newTestService(mockDB, new(MockSubmitLock), mockKafka, mockActivity)

	active := &models.Registration{
		ID: 5, UserID: 7, EventID: 42, TicketTypeID: 1,
		TicketNumber: "42-3", Status: models.RegistrationApproved,
	}

	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(active, nil)
	mockDB.On("GetEvent", int64(42)).Return(openEvent(42), nil)
	// A concurrent cancel voided the row between the lookup and the
	// commit; the commit rejects rather than returning the ticket twice.
	mockDB.On("CommitCancel", active).Return(ledger.ErrNoActiveRegistration)

	conf, err := svc.Cancel(context.Background(), 7, 42)

	assert.ErrorIs(t, err, ledger.ErrNoActiveRegistration)
	assert.Nil(t, conf)
	mockKafka.AssertNotCalled(t, "PublishRegistrationCancelled", mock.Anything)
	mockActivity.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestCancelCompletedEvent(t *testing.T) {
	mockDB := new(MockDBLayer)

	svc := newTestService(mockDB, new(MockSubmitLock), new(MockKafkaPublisher), new(MockActivityRecorder))

	mockDB.On("ActiveRegistration", int64(7), int64(42)).Return(&models.Registration{
		ID: 5, UserID: 7, EventID: 42, Status: models.RegistrationApproved,
	}, nil)
	mockDB.On("GetEvent", int64(42)).Return(&models.Event{ID: 42, Status: models.EventCompleted}, nil)

	conf, err := svc.Cancel(context.Background(), 7, 42)

	assert.ErrorIs(t, err, ledger.ErrEventCompleted)
	assert.Nil(t, conf)
	mockDB.AssertNotCalled(t, "CommitCancel", mock.Anything)
}

func TestListUserTickets(t *testing.T) {
	mockDB := new(MockDBLayer)

	svc := newTestService(mockDB, new(MockSubmitLock), new(MockKafkaPublisher), new(MockActivityRecorder))

	tickets := []models.UserTicket{
		{RegistrationID: 5, EventID: 42, EventTitle: "GopherCon", TicketNumber: "42-3", Status: models.RegistrationApproved},
		{RegistrationID: 6, EventID: 43, EventTitle: "FOSDEM", TicketNumber: "43-1", Status: models.RegistrationCancelled},
	}
	mockDB.On("UserTickets", int64(7)).Return(tickets, nil)

	got, err := svc.ListUserTickets(context.Background(), 7)

	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "GopherCon", got[0].EventTitle)

	mockDB.AssertExpectations(t)
}
