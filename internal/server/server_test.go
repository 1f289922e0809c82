package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adherencedomain "github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/internal/config"
	meddomain "github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/notification"
	riskdomain "github.com/doseline/doseline/internal/risk/domain"
	statsdomain "github.com/doseline/doseline/internal/stats/domain"
	"github.com/doseline/doseline/internal/timeutil"
	"github.com/doseline/doseline/internal/userctx"
)

type fakeMedicationService struct {
	createErr  error
	lastUserID snowflake.ID
	created    meddomain.CreateMedicationRequest
}

func (f *fakeMedicationService) Create(ctx context.Context, req meddomain.CreateMedicationRequest) (meddomain.Medication, error) {
	f.lastUserID, _ = userctx.UserIDFromContext(ctx)
	f.created = req
	if f.createErr != nil {
		return meddomain.Medication{}, f.createErr
	}
	return meddomain.Medication{ID: snowflake.ID(1), Name: req.Name}, nil
}

func (f *fakeMedicationService) Update(ctx context.Context, req meddomain.UpdateMedicationRequest) (meddomain.Medication, error) {
	return meddomain.Medication{}, meddomain.ErrNotFound
}

func (f *fakeMedicationService) Delete(ctx context.Context, req meddomain.DeleteMedicationRequest) error {
	return nil
}

func (f *fakeMedicationService) GetByID(ctx context.Context, req meddomain.GetMedicationRequest) (meddomain.Medication, error) {
	return meddomain.Medication{}, meddomain.ErrNotFound
}

func (f *fakeMedicationService) List(ctx context.Context, req meddomain.ListMedicationRequest) (meddomain.ListMedicationResponse, error) {
	return meddomain.ListMedicationResponse{Medications: []meddomain.Medication{}}, nil
}

type fakeDoseService struct {
	confirmErr error
}

func (f *fakeDoseService) Generate(ctx context.Context, med *meddomain.Medication, windowStart, windowEnd timeutil.Date) (adherencedomain.GenerationResult, error) {
	return adherencedomain.GenerationResult{}, nil
}

func (f *fakeDoseService) Confirm(ctx context.Context, req adherencedomain.ConfirmDoseRequest) (adherencedomain.DoseInstance, error) {
	if f.confirmErr != nil {
		return adherencedomain.DoseInstance{}, f.confirmErr
	}
	return adherencedomain.DoseInstance{ID: snowflake.ID(7), Status: adherencedomain.StatusTaken}, nil
}

func (f *fakeDoseService) Skip(ctx context.Context, req adherencedomain.SkipDoseRequest) (adherencedomain.DoseInstance, error) {
	return adherencedomain.DoseInstance{ID: snowflake.ID(7), Status: adherencedomain.StatusSkipped}, nil
}

func (f *fakeDoseService) List(ctx context.Context, req adherencedomain.ListDosesRequest) (adherencedomain.ListDosesResponse, error) {
	if req.From == "" || req.To == "" {
		return adherencedomain.ListDosesResponse{}, adherencedomain.ErrInvalidRange
	}
	return adherencedomain.ListDosesResponse{Doses: []adherencedomain.DoseInstance{}}, nil
}

func (f *fakeDoseService) SweepMissed(ctx context.Context, now time.Time, grace time.Duration) (adherencedomain.SweepResult, error) {
	return adherencedomain.SweepResult{}, nil
}

type fakeStatsService struct{}

func (f *fakeStatsService) Range(ctx context.Context, req statsdomain.RangeRequest) (statsdomain.StatsReport, error) {
	return statsdomain.StatsReport{From: req.From, To: req.To}, nil
}

func (f *fakeStatsService) Overview(ctx context.Context, req statsdomain.OverviewRequest) (statsdomain.Overview, error) {
	return statsdomain.Overview{Ranking: "good"}, nil
}

type fakeRiskService struct{}

func (f *fakeRiskService) ScoreMedication(ctx context.Context, userID, medicationID snowflake.ID, asOf timeutil.Date) (riskdomain.RiskScore, error) {
	return riskdomain.RiskScore{}, nil
}

func (f *fakeRiskService) RunDaily(ctx context.Context) (riskdomain.RunResult, error) {
	return riskdomain.RunResult{}, nil
}

func (f *fakeRiskService) History(ctx context.Context, req riskdomain.HistoryRequest) (riskdomain.HistoryResponse, error) {
	return riskdomain.HistoryResponse{Scores: []riskdomain.RiskScore{}}, nil
}

type fakeServerDispatcher struct {
	sendErr error
}

func (f *fakeServerDispatcher) DispatchDueReminders(ctx context.Context, now time.Time) (notification.DispatchResult, error) {
	return notification.DispatchResult{}, nil
}

func (f *fakeServerDispatcher) SendNow(ctx context.Context, doseID string) error {
	return f.sendErr
}

type serverFixture struct {
	srv        *Server
	medication *fakeMedicationService
	doses      *fakeDoseService
	dispatcher *fakeServerDispatcher
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	medication := &fakeMedicationService{}
	doses := &fakeDoseService{}
	dispatcher := &fakeServerDispatcher{}

	srv := NewServer(ServerParams{
		Gin:           engine,
		Cfg:           config.Config{},
		GenID:         node,
		MedicationSvc: medication,
		DoseSvc:       doses,
		StatsSvc:      &fakeStatsService{},
		RiskSvc:       &fakeRiskService{},
		Dispatcher:    dispatcher,
	})
	srv.RegisterAPIRoutes()

	return &serverFixture{
		srv:        srv,
		medication: medication,
		doses:      doses,
		dispatcher: dispatcher,
	}
}

func doRequest(f *serverFixture, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func TestUserRequiredRejectsMissingHeader(t *testing.T) {
	f := newTestServer(t)

	rec := doRequest(f, http.MethodGet, "/v1/medications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(f, http.MethodGet, "/v1/medications", "not-a-snowflake", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateMedicationInjectsUserContext(t *testing.T) {
	f := newTestServer(t)

	rec := doRequest(f, http.MethodPost, "/v1/medications", "123456789", map[string]any{
		"name":           "lisinopril",
		"schedule_times": []string{"08:00"},
		"start_date":     "2024-06-01",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 123456789, f.medication.lastUserID)
	assert.Equal(t, "lisinopril", f.medication.created.Name)
}

func TestCreateMedicationMapsScheduleValidation(t *testing.T) {
	f := newTestServer(t)
	f.medication.createErr = meddomain.ErrInvalidSchedule

	rec := doRequest(f, http.MethodPost, "/v1/medications", "42", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error.Type)
}

func TestConfirmDoseConflictMapsTo409(t *testing.T) {
	f := newTestServer(t)
	f.doses.confirmErr = adherencedomain.ErrInvalidState

	rec := doRequest(f, http.MethodPost, "/v1/doses/999/confirm", "42", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirmDoseUnknownMapsTo404(t *testing.T) {
	f := newTestServer(t)
	f.doses.confirmErr = adherencedomain.ErrNotFound

	rec := doRequest(f, http.MethodPost, "/v1/doses/999/confirm", "42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDosesRequiresRange(t *testing.T) {
	f := newTestServer(t)

	rec := doRequest(f, http.MethodGet, "/v1/doses", "42", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(f, http.MethodGet, "/v1/doses?from=2024-06-01&to=2024-06-07", "42", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendReminderNowPremiumGate(t *testing.T) {
	f := newTestServer(t)
	f.dispatcher.sendErr = notification.ErrPremiumRequired

	rec := doRequest(f, http.MethodPost, "/v1/doses/999/remind", "42", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatsRoutes(t *testing.T) {
	f := newTestServer(t)

	rec := doRequest(f, http.MethodGet, "/v1/stats?from=2024-06-01&to=2024-06-30", "42", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(f, http.MethodGet, "/v1/stats/overview", "42", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data statsdomain.Overview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "good", resp.Data.Ranking)
}

func TestRiskHistoryRoute(t *testing.T) {
	f := newTestServer(t)

	rec := doRequest(f, http.MethodGet, "/v1/risk/scores?limit=10", "42", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
