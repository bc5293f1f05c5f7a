package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medsupply/internal/middleware"
	"medsupply/internal/model"
	"medsupply/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("handler-secret")

type route interface {
	RegisterRoutes(router *gin.RouterGroup)
}

func setupRouter(h route) *gin.Engine {
	gin.SetMode(gin.TestMode)
	SetupValidator()
	r := gin.New()
	h.RegisterRoutes(r.Group("", middleware.Authenticate(testSecret)))
	return r
}

type apiResponse struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

func do(t *testing.T, r http.Handler, actor model.Actor, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	token, err := middleware.SignToken(testSecret, actor, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

var (
	mfrActor    = model.Actor{UserID: uuid.New(), OrganisationID: uuid.New(), Role: model.RoleManufacturerStaff}
	clinicActor = model.Actor{UserID: uuid.New(), OrganisationID: uuid.New(), Role: model.RoleClinicStaff}
	adminActor  = model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}
)

// sameActor matches the Actor rebuilt from the token
func sameActor(want model.Actor) interface{} {
	return mock.MatchedBy(func(got model.Actor) bool {
		return got.UserID == want.UserID && got.OrganisationID == want.OrganisationID && got.Role == want.Role
	})
}

type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) StartBatch(ctx context.Context, actor model.Actor, req service.StartBatchRequest) (*model.Batch, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Batch), args.Error(1)
}

func (m *MockBatchService) SubmitForQC(ctx context.Context, actor model.Actor, batchID uuid.UUID) (*model.Batch, error) {
	args := m.Called(ctx, actor, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Batch), args.Error(1)
}

func (m *MockBatchService) CompleteBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID, req service.CompleteBatchRequest) (*model.Batch, error) {
	args := m.Called(ctx, actor, batchID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Batch), args.Error(1)
}

func (m *MockBatchService) CancelBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID, reason string) (*model.Batch, error) {
	args := m.Called(ctx, actor, batchID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Batch), args.Error(1)
}

func (m *MockBatchService) FailBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID, reason string) (*model.Batch, error) {
	args := m.Called(ctx, actor, batchID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Batch), args.Error(1)
}

func (m *MockBatchService) UpdateStage(ctx context.Context, actor model.Actor, batchID, stageID uuid.UUID, req service.UpdateStageRequest) (*model.BatchStage, error) {
	args := m.Called(ctx, actor, batchID, stageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BatchStage), args.Error(1)
}

func (m *MockBatchService) GetBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID) (*model.Batch, error) {
	args := m.Called(ctx, actor, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Batch), args.Error(1)
}

func (m *MockBatchService) ListBatches(ctx context.Context, actor model.Actor, status string, page, limit int) ([]model.Batch, int64, error) {
	args := m.Called(ctx, actor, status, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Batch), args.Get(1).(int64), args.Error(2)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, actor model.Actor, req service.CreateOrderRequest) (*model.Order, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, actor model.Actor, status string, page, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, actor, status, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status string) (*model.Order, error) {
	args := m.Called(ctx, actor, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) UpdateOrderItem(ctx context.Context, actor model.Actor, orderID, itemID uuid.UUID, update service.ItemUpdate) (*model.OrderItem, error) {
	args := m.Called(ctx, actor, orderID, itemID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderItem), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, actor model.Actor, orderID uuid.UUID, reason string) (*model.Order, error) {
	args := m.Called(ctx, actor, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}
