package workflow

import (
	"errors"
	"testing"
	"time"

	"autoflow/app/actions"
	"autoflow/app/db/dbtest"
	"autoflow/app/db/models"
	"autoflow/app/events"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHandler struct {
	mock.Mock
	name string
}

func (m *mockHandler) Name() string { return m.name }

func (m *mockHandler) Validate(params map[string]interface{}, partial bool) error { return nil }

func (m *mockHandler) Execute(ctx *contextx.Context, params map[string]interface{}, wctx *objects.WorkflowContext) (interface{}, error) {
	args := m.Called(params, wctx.UserID)
	if fn, ok := args.Get(0).(func()); ok {
		fn()
		return nil, nil
	}
	return args.Get(0), args.Error(1)
}

func newUser(t *testing.T, ctx *contextx.Context, id string) {
	u := objects.NewUser()
	u.ID = id
	u.Name = "User " + id
	u.Email = id + "@example.test"
	require.NoError(t, u.Save(ctx))
}

func TestResolve(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))
	newUser(t, ctx, "u1")
	newUser(t, ctx, "u2")
	r := NewResolver()

	_, err := r.Resolve(ctx, "", "", "")
	asserter.True(objects.IsAmbiguousContext(err))
	_, err = r.Resolve(ctx, "sa1", "", "")
	asserter.True(objects.IsAmbiguousContext(err))

	u, err := r.Resolve(ctx, "sa1", "u1", "")
	if asserter.NoError(err) {
		asserter.Equal("u1", u.ID)
	}
	u, err = r.Resolve(ctx, "sa1", "u1", "u1")
	if asserter.NoError(err) {
		asserter.Equal("u1", u.ID)
	}
	_, err = r.Resolve(ctx, "sa1", "u1", "u2")
	asserter.True(objects.IsForbidden(err))

	u, err = r.Resolve(ctx, "sa1", "", "u2")
	if asserter.NoError(err) {
		asserter.Equal("u2", u.ID)
	}
	_, err = r.Resolve(ctx, "sa1", "", "ghost")
	asserter.True(objects.IsNotFoundError(err))
	_, err = r.Resolve(ctx, "sa1", "ghost", "")
	asserter.True(objects.IsNotFoundError(err))
}

func TestContext(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))
	newUser(t, ctx, "u1")

	p := &objects.Principal{ServiceAccountID: "sa1", ServiceAccountName: "zapier", Permissions: objects.SliceString{"search"}}
	wctx, err := NewResolver().Context(ctx, p, "u1")
	require.NoError(t, err)
	asserter.Equal("u1", wctx.UserID)
	asserter.Equal("u1@example.test", wctx.UserEmail)
	asserter.Equal("zapier", wctx.ServiceAccountName)
	asserter.True(wctx.Allows("search"))

	_, err = NewResolver().Context(ctx, nil, "u1")
	asserter.True(objects.IsUnauthorized(err))
}

func newRouter(handlers ...actions.Handler) (*Router, *events.MemoryPublisher) {
	pub := &events.MemoryPublisher{}
	return NewRouter(actions.NewRegistry(handlers...), pub, time.Second), pub
}

func TestDispatch_ForbiddenBeforeLookup(t *testing.T) {
	asserter := assert.New(t)
	invoice := &mockHandler{name: "create_invoice"}
	router, pub := newRouter(invoice)

	wctx := &objects.WorkflowContext{UserID: "u1", Permissions: objects.SliceString{"search"}}
	res := router.Dispatch(contextx.NewContext(nil), "create_invoice", map[string]interface{}{"clientId": "c1", "amount": 100}, wctx)
	asserter.False(res.Success)
	asserter.Equal("Forbidden", res.Error)
	invoice.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)

	res = router.Dispatch(contextx.NewContext(nil), "drop_tables", nil, wctx)
	asserter.Equal(objects.CodeForbidden, res.Error)

	dispatched := pub.Events(events.TopicActionDispatched)
	if asserter.Len(dispatched, 2) {
		asserter.Equal("u1", dispatched[0].Payload["userId"])
		asserter.Equal(false, dispatched[0].Payload["success"])
	}
}

func TestDispatch_Envelopes(t *testing.T) {
	asserter := assert.New(t)
	ok := &mockHandler{name: "search"}
	ok.On("Execute", mock.Anything, "u1").Return(map[string]interface{}{"total": 2}, nil)
	invalid := &mockHandler{name: "create_contact"}
	invalid.On("Execute", mock.Anything, "u1").Return(nil, objects.NewValidationError("invalid", map[string]string{"email": "must be an email"}))
	broken := &mockHandler{name: "update_status"}
	broken.On("Execute", mock.Anything, "u1").Return(nil, errors.New("connection reset"))
	panicky := &mockHandler{name: "create_quote"}
	panicky.On("Execute", mock.Anything, "u1").Return(func() { panic("boom") }, nil)

	router, _ := newRouter(ok, invalid, broken, panicky)
	ctx := contextx.NewContext(nil)
	wctx := &objects.WorkflowContext{UserID: "u1", Permissions: objects.SliceString{objects.PermissionWildcard}}

	res := router.Dispatch(ctx, "search", map[string]interface{}{"query": "acme"}, wctx)
	asserter.True(res.Success)
	asserter.Equal(map[string]interface{}{"total": 2}, res.Data)
	asserter.Empty(res.Error)

	res = router.Dispatch(ctx, "create_contact", nil, wctx)
	asserter.Equal(objects.CodeValidation, res.Error)
	asserter.Equal("must be an email", res.Details["email"])
	asserter.Equal(400, objects.HTTPStatus(res.Err()))

	res = router.Dispatch(ctx, "update_status", nil, wctx)
	asserter.Equal(objects.CodeInternal, res.Error)
	asserter.Equal("internal error", res.Message)

	res = router.Dispatch(ctx, "create_quote", nil, wctx)
	asserter.False(res.Success)
	asserter.Equal(objects.CodeInternal, res.Error)

	res = router.Dispatch(ctx, "add_time_entry", nil, wctx)
	asserter.Equal(objects.CodeUnsupportedAction, res.Error)

	res = router.Dispatch(ctx, "", nil, wctx)
	asserter.Equal(objects.CodeValidation, res.Error)

	res = router.Dispatch(ctx, "search", nil, nil)
	asserter.Equal(objects.CodeAmbiguousContext, res.Error)
}

func TestDispatch_Timeout(t *testing.T) {
	asserter := assert.New(t)
	slow := &mockHandler{name: "search"}
	slow.On("Execute", mock.Anything, "u1").Return(func() { time.Sleep(200 * time.Millisecond) }, nil)

	router := NewRouter(actions.NewRegistry(slow), nil, 20*time.Millisecond)
	res := router.Dispatch(contextx.NewContext(nil), "search", nil, &objects.WorkflowContext{UserID: "u1", Permissions: objects.SliceString{"*"}})
	asserter.False(res.Success)
	asserter.Equal(objects.CodeExecution, res.Error)
}

func TestDispatch_RealHandler(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext(dbtest.New(t))
	newUser(t, ctx, "u1")

	pub := &events.MemoryPublisher{}
	router := NewRouter(actions.NewDefaultRegistry(actions.Deps{Publisher: pub}), pub, time.Second)
	wctx, err := NewResolver().Context(ctx, &objects.Principal{ServiceAccountID: "sa1", Permissions: objects.SliceString{"create_invoice"}}, "u1")
	require.NoError(t, err)

	res := router.Dispatch(ctx, "create_invoice", map[string]interface{}{"clientId": "c1", "amount": 100}, wctx)
	require.True(t, res.Success, res.Message)
	n, err := objects.CountRecords(ctx, "u1", models.KindInvoice)
	asserter.NoError(err)
	asserter.Equal(int64(1), n)

	res = router.Dispatch(ctx, "create_invoice", map[string]interface{}{"clientId": "c1"}, wctx)
	asserter.Equal(objects.CodeValidation, res.Error)
	asserter.Contains(res.Details, "amount")
}
