package handler

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolicyWizard/internal/cache"
	"PolicyWizard/internal/middleware"
	"PolicyWizard/internal/queue"
	"PolicyWizard/internal/service"
	"PolicyWizard/pkg/identity"
	"PolicyWizard/pkg/policyclient"
	"PolicyWizard/pkg/token"
)

const sessionHeader = "X-Test-Session"

var mockPolicy = policyclient.NewMockClient()

func TestMain(m *testing.M) {
	if err := token.InitWithSecret("handler-test-secret", time.Hour); err != nil {
		panic(err)
	}
	service.InitOnboarding(cache.NewMemoryWizardStore(time.Minute), mockPolicy, queue.NopPublisher{}, time.Second)
	service.InitAuth(identity.MockClient{})
	os.Exit(m.Run())
}

// 测试中用请求头代替 cookie 会话
func testSession() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if id := string(c.GetHeader(sessionHeader)); id != "" {
			c.Set(middleware.WizardSessionKey, id)
		}
		c.Next(ctx)
	}
}

func newTestEngine() *route.Engine {
	engine := route.NewEngine(config.NewOptions([]config.Option{}))
	engine.Use(testSession())

	onboarding := engine.Group("/v1/onboarding")
	onboarding.GET("", GetOnboarding)
	onboarding.DELETE("", Reset)
	onboarding.POST("/product", SubmitProduct)
	onboarding.POST("/principal", SubmitPrincipal)
	onboarding.POST("/dependant", SubmitDependant)
	onboarding.POST("/back", Back)
	onboarding.GET("/review", Review)
	onboarding.POST("/submit", Submit)

	engine.POST("/v1/auth/login", Login)
	engine.GET("/healthz", Health)
	return engine
}

type envelope struct {
	Data  map[string]interface{} `json:"data"`
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, engine *route.Engine, method, path, session, body string) (int, envelope) {
	t.Helper()

	var reqBody *ut.Body
	if body != "" {
		reqBody = &ut.Body{Body: bytesReader(body), Len: len(body)}
	}
	headers := []ut.Header{{Key: "Content-Type", Value: "application/json"}}
	if session != "" {
		headers = append(headers, ut.Header{Key: sessionHeader, Value: session})
	}

	w := ut.PerformRequest(engine, method, path, reqBody, headers...)
	resp := w.Result()

	var env envelope
	if len(resp.Body()) > 0 {
		require.NoError(t, json.Unmarshal(resp.Body(), &env), string(resp.Body()))
	}
	return resp.StatusCode(), env
}

const (
	principalJSON = `{"fullName":"Alice Doe","dateOfBirth":"1990-05-15T00:00:00.000Z","nationalId":"12345678","gender":"Female","address":"Nairobi, Kenya","mobileNumber":"0712345678"}`
	dependantJSON = `{"fullName":"Dep1 Doe","dateOfBirth":"2010-07-22","nationalId":"D123456","gender":"male","relationship":"child","mobileNumber":"0723456789"}`
)

func stepOf(env envelope) float64 {
	state, _ := env.Data["state"].(map[string]interface{})
	step, _ := state["step"].(float64)
	return step
}

func TestOnboarding_RequiresSession(t *testing.T) {
	engine := newTestEngine()

	status, env := do(t, engine, http.MethodGet, "/v1/onboarding", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "SESSION_MISSING", env.Error.Code)
}

func TestOnboarding_FullFlow(t *testing.T) {
	engine := newTestEngine()
	session := "flow-1"

	status, env := do(t, engine, http.MethodGet, "/v1/onboarding", session, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), stepOf(env))
	assert.Len(t, env.Data["progress"], 4)

	status, env = do(t, engine, http.MethodPost, "/v1/onboarding/product", session, `{"product":"legal"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), stepOf(env))

	status, env = do(t, engine, http.MethodPost, "/v1/onboarding/principal", session, principalJSON)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), stepOf(env))

	status, env = do(t, engine, http.MethodPost, "/v1/onboarding/dependant", session, dependantJSON)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4), stepOf(env))

	status, env = do(t, engine, http.MethodGet, "/v1/onboarding/review", session, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "KSH 100,000", env.Data["benefitPackage"])
	assert.Equal(t, "Alice Doe", env.Data["principalMember"])
	assert.Equal(t, float64(300), env.Data["totalPremium"])

	status, env = do(t, engine, http.MethodPost, "/v1/onboarding/submit", session, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, env.Data["success"])
	assert.NotNil(t, env.Data["policy"])

	status, env = do(t, engine, http.MethodPost, "/v1/onboarding/submit", session, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_SUBMITTED", env.Error.Code)
}

func TestOnboarding_ValidationDetails(t *testing.T) {
	engine := newTestEngine()
	session := "validation-1"

	status, env := do(t, engine, http.MethodPost, "/v1/onboarding/product", session, `{"product":""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, "Please select a product.", env.Error.Details["product"])

	status, env = do(t, engine, http.MethodGet, "/v1/onboarding", session, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), stepOf(env))
}

func TestOnboarding_StepMismatch(t *testing.T) {
	engine := newTestEngine()

	status, env := do(t, engine, http.MethodPost, "/v1/onboarding/dependant", "mismatch-1", dependantJSON)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "STEP_MISMATCH", env.Error.Code)
}

func TestOnboarding_SubmitIncomplete(t *testing.T) {
	engine := newTestEngine()

	status, env := do(t, engine, http.MethodPost, "/v1/onboarding/submit", "incomplete-1", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "WIZARD_INCOMPLETE", env.Error.Code)
}

func TestOnboarding_SubmitFailure(t *testing.T) {
	engine := newTestEngine()
	session := "failure-1"

	do(t, engine, http.MethodPost, "/v1/onboarding/product", session, `{"product":"medical"}`)
	do(t, engine, http.MethodPost, "/v1/onboarding/principal", session, principalJSON)
	do(t, engine, http.MethodPost, "/v1/onboarding/dependant", session, dependantJSON)

	mockPolicy.FailNext = true
	status, env := do(t, engine, http.MethodPost, "/v1/onboarding/submit", session, "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "SUBMISSION_FAILED", env.Error.Code)
	assert.Equal(t, "mock policy failure", env.Error.Details["message"])
}

func TestOnboarding_BackAndReset(t *testing.T) {
	engine := newTestEngine()
	session := "back-1"

	do(t, engine, http.MethodPost, "/v1/onboarding/product", session, `{"product":"legal"}`)

	status, env := do(t, engine, http.MethodPost, "/v1/onboarding/back", session, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), stepOf(env))

	status, _ = do(t, engine, http.MethodDelete, "/v1/onboarding", session, "")
	assert.Equal(t, http.StatusNoContent, status)

	_, env = do(t, engine, http.MethodGet, "/v1/onboarding", session, "")
	state := env.Data["state"].(map[string]interface{})
	assert.Equal(t, "", state["productType"])
}

func TestLogin_SetsCookie(t *testing.T) {
	engine := newTestEngine()

	body := `{"email":"admin@example.com","password":"pw"}`
	w := ut.PerformRequest(engine, http.MethodPost, "/v1/auth/login",
		&ut.Body{Body: bytesReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()

	require.Equal(t, http.StatusOK, resp.StatusCode(), string(resp.Body()))
	cookie := strings.ToLower(string(resp.Header.Peek("Set-Cookie")))
	assert.Contains(t, cookie, "jwttoken=")
	assert.Contains(t, cookie, "max-age=604800")

	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body(), &env))
	assert.Equal(t, "admin", env.Data["role"])
}

func TestHealth(t *testing.T) {
	engine := newTestEngine()

	w := ut.PerformRequest(engine, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
}

func bytesReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
