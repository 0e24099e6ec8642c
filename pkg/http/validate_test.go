package http

import (
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct {
	Instrument string `json:"instrument" validate:"required"`
}

type pickBody struct {
	Class     string     `json:"class" default:"short" validate:"oneof=short long"`
	Notify    bool       `json:"notify"`
	ChatID    string     `json:"chat_id" validate:"required_if=Notify true"`
	Positions []position `json:"open_positions" validate:"max=2,dive"`
}

func bindContext(body string) echo.Context {
	req := httptest.NewRequest(nethttp.MethodPost, "/api/v1/signals/pick", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestReadAndValidateRequest_Defaults(t *testing.T) {
	var req pickBody
	assert.Nil(t, ReadAndValidateRequest(bindContext(`{}`), &req))
	assert.Equal(t, "short", req.Class)
}

func TestReadAndValidateRequest_ReportsJSONKeys(t *testing.T) {
	var req pickBody
	verr := ReadAndValidateRequest(bindContext(`{"class":"weekly","notify":true,"open_positions":[{"instrument":"A"},{}]}`), &req)
	require.NotNil(t, verr)
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	require.Contains(t, byField, "class")
	assert.Equal(t, "ERR_ONEOF", byField["class"].Code)
	assert.Equal(t, "class must be one of: short, long", byField["class"].Message)
	assert.Equal(t, []string{"short", "long"}, byField["class"].Params["options"])

	require.Contains(t, byField, "chat_id")
	assert.Equal(t, "ERR_REQUIRED_IF", byField["chat_id"].Code)

	require.Contains(t, byField, "open_positions[1].instrument")
	assert.Equal(t, "open_positions[1].instrument is required", byField["open_positions[1].instrument"].Message)
}

func TestReadAndValidateRequest_TooManyPositions(t *testing.T) {
	var req pickBody
	verr := ReadAndValidateRequest(bindContext(`{"open_positions":[{"instrument":"A"},{"instrument":"B"},{"instrument":"C"}]}`), &req)
	errs, ok := verr.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "open_positions", errs[0].Field)
	assert.Equal(t, "open_positions must hold at most 2 entries", errs[0].Message)
}

func TestReadAndValidateRequest_MalformedBody(t *testing.T) {
	var req pickBody
	errs, ok := ReadAndValidateRequest(bindContext(`{"class":`), &req).([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}
