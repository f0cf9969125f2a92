package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/hvalleo/storefront-backend/pkg/errors"
	"github.com/hvalleo/storefront-backend/pkg/pagination"
)

type testPayload struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=99"`
}

func TestDecodeJSONBodyValid(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"tote","quantity":3}`))

	var dest testPayload
	require.NoError(t, DecodeJSONBody(req, &dest))
	assert.Equal(t, "tote", dest.Name)
	assert.Equal(t, 3, dest.Quantity)
}

func TestDecodeJSONBodyUnknownField(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"tote","quantity":3,"extra":true}`))

	var dest testPayload
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestDecodeJSONBodyValidationDetails(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"quantity":500}`))

	var dest testPayload
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok, "expected field detail map, got %T", typed.Details())
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be at most 99", details["quantity"])
}

func TestParsePagination(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/?limit=30&cursor=abc", nil)
	params, err := ParsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, pagination.Params{Limit: 30, Cursor: "abc"}, params)
}

func TestParsePaginationRejectsOverLimit(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/?limit=5000", nil)
	_, err := ParsePagination(req)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
