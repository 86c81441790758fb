package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeMalformedRecord, "count is not an integer")
	require.NotNil(t, ae)
	assert.Equal(t, errors.ErrCodeMalformedRecord, ae.Code)
	assert.Equal(t, "count is not an integer", ae.Message)
	assert.Empty(t, ae.Detail)
	assert.Nil(t, ae.Cause)
	assert.Equal(t, "[SPC_001] count is not an integer", ae.Error())
}

func TestNewf_FormatsMessage(t *testing.T) {
	ae := errors.Newf(errors.ErrCodeDocumentNotFound, "no raw file for %s", "doc-1")
	assert.Equal(t, "no raw file for doc-1", ae.Message)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeInternal, "ignored"))
}

func TestWrap_PreservesCodeOnUnknown(t *testing.T) {
	inner := errors.New(errors.ErrCodeCurationLoadFailed, "bad header")
	outer := errors.Wrap(inner, errors.CodeUnknown, "loading curation")

	assert.Equal(t, errors.ErrCodeCurationLoadFailed, outer.Code)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestError_IncludesDetailAndCause(t *testing.T) {
	cause := fmt.Errorf("open x.csv: no such file")
	ae := errors.Wrap(cause, errors.ErrCodeCurationLoadFailed, "cannot read curation table").
		WithDetail("path=x.csv")

	assert.Equal(t, "[SPC_004] cannot read curation table: path=x.csv: open x.csv: no such file", ae.Error())
}

func TestWithDetail_NilSafe(t *testing.T) {
	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

func TestIsCode_WalksChain(t *testing.T) {
	base := errors.New(errors.ErrCodeDocumentNotFound, "missing")
	wrapped := fmt.Errorf("processing: %w", base)

	assert.True(t, errors.IsCode(wrapped, errors.ErrCodeDocumentNotFound))
	assert.False(t, errors.IsCode(wrapped, errors.ErrCodeInternal))
	assert.True(t, errors.IsNotFound(wrapped))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeBadRequest, errors.GetCode(errors.InvalidParam("bad")))
}

func TestHTTPStatusForCode(t *testing.T) {
	cases := map[errors.ErrorCode]int{
		errors.ErrCodeMalformedRecord:  http.StatusUnprocessableEntity,
		errors.ErrCodeDocumentNotFound: http.StatusNotFound,
		errors.ErrCodeBadRequest:       http.StatusBadRequest,
		errors.ErrorCode("NOPE_999"):   http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, errors.HTTPStatusForCode(code), code)
	}
	assert.True(t, errors.IsClientError(errors.ErrCodeEmptyInput))
	assert.Equal(t, "SPC", errors.ModuleForCode(errors.ErrCodeEmptyInput))
	assert.Equal(t, "unknown error", errors.DefaultMessageForCode("NOPE_999"))
}
