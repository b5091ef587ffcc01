package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderCarriesClassification(t *testing.T) {
	cause := errors.New("connection refused")
	err := RemoteError("save failed").
		WithCause(cause).
		WithContext("owner", "u-1").
		Build()

	require.Equal(t, CategoryRemote, err.Category())
	require.Equal(t, SeverityError, err.Severity())
	require.Equal(t, "save failed", err.Message())
	require.Equal(t, "u-1", err.Context()["owner"])
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "remote")
	require.Contains(t, err.Error(), "connection refused")
}

func TestAsClassifiedThroughWrapping(t *testing.T) {
	inner := StorageError("write failed").Build()
	wrapped := fmt.Errorf("mirror: %w", inner)

	ce, ok := AsClassified(wrapped)
	require.True(t, ok)
	require.Equal(t, CategoryStorage, ce.Category())

	_, ok = AsClassified(errors.New("plain"))
	require.False(t, ok)
	require.Equal(t, CategoryInternal, CategoryOf(errors.New("plain")))
}

func TestHTTPStatusMapping(t *testing.T) {
	adapter := NewHTTPAdapter(nil)

	require.Equal(t, http.StatusOK, adapter.StatusCodeFor(nil))
	require.Equal(t, http.StatusBadRequest, adapter.StatusCodeFor(ValidationError("bad").Build()))
	require.Equal(t, http.StatusNotFound, adapter.StatusCodeFor(NotFoundError("missing").Build()))
	require.Equal(t, http.StatusBadGateway, adapter.StatusCodeFor(RemoteError("down").Build()))
	require.Equal(t, http.StatusInternalServerError, adapter.StatusCodeFor(errors.New("plain")))
}
