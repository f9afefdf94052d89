package apperr

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	err := Wrap(CodeNotFound, sql.ErrNoRows, "cart line not found")
	wrapped := fmt.Errorf("edit: %w", err)

	require.True(t, Is(wrapped, CodeNotFound))
	assert.ErrorIs(t, wrapped, sql.ErrNoRows)
	assert.Equal(t, "cart line not found", As(wrapped).Message())
}

func TestCodeOfUntypedIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("boom")))
	assert.False(t, Is(nil, CodeInternal))
}

func TestMetadataForUpstreamKinds(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, MetadataFor(CodeUpstreamFailure).HTTPStatus)
	assert.Equal(t, http.StatusGatewayTimeout, MetadataFor(CodeUpstreamTimeout).HTTPStatus)
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor(Code("nope")))
}
