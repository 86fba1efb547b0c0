package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"marketchat/backend/internal/api/handler"
	"marketchat/backend/internal/identity"
)

func TestListMessages_RejectsMalformedCursor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &handler.Handler{}

	for _, query := range []string{
		"after_seq=abc",
		"after_seq=-1",
		"limit=abc",
		"limit=-5",
	} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/rooms/r1/messages?"+query, nil)
		c.Params = gin.Params{{Key: "id", Value: "r1"}}
		c.Set(identity.ContextKey, &identity.Identity{UserID: "u1"})

		h.ListMessages(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, "query %q must be rejected", query)
	}
}
