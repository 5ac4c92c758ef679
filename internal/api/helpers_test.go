package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/traceboard/traceboard/internal/middleware"
	"github.com/traceboard/traceboard/internal/models"
)

const (
	testWorkspaceID = "00000000-0000-0000-0000-000000000001"
	testUserID      = "00000000-0000-0000-0000-0000000000aa"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// newTestRouter creates a gin engine that injects the given principal, the
// way the auth middleware does for real requests.
func newTestRouter(p models.Principal) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.PrincipalKey, p)
		c.Next()
	})

	return r
}

func memberPrincipal() models.Principal {
	return models.Principal{UserID: testUserID}
}

func globalPrincipal() models.Principal {
	return models.Principal{UserID: testUserID, Global: true}
}

// doRequest performs an HTTP request against the test router and returns the recorder.
func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}
