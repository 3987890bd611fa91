package response

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 41)
	if p.TotalPage != 3 {
		t.Fatalf("total page want 3 got %d", p.TotalPage)
	}
	if NewPagination(1, 0, 10).TotalPage != 0 {
		t.Fatalf("zero page size should yield zero pages")
	}
}

func TestAbortWithErrorUsesAppErrorCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")

	AbortWithError(c, WrapError(CodeConflict, "账期已关账", errors.New("closed")))

	var resp struct {
		StatusCode int               `json:"status_code"`
		Msg        string            `json:"msg"`
		Data       map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != CodeConflict || resp.Msg != "账期已关账" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Data["request_id"] != "req-1" {
		t.Fatalf("request id should be attached")
	}
	if !c.IsAborted() {
		t.Fatalf("context should be aborted")
	}
}

func TestAbortWithErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	AbortWithError(c, errors.New("sql: connection refused"))

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != CodeInternal || resp.Msg == "sql: connection refused" {
		t.Fatalf("internal error leaked: %+v", resp)
	}
	if len(c.Errors) != 1 {
		t.Fatalf("error should be recorded on context for logging")
	}
}
