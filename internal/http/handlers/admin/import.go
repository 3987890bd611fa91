package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/teamledger/internal/http/handlers/shared"
	"github.com/teamledger/internal/http/response"
	"github.com/teamledger/internal/service"

	"github.com/gin-gonic/gin"
)

// ImportRowsRequest JSON 方式导入
type ImportRowsRequest struct {
	Source string              `json:"source"`
	Rows   []map[string]string `json:"rows" binding:"required"`
}

// ImportMovements 导入账期充值流水：multipart 上传 CSV 文件（字段 file）或 JSON rows
func (h *Handler) ImportMovements(c *gin.Context) {
	monthID, ok := paramID(c, "month_id")
	if !ok {
		return
	}
	input := service.ImportRowsInput{SiteID: shared.SiteID(c), MonthID: monthID}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		rows, source, ok := h.readUploadedRows(c)
		if !ok {
			return
		}
		input.Rows, input.Source = rows, source
	} else {
		var req ImportRowsRequest
		if !bindJSON(c, &req) {
			return
		}
		if max := h.Config.Import.MaxRows; max > 0 && len(req.Rows) > max {
			response.BadRequest(c, errImportTooManyRows.Error())
			return
		}
		input.Rows, input.Source = req.Rows, req.Source
	}
	if len(input.Rows) == 0 {
		response.BadRequest(c, "导入内容为空")
		return
	}
	result, err := h.MovementService.ImportRows(c.Request.Context(), input)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) readUploadedRows(c *gin.Context) ([]map[string]string, string, bool) {
	if max := h.Config.Import.MaxUploadBytes; max > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "缺少上传文件")
		return nil, "", false
	}
	file, err := header.Open()
	if err != nil {
		shared.RespondErrorWithMsg(c, response.CodeInternal, "读取上传文件失败", err)
		return nil, "", false
	}
	defer file.Close()
	rows, err := readCSVRows(file, h.Config.Import.MaxRows)
	if err != nil {
		if errors.Is(err, errImportTooManyRows) {
			response.BadRequest(c, err.Error())
		} else {
			response.Error(c, response.CodeUnprocessableEntity, err.Error())
		}
		return nil, "", false
	}
	return rows, header.Filename, true
}

// ListImports 账期导入批次
func (h *Handler) ListImports(c *gin.Context) {
	monthID, ok := paramID(c, "month_id")
	if !ok {
		return
	}
	items, err := h.MovementService.ListImports(c.Request.Context(), shared.SiteID(c), monthID)
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, items)
}

// GetImport 导入批次详情（含处理日志）
func (h *Handler) GetImport(c *gin.Context) {
	id, ok := paramID(c, "import_id")
	if !ok {
		return
	}
	item, err := h.MovementService.GetImport(c.Request.Context(), id)
	if err == nil && item.SiteID != shared.SiteID(c) {
		err = service.ErrImportNotFound
	}
	if err != nil {
		shared.RespondServiceError(c, err)
		return
	}
	response.Success(c, item)
}
