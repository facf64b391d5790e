// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoman/internal/model"
)

// apiResponse はタスクAPIの統一エンベロープ。
// 成功時はstatus=1とdata、失敗時はstatus=0とerrorメッセージを持つ。
type apiResponse struct {
	Status int     `json:"status"`
	Data   any     `json:"data"`
	Error  *string `json:"error"`
}

// writeSuccess は成功エンベロープを書き込む。
func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResponse{
		Status: 1,
		Data:   data,
		Error:  nil,
	})
}

// writeFailure は失敗エンベロープを書き込む。
func writeFailure(w http.ResponseWriter, statusCode int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiResponse{
		Status: 0,
		Data:   map[string]any{},
		Error:  &msg,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		writeFailure(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeFailure(w, mapAPIErrorToHTTPStatus(apiErr), apiErr.Message)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeFailure(w, http.StatusInternalServerError, "An internal error occurred.")
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeTaskNotFound, model.ErrCodeListNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeUnauthenticated, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
