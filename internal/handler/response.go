package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mypt/mypt/internal/middleware"
	"github.com/mypt/mypt/internal/model"
	"github.com/mypt/mypt/internal/paginate"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// idsRequest は一括削除リクエストのボディ。
type idsRequest struct {
	IDs []string `json:"ids"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvにデコードする。
// 不正なJSONや未知のフィールドはINVALID_REQUESTとして応答し、falseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		reason := "malformed JSON body"
		if errors.Is(err, io.EOF) {
			reason = "request body is empty"
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return false
	}
	return true
}

// actorFromRequest はセッションミドルウェアが注入した認証済みユーザーを取得する。
// 取得できない場合は401を応答し、falseを返す。
func actorFromRequest(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return model.Actor{}, false
	}
	return actor, true
}

// pageParams はクエリパラメータpage、per_pageを読み取る。
// 未指定または数値でない場合は1ページ目、paginate.DefaultPerPage件とする。
func pageParams(r *http.Request) (page, perPage int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}
	perPage, err = strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage > maxPerPage {
		perPage = paginate.DefaultPerPage
	}
	return page, perPage
}

// maxPerPage はper_pageに指定できる上限。
const maxPerPage = 100

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials, model.ErrCodeSessionExpired:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeCSRFInvalid:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeGoalNotFound,
		model.ErrCodeExerciseNotFound, model.ErrCodePlanNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailTaken, model.ErrCodeExerciseInUse:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
