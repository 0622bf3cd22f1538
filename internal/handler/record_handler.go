package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bptogether/internal/model"
)

// RecordServiceInterface は測定記録ハンドラーが必要とするサービスインターフェース。
// targetIDが空の場合はリクエスト者自身のデータを対象とする。
type RecordServiceInterface interface {
	Create(ctx context.Context, requester *model.User, targetID string, in model.ReadingInput) (*model.Reading, error)
	BulkCreate(ctx context.Context, requesterID, targetID string, inputs []model.ReadingInput) (int, error)
	Update(ctx context.Context, requesterID, targetID, recordID string, patch model.ReadingPatch) (*model.Reading, error)
	Delete(ctx context.Context, requesterID, targetID, recordID string) error
	List(ctx context.Context, requesterID, targetID string, q model.ReadingQuery) ([]*model.Reading, error)
}

// RecordHandler は測定記録のHTTPハンドラー。
type RecordHandler struct {
	service RecordServiceInterface
}

// NewRecordHandler はRecordHandlerを生成する。
func NewRecordHandler(service RecordServiceInterface) *RecordHandler {
	return &RecordHandler{service: service}
}

// maxListLimit は一覧取得で指定できる1ページあたりの最大件数。
const maxListLimit = 1000

// maxBulkRecords は一括作成で1リクエストに含められる最大件数。
// 1件あたりのバインドパラメータ数とPostgreSQLの上限65535から余裕を持たせた値。
const maxBulkRecords = 1000

// recordInput は1件分の測定値。
type recordInput struct {
	Systolic   int        `json:"systolic" validate:"required,min=1,max=400"`
	Diastolic  int        `json:"diastolic" validate:"required,min=1,max=400"`
	Pulse      int        `json:"pulse" validate:"required,min=1,max=400"`
	RecordedAt *time.Time `json:"recordedAt"`
}

func (in recordInput) toModel() model.ReadingInput {
	return model.ReadingInput{
		Systolic:   in.Systolic,
		Diastolic:  in.Diastolic,
		Pulse:      in.Pulse,
		RecordedAt: in.RecordedAt,
	}
}

// createRecordRequest は測定記録作成リクエストのボディ。
type createRecordRequest struct {
	Systolic     int        `json:"systolic" validate:"required,min=1,max=400"`
	Diastolic    int        `json:"diastolic" validate:"required,min=1,max=400"`
	Pulse        int        `json:"pulse" validate:"required,min=1,max=400"`
	RecordedAt   *time.Time `json:"recordedAt"`
	TargetUserID string     `json:"targetUserId"`
}

// bulkCreateRequest は測定記録一括作成リクエストのボディ。
type bulkCreateRequest struct {
	Records      []recordInput `json:"records" validate:"required,min=1,max=1000,dive"`
	TargetUserID string        `json:"targetUserId"`
}

// bulkCreateResponse は一括作成の結果。
type bulkCreateResponse struct {
	Count int `json:"count"`
}

// updateRecordRequest は測定記録更新リクエストのボディ。指定されたフィールドのみ更新する。
type updateRecordRequest struct {
	Systolic     *int       `json:"systolic" validate:"omitempty,min=1,max=400"`
	Diastolic    *int       `json:"diastolic" validate:"omitempty,min=1,max=400"`
	Pulse        *int       `json:"pulse" validate:"omitempty,min=1,max=400"`
	RecordedAt   *time.Time `json:"recordedAt"`
	TargetUserID string     `json:"targetUserId"`
}

// Create は測定記録を作成する。
// POST /api/records
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := checkTargetID(req.TargetUserID, model.RoleEditor); err != nil {
		handleServiceError(w, err)
		return
	}

	reading, err := h.service.Create(r.Context(), user, req.TargetUserID, model.ReadingInput{
		Systolic:   req.Systolic,
		Diastolic:  req.Diastolic,
		Pulse:      req.Pulse,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reading)
}

// BulkCreate は複数の測定記録をまとめて作成する。閾値通知は行わない。
// POST /api/records/bulk
func (h *RecordHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req bulkCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := checkTargetID(req.TargetUserID, model.RoleEditor); err != nil {
		handleServiceError(w, err)
		return
	}

	inputs := make([]model.ReadingInput, len(req.Records))
	for i, rec := range req.Records {
		inputs[i] = rec.toModel()
	}

	count, err := h.service.BulkCreate(r.Context(), user.ID, req.TargetUserID, inputs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bulkCreateResponse{Count: count})
}

// List は測定記録の一覧を返す。
// GET /api/records?userId=&start=&end=&page=&limit=
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	q, err := parseReadingQuery(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	target := r.URL.Query().Get("userId")
	if err := checkTargetID(target, model.RoleViewer); err != nil {
		handleServiceError(w, err)
		return
	}

	readings, err := h.service.List(r.Context(), user.ID, target, q)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if readings == nil {
		readings = []*model.Reading{}
	}

	writeJSON(w, http.StatusOK, readings)
}

// Update は測定記録を部分更新する。
// PUT /api/records/{id}
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req updateRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	target := req.TargetUserID
	if target == "" {
		target = r.URL.Query().Get("userId")
	}
	if err := checkTargetID(target, model.RoleEditor); err != nil {
		handleServiceError(w, err)
		return
	}
	recordID := chi.URLParam(r, "id")
	if err := checkRecordID(recordID); err != nil {
		handleServiceError(w, err)
		return
	}

	reading, err := h.service.Update(r.Context(), user.ID, target, recordID, model.ReadingPatch{
		Systolic:   req.Systolic,
		Diastolic:  req.Diastolic,
		Pulse:      req.Pulse,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// Delete は測定記録を削除する。
// DELETE /api/records/{id}?userId=
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	target := r.URL.Query().Get("userId")
	if err := checkTargetID(target, model.RoleEditor); err != nil {
		handleServiceError(w, err)
		return
	}
	recordID := chi.URLParam(r, "id")
	if err := checkRecordID(recordID); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, target, recordID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseReadingQuery はクエリパラメータから一覧取得条件を組み立てる。
// start/endは両方揃った場合のみ期間指定として扱い、page/limitも同様に両方揃った場合のみ使う。
func parseReadingQuery(r *http.Request) (model.ReadingQuery, error) {
	values := r.URL.Query()
	var q model.ReadingQuery

	if start, end := values.Get("start"), values.Get("end"); start != "" && end != "" {
		s, err := parseTimeParam("start", start)
		if err != nil {
			return q, err
		}
		e, err := parseTimeParam("end", end)
		if err != nil {
			return q, err
		}
		if e.Before(s) {
			return q, model.NewInvalidRequestError("end は start 以降を指定してください")
		}
		q.Start, q.End = &s, &e
		return q, nil
	}

	if page, limit := values.Get("page"), values.Get("limit"); page != "" && limit != "" {
		p, err := strconv.Atoi(page)
		if err != nil || p < 1 {
			return q, model.NewInvalidRequestError("page は1以上の整数で指定してください")
		}
		l, err := strconv.Atoi(limit)
		if err != nil || l < 1 || l > maxListLimit {
			return q, model.NewInvalidRequestError(fmt.Sprintf("limit は1〜%dの整数で指定してください", maxListLimit))
		}
		q.Page, q.Limit = p, l
	}
	return q, nil
}

// parseTimeParam はRFC 3339形式またはYYYY-MM-DD形式（UTCの0時）の時刻を解析する。
func parseTimeParam(name, v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, model.NewInvalidRequestError(fmt.Sprintf("%s の日時形式が不正です: %q", name, v))
}
