package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/hitoshi/bptogether/internal/middleware"
	"github.com/hitoshi/bptogether/internal/model"
	"github.com/hitoshi/bptogether/internal/validation"
)

// maxBodyBytes はリクエストボディの上限サイズ。
// 一括登録の上限件数が収まる大きさとする。
const maxBodyBytes = 1 << 20

// successResponse は処理結果のみを返すエンドポイントのレスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleServiceError はサービス層から返されたエラーをエラーコードに応じたHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}

// currentUser はリクエストコンテキストから認証済みユーザーを取り出す。
// 見つからない場合は401を書き込みfalseを返す。
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return nil, false
	}
	return user, true
}

// decodeJSON はリクエストボディを厳密にデコードし、validateタグで検証する。
func decodeJSON(r *http.Request, dst any) error {
	if err := decodeStrict(r, dst); err != nil {
		return err
	}
	return validation.Struct(dst)
}

// decodeStrict はリクエストボディをデコードする。検証はサービス層に任せる場合に使う。
// 未知のフィールドや末尾の余分なデータはINVALID_REQUESTとして扱う。
func decodeStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewInvalidRequestError("リクエストボディが空です")
		}
		return model.NewInvalidRequestError(fmt.Sprintf("JSONの解析に失敗しました: %v", err))
	}
	if dec.More() {
		return model.NewInvalidRequestError("JSONの後に余分なデータがあります")
	}
	return nil
}

// decodeOptionalJSON はボディが空であれば何もせず、そうでなければdecodeJSONと同様に処理する。
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return validation.Struct(dst)
	}
	return decodeJSON(r, dst)
}

// checkTargetID は他ユーザーを対象とする指定を検証する。空は自分自身を意味する。
// UUIDでないユーザーIDには権限が存在し得ないため、requiredのFORBIDDENとして扱う。
func checkTargetID(target string, required model.Role) error {
	if target == "" {
		return nil
	}
	if _, err := uuid.Parse(target); err != nil {
		return model.NewForbiddenError(required)
	}
	return nil
}

// checkRecordID はパスの測定記録IDがUUIDであることを検証する。
func checkRecordID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewRecordNotFoundError(id)
	}
	return nil
}

// checkOtherID はパスの相手ユーザーIDがUUIDであることを検証する。
func checkOtherID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewRelationshipNotFoundError()
	}
	return nil
}
