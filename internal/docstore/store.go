// Package docstore はコレクション単位でJSONドキュメントを保持する
// ドキュメントストアを提供する。
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound は更新対象のドキュメントが存在しない場合に返される。
var ErrNotFound = errors.New("document not found")

// Document はストアから取得したドキュメント。
// DataにはIDを含むJSONオブジェクトが格納される。
type Document struct {
	ID string
	// Collection はCollectionGroupで取得した場合のみ設定される所属コレクションのパス。
	Collection string
	Data       json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store はドキュメントストアのインターフェース。
type Store interface {
	// Create は新しいIDを採番してドキュメントを作成し、そのIDを返す。
	Create(ctx context.Context, path Path, doc any) (string, error)
	// Set は指定IDのドキュメントを作成または置換する。
	Set(ctx context.Context, path Path, id string, doc any) error
	// Get は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
	Get(ctx context.Context, path Path, id string) (*Document, error)
	// List はコレクション内の全ドキュメントを作成日時の昇順で返す。
	List(ctx context.Context, path Path) ([]Document, error)
	// Query はフィールドが値と一致するドキュメントを作成日時の昇順で返す。
	Query(ctx context.Context, path Path, field string, value any) ([]Document, error)
	// Update は指定フィールドのみを上書きする。存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, path Path, id string, fields map[string]any) error
	// Delete は指定IDのドキュメントを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, path Path, id string) error
	// DeleteMany は指定IDのドキュメントを一括削除する。
	DeleteMany(ctx context.Context, path Path, ids []string) error
	// CollectionGroup は種別（Path.Kind）が一致する全コレクションのドキュメントを
	// 作成日時の昇順で返す。例: "customers/plans" は全顧客のプラン。
	CollectionGroup(ctx context.Context, kind string) ([]Document, error)
	// DeleteTree はドキュメントパス配下のサブコレクションをすべて削除し、削除件数を返す。
	DeleteTree(ctx context.Context, doc Path) (int64, error)
}

// Decode はドキュメントを指定型にデコードする。
func Decode[T any](doc Document) (T, error) {
	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return v, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	return v, nil
}

// DecodeAll はドキュメント一覧を指定型のスライスにデコードする。
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := Decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// validateKind はコレクション種別の書式を検証する。
func validateKind(kind string) ([]string, error) {
	parts := strings.Split(kind, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid collection kind %q: empty segment", kind)
		}
	}
	return parts, nil
}

// encodeWithID はドキュメントをJSONオブジェクトにエンコードし、idフィールドを設定する。
func encodeWithID(doc any, id string) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("document must encode to a JSON object: %w", err)
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	encodedID, _ := json.Marshal(id)
	obj["id"] = encodedID
	return json.Marshal(obj)
}
