package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore はPostgreSQLのJSONBカラムを使用したドキュメントストア。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create は新しいIDを採番してドキュメントを作成し、そのIDを返す。
func (s *PostgresStore) Create(ctx context.Context, path Path, doc any) (string, error) {
	if err := path.Validate(); err != nil {
		return "", err
	}
	id := uuid.New().String()
	data, err := encodeWithID(doc, id)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())`,
		path.String(), id, data,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create document in %s: %w", path, err)
	}
	return id, nil
}

// Set は指定IDのドキュメントを作成または置換する。
func (s *PostgresStore) Set(ctx context.Context, path Path, id string, doc any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	data, err := encodeWithID(doc, id)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		path.String(), id, data,
	)
	if err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", path, id, err)
	}
	return nil
}

// Get は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (s *PostgresStore) Get(ctx context.Context, path Path, id string) (*Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	doc := &Document{}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at
		 FROM documents
		 WHERE collection = $1 AND id = $2`,
		path.String(), id,
	).Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", path, id, err)
	}
	doc.Data = json.RawMessage(data)
	return doc, nil
}

// List はコレクション内の全ドキュメントを作成日時の昇順で返す。
func (s *PostgresStore) List(ctx context.Context, path Path) ([]Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	return s.queryDocuments(ctx,
		`SELECT id, data, created_at, updated_at
		 FROM documents
		 WHERE collection = $1
		 ORDER BY created_at ASC, id ASC`,
		path.String(),
	)
}

// Query はフィールドが値と一致するドキュメントを作成日時の昇順で返す。
// JSONBの包含演算子(@>)を使用するため、GINインデックスが利用される。
func (s *PostgresStore) Query(ctx context.Context, path Path, field string, value any) ([]Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query filter: %w", err)
	}
	return s.queryDocuments(ctx,
		`SELECT id, data, created_at, updated_at
		 FROM documents
		 WHERE collection = $1 AND data @> $2::jsonb
		 ORDER BY created_at ASC, id ASC`,
		path.String(), filter,
	)
}

// Update は指定フィールドのみを上書きする。存在しない場合はErrNotFoundを返す。
func (s *PostgresStore) Update(ctx context.Context, path Path, id string, fields map[string]any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	delete(fields, "id")
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2`,
		path.String(), id, patch,
	)
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", path, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete は指定IDのドキュメントを削除する。
func (s *PostgresStore) Delete(ctx context.Context, path Path, id string) error {
	if err := path.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		path.String(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", path, id, err)
	}
	return nil
}

// DeleteMany は指定IDのドキュメントを一括削除する。IDが空の場合は何もしない。
func (s *PostgresStore) DeleteMany(ctx context.Context, path Path, ids []string) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = ANY($2)`,
		path.String(), pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to delete documents in %s: %w", path, err)
	}
	return nil
}

// DeleteTree はドキュメントパス配下のサブコレクションをすべて削除する。
func (s *PostgresStore) DeleteTree(ctx context.Context, doc Path) (int64, error) {
	if err := validateDocPrefix(doc); err != nil {
		return 0, err
	}
	prefix := doc.String() + "/"
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE left(collection, length($1)) = $1`,
		prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tree %s: %w", doc, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// CollectionGroup は種別が一致する全コレクションのドキュメントを返す。
// 親ドキュメントIDの位置は任意の1セグメントに一致させる。
func (s *PostgresStore) CollectionGroup(ctx context.Context, kind string) ([]Document, error) {
	parts, err := validateKind(kind)
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	pattern := "^" + strings.Join(quoted, "/[^/]+/") + "$"

	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, id, data, created_at, updated_at
		 FROM documents
		 WHERE collection ~ $1
		 ORDER BY created_at ASC, id ASC`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection group %s: %w", kind, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.Collection, &doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// compile-time interface check
var _ Store = (*PostgresStore)(nil)
