package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragchat/internal/model"
)

// ChunkRepo persists parent chunk text keyed by (user_id, doc_id, parent_idx).
// Child chunk text is also stored so a user's corpus can be rebuilt, but the
// retrieval path only ever reads parents back.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

type ChunkRecord struct {
	ID         string
	DocID      string
	UserID     string
	ParentIdx  int
	ChildIdx   int
	ParentText string
	ChildText  string
	Source     string
	Section    string
	Page       int
}

func (r *ChunkRepo) BatchCreate(ctx context.Context, records []*ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		data = append(data, map[string]interface{}{
			"id":          rec.ID,
			"doc_id":      rec.DocID,
			"user_id":     rec.UserID,
			"parent_idx":  rec.ParentIdx,
			"child_idx":   rec.ChildIdx,
			"parent_text": rec.ParentText,
			"child_text":  rec.ChildText,
			"source":      rec.Source,
			"section":     rec.Section,
			"page":        rec.Page,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chunks", data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetParentTexts resolves a set of parent keys to their stored text in one
// query. Missing keys are absent from the result, not an error.
func (r *ChunkRepo) GetParentTexts(ctx context.Context, userID string, keys []model.ParentKey) (map[model.ParentKey]string, error) {
	result := make(map[model.ParentKey]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	var sb strings.Builder
	sb.WriteString("SELECT doc_id, parent_idx, parent_text FROM chunks WHERE user_id = ? AND (")
	args := make([]interface{}, 0, len(keys)*2+1)
	args = append(args, userID)
	for i, key := range keys {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("(doc_id = ? AND parent_idx = ?)")
		args = append(args, key.DocID, key.ParentIdx)
	}
	sb.WriteString(") GROUP BY doc_id, parent_idx")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var docID, text string
		var parentIdx int
		if err := rows.Scan(&docID, &parentIdx, &text); err != nil {
			return nil, err
		}
		result[model.ParentKey{DocID: docID, ParentIdx: parentIdx}] = text
	}
	return result, rows.Err()
}

func (r *ChunkRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM chunks WHERE user_id = ?", userID)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChunkRepo) DeleteByDoc(ctx context.Context, userID, docID string) (int64, error) {
	where := map[string]interface{}{
		"user_id": userID,
		"doc_id":  docID,
	}
	sqlStr, args, err := builder.BuildDelete("chunks", where)
	if err != nil {
		return 0, err
	}
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
