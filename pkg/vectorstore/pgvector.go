package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"banking-kb-go/internal/config"
	"banking-kb-go/internal/model"
	"banking-kb-go/pkg/log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUpsertBatch 是单个事务内写入的分块数量上限。
const pgUpsertBatch = 100

type pgvectorStore struct {
	cfg        config.PostgresConfig
	dimensions int
	pool       *pgxpool.Pool
}

// NewPgvectorStore 创建基于 PostgreSQL + pgvector 扩展的后端。
// 连接在 Initialize 时建立。
func NewPgvectorStore(cfg config.PostgresConfig, dimensions int) Store {
	return &pgvectorStore{cfg: cfg, dimensions: dimensions}
}

func (s *pgvectorStore) Backend() string { return BackendPgvector }

// Initialize 建立连接池并确保扩展、表与 ivfflat 索引就绪，幂等。
func (s *pgvectorStore) Initialize(ctx context.Context) error {
	if s.pool == nil {
		pool, err := pgxpool.New(ctx, s.cfg.DSN)
		if err != nil {
			return fmt.Errorf("failed to create pgx pool: %w", err)
		}
		s.pool = pool
	}

	lists := s.cfg.IvfflatLists
	if lists <= 0 {
		lists = 100
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS kb_documents (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS kb_chunks (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES kb_documents(id) ON DELETE CASCADE,
			content     TEXT NOT NULL,
			page_number INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			embedding   vector(%d) NOT NULL,
			metadata    JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_kb_chunks_document_id ON kb_chunks (document_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_kb_chunks_embedding
			ON kb_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`, lists),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize pgvector schema: %w", err)
		}
	}
	log.Infof("[VectorStore] pgvector 结构就绪, 向量维度 %d, ivfflat lists=%d", s.dimensions, lists)
	return nil
}

// AddDocuments 在事务内按批次 upsert，重复 chunk id 覆盖旧行。
func (s *pgvectorStore) AddDocuments(ctx context.Context, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks, s.dimensions); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += pgUpsertBatch {
		end := start + pgUpsertBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.upsertBatch(ctx, chunks[start:end]); err != nil {
			return fmt.Errorf("upsert batch %d failed: %w", start/pgUpsertBatch+1, err)
		}
	}
	log.Infof("[VectorStore] 已写入 %d 个分块到 pgvector", len(chunks))
	return nil
}

func (s *pgvectorStore) upsertBatch(ctx context.Context, chunks []model.DocumentChunk) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		if _, err := tx.Exec(ctx,
			`INSERT INTO kb_documents (id, title) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`,
			c.DocumentID, chunkTitle(c),
		); err != nil {
			return fmt.Errorf("upsert document row: %w", err)
		}

		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO kb_chunks (id, document_id, content, page_number, chunk_index, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
			 ON CONFLICT (id) DO UPDATE
			 SET content = EXCLUDED.content,
			     page_number = EXCLUDED.page_number,
			     chunk_index = EXCLUDED.chunk_index,
			     embedding = EXCLUDED.embedding,
			     metadata = EXCLUDED.metadata`,
			c.ChunkID, c.DocumentID, c.Content, c.PageNumber, c.ChunkIndex,
			toVectorLiteral(c.Embedding), string(metaJSON),
		); err != nil {
			return fmt.Errorf("upsert chunk row: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Search 按余弦距离排序取 topK，score = 1 - distance。
func (s *pgvectorStore) Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]any) ([]model.SearchResult, error) {
	args := []any{toVectorLiteral(queryEmbedding), topK}
	filterSQL := ""
	for field, value := range filters {
		args = append(args, field, fmt.Sprint(value))
		filterSQL += fmt.Sprintf(" AND c.metadata->>$%d = $%d", len(args)-1, len(args))
	}

	query := `
SELECT c.document_id,
       d.title,
       c.content,
       c.page_number,
       1 - (c.embedding <=> $1::vector) AS score,
       c.metadata
FROM kb_chunks c
JOIN kb_documents d ON d.id = c.document_id
WHERE TRUE` + filterSQL + `
ORDER BY c.embedding <=> $1::vector
LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector search failed: %w", err)
	}
	defer rows.Close()

	results := make([]model.SearchResult, 0, topK)
	for rows.Next() {
		var r model.SearchResult
		var metaJSON []byte
		if err := rows.Scan(&r.DocumentID, &r.DocumentTitle, &r.Content, &r.PageNumber, &r.RelevanceScore, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

// DeleteDocument 删除文档行，分块随外键级联删除。
func (s *pgvectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kb_documents WHERE id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

func (s *pgvectorStore) HealthCheck(ctx context.Context) bool {
	if s.pool == nil {
		return false
	}
	return s.pool.Ping(ctx) == nil
}

// toVectorLiteral 把向量编码为 pgvector 的文本字面量。
func toVectorLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
