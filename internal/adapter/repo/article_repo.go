package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// ArticleRepositoryPG implements domain.ArticleRepository against the CMS
// articles table. Only the template-video column is read here.
type ArticleRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewArticleRepository(pool *pgxpool.Pool) *ArticleRepositoryPG {
	return &ArticleRepositoryPG{pool: pool}
}

func (r *ArticleRepositoryPG) GetVideoKey(ctx context.Context, articleID string) (string, error) {
	query := `
SELECT template_video_key
FROM articles
WHERE id = $1;
`
	var key *string
	if err := r.pool.QueryRow(ctx, query, articleID).Scan(&key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	if key == nil || *key == "" {
		return "", domain.ErrNotFound
	}
	return *key, nil
}

var _ domain.ArticleRepository = (*ArticleRepositoryPG)(nil)
