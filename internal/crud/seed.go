package crud

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hitoshi/todosync/internal/api"
	"github.com/hitoshi/todosync/internal/metrics"
	"github.com/hitoshi/todosync/internal/model"
)

// DefaultSeedCount はSeeder.Runで作成する既定の件数。
const DefaultSeedCount = 15

// Seeder はダミーのtodoを連続して作成する。モーダルの状態には関与しない。
type Seeder struct {
	client    Mutator
	cache     Invalidator
	resources []string
	faker     *gofakeit.Faker
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
}

// NewSeeder はSeederの新しいインスタンスを生成する。
// seedが0の場合は乱数のシードを時刻から決める。
func NewSeeder(client Mutator, cache Invalidator, seed int64, logger *slog.Logger, m metrics.MetricsCollector) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Seeder{
		client:    client,
		cache:     cache,
		resources: []string{api.ResourceTodoList, api.ResourceTodos},
		faker:     gofakeit.New(seed),
		logger:    logger,
		metrics:   m,
	}
}

// Form は1件分のダミーの入力値を生成する。
// タイトルは5語、説明は2文とする。
func (s *Seeder) Form() model.FormState {
	return model.FormState{
		Title:       strings.TrimSuffix(s.faker.Sentence(5), "."),
		Description: s.faker.Paragraph(1, 2, 12, " "),
	}
}

// Run はn件のtodoを1件ずつ順に作成し、成功した件数を返す。
// 失敗した作成はログに記録して次に進む。1件以上成功した場合は一覧を無効化する。
func (s *Seeder) Run(ctx context.Context, n int) int {
	if n <= 0 {
		n = DefaultSeedCount
	}
	sess, _ := s.client.Session()

	created := 0
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			s.logger.Warn("seed cancelled", slog.Int("created", created))
			break
		}

		body, err := api.CreateBody(s.Form(), sess.UserID)
		if err != nil {
			s.logger.Error("failed to build seed body", slog.String("error", err.Error()))
			continue
		}

		resp, err := s.client.Call(ctx, http.MethodPost, api.CollectionPath, body)
		success := err == nil && resp.StatusCode == http.StatusOK
		s.metrics.RecordMutation("seed", success)
		if !success {
			attrs := []any{slog.Int("index", i)}
			if err != nil {
				attrs = append(attrs,
					slog.String("kind", string(model.KindOf(err))),
					slog.String("error", err.Error()),
				)
			} else {
				attrs = append(attrs, slog.Int("http_status", resp.StatusCode))
			}
			s.logger.Error("seed todo failed", attrs...)
			continue
		}
		created++
	}

	if created > 0 {
		for _, r := range s.resources {
			s.cache.Invalidate(r)
		}
	}
	s.logger.Info("seed completed",
		slog.Int("requested", n),
		slog.Int("created", created),
	)
	return created
}
