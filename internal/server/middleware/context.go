package middleware

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fatecrafters/chronicle/internal/queue"
	"github.com/fatecrafters/chronicle/internal/storage"
	"github.com/fatecrafters/chronicle/internal/util"
	"github.com/fatecrafters/chronicle/pkg/ai"
	oai "github.com/fatecrafters/chronicle/pkg/ai/ollama"
	gai "github.com/fatecrafters/chronicle/pkg/ai/openai"
	"github.com/fatecrafters/chronicle/pkg/graph"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/rebuild"
	pgstore "github.com/fatecrafters/chronicle/pkg/store/pgx"
	"github.com/fatecrafters/chronicle/pkg/worldstate"
)

// App carries the shared clients and services every handler needs.
type App struct {
	DBConn   *pgxpool.Pool
	Queue    *amqp.Channel
	Archive  *storage.ArchiveBucket
	AiClient ai.SummaryAIClient

	Store       *pgstore.Store
	Changelog   *worldstate.ChangelogService
	Archiver    *worldstate.Archiver
	Communities *graph.CommunityService
	Importance  *graph.ImportanceService
	Summaries   *graph.SummaryService
	Rebuilds    *rebuild.Pipeline
}

type AppContext struct {
	echo.Context
	App *App
}

// NewAIClient builds the summary AI client from AI_* environment
// configuration. AI_ADAPTER selects the backend; anything but "ollama"
// means an OpenAI-compatible API.
func NewAIClient() ai.SummaryAIClient {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewSummaryOllamaClient(oai.NewSummaryOllamaClientParams{
			SummaryModel:   util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewSummaryOpenAIClient(gai.NewSummaryOpenAIClientParams{
			SummaryModel:   util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),

			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
		})
	}
}

// NewApp wires stores and services around the shared connections.
func NewApp(conn *pgxpool.Pool, ch *amqp.Channel, archive *storage.ArchiveBucket, aiClient ai.SummaryAIClient) *App {
	st := pgstore.New(conn)

	changelog := worldstate.NewChangelogService(st, st)
	archiver := worldstate.NewArchiver(st, st, archive, aiClient)
	communities := graph.NewCommunityService(st, st)
	importance := graph.NewImportanceService(st, st, st)
	summaries := graph.NewSummaryService(st, st, st, aiClient)
	pipeline := rebuild.NewPipeline(st, communities, importance, changelog, queue.NewSummaryScheduler(ch))

	return &App{
		DBConn:   conn,
		Queue:    ch,
		Archive:  archive,
		AiClient: aiClient,

		Store:       st,
		Changelog:   changelog,
		Archiver:    archiver,
		Communities: communities,
		Importance:  importance,
		Summaries:   summaries,
		Rebuilds:    pipeline,
	}
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
