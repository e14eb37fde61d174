package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Genflow/internal/mq"
	"github.com/shaiso/Genflow/internal/repo"
)

// Client — подключения CLI к PostgreSQL и RabbitMQ.
//
// Подключения создаются лениво: команды, которым не нужна БД или брокер
// (hash, generation transitions, job run), работают без инфраструктуры.
type Client struct {
	dbURL  string
	mqURL  string
	logger *slog.Logger

	pool      *pgxpool.Pool
	conn      *mq.Connection
	publisher *mq.Publisher
}

// NewClient создаёт Client. Пустые URL — значения по умолчанию.
func NewClient(dbURL, mqURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		dbURL:  dbURL,
		mqURL:  mqURL,
		logger: logger,
	}
}

// Pool возвращает пул соединений, при первом вызове создаёт схему.
func (c *Client) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	if c.pool != nil {
		return c.pool, nil
	}

	pool, err := repo.NewPool(ctx, c.dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	c.pool = pool
	return pool, nil
}

// Publisher возвращает publisher, при первом вызове объявляет топологию.
func (c *Client) Publisher(ctx context.Context) (*mq.Publisher, error) {
	if c.publisher != nil {
		return c.publisher, nil
	}

	conn, err := mq.NewConnection(mq.ConnectionConfig{URL: c.mqURL, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	c.conn = conn
	c.publisher = mq.NewPublisher(conn, c.logger)
	return c.publisher, nil
}

// Close закрывает открытые подключения.
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close rabbitmq connection", "error", err)
		}
	}
	if c.pool != nil {
		c.pool.Close()
	}
}
