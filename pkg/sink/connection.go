package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-sink/pkg/metrics"
	"github.com/ruslano69/tdtp-sink/pkg/retry"
)

// OpenFunc открывает пул соединений к базе
type OpenFunc func(ctx context.Context) (*sql.DB, error)

// SQLOpener возвращает OpenFunc для драйвера database/sql.
// Пул ограничен одним соединением и проверяется Ping.
func SQLOpener(driver, dsn string) OpenFunc {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
		}
		return db, nil
	}
}

// ConnectionProvider держит одно кэшированное соединение и
// переоткрывает его с фиксированной задержкой, если оно невалидно.
type ConnectionProvider struct {
	open    OpenFunc
	retryer *retry.Retryer

	mu   sync.Mutex
	db   *sql.DB
	conn *sql.Conn
}

// NewConnectionProvider создает провайдер. attempts включает первую попытку.
func NewConnectionProvider(open OpenFunc, attempts int, backoff time.Duration) (*ConnectionProvider, error) {
	if open == nil {
		return nil, errors.New("open func is required")
	}
	if attempts < 1 {
		attempts = 1
	}

	cfg := retry.NewConfig(attempts, backoff)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Info().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", delay).
			Msg("Unable to connect to database, retrying")
	}

	retryer, err := retry.New(cfg)
	if err != nil {
		return nil, err
	}
	return &ConnectionProvider{open: open, retryer: retryer}, nil
}

// Connection возвращает кэшированное соединение, если оно отвечает на Ping,
// иначе открывает новое.
func (p *ConnectionProvider) Connection(ctx context.Context) (*sql.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		err := p.conn.PingContext(ctx)
		if err == nil {
			return p.conn, nil
		}
		log.Warn().Err(err).Msg("Cached database connection is not valid, reconnecting")
		p.closeLocked()
	}

	attempts := 0
	err := p.retryer.Do(ctx, func(ctx context.Context) error {
		attempts++
		db, err := p.open(ctx)
		if err != nil {
			metrics.IncConnectionAttempt(false)
			return err
		}
		conn, err := db.Conn(ctx)
		if err != nil {
			db.Close()
			metrics.IncConnectionAttempt(false)
			return fmt.Errorf("failed to acquire connection: %w", err)
		}
		metrics.IncConnectionAttempt(true)
		p.db, p.conn = db, conn
		return nil
	})
	if err != nil {
		return nil, &ConnectionError{Attempts: attempts, Err: err}
	}

	log.Info().Int("attempts", attempts).Msg("Database connection established")
	return p.conn, nil
}

// Invalidate закрывает кэшированное соединение; следующий Connection откроет новое
func (p *ConnectionProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

// Close закрывает соединение и пул
func (p *ConnectionProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *ConnectionProvider) closeLocked() error {
	var errs []error
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	if p.db != nil {
		errs = append(errs, p.db.Close())
		p.db = nil
	}
	return errors.Join(errs...)
}
