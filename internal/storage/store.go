package storage

import (
	"context"
	"errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
	"social-backend/internal/storage/zapadapter"
	"time"
)

var (
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotExist    = errors.New("user does not exist")
	ErrMessageNotExist = errors.New("message does not exist")
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())
	config.ConnConfig.LogLevel = pgx.LogLevelWarn

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close closes all connections in the pool
func (s *Store) Close() {
	s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	var i int
	return s.db.QueryRow(ctx, "select 1").Scan(&i)
}

// CreateUser creates user and returns its id.
func (s *Store) CreateUser(ctx context.Context, username, knownAs string) (int64, error) {
	username = NormalizeUsername(username)
	s.logger.Debugf("Creating user (%s)", username)

	var id int64
	now := time.Now().UTC()
	sql := "insert into users (username, known_as, created_at, last_active) values ($1, $2, $3, $3) returning id"
	err := s.db.QueryRow(ctx, sql, username, knownAs, now).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return 0, ErrUserExists
			}
		}
		return 0, err
	}

	s.logger.Debugf("Created user (%s) with id %d", username, id)

	return id, nil
}

// UserByID returns user with provided id
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	sql := "select id, username, known_as, created_at, last_active from users where id = $1"
	return s.scanUser(s.db.QueryRow(ctx, sql, id))
}

// UserByUsername returns user with provided username ignoring case
func (s *Store) UserByUsername(ctx context.Context, username string) (User, error) {
	sql := "select id, username, known_as, created_at, last_active from users where username = $1"
	return s.scanUser(s.db.QueryRow(ctx, sql, NormalizeUsername(username)))
}

// TouchLastActive sets last_active of the user to current time
func (s *Store) TouchLastActive(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "update users set last_active = $2 where id = $1", id, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotExist
	}
	return nil
}

func (s *Store) scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.KnownAs, &u.CreatedAt, &u.LastActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}
	return u, nil
}

// isForeignKeyViolation reports whether err was caused by a missing referenced row
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
