package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/asquebay/mini-storefront/internal/repository"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const kvTable = "kv_store"

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// KVRepository хранит значения по ключам в одной таблице kv_store
// значение лежит как есть (bytea), чтобы повреждённые данные можно было прочитать и отбросить выше
type KVRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewKVRepository создает новый экземпляр репозитория
func NewKVRepository(db *pgxpool.Pool) *KVRepository {
	return &KVRepository{
		db: db,
		// использую плейсхолдеры в стиле PostgreSQL ($1, $2, $3,...)
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// EnsureSchema создаёт таблицу, если её ещё нет
func (r *KVRepository) EnsureSchema(ctx context.Context) error {
	const op = "repository.postgres.kv.EnsureSchema"

	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get извлекает значение по ключу
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "repository.postgres.kv.Get"

	sql, args, err := r.selectQuery(key, false)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build select query: %w", op, err)
	}

	var value []byte
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, repository.ErrKeyNotFound)
		}
		return nil, fmt.Errorf("%s: failed to query value: %w", op, err)
	}

	return value, nil
}

// Set перезаписывает значение по ключу (upsert)
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	const op = "repository.postgres.kv.Set"

	sql, args, err := r.upsertQuery(key, value)
	if err != nil {
		return fmt.Errorf("%s: failed to build upsert query: %w", op, err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: failed to upsert value: %w", op, err)
	}
	return nil
}

// Update выполняет чтение-изменение-запись в рамках одной транзакции
// транзакционная advisory-блокировка по ключу сериализует конкурентные обновления,
// в том числе когда строки ещё нет и блокировать через FOR UPDATE нечего
func (r *KVRepository) Update(ctx context.Context, key string, fn repository.UpdateFunc) error {
	const op = "repository.postgres.kv.Update"

	// начинаем транзакцию
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	// гарантируем откат транзакции в случае любой ошибки
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("%s: failed to acquire lock: %w", op, err)
	}

	sql, args, err := r.selectQuery(key, true)
	if err != nil {
		return fmt.Errorf("%s: failed to build select query: %w", op, err)
	}

	var current []byte
	found := true
	if err := tx.QueryRow(ctx, sql, args...).Scan(&current); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: failed to query value: %w", op, err)
		}
		found = false
	}

	next, err := fn(current, found)
	if err != nil {
		return err
	}

	sql, args, err = r.upsertQuery(key, next)
	if err != nil {
		return fmt.Errorf("%s: failed to build upsert query: %w", op, err)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: failed to upsert value: %w", op, err)
	}

	// если все прошло успешно, подтверждаем транзакцию
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit: %w", op, err)
	}
	return nil
}

// Ping проверяет доступность базы
func (r *KVRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *KVRepository) selectQuery(key string, forUpdate bool) (string, []any, error) {
	q := r.sq.Select("value").From(kvTable).Where(squirrel.Eq{"key": key})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q.ToSql()
}

func (r *KVRepository) upsertQuery(key string, value []byte) (string, []any, error) {
	return r.sq.Insert(kvTable).
		Columns("key", "value", "updated_at").
		Values(key, value, squirrel.Expr("now()")).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
}
