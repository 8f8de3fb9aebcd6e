// Package storage хранит настройки конвертации и историю пачек в SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage предоставляет методы для работы с базой данных.
type Storage struct {
	db *sql.DB
}

// New создаёт новое подключение к SQLite и выполняет миграции.
func New(dbPath string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию для БД: %w", err)
	}

	// WAL и busy_timeout: CLI и watch-режим могут открыть базу одновременно
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть БД: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite не поддерживает concurrent writes
	db.SetMaxIdleConns(1)

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось выполнить миграции: %w", err)
	}
	return s, nil
}

// migrate выполняет все SQL-миграции.
func (s *Storage) migrate() error {
	for i, m := range GetMigrations() {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("миграция %d: %w", i+1, err)
		}
	}
	return nil
}

// Close закрывает подключение к БД.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Settings возвращает все сохранённые настройки.
func (s *Storage) Settings() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать настройки: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("не удалось прочитать настройку: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SaveSettings записывает настройки одной транзакцией.
func (s *Storage) SaveSettings(values map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	for k, v := range values {
		_, err := tx.Exec(
			"INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?) "+
				"ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
			k, v, now,
		)
		if err != nil {
			return fmt.Errorf("не удалось сохранить настройку %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("не удалось сохранить настройки: %w", err)
	}
	return nil
}

// ResetSettings удаляет все сохранённые настройки.
func (s *Storage) ResetSettings() error {
	if _, err := s.db.Exec("DELETE FROM settings"); err != nil {
		return fmt.Errorf("не удалось сбросить настройки: %w", err)
	}
	return nil
}

// StartBatch создаёт запись о пачке со статусом running.
func (s *Storage) StartBatch(id, params, paramsHash string, total int) error {
	_, err := s.db.Exec(
		"INSERT INTO batches (id, params, params_hash, total, status, started_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, params, paramsHash, total, BatchRunning, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("не удалось создать пачку: %w", err)
	}
	return nil
}

// RecordJob сохраняет результат обработки файла.
func (s *Storage) RecordJob(j Job) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (batch_id, src_path, src_size, src_format, out_format, dst_path,
		                  status, stage, error_kind, error, warnings, bytes_written, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.BatchID, j.SrcPath, j.SrcSize, j.SrcFormat, j.OutFormat, nullString(j.DstPath),
		j.Status, j.Stage, nullString(j.ErrorKind), nullString(j.Error), nullString(j.Warnings),
		j.BytesWritten, j.Duration.Milliseconds(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("не удалось записать задачу: %w", err)
	}
	return nil
}

// FinishBatch закрывает пачку итоговыми счётчиками.
func (s *Storage) FinishBatch(id string, succeeded, failed, cancelled int, status BatchStatus) error {
	_, err := s.db.Exec(
		"UPDATE batches SET succeeded = ?, failed = ?, cancelled = ?, status = ?, finished_at = ? WHERE id = ?",
		succeeded, failed, cancelled, status, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("не удалось закрыть пачку: %w", err)
	}
	return nil
}

// RecentBatches возвращает последние пачки, новые первыми.
func (s *Storage) RecentBatches(limit int) ([]Batch, error) {
	rows, err := s.db.Query(`
		SELECT id, params, params_hash, total, succeeded, failed, cancelled, status, started_at, finished_at
		FROM batches ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать пачки: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Batch
	for rows.Next() {
		var b Batch
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Params, &b.ParamsHash, &b.Total, &b.Succeeded,
			&b.Failed, &b.Cancelled, &b.Status, &started, &finished); err != nil {
			return nil, fmt.Errorf("не удалось прочитать пачку: %w", err)
		}
		b.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			t := time.Unix(finished.Int64, 0)
			b.FinishedAt = &t
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetStats возвращает статистику по всей истории.
func (s *Storage) GetStats() (*Stats, error) {
	st := &Stats{ByErrorKind: make(map[string]int64)}

	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(status = ?), 0) FROM batches`, BatchInterrupted).
		Scan(&st.Batches, &st.Interrupted)
	if err != nil {
		return nil, fmt.Errorf("не удалось посчитать пачки: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(status = 'succeeded'), 0),
		       COALESCE(SUM(status = 'failed'), 0),
		       COALESCE(SUM(status = 'cancelled'), 0),
		       COALESCE(SUM(CASE WHEN status = 'succeeded' THEN src_size ELSE 0 END), 0),
		       COALESCE(SUM(bytes_written), 0)
		FROM jobs`).
		Scan(&st.Jobs, &st.Succeeded, &st.Failed, &st.Cancelled, &st.BytesRead, &st.BytesWritten)
	if err != nil {
		return nil, fmt.Errorf("не удалось посчитать задачи: %w", err)
	}

	rows, err := s.db.Query(`SELECT error_kind, COUNT(*) FROM jobs WHERE status = 'failed' GROUP BY error_kind`)
	if err != nil {
		return nil, fmt.Errorf("не удалось сгруппировать ошибки: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind sql.NullString
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		st.ByErrorKind[kind.String] = n
	}
	return st, rows.Err()
}

// CleanupInProgress помечает незакрытые пачки как прерванные.
// Вызывается при старте для очистки после аварийного завершения.
func (s *Storage) CleanupInProgress() (int64, error) {
	result, err := s.db.Exec(
		"UPDATE batches SET status = ?, finished_at = ? WHERE status = ?",
		BatchInterrupted, time.Now().Unix(), BatchRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("не удалось очистить незакрытые пачки: %w", err)
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

/*
Возможные расширения:
- Экспорт истории в JSON
- Очистка записей старше N дней
*/
