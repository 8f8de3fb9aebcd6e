package storage

// migrations содержит SQL-миграции в порядке выполнения.
var migrations = []string{
	// Миграция 1: сохранённые настройки конвертации (ключ/значение)
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`,

	// Миграция 2: пачки
	`CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		params TEXT NOT NULL,
		params_hash TEXT NOT NULL,
		total INTEGER NOT NULL,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);`,

	// Миграция 3: результаты по файлам
	`CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL REFERENCES batches(id),
		src_path TEXT NOT NULL,
		src_size INTEGER NOT NULL,
		src_format TEXT NOT NULL,
		out_format TEXT NOT NULL,
		dst_path TEXT,
		status TEXT NOT NULL,
		stage TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		warnings TEXT,
		bytes_written INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		finished_at INTEGER NOT NULL
	);`,

	// Миграция 4: индексы для статистики
	`CREATE INDEX IF NOT EXISTS ix_jobs_batch ON jobs (batch_id);`,
	`CREATE INDEX IF NOT EXISTS ix_jobs_status ON jobs (status);`,

	// Миграция 5: версия схемы
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', '1');`,
}

// GetMigrations возвращает список SQL-миграций.
func GetMigrations() []string {
	return migrations
}
