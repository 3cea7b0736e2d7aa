package database

import (
	"database/sql"
	"fmt"
)

func (s *MySql) prepareStmt(name, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt, ok := s.statements[name]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", name, err)
	}
	s.statements[name] = stmt
	return stmt, nil
}

func (s *MySql) closeStmt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range s.statements {
		_ = stmt.Close()
	}
	s.statements = make(map[string]*sql.Stmt)
}

func (s *MySql) stmtSelectSetting() (*sql.Stmt, error) {
	return s.prepareStmt("select-setting",
		`SELECT setting_value FROM settings WHERE setting_key = ?`)
}

func (s *MySql) stmtUpsertSetting() (*sql.Stmt, error) {
	return s.prepareStmt("upsert-setting",
		`INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value)`)
}

func (s *MySql) stmtSelectCredential() (*sql.Stmt, error) {
	return s.prepareStmt("select-credential",
		`SELECT user_id, invite_link, issued_at, expire_at FROM credentials WHERE user_id = ?`)
}

func (s *MySql) stmtUpsertCredential() (*sql.Stmt, error) {
	return s.prepareStmt("upsert-credential",
		`INSERT INTO credentials (user_id, invite_link, issued_at, expire_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE invite_link = VALUES(invite_link),
			issued_at = VALUES(issued_at), expire_at = VALUES(expire_at)`)
}

func (s *MySql) stmtDeleteCredential() (*sql.Stmt, error) {
	return s.prepareStmt("delete-credential",
		`DELETE FROM credentials WHERE user_id = ? AND invite_link = ?`)
}

func (s *MySql) stmtDeleteExpired() (*sql.Stmt, error) {
	return s.prepareStmt("delete-expired",
		`DELETE FROM credentials WHERE expire_at < ?`)
}

func (s *MySql) stmtCountActiveCredentials() (*sql.Stmt, error) {
	return s.prepareStmt("count-active-credentials",
		`SELECT COUNT(*) FROM credentials WHERE expire_at >= ?`)
}

func (s *MySql) stmtSelectRateLimit() (*sql.Stmt, error) {
	return s.prepareStmt("select-rate-limit",
		`SELECT user_id, last_issued_at FROM rate_limits WHERE user_id = ?`)
}

func (s *MySql) stmtUpsertRateLimit() (*sql.Stmt, error) {
	return s.prepareStmt("upsert-rate-limit",
		`INSERT INTO rate_limits (user_id, last_issued_at) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE last_issued_at = VALUES(last_issued_at)`)
}

func (s *MySql) stmtInsertUser() (*sql.Stmt, error) {
	return s.prepareStmt("insert-user",
		`INSERT IGNORE INTO users (user_id, username, first_name, last_name, first_used) VALUES (?, ?, ?, ?, ?)`)
}

func (s *MySql) stmtSelectUserIds() (*sql.Stmt, error) {
	return s.prepareStmt("select-user-ids",
		`SELECT user_id FROM users`)
}

func (s *MySql) stmtCountUsers() (*sql.Stmt, error) {
	return s.prepareStmt("count-users",
		`SELECT COUNT(*) FROM users`)
}

func (s *MySql) stmtSelectBots() (*sql.Stmt, error) {
	return s.prepareStmt("select-bots",
		`SELECT username FROM bots ORDER BY username`)
}

func (s *MySql) stmtInsertBot() (*sql.Stmt, error) {
	return s.prepareStmt("insert-bot",
		`INSERT IGNORE INTO bots (username) VALUES (?)`)
}

func (s *MySql) stmtDeleteBot() (*sql.Stmt, error) {
	return s.prepareStmt("delete-bot",
		`DELETE FROM bots WHERE username = ?`)
}

func (s *MySql) stmtSelectSites() (*sql.Stmt, error) {
	return s.prepareStmt("select-sites",
		`SELECT url FROM sites ORDER BY url`)
}

func (s *MySql) stmtInsertSite() (*sql.Stmt, error) {
	return s.prepareStmt("insert-site",
		`INSERT IGNORE INTO sites (url) VALUES (?)`)
}

func (s *MySql) stmtDeleteSite() (*sql.Stmt, error) {
	return s.prepareStmt("delete-site",
		`DELETE FROM sites WHERE url = ?`)
}
