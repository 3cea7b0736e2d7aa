package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"gatebot/entity"
	"gatebot/internal/config"
)

// MySql is the SQL-backed store, selected when Mongo is disabled.
// Statements are prepared lazily and cached, see statements.go.
type MySql struct {
	db         *sql.DB
	statements map[string]*sql.Stmt
	mu         sync.Mutex
}

func NewSQLClient(conf *config.Config) (*MySql, error) {
	if !conf.MySql.Enabled {
		return nil, fmt.Errorf("mysql client is disabled in configuration")
	}
	connectionURI := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		conf.MySql.UserName, conf.MySql.Password, conf.MySql.HostName, conf.MySql.Port, conf.MySql.Database)
	db, err := sql.Open("mysql", connectionURI)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// try to ping three times with a 10-second interval; wait for a database to start
	for i := 0; i < 3; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i == 2 {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(10 * time.Second)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &MySql{
		db:         db,
		statements: make(map[string]*sql.Stmt),
	}

	if err = sdb.initSchema(); err != nil {
		return nil, err
	}

	return sdb, nil
}

func (s *MySql) Close() {
	s.closeStmt()
	_ = s.db.Close()
}

func (s *MySql) initSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			setting_key VARCHAR(64) PRIMARY KEY,
			setting_value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			user_id BIGINT PRIMARY KEY,
			invite_link VARCHAR(255) NOT NULL,
			issued_at DATETIME NOT NULL,
			expire_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rate_limits (
			user_id BIGINT PRIMARY KEY,
			last_issued_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			first_used DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bots (
			username VARCHAR(255) PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS sites (
			url VARCHAR(255) PRIMARY KEY
		)`,
	}
	for _, query := range tables {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// --- settings ---

func (s *MySql) GetSetting(ctx context.Context, key string) (string, error) {
	stmt, err := s.stmtSelectSetting()
	if err != nil {
		return "", err
	}
	var value string
	err = stmt.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select setting: %w", err)
	}
	return value, nil
}

func (s *MySql) SetSetting(ctx context.Context, key, value string) error {
	stmt, err := s.stmtUpsertSetting()
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, key, value)
	return err
}

// --- credentials ---

func (s *MySql) Credential(ctx context.Context, userId int64) (*entity.Credential, error) {
	stmt, err := s.stmtSelectCredential()
	if err != nil {
		return nil, err
	}
	var cred entity.Credential
	err = stmt.QueryRowContext(ctx, userId).Scan(&cred.UserId, &cred.InviteLink, &cred.IssuedAt, &cred.ExpireAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select credential: %w", err)
	}
	return &cred, nil
}

func (s *MySql) UpsertCredential(ctx context.Context, cred *entity.Credential) error {
	stmt, err := s.stmtUpsertCredential()
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, cred.UserId, cred.InviteLink, cred.IssuedAt, cred.ExpireAt)
	return err
}

// ConsumeCredential relies on the conditional DELETE matching both the
// user and the link; RowsAffected reports whether the credential was
// still ours to consume.
func (s *MySql) ConsumeCredential(ctx context.Context, userId int64, inviteLink string) (bool, error) {
	stmt, err := s.stmtDeleteCredential()
	if err != nil {
		return false, err
	}
	result, err := stmt.ExecContext(ctx, userId, inviteLink)
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *MySql) DeleteExpiredCredentials(ctx context.Context, before time.Time) (int64, error) {
	stmt, err := s.stmtDeleteExpired()
	if err != nil {
		return 0, err
	}
	result, err := stmt.ExecContext(ctx, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *MySql) CountActiveCredentials(ctx context.Context, now time.Time) (int64, error) {
	stmt, err := s.stmtCountActiveCredentials()
	if err != nil {
		return 0, err
	}
	var count int64
	err = stmt.QueryRowContext(ctx, now).Scan(&count)
	return count, err
}

// --- rate limits ---

func (s *MySql) RateLimitMark(ctx context.Context, userId int64) (*entity.RateLimitMark, error) {
	stmt, err := s.stmtSelectRateLimit()
	if err != nil {
		return nil, err
	}
	var mark entity.RateLimitMark
	err = stmt.QueryRowContext(ctx, userId).Scan(&mark.UserId, &mark.LastIssuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select rate limit: %w", err)
	}
	return &mark, nil
}

func (s *MySql) UpsertRateLimitMark(ctx context.Context, mark *entity.RateLimitMark) error {
	stmt, err := s.stmtUpsertRateLimit()
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, mark.UserId, mark.LastIssuedAt)
	return err
}

// --- user directory ---

func (s *MySql) RegisterUser(ctx context.Context, user *entity.User) error {
	stmt, err := s.stmtInsertUser()
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, user.UserId, user.Username, user.FirstName, user.LastName, user.FirstUsed)
	return err
}

func (s *MySql) UserIds(ctx context.Context) ([]int64, error) {
	stmt, err := s.stmtSelectUserIds()
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *MySql) CountUsers(ctx context.Context) (int64, error) {
	stmt, err := s.stmtCountUsers()
	if err != nil {
		return 0, err
	}
	var count int64
	err = stmt.QueryRowContext(ctx).Scan(&count)
	return count, err
}

// --- auxiliary lists ---

func (s *MySql) Bots(ctx context.Context) ([]string, error) {
	return s.listValues(ctx, s.stmtSelectBots)
}

func (s *MySql) AddBot(ctx context.Context, username string) error {
	stmt, err := s.stmtInsertBot()
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, username)
	return err
}

func (s *MySql) RemoveBot(ctx context.Context, username string) error {
	stmt, err := s.stmtDeleteBot()
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, username)
	return err
}

func (s *MySql) Sites(ctx context.Context) ([]string, error) {
	return s.listValues(ctx, s.stmtSelectSites)
}

func (s *MySql) AddSite(ctx context.Context, url string) error {
	stmt, err := s.stmtInsertSite()
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, url)
	return err
}

func (s *MySql) RemoveSite(ctx context.Context, url string) error {
	stmt, err := s.stmtDeleteSite()
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, url)
	return err
}

func (s *MySql) listValues(ctx context.Context, prepare func() (*sql.Stmt, error)) ([]string, error) {
	stmt, err := prepare()
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var values []string
	for rows.Next() {
		var value string
		if err = rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}
