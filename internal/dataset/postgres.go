package dataset

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// SourceConfig holds connection details for a response database.
type SourceConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"` // "disable", "require"
}

// PostgresSource loads survey response tables from PostgreSQL.
type PostgresSource struct {
	db *sql.DB
}

func (p *PostgresSource) Connect(config SourceConfig) error {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return err
	}
	p.db = db
	return nil
}

func (p *PostgresSource) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// ListTables returns the public tables, used both for the API listing and as
// the whitelist for LoadTable.
func (p *PostgresSource) ListTables() ([]string, error) {
	rows, err := p.db.Query(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// LoadTable reads an entire table into a Dataset. The table name is checked
// against ListTables before being interpolated into the query.
func (p *PostgresSource) LoadTable(tableName string) (*Dataset, error) {
	tables, err := p.ListTables()
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range tables {
		if t == tableName {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown table %q", tableName)
	}

	rows, err := p.db.Query(fmt.Sprintf(`SELECT * FROM "%s"`, tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records [][]string
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make([]string, len(columns))
		for i, val := range values {
			rec[i] = sqlValueString(val)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cols := make([]*Column, len(columns))
	for i, name := range columns {
		cols[i] = buildColumn(name, i, records)
	}
	return New(tableName, cols)
}

func sqlValueString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
