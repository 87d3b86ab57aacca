// Package models holds the JSON request/response shapes of the HTTP API.
package models

import "surveyd/internal/classify"

// DatasetInfo summarizes a loaded dataset.
type DatasetInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// ColumnInfo is one column descriptor as exposed to clients.
type ColumnInfo struct {
	Name         string            `json:"name"`
	Kind         string            `json:"kind"`
	Label        string            `json:"label,omitempty"`
	ValueLabels  map[string]string `json:"value_labels,omitempty"`
	MissingCodes []float64         `json:"missing_codes,omitempty"`
}

// QuestionsResponse is the classification output: every column assigned to
// exactly one question, plus any configuration problems found on the way.
type QuestionsResponse struct {
	DatasetID string              `json:"dataset_id"`
	Questions []classify.Question `json:"questions"`
	ByColumn  map[string]string   `json:"by_column"`
	Problems  []string            `json:"problems,omitempty"`
}

// CategoryInfo is the client view of one derived category.
type CategoryInfo struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Group  string   `json:"group,omitempty"`
	Levels []string `json:"levels,omitempty"`
	// Members counts rows with a true membership flag; Known counts rows
	// whose membership could be determined at all.
	Members int `json:"members"`
	Known   int `json:"known"`
}

// CategoriesResponse lists the derived categories and the problems that
// prevented others from being built.
type CategoriesResponse struct {
	DatasetID  string         `json:"dataset_id"`
	Categories []CategoryInfo `json:"categories"`
	Problems   []string       `json:"problems,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// ConnectRequest carries database connection details.
type ConnectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// LoadTableRequest asks for a database table to be loaded as a dataset.
type LoadTableRequest struct {
	Table string `json:"table"`
}
