package db

import "time"

type Passage struct {
	ID              int
	Label           string
	Name            string
	Content         string
	EmbeddingModel  string
	EmbeddingVector []float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Conversation struct {
	ID        string
	Turns     int
	CreatedAt time.Time
}
